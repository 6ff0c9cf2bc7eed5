package server

import (
	"os"
	"os/signal"
	"syscall"

	tecnicofs "github.com/ist199211-ist199341/tecnicofs-so"
	"golang.org/x/sys/unix"
)

// Server owns the ingress FIFO and the fixed-size session-worker pool that
// together implement the session-dispatch layer in front of a Tfs engine.
type Server struct {
	ingressPath string
	fs          *tecnicofs.Tfs
	pool        *pool

	shutdownCh chan struct{}
}

// New creates the ingress FIFO at ingressPath (removing any stale file left
// behind by a previous run) and wires up a fixed pool of sessionCount
// workers in front of fs.
func New(ingressPath string, fs *tecnicofs.Tfs, sessionCount int) (*Server, error) {
	if err := os.Remove(ingressPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := unix.Mkfifo(ingressPath, 0666); err != nil {
		return nil, err
	}

	// Writes to a client's egress pipe after the reader has gone away
	// must surface as an ordinary EPIPE write error on that session, not
	// terminate the process.
	signal.Ignore(syscall.SIGPIPE)

	return &Server{
		ingressPath: ingressPath,
		fs:          fs,
		pool:        newPool(sessionCount),
		shutdownCh:  make(chan struct{}, 1),
	}, nil
}

// Run blocks, dispatching client requests, until SHUTDOWN_AFTER_ALL_CLOSED
// completes successfully or the ingress pipe suffers a fatal I/O error. It
// always removes the ingress FIFO before returning.
func (s *Server) Run() error {
	defer os.Remove(s.ingressPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runDispatcher(s.ingressPath, s.fs, s.pool, s.shutdownCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-s.shutdownCh:
		return nil
	}
}

// Shutdown unlinks the ingress FIFO so that no further client can mount.
// It is called from the process's SIGINT handler; the process exits
// immediately afterward rather than waiting for an in-flight blocking FIFO
// open to notice, since POSIX gives no portable way to interrupt one.
func (s *Server) Shutdown() {
	_ = os.Remove(s.ingressPath)
}
