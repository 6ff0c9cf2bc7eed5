// Package server implements the session-dispatch server: a single ingress
// pipe reader that parses framed requests and hands each to the worker
// goroutine owning its session, plus the worker loop that executes the
// request against the filesystem engine and replies on the session's egress
// pipe.
package server

import (
	"io"
	"sync"

	"github.com/ist199211-ist199341/tecnicofs-so/wire"
)

// session is one entry of the fixed-size worker pool: a mailbox holding at
// most one pending request, guarded by mu/cond exactly as in the design
// notes' "cyclic structure between worker and dispatcher" — the dispatcher
// is the mailbox's sole producer, the worker its sole consumer.
type session struct {
	id int

	mu        sync.Mutex
	cond      *sync.Cond
	pending   *wire.Packet
	toExecute bool

	egress io.WriteCloser
}

// newSession allocates one pool slot's session state. It is created once
// per slot at pool startup and reused across every client that mounts onto
// that slot for the life of the server, so nothing here may assume it runs
// only once.
func newSession(id int) *session {
	s := &session{id: id}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// dispatch hands pkt to the session's worker and wakes it. Called only by
// the dispatcher goroutine, which is the mailbox's sole producer.
func (s *session) dispatch(pkt *wire.Packet) {
	s.mu.Lock()
	s.pending = pkt
	s.toExecute = true
	s.cond.Signal()
	s.mu.Unlock()
}

// take blocks until a request is pending, then clears the mailbox and
// returns it. Called only by the session's own worker goroutine.
func (s *session) take() *wire.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.toExecute {
		s.cond.Wait()
	}
	pkt := s.pending
	s.pending = nil
	s.toExecute = false
	return pkt
}
