// Command tfsd runs the TecnicoFS session server: it creates the ingress
// FIFO named on the command line, accepts MOUNT handshakes from clients,
// and serves open/close/read/write requests against an in-memory
// filesystem engine shared by every session.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	tecnicofs "github.com/ist199211-ist199341/tecnicofs-so"
	"github.com/ist199211-ist199341/tecnicofs-so/server"
)

var fBlockDelay = flag.Duration(
	"fs.block-delay",
	50*time.Microsecond,
	"Synthetic per-access latency charged against the inode table and block pool.")

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tfsd <ingress-fifo-path>")
		os.Exit(1)
	}
	ingressPath := flag.Arg(0)

	cfg := tecnicofs.DefaultConfig()
	cfg.Delay = *fBlockDelay

	fs, err := tecnicofs.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tfsd: failed to initialize filesystem: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.New(ingressPath, fs, tecnicofs.SimultaneousConnections)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tfsd: failed to start server: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		srv.Shutdown()
		os.Exit(0)
	}()

	fmt.Printf("tfsd: serving on %s\n", ingressPath)
	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tfsd: %v\n", err)
		os.Exit(1)
	}
}
