package server

import (
	"flag"
	"io"
	"log"
	"os"
	"sync"
)

// fTrace gates the session server's protocol trace log: requests dropped for
// an unknown session id, failed MOUNT replies, and per-session reply-write
// failures. It says nothing about the filesystem engine's own state, only the
// wire traffic flowing through the dispatcher and worker goroutines.
var fTrace = flag.Bool(
	"fs.trace",
	false,
	"Log dropped requests and reply-write failures to stderr.")

var traceLogger *log.Logger
var traceLoggerOnce sync.Once

func initTraceLogger() {
	var w io.Writer = io.Discard
	if *fTrace {
		w = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	traceLogger = log.New(w, "tfsd: ", flags)
}

// tracef lazily initializes the trace logger on first use (flags are parsed
// by main before any request can reach the dispatcher, so there's no
// ordering hazard to guard against here) and writes one trace line.
func tracef(format string, args ...interface{}) {
	traceLoggerOnce.Do(initTraceLogger)
	traceLogger.Printf(format, args...)
}
