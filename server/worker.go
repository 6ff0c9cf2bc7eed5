package server

import (
	tecnicofs "github.com/ist199211-ist199341/tecnicofs-so"
	"github.com/ist199211-ist199341/tecnicofs-so/wire"
)

// runWorker is the body of a session's long-lived goroutine: it waits on
// the mailbox until a request is posted, dispatches on the opcode to the
// matching filesystem-facade call, and writes exactly one reply. It returns
// when the session is torn down, either by an UNMOUNT, by a successful
// SHUTDOWN_AFTER_ALL_CLOSED, or by an I/O error writing to the client's
// egress pipe (the "broken-pipe resilience" contract: the session is
// discarded, the server is not).
func runWorker(s *session, fs *tecnicofs.Tfs, pl *pool, shutdownCh chan<- struct{}) {
	for {
		pkt := s.take()

		switch pkt.Op {
		case wire.OpUnmount:
			writeReplyInt32(s, 0)
			teardown(s, pl)
			return

		case wire.OpOpen:
			handle, err := fs.Open(pkt.Name, int(pkt.Flags))
			if err != nil {
				handle = -1
			}
			if !writeReplyInt32(s, int32(handle)) {
				teardown(s, pl)
				return
			}

		case wire.OpClose:
			result := int32(0)
			if err := fs.Close(int(pkt.Handle)); err != nil {
				result = -1
			}
			if !writeReplyInt32(s, result) {
				teardown(s, pl)
				return
			}

		case wire.OpWrite:
			if pkt.Oversized {
				// ResourceExhausted: the payload declared on the wire
				// exceeded MaxPayload. Nothing was read into the
				// facade; only this session's reply is affected.
				if !writeReplyInt32(s, -1) {
					teardown(s, pl)
					return
				}
				continue
			}
			n, err := fs.Write(int(pkt.Handle), pkt.Data)
			if err != nil && n <= 0 {
				n = -1
			}
			if !writeReplyInt32(s, int32(n)) {
				teardown(s, pl)
				return
			}

		case wire.OpRead:
			if pkt.Oversized {
				// ResourceExhausted: the requested length exceeded
				// MaxPayload. Reply in kind rather than silently
				// truncating the request.
				if !writeReadReply(s, -1, nil) {
					teardown(s, pl)
					return
				}
				continue
			}
			buf := make([]byte, pkt.Len)
			n, err := fs.Read(int(pkt.Handle), buf)
			if err != nil {
				n = -1
			}
			if !writeReadReply(s, int32(n), buf) {
				teardown(s, pl)
				return
			}

		case wire.OpShutdownAfterAllClosed:
			err := fs.ShutdownAfterAllClosed()
			result := int32(0)
			if err != nil {
				result = -1
			}
			if !writeReplyInt32(s, result) {
				teardown(s, pl)
				return
			}
			if err == nil {
				select {
				case shutdownCh <- struct{}{}:
				default:
				}
			}
			teardown(s, pl)
			return
		}
	}
}

func writeReplyInt32(s *session, v int32) bool {
	if err := wire.EncodeInt32Reply(s.egress, v); err != nil {
		tracef("session %d: reply write failed: %v", s.id, err)
		return false
	}
	return true
}

func writeReadReply(s *session, n int32, data []byte) bool {
	if err := wire.EncodeReadReply(s.egress, n, data); err != nil {
		tracef("session %d: reply write failed: %v", s.id, err)
		return false
	}
	return true
}

func teardown(s *session, pl *pool) {
	_ = s.egress.Close()
	pl.release(s.id)
}
