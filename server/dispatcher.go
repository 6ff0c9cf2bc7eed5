package server

import (
	"errors"
	"io"
	"os"

	tecnicofs "github.com/ist199211-ist199341/tecnicofs-so"
	"github.com/ist199211-ist199341/tecnicofs-so/wire"
)

// runDispatcher is the server's single reader of the ingress FIFO. It opens
// the FIFO read-only, parses one opcode-framed request at a time and either
// handles the MOUNT handshake itself (spawning a worker goroutine for the
// new session) or hands the request to the owning session's mailbox.
//
// Opening a FIFO read-only blocks until some process holds it open for
// writing; once every writer detaches, a read on it returns EOF rather than
// blocking again. Left unhandled that turns into a busy loop of zero-byte
// reads, so on EOF the dispatcher closes and reopens the FIFO, which blocks
// again until the next client attaches — the rendezvous the original server
// relies on to avoid spinning with no writer present.
func runDispatcher(ingressPath string, fs *tecnicofs.Tfs, pl *pool, shutdownCh chan<- struct{}) error {
	for {
		f, err := os.OpenFile(ingressPath, os.O_RDONLY, 0)
		if err != nil {
			return err
		}

		err = readRequests(f, fs, pl, shutdownCh)
		_ = f.Close()

		if err == io.EOF {
			continue
		}
		if err != nil {
			return err
		}
	}
}

// readRequests reads and dispatches opcode-framed requests from f until EOF
// or a fatal I/O error on the ingress stream itself. Errors writing to a
// client's egress pipe never reach here; they are confined to that one
// session.
func readRequests(f io.Reader, fs *tecnicofs.Tfs, pl *pool, shutdownCh chan<- struct{}) error {
	for {
		op, err := wire.ReadOpcode(f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return err
		}

		if op == wire.OpMount {
			if err := handleMount(f, fs, pl, shutdownCh); err != nil {
				return err
			}
			continue
		}

		sessionID, err := wire.ReadSessionID(f)
		if err != nil {
			return err
		}

		pkt, err := decodeBody(f, op, sessionID)
		if err != nil {
			return err
		}

		s := pl.get(int(sessionID))
		if s == nil {
			// No worker to hand this to; the session id is either
			// stale or malformed. There is nowhere to reply, so the
			// request is dropped and the stream continues.
			tracef("dispatcher: unknown session id %d for opcode %s", sessionID, op)
			continue
		}
		s.dispatch(pkt)
	}
}

func decodeBody(r io.Reader, op wire.Opcode, sessionID int32) (*wire.Packet, error) {
	pkt := &wire.Packet{Op: op, SessionID: sessionID}

	switch op {
	case wire.OpUnmount:
		// No body beyond the session id already read.
	case wire.OpOpen:
		name, flags, err := wire.DecodeOpenBody(r)
		if err != nil {
			return nil, err
		}
		pkt.Name, pkt.Flags = name, flags
	case wire.OpClose:
		handle, err := wire.DecodeCloseBody(r)
		if err != nil {
			return nil, err
		}
		pkt.Handle = handle
	case wire.OpWrite:
		handle, data, err := wire.DecodeWriteBody(r)
		if err != nil {
			if errors.Is(err, wire.ErrPayloadTooLarge) {
				pkt.Handle, pkt.Oversized = handle, true
				break
			}
			return nil, err
		}
		pkt.Handle, pkt.Data = handle, data
	case wire.OpRead:
		handle, length, err := wire.DecodeReadBody(r)
		if err != nil {
			return nil, err
		}
		pkt.Handle, pkt.Len = handle, length
		if length > wire.MaxPayload {
			pkt.Oversized = true
		}
	case wire.OpShutdownAfterAllClosed:
		// No body beyond the session id already read.
	default:
		return nil, errUnknownOpcode(op)
	}

	return pkt, nil
}

type errUnknownOpcode wire.Opcode

func (e errUnknownOpcode) Error() string {
	return "dispatcher: unknown opcode " + wire.Opcode(e).String()
}

// handleMount performs the MOUNT handshake: pick a free session, open the
// client's egress pipe for writing, reply with the session id, and spawn
// the session's worker goroutine. Refusal (no free session, or the egress
// pipe cannot be opened) replies -1 instead and releases any acquired slot.
// A failure writing the reply itself only tears down the new session; it
// does not desynchronize the ingress stream, so it is not propagated as a
// dispatcher-fatal error.
func handleMount(r io.Reader, fs *tecnicofs.Tfs, pl *pool, shutdownCh chan<- struct{}) error {
	clientPath, err := wire.DecodeMountBody(r)
	if err != nil {
		return err
	}

	s := pl.acquire()
	if s == nil {
		replyMountRefused(clientPath)
		return nil
	}

	egress, err := os.OpenFile(clientPath, os.O_WRONLY, 0)
	if err != nil {
		pl.release(s.id)
		replyMountRefused(clientPath)
		return nil
	}
	s.egress = egress

	if err := wire.EncodeInt32Reply(egress, int32(s.id)); err != nil {
		tracef("session %d: mount reply failed: %v", s.id, err)
		_ = egress.Close()
		pl.release(s.id)
		return nil
	}

	go runWorker(s, fs, pl, shutdownCh)
	return nil
}

// replyMountRefused opens the client's egress pipe just long enough to send
// the refusal and close it, matching the contract that every MOUNT receives
// exactly one reply.
func replyMountRefused(clientPath string) {
	egress, err := os.OpenFile(clientPath, os.O_WRONLY, 0)
	if err != nil {
		// The client is unreachable; nothing more can be done for
		// this request.
		return
	}
	defer egress.Close()
	_ = wire.EncodeInt32Reply(egress, -1)
}
