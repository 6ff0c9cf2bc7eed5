package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Opcode identifies the kind of a request packet. It is sent as a single
// byte ahead of the opcode-specific body.
type Opcode byte

const (
	OpMount                   Opcode = 1
	OpUnmount                 Opcode = 2
	OpOpen                    Opcode = 3
	OpClose                   Opcode = 4
	OpWrite                   Opcode = 5
	OpRead                    Opcode = 6
	OpShutdownAfterAllClosed  Opcode = 7
)

func (o Opcode) String() string {
	switch o {
	case OpMount:
		return "MOUNT"
	case OpUnmount:
		return "UNMOUNT"
	case OpOpen:
		return "OPEN"
	case OpClose:
		return "CLOSE"
	case OpWrite:
		return "WRITE"
	case OpRead:
		return "READ"
	case OpShutdownAfterAllClosed:
		return "SHUTDOWN_AFTER_ALL_CLOSED"
	default:
		return fmt.Sprintf("OPCODE(%d)", byte(o))
	}
}

// StringLength is the fixed width, in bytes, of every string field on the
// wire (client pipe paths and file names alike). It must match
// tecnicofs.PipeStringLength / tecnicofs.MaxFileName; wire is kept free of a
// dependency on the engine package, so the two are duplicated constants
// rather than one shared symbol.
const StringLength = 40

// MaxPayload bounds a single WRITE request's byte payload (and a single READ
// reply's) to PIPE_BUF on Linux, the platform constant spec.md's
// PIPE_BUFFER_MAX_LEN resolves to. Every request or reply must fit inside
// one atomic pipe write so concurrent clients sharing the ingress pipe can
// never interleave partial packets.
const MaxPayload = 4096

// ErrPayloadTooLarge is returned by DecodeWriteBody when the client-declared
// payload length exceeds MaxPayload. The oversized payload is drained from r
// before this returns, so the wire stream stays framed for the next request;
// callers should reply ResourceExhausted on the offending session only, not
// treat this as a stream-level error.
var ErrPayloadTooLarge = errors.New("wire: payload exceeds MaxPayload")

// Packet is a decoded request: a tagged union over the opcode table in
// spec section 4.6. Only the fields relevant to Op are meaningful.
type Packet struct {
	Op             Opcode
	SessionID      int32
	ClientPipePath string
	Name           string
	Flags          int32
	Handle         int32
	Len            uint64
	Data           []byte

	// Oversized is set when the request's declared payload/requested
	// length exceeds MaxPayload. The session's worker must reply
	// ResourceExhausted without touching the filesystem facade.
	Oversized bool
}

// ReadOpcode reads the single leading opcode byte of a request.
func ReadOpcode(r io.Reader) (Opcode, error) {
	var b [1]byte
	if err := ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return Opcode(b[0]), nil
}

// ReadSessionID reads the 4-byte session id that follows the opcode for
// every request but MOUNT.
func ReadSessionID(r io.Reader) (int32, error) {
	return readInt32(r)
}

// DecodeMountBody reads a MOUNT request's body: the client's egress pipe
// path, as a fixed-width NUL-padded string.
func DecodeMountBody(r io.Reader) (string, error) {
	return readFixedString(r, StringLength)
}

// UNMOUNT and SHUTDOWN_AFTER_ALL_CLOSED have no body beyond the session id,
// which the dispatcher reads before decoding, so they have no decode function.

// DecodeOpenBody reads an OPEN request's body: name and flags.
func DecodeOpenBody(r io.Reader) (name string, flags int32, err error) {
	name, err = readFixedString(r, StringLength)
	if err != nil {
		return "", 0, err
	}
	flags, err = readInt32(r)
	if err != nil {
		return "", 0, err
	}
	return name, flags, nil
}

// DecodeCloseBody reads a CLOSE request's body: the handle.
func DecodeCloseBody(r io.Reader) (int32, error) {
	return readInt32(r)
}

// DecodeWriteBody reads a WRITE request's body: handle, length-prefixed
// byte payload.
func DecodeWriteBody(r io.Reader) (handle int32, data []byte, err error) {
	handle, err = readInt32(r)
	if err != nil {
		return 0, nil, err
	}
	length, err := readUint64(r)
	if err != nil {
		return 0, nil, err
	}
	if length > MaxPayload {
		if err := drain(r, length); err != nil {
			return 0, nil, err
		}
		return handle, nil, ErrPayloadTooLarge
	}
	data = make([]byte, length)
	if err := ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return handle, data, nil
}

// drain reads and discards exactly n bytes from r, retrying on EINTR the
// same way ReadFull does, so an oversized payload can be skipped without
// losing the framing of whatever request follows it on the stream.
func drain(r io.Reader, n uint64) error {
	var buf [4096]byte
	for n > 0 {
		chunk := uint64(len(buf))
		if n < chunk {
			chunk = n
		}
		if err := ReadFull(r, buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// DecodeReadBody reads a READ request's body: handle and requested length.
func DecodeReadBody(r io.Reader) (handle int32, length uint64, err error) {
	handle, err = readInt32(r)
	if err != nil {
		return 0, 0, err
	}
	length, err = readUint64(r)
	if err != nil {
		return 0, 0, err
	}
	return handle, length, nil
}

// EncodeMountRequest writes a MOUNT request: opcode then client pipe path.
func EncodeMountRequest(w io.Writer, clientPipePath string) error {
	if err := writeOpcode(w, OpMount); err != nil {
		return err
	}
	return writeFixedString(w, clientPipePath, StringLength)
}

// EncodeSessionRequest writes the opcode and session id shared by every
// non-MOUNT request.
func EncodeSessionRequest(w io.Writer, op Opcode, sessionID int32) error {
	if err := writeOpcode(w, op); err != nil {
		return err
	}
	return writeInt32(w, sessionID)
}

// EncodeOpenBody writes an OPEN request's body onto an already-written
// opcode+session-id header.
func EncodeOpenBody(w io.Writer, name string, flags int32) error {
	if err := writeFixedString(w, name, StringLength); err != nil {
		return err
	}
	return writeInt32(w, flags)
}

// EncodeCloseBody writes a CLOSE request's body.
func EncodeCloseBody(w io.Writer, handle int32) error {
	return writeInt32(w, handle)
}

// EncodeWriteBody writes a WRITE request's body: handle, length, payload.
func EncodeWriteBody(w io.Writer, handle int32, data []byte) error {
	if err := writeInt32(w, handle); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(data))); err != nil {
		return err
	}
	return WriteFull(w, data)
}

// EncodeReadBody writes a READ request's body: handle, requested length.
func EncodeReadBody(w io.Writer, handle int32, length uint64) error {
	if err := writeInt32(w, handle); err != nil {
		return err
	}
	return writeUint64(w, length)
}

// EncodeInt32Reply writes a single int32 status reply (the shape of every
// reply except READ's).
func EncodeInt32Reply(w io.Writer, status int32) error {
	return writeInt32(w, status)
}

// DecodeInt32Reply reads a single int32 status reply.
func DecodeInt32Reply(r io.Reader) (int32, error) {
	return readInt32(r)
}

// EncodeReadReply writes a READ reply: n, followed by exactly n bytes of
// data when n > 0.
func EncodeReadReply(w io.Writer, n int32, data []byte) error {
	if err := writeInt32(w, n); err != nil {
		return err
	}
	if n > 0 {
		return WriteFull(w, data[:n])
	}
	return nil
}

// DecodeReadReply reads a READ reply.
func DecodeReadReply(r io.Reader) (n int32, data []byte, err error) {
	n, err = readInt32(r)
	if err != nil {
		return 0, nil, err
	}
	if n <= 0 {
		return n, nil, nil
	}
	data = make([]byte, n)
	if err := ReadFull(r, data); err != nil {
		return 0, nil, err
	}
	return n, data, nil
}

func writeOpcode(w io.Writer, op Opcode) error {
	return WriteFull(w, []byte{byte(op)})
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return WriteFull(w, buf[:])
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return WriteFull(w, buf[:])
}

func readFixedString(r io.Reader, width int) (string, error) {
	buf := make([]byte, width)
	if err := ReadFull(r, buf); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

func writeFixedString(w io.Writer, s string, width int) error {
	buf := make([]byte, width)
	limit := width - 1
	if len(s) < limit {
		limit = len(s)
	}
	copy(buf, s[:limit])
	buf[limit] = 0
	return WriteFull(w, buf)
}
