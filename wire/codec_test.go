package wire_test

import (
	"bytes"
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/ist199211-ist199341/tecnicofs-so/wire"
)

func TestCodec(t *testing.T) { RunTests(t) }

type CodecTest struct {
	buf *bytes.Buffer
}

func init() { RegisterTestSuite(&CodecTest{}) }

func (t *CodecTest) SetUp(ti *TestInfo) {
	t.buf = &bytes.Buffer{}
}

func (t *CodecTest) MountRoundTrips() {
	AssertEq(nil, wire.EncodeMountRequest(t.buf, "/tmp/client.fifo"))

	op, err := wire.ReadOpcode(t.buf)
	AssertEq(nil, err)
	AssertEq(wire.OpMount, op)

	path, err := wire.DecodeMountBody(t.buf)
	AssertEq(nil, err)
	ExpectEq("/tmp/client.fifo", path)
}

func (t *CodecTest) MountBodyIsFixedWidthAndNulPadded() {
	AssertEq(nil, wire.EncodeMountRequest(t.buf, "short"))
	t.buf.Next(1) // skip the opcode byte
	ExpectEq(wire.StringLength, t.buf.Len())
}

func (t *CodecTest) SessionRequestRoundTrips() {
	AssertEq(nil, wire.EncodeSessionRequest(t.buf, wire.OpClose, 3))

	op, err := wire.ReadOpcode(t.buf)
	AssertEq(nil, err)
	AssertEq(wire.OpClose, op)

	id, err := wire.ReadSessionID(t.buf)
	AssertEq(nil, err)
	ExpectEq(int32(3), id)
}

func (t *CodecTest) OpenBodyRoundTrips() {
	AssertEq(nil, wire.EncodeOpenBody(t.buf, "/a", 0b101))

	name, flags, err := wire.DecodeOpenBody(t.buf)
	AssertEq(nil, err)
	ExpectEq("/a", name)
	ExpectEq(int32(0b101), flags)
}

func (t *CodecTest) WriteBodyRoundTrips() {
	payload := []byte("hello, tecnicofs")
	AssertEq(nil, wire.EncodeWriteBody(t.buf, 5, payload))

	handle, data, err := wire.DecodeWriteBody(t.buf)
	AssertEq(nil, err)
	ExpectEq(int32(5), handle)
	ExpectTrue(bytes.Equal(payload, data))
}

func (t *CodecTest) WriteBodyRejectsOversizedPayload() {
	huge := make([]byte, wire.MaxPayload+1)
	AssertEq(nil, wire.EncodeWriteBody(t.buf, 1, huge))

	_, _, err := wire.DecodeWriteBody(t.buf)
	AssertNe(nil, err)
}

func (t *CodecTest) ReadBodyRoundTrips() {
	AssertEq(nil, wire.EncodeReadBody(t.buf, 9, 128))

	handle, length, err := wire.DecodeReadBody(t.buf)
	AssertEq(nil, err)
	ExpectEq(int32(9), handle)
	ExpectEq(uint64(128), length)
}

func (t *CodecTest) Int32ReplyRoundTrips() {
	AssertEq(nil, wire.EncodeInt32Reply(t.buf, -1))

	v, err := wire.DecodeInt32Reply(t.buf)
	AssertEq(nil, err)
	ExpectEq(int32(-1), v)
}

func (t *CodecTest) ReadReplyRoundTrips_WithData() {
	data := []byte("payload")
	AssertEq(nil, wire.EncodeReadReply(t.buf, int32(len(data)), data))

	n, got, err := wire.DecodeReadReply(t.buf)
	AssertEq(nil, err)
	ExpectEq(int32(len(data)), n)
	ExpectTrue(bytes.Equal(data, got))
}

func (t *CodecTest) ReadReplyRoundTrips_EOF() {
	AssertEq(nil, wire.EncodeReadReply(t.buf, 0, nil))

	n, got, err := wire.DecodeReadReply(t.buf)
	AssertEq(nil, err)
	ExpectEq(int32(0), n)
	ExpectTrue(got == nil)
}

func (t *CodecTest) OpcodeStringsAreHumanReadable() {
	ExpectEq("MOUNT", wire.OpMount.String())
	ExpectEq("READ", wire.OpRead.String())
	ExpectEq("SHUTDOWN_AFTER_ALL_CLOSED", wire.OpShutdownAfterAllClosed.String())
}
