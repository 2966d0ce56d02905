package session

import (
	"testing"

	"github.com/rescp17/dropline/pkg/channel"
	"github.com/rescp17/dropline/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawSender drives a receiver session with hand-built frames.
type rawSender struct {
	t        *testing.T
	pipe     *channel.Pipe
	codec    *transfer.Codec
	receiver *Session
}

func newRawSender(t *testing.T) *rawSender {
	t.Helper()
	cfg := testConfig()
	codec, err := cfg.NewCodec()
	require.NoError(t, err)

	pipe := channel.NewPipe()
	receiver, err := Open(Receiver, pipe.B(), cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() {
		receiver.Close()
		pipe.Close()
	})

	pipe.Open()
	waitFor(t, receiver, Connected)
	return &rawSender{t: t, pipe: pipe, codec: codec, receiver: receiver}
}

func (r *rawSender) send(msg *transfer.Message) {
	r.t.Helper()
	frame, err := r.codec.Encode(msg)
	require.NoError(r.t, err)
	require.NoError(r.t, r.pipe.A().Send(frame))
}

// begin offers desc, approves it on the receiver and starts the transfer.
func (r *rawSender) begin(desc transfer.FileDescriptor) {
	r.t.Helper()
	r.send(transfer.NewFileOffer(desc))
	waitFor(r.t, r.receiver, WaitingApproval)
	require.NoError(r.t, r.receiver.RespondToOffer(true))
	r.send(transfer.NewControl(transfer.TransferBegin))
}

func (r *rawSender) requireViolation() {
	r.t.Helper()
	waitFor(r.t, r.receiver, Failed)
	assert.ErrorIs(r.t, r.receiver.Snapshot().Cause, transfer.ErrProtocolViolation)
	_, err := r.receiver.Artifact()
	assert.Error(r.t, err)
}

func TestReceiver_TransferEndWithoutDescriptorFails(t *testing.T) {
	r := newRawSender(t)

	r.send(transfer.NewControl(transfer.TransferEnd))
	r.requireViolation()
}

func TestReceiver_ChunkAfterCompletedFails(t *testing.T) {
	r := newRawSender(t)
	data := []byte("complete file")

	r.begin(describe("done.txt", data))
	r.send(transfer.NewChunk(data))
	r.send(transfer.NewControl(transfer.TransferEnd))
	waitFor(t, r.receiver, Completed)

	r.send(transfer.NewChunk([]byte("late")))
	r.requireViolation()
}

func TestReceiver_MoreBytesThanDescribedFails(t *testing.T) {
	r := newRawSender(t)

	r.begin(transfer.FileDescriptor{Name: "small.bin", Size: 4, MediaType: "application/octet-stream"})
	r.send(transfer.NewChunk([]byte("12345678")))
	r.requireViolation()
	assert.Zero(t, r.receiver.Snapshot().BytesTransferred)
}

func TestReceiver_ReorderedChunksFail(t *testing.T) {
	r := newRawSender(t)
	data := payload(3 * 1024)
	c0, c1, c2 := data[:1024], data[1024:2048], data[2048:]

	r.begin(describe("ordered.bin", data))
	for _, c := range [][]byte{c1, c0, c2} {
		r.send(transfer.NewChunk(c))
	}
	r.send(transfer.NewControl(transfer.TransferEnd))
	r.requireViolation()
}
