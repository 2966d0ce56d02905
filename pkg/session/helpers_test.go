package session

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rescp17/dropline/pkg/channel"
	"github.com/rescp17/dropline/pkg/transfer"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func testConfig() *transfer.TransferConfig {
	cfg := transfer.DefaultTransferConfig()
	cfg.StartDelay = 5 * time.Millisecond
	cfg.BackpressureRetry = 5 * time.Millisecond
	// Long enough that no heartbeat shows up in recorded frames.
	cfg.HeartbeatInterval = time.Hour
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is a Listener that keeps everything it is told.
type recorder struct {
	mu        sync.Mutex
	changes   []PhaseChange
	progress  []int
	offers    []transfer.FileDescriptor
	artifacts []*transfer.Artifact
	discards  []error
}

func (r *recorder) OnPhaseChanged(c PhaseChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) OnProgress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) OnOffer(d transfer.FileDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, d)
}

func (r *recorder) OnArtifact(a *transfer.Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, a)
}

func (r *recorder) OnDiscard(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discards = append(r.discards, err)
}

func (r *recorder) Progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...)
}

func (r *recorder) Discards() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.discards...)
}

func (r *recorder) Offers() []transfer.FileDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transfer.FileDescriptor(nil), r.offers...)
}

func (r *recorder) Changes() []PhaseChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PhaseChange(nil), r.changes...)
}

// recordingChannel keeps a copy of every frame sent through it.
type recordingChannel struct {
	channel.Channel

	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingChannel) Send(frame []byte) error {
	if err := c.Channel.Send(frame); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, append([]byte(nil), frame...))
	c.mu.Unlock()
	return nil
}

// Types decodes the recorded frames and returns their message types.
func (c *recordingChannel) Types(t *testing.T, codec *transfer.Codec) []transfer.MessageType {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]transfer.MessageType, 0, len(c.frames))
	for _, f := range c.frames {
		msg, err := codec.Decode(f)
		require.NoError(t, err)
		types = append(types, msg.Type)
	}
	return types
}

func count(types []transfer.MessageType, want transfer.MessageType) int {
	n := 0
	for _, t := range types {
		if t == want {
			n++
		}
	}
	return n
}

type pair struct {
	pipe        *channel.Pipe
	senderCh    *recordingChannel
	receiverCh  *recordingChannel
	sender      *Session
	receiver    *Session
	senderLog   *recorder
	receiverLog *recorder
	codec       *transfer.Codec
}

// newPair opens a sender and a receiver on the two ends of an open pipe,
// both in Connected.
func newPair(t *testing.T, cfg *transfer.TransferConfig) *pair {
	t.Helper()
	p := &pair{
		pipe:        channel.NewPipe(),
		senderLog:   &recorder{},
		receiverLog: &recorder{},
	}
	p.senderCh = &recordingChannel{Channel: p.pipe.A()}
	p.receiverCh = &recordingChannel{Channel: p.pipe.B()}

	var err error
	p.codec, err = cfg.NewCodec()
	require.NoError(t, err)

	p.sender, err = Open(Sender, p.senderCh, cfg, WithListener(p.senderLog), WithLogger(quietLogger()))
	require.NoError(t, err)
	p.receiver, err = Open(Receiver, p.receiverCh, cfg, WithListener(p.receiverLog), WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() {
		p.sender.Close()
		p.receiver.Close()
		p.pipe.Close()
	})

	p.pipe.Open()
	waitFor(t, p.sender, Connected)
	waitFor(t, p.receiver, Connected)
	return p
}

func waitFor(t *testing.T, s *Session, phases ...Phase) Phase {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	got, err := s.WaitPhase(ctx, phases...)
	require.NoError(t, err, "waiting for %v, session is %s", phases, got)
	return got
}

func payload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func describe(name string, data []byte) transfer.FileDescriptor {
	return transfer.FileDescriptor{
		Name:      name,
		Size:      int64(len(data)),
		MediaType: "application/octet-stream",
		Checksum:  transfer.Checksum(data),
	}
}

// offerAndAccept runs the consent handshake for data.
func (p *pair) offerAndAccept(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, p.sender.OfferFile(describe(name, data), bytes.NewReader(data)))
	waitFor(t, p.receiver, WaitingApproval)
	require.NoError(t, p.receiver.RespondToOffer(true))
}
