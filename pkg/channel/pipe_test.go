package channel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	frames []string
	opened int
	closed int
	errs   []error
}

func (r *recorder) attach(e *Endpoint) {
	e.OnOpen(func() { r.mu.Lock(); r.opened++; r.mu.Unlock() })
	e.OnClose(func() { r.mu.Lock(); r.closed++; r.mu.Unlock() })
	e.OnError(func(err error) { r.mu.Lock(); r.errs = append(r.errs, err); r.mu.Unlock() })
	e.OnMessage(func(frame []byte) { r.mu.Lock(); r.frames = append(r.frames, string(frame)); r.mu.Unlock() })
}

func (r *recorder) snapshot() (frames []string, opened, closed int, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...), r.opened, r.closed, append([]error(nil), r.errs...)
}

func TestPipe_DeliversInOrder(t *testing.T) {
	p := NewPipe()
	var ra, rb recorder
	ra.attach(p.A())
	rb.attach(p.B())

	assert.False(t, p.A().IsOpen())
	assert.ErrorIs(t, p.A().Send([]byte("early")), ErrClosed)

	p.Open()
	assert.True(t, p.A().IsOpen())
	assert.True(t, p.B().IsOpen())

	want := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}
	for _, f := range want {
		require.NoError(t, p.A().Send([]byte(f)))
	}

	require.Eventually(t, func() bool {
		frames, _, _, _ := rb.snapshot()
		return len(frames) == len(want)
	}, time.Second, 5*time.Millisecond)

	frames, opened, _, _ := rb.snapshot()
	assert.Equal(t, want, frames)
	assert.Equal(t, 1, opened)
	assert.Equal(t, 10, p.A().Sent())
}

func TestPipe_PausedDeliveryBuildsBacklog(t *testing.T) {
	p := NewPipe()
	var rb recorder
	rb.attach(p.B())
	p.Open()

	p.B().PauseDelivery()
	require.NoError(t, p.A().Send(make([]byte, 100)))
	require.NoError(t, p.A().Send(make([]byte, 50)))

	assert.Equal(t, uint64(150), p.A().BufferedAmount())
	assert.Equal(t, uint64(0), p.B().BufferedAmount())

	p.B().ResumeDelivery()
	require.Eventually(t, func() bool {
		return p.A().BufferedAmount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestPipe_FailReportsErrorThenClosesBothEnds(t *testing.T) {
	p := NewPipe()
	var ra, rb recorder
	ra.attach(p.A())
	rb.attach(p.B())
	p.Open()

	cause := errors.New("ice failed")
	p.A().Fail(cause)

	_, _, closedA, errsA := ra.snapshot()
	_, _, closedB, errsB := rb.snapshot()
	assert.Equal(t, []error{cause}, errsA)
	assert.Empty(t, errsB)
	assert.Equal(t, 1, closedA)
	assert.Equal(t, 1, closedB)
	assert.False(t, p.A().IsOpen())
	assert.ErrorIs(t, p.B().Send([]byte("late")), ErrClosed)

	// Closing again is a no-op.
	require.NoError(t, p.B().Close())
	_, _, closedB, _ = rb.snapshot()
	assert.Equal(t, 1, closedB)
}
