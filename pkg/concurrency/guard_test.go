package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyGuard_TryAcquire(t *testing.T) {
	g := NewConcurrencyGuard()

	release, err := g.TryAcquire()
	require.NoError(t, err)
	assert.True(t, g.Busy())

	_, err = g.TryAcquire()
	assert.ErrorIs(t, err, ErrBusy)

	release()
	release()
	assert.False(t, g.Busy())

	release2, err := g.TryAcquire()
	require.NoError(t, err)
	release2()
}

func TestConcurrencyGuard_OneWinner(t *testing.T) {
	g := NewConcurrencyGuard()
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.TryAcquire(); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
