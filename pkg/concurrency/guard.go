package concurrency

import (
	"errors"
	"sync"
)

var ErrBusy = errors.New("receiver is busy with another transfer")

// ConcurrencyGuard admits one holder at a time. Unlike a mutex it never
// blocks: a second caller is turned away with ErrBusy.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// TryAcquire takes the guard, or returns ErrBusy if it is held. The
// returned release func is idempotent.
func (g *ConcurrencyGuard) TryAcquire() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return nil, ErrBusy
	}
	g.isBusy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.isBusy = false
			g.mu.Unlock()
		})
	}, nil
}

func (g *ConcurrencyGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBusy
}
