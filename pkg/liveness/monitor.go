// Package liveness keeps an open channel busy with periodic heartbeats.
package liveness

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Target is the part of a channel the monitor needs.
type Target interface {
	IsOpen() bool
	Send(frame []byte) error
}

// Monitor sends a heartbeat frame on a fixed period while its target is
// open. It is single use: once stopped it cannot be started again.
type Monitor struct {
	target   Target
	frame    []byte
	interval time.Duration
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	beats     atomic.Uint64
}

func NewMonitor(target Target, frame []byte, interval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		target:   target,
		frame:    frame,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Stop halts the monitor and waits for its goroutine to exit. After Stop
// returns no further heartbeat is sent. Safe to call more than once, and
// before Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	started := true
	m.startOnce.Do(func() {
		started = false
		close(m.done)
	})
	if started {
		<-m.done
	}
}

// Beats is the number of heartbeats sent so far.
func (m *Monitor) Beats() uint64 {
	return m.beats.Load()
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}

		// Stop may have raced with the tick, and the channel may have closed
		// since the monitor started.
		select {
		case <-m.stop:
			return
		default:
		}
		if !m.target.IsOpen() {
			m.logger.Debug("Channel no longer open, stopping heartbeat")
			return
		}

		if err := m.target.Send(m.frame); err != nil {
			m.logger.Warn("Failed to send heartbeat", "error", err)
			continue
		}
		m.beats.Add(1)
	}
}
