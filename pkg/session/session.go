// Package session runs the transfer state machine for one channel.
//
// A Session serializes every event that touches it (channel messages,
// channel lifecycle events, caller intents and its own timers) onto a single
// goroutine, so the state machine itself needs no locking. Callers read
// state through Snapshot and friends, which return a copy published after
// each event.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescp17/dropline/pkg/channel"
	"github.com/rescp17/dropline/pkg/liveness"
	"github.com/rescp17/dropline/pkg/transfer"
)

// Snapshot is a copy of the session state at one point in time.
type Snapshot struct {
	ID    string
	Role  Role
	Phase Phase
	// Cause explains the last transition when it was driven by an error,
	// a rejection or a cancellation.
	Cause            error
	Progress         int
	BytesTransferred int64
	// Pending is the offered descriptor while consent is outstanding.
	Pending *transfer.FileDescriptor
	// File is the descriptor of the transfer in progress or just finished.
	File           *transfer.FileDescriptor
	LastLivenessAt time.Time
	// Heartbeats counts heartbeats sent, as of the last processed event.
	Heartbeats uint64
	artifact   *transfer.Artifact
}

type Option func(*Session)

func WithListener(l Listener) Option {
	return func(s *Session) {
		if l != nil {
			s.listener = l
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithID sets the session identifier used in logs. A random one is used
// otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

type Session struct {
	id       string
	role     Role
	cfg      *transfer.TransferConfig
	codec    *transfer.Codec
	ch       channel.Channel
	logger   *slog.Logger
	listener Listener

	heartbeatFrame []byte

	events    chan any
	steps     chan uint64
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	mu      sync.RWMutex
	view    Snapshot
	changed chan struct{}

	// Everything below is owned by the event goroutine.
	phase            Phase
	cause            error
	pending          *transfer.FileDescriptor
	active           *transfer.FileDescriptor
	progress         int
	bytesTransferred int64
	lastLivenessAt   time.Time
	monitor          *liveness.Monitor
	heartbeats       uint64
	gen              uint64
	connectTimer     *time.Timer
	stepTimer        *time.Timer

	// sender
	source  io.ReaderAt
	chunker *transfer.Chunker

	// receiver
	buffer   *transfer.ChunkBuffer
	begun    bool
	artifact *transfer.Artifact
}

type (
	openEvent  struct{}
	closeEvent struct{}
	errorEvent struct {
		err error
	}
	frameEvent struct {
		frame []byte
	}
	intentEvent struct {
		run   func() error
		reply chan error
	}
	timerEvent struct {
		kind timerKind
		gen  uint64
	}
)

type timerKind int

const (
	timerConnect timerKind = iota
	timerStep
)

// Open attaches a new session to ch and issues the connect request for
// role. The channel stays owned by the caller: the session never closes it.
//
// A sender moves to Connecting and then to Connected once the channel is
// open, or to Failed if it does not open within the connect timeout. A
// receiver moves to Connected as soon as the channel is open.
func Open(role Role, ch channel.Channel, cfg *transfer.TransferConfig, opts ...Option) (*Session, error) {
	if ch == nil {
		return nil, errors.New("session: nil channel")
	}
	if cfg == nil {
		cfg = transfer.DefaultTransferConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}
	codec, err := cfg.NewCodec()
	if err != nil {
		return nil, err
	}
	heartbeat, err := codec.Encode(transfer.NewControl(transfer.Heartbeat))
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:             uuid.New().String(),
		role:           role,
		cfg:            cfg,
		codec:          codec,
		ch:             ch,
		logger:         slog.Default(),
		listener:       ListenerFuncs{},
		heartbeatFrame: heartbeat,
		events:         make(chan any, cfg.EventBufferSize),
		steps:          make(chan uint64, 1),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
		changed:        make(chan struct{}),
		buffer:         transfer.NewChunkBuffer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id, "role", role.String())
	s.publish()

	// Queue the connect request ahead of any channel event.
	s.events <- intentEvent{run: s.connect}

	ch.OnOpen(func() { s.post(openEvent{}) })
	ch.OnClose(func() { s.post(closeEvent{}) })
	ch.OnError(func(err error) { s.post(errorEvent{err: err}) })
	ch.OnMessage(func(frame []byte) { s.post(frameEvent{frame: frame}) })

	go s.run()
	s.logger.Info("Session opened", "serializer", codec.Serializer().Name())
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Role() Role {
	return s.role
}

// Connect re-issues the connect request from Idle, for example after Reset.
func (s *Session) Connect() error {
	return s.do(s.connect)
}

// OfferFile announces desc to the receiver and waits for consent. src must
// provide exactly desc.Size bytes and stay readable until the transfer
// ends. Sender only, valid in Connected.
func (s *Session) OfferFile(desc transfer.FileDescriptor, src io.ReaderAt) error {
	return s.do(func() error { return s.offerFile(desc, src) })
}

// RespondToOffer approves or rejects the pending offer. Receiver only,
// valid in WaitingApproval.
func (s *Session) RespondToOffer(accept bool) error {
	return s.do(func() error { return s.respondToOffer(accept) })
}

// ForceStart starts sending without waiting for the receiver's approval.
// It overrides the consent handshake and exists for callers that know the
// approval was given but was not observed. Sender only, valid in
// WaitingApproval.
func (s *Session) ForceStart() error {
	return s.do(s.forceStart)
}

// Cancel withdraws a pending offer (sender) or aborts a running transfer
// (either role), telling the peer with a reject message.
func (s *Session) Cancel() error {
	return s.do(s.cancel)
}

// Reset clears a finished or failed transfer and returns to Idle. Valid in
// Completed and Failed.
func (s *Session) Reset() error {
	return s.do(s.reset)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Session) Phase() Phase {
	return s.Snapshot().Phase
}

func (s *Session) Progress() int {
	return s.Snapshot().Progress
}

// Artifact returns the received file. Receiver only, valid in Completed.
func (s *Session) Artifact() (*transfer.Artifact, error) {
	view := s.Snapshot()
	if view.Role != Receiver || view.Phase != Completed || view.artifact == nil {
		return nil, &OperationError{Op: "Artifact", Role: view.Role, Phase: view.Phase}
	}
	return view.artifact, nil
}

// WaitPhase blocks until the session is in one of phases and returns it.
func (s *Session) WaitPhase(ctx context.Context, phases ...Phase) (Phase, error) {
	for {
		s.mu.RLock()
		current, changed := s.view.Phase, s.changed
		s.mu.RUnlock()

		for _, p := range phases {
			if current == p {
				return current, nil
			}
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return current, ctx.Err()
		case <-s.done:
			return current, ErrSessionClosed
		}
	}
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down: the heartbeat stops, timers are dropped and
// later channel events are ignored. The channel itself is left open.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	<-s.done
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	defer s.teardown()

	for {
		select {
		case <-s.closing:
			return
		case gen := <-s.steps:
			s.sendStep(gen)
			s.publish()
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev any) {
	switch e := ev.(type) {
	case openEvent:
		s.handleOpen()
	case closeEvent:
		s.handleClose()
	case errorEvent:
		s.handleError(e.err)
	case frameEvent:
		s.handleFrame(e.frame)
	case timerEvent:
		s.handleTimer(e)
	case intentEvent:
		err := e.run()
		if e.reply != nil {
			e.reply <- err
		}
	default:
		s.logger.Warn("Received unhandled session event", "event", ev)
	}
	s.publish()
}

// post queues an event for the event goroutine. Events arriving after the
// session shut down are dropped.
func (s *Session) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.closing:
	case <-s.done:
	}
}

// do runs fn on the event goroutine and returns its result.
func (s *Session) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.events <- intentEvent{run: fn, reply: reply}:
	case <-s.closing:
		return ErrSessionClosed
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// publish copies the loop-owned state into the snapshot readers see and
// wakes WaitPhase callers.
func (s *Session) publish() {
	view := Snapshot{
		ID:               s.id,
		Role:             s.role,
		Phase:            s.phase,
		Cause:            s.cause,
		Progress:         s.progress,
		BytesTransferred: s.bytesTransferred,
		LastLivenessAt:   s.lastLivenessAt,
		Heartbeats:       s.heartbeats,
		artifact:         s.artifact,
	}
	if s.monitor != nil {
		view.Heartbeats += s.monitor.Beats()
	}
	if s.pending != nil {
		d := *s.pending
		view.Pending = &d
	}
	if s.active != nil {
		d := *s.active
		view.File = &d
	}

	s.mu.Lock()
	phaseChanged := s.view.Phase != view.Phase
	s.view = view
	changed := s.changed
	if phaseChanged {
		s.changed = make(chan struct{})
	}
	s.mu.Unlock()

	if phaseChanged {
		close(changed)
	}
}

func (s *Session) teardown() {
	s.stopMonitor()
	s.invalidate()
	s.logger.Info("Session closed", "phase", s.phase)
}
