package session

import (
	"fmt"
	"time"

	"github.com/rescp17/dropline/pkg/liveness"
	"github.com/rescp17/dropline/pkg/transfer"
)

func (s *Session) invalid(op string) error {
	return &OperationError{Op: op, Role: s.role, Phase: s.phase}
}

func (s *Session) setPhase(p Phase, cause error) {
	from := s.phase
	s.phase = p
	s.cause = cause
	if from == p && cause == nil {
		return
	}

	attrs := []any{"from", from, "to", p}
	if cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	s.logger.Info("Phase changed", attrs...)
	s.publish()
	s.listener.OnPhaseChanged(PhaseChange{From: from, To: p, Cause: cause})
}

// fail ends the current file with cause. Failed is terminal until Reset.
func (s *Session) fail(cause error) {
	s.invalidate()
	s.releaseTransfer()
	s.setPhase(Failed, cause)
}

func (s *Session) discard(err error) {
	s.logger.Warn("Discarding frame", "phase", s.phase, "error", err)
	s.listener.OnDiscard(err)
}

func (s *Session) violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", transfer.ErrProtocolViolation, fmt.Sprintf(format, args...))
}

func (s *Session) reportProgress(p int) {
	if p <= s.progress {
		return
	}
	if p > 100 {
		p = 100
	}
	s.progress = p
	s.listener.OnProgress(p)
}

// send encodes msg and writes it to the channel. Transport failures are
// reported as ErrConnectionLost.
func (s *Session) send(msg *transfer.Message) error {
	frame, err := s.codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := s.ch.Send(frame); err != nil {
		return fmt.Errorf("%w: send %s: %v", transfer.ErrConnectionLost, msg.Type, err)
	}
	return nil
}

// invalidate drops every pending timer. Timer events already queued carry
// the old generation and are ignored.
func (s *Session) invalidate() {
	s.gen++
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	if s.stepTimer != nil {
		s.stepTimer.Stop()
		s.stepTimer = nil
	}
}

func (s *Session) after(d time.Duration, kind timerKind) *time.Timer {
	ev := timerEvent{kind: kind, gen: s.gen}
	return time.AfterFunc(d, func() { s.post(ev) })
}

// scheduleStep runs the next send step as soon as the loop is free.
func (s *Session) scheduleStep() {
	select {
	case s.steps <- s.gen:
	default:
	}
}

func (s *Session) handleTimer(e timerEvent) {
	if e.gen != s.gen {
		return
	}
	switch e.kind {
	case timerConnect:
		s.connectTimer = nil
		if s.phase == Connecting {
			s.fail(fmt.Errorf("%w after %s", transfer.ErrConnectionTimeout, s.cfg.ConnectTimeout))
		}
	case timerStep:
		s.stepTimer = nil
		s.sendStep(e.gen)
	}
}

func (s *Session) startMonitor() {
	if s.monitor != nil {
		return
	}
	s.monitor = liveness.NewMonitor(s.ch, s.heartbeatFrame, s.cfg.HeartbeatInterval, s.logger)
	s.monitor.Start()
}

func (s *Session) stopMonitor() {
	if s.monitor == nil {
		return
	}
	s.monitor.Stop()
	s.heartbeats += s.monitor.Beats()
	s.monitor = nil
}

// releaseTransfer drops everything tied to the file in flight.
func (s *Session) releaseTransfer() {
	s.source = nil
	s.chunker = nil
	s.buffer.Reset()
	s.begun = false
}

func (s *Session) connect() error {
	if s.phase != Idle {
		return s.invalid("Connect")
	}
	switch s.role {
	case Sender:
		s.setPhase(Connecting, nil)
		if s.ch.IsOpen() {
			s.handleOpen()
			return nil
		}
		s.connectTimer = s.after(s.cfg.ConnectTimeout, timerConnect)
	case Receiver:
		if s.ch.IsOpen() {
			s.handleOpen()
		}
	}
	return nil
}

func (s *Session) handleOpen() {
	if !s.ch.IsOpen() {
		return
	}
	s.lastLivenessAt = time.Now()
	switch {
	case s.role == Sender && s.phase == Connecting:
		if s.connectTimer != nil {
			s.connectTimer.Stop()
			s.connectTimer = nil
		}
		s.startMonitor()
		s.setPhase(Connected, nil)
	case s.role == Receiver && s.phase == Idle:
		s.startMonitor()
		s.setPhase(Connected, nil)
	default:
		// Duplicate open notification.
		if !s.phase.IsTerminal() && s.phase != Idle {
			s.startMonitor()
		}
	}
}

func (s *Session) handleClose() {
	s.stopMonitor()

	switch s.phase {
	case Connecting:
		s.fail(fmt.Errorf("%w: channel closed before it opened", transfer.ErrConnectionLost))
	case Completed, Failed:
		s.invalidate()
		s.releaseTransfer()
		s.logger.Info("Channel closed")
	default:
		var cause error
		if s.phase == WaitingApproval || s.phase == Transferring {
			cause = fmt.Errorf("%w: channel closed during %s", transfer.ErrConnectionLost, s.phase)
		}
		s.invalidate()
		s.releaseTransfer()
		s.pending = nil
		s.active = nil
		s.progress = 0
		s.bytesTransferred = 0
		s.setPhase(Idle, cause)
	}
}

func (s *Session) handleError(err error) {
	s.stopMonitor()
	if s.phase.IsTerminal() {
		s.logger.Warn("Channel error after transfer ended", "error", err)
		return
	}
	s.fail(fmt.Errorf("%w: %v", transfer.ErrConnectionLost, err))
}

func (s *Session) handleFrame(frame []byte) {
	msg, err := s.codec.Decode(frame)
	if err != nil {
		s.discard(err)
		return
	}
	s.lastLivenessAt = time.Now()

	switch msg.Type {
	case transfer.Heartbeat:
		return
	case transfer.Handshake:
		s.logger.Debug("Ignoring reserved handshake message")
		return
	}

	if s.role == Sender {
		s.senderFrame(msg)
	} else {
		s.receiverFrame(msg)
	}
}

func (s *Session) cancel() error {
	switch {
	case s.role == Sender && s.phase == WaitingApproval:
		if err := s.send(transfer.NewReject("cancelled")); err != nil {
			return err
		}
		s.releaseTransfer()
		s.pending = nil
		s.setPhase(Connected, transfer.ErrCancelled)
		return nil
	case s.phase == Transferring:
		if err := s.send(transfer.NewReject("cancelled")); err != nil {
			s.logger.Warn("Failed to notify peer of cancellation", "error", err)
		}
		s.fail(transfer.ErrCancelled)
		return nil
	default:
		return s.invalid("Cancel")
	}
}

func (s *Session) reset() error {
	if !s.phase.IsTerminal() {
		return s.invalid("Reset")
	}
	s.invalidate()
	s.releaseTransfer()
	s.pending = nil
	s.active = nil
	s.artifact = nil
	s.progress = 0
	s.bytesTransferred = 0
	s.setPhase(Idle, nil)
	return nil
}
