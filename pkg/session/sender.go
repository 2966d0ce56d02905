package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/rescp17/dropline/pkg/transfer"
)

func (s *Session) offerFile(desc transfer.FileDescriptor, src io.ReaderAt) error {
	if s.role != Sender || s.phase != Connected {
		return s.invalid("OfferFile")
	}
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", transfer.ErrInvalidOperation, err)
	}
	if src == nil {
		return fmt.Errorf("%w: %v", transfer.ErrInvalidOperation, transfer.ErrNoSource)
	}

	if err := s.send(transfer.NewFileOffer(desc)); err != nil {
		return err
	}

	s.pending = &desc
	s.active = nil
	s.source = src
	s.progress = 0
	s.bytesTransferred = 0
	s.logger.Info("Offered file", "name", desc.Name, "size", desc.Size, "type", desc.MediaType)
	s.setPhase(WaitingApproval, nil)
	return nil
}

func (s *Session) forceStart() error {
	if s.role != Sender || s.phase != WaitingApproval {
		return s.invalid("ForceStart")
	}
	s.logger.Warn("Starting transfer without receiver approval", "name", s.pending.Name)
	return s.beginTransfer()
}

func (s *Session) senderFrame(msg *transfer.Message) {
	switch msg.Type {
	case transfer.Approve:
		switch s.phase {
		case WaitingApproval:
			if err := s.beginTransfer(); err != nil {
				s.fail(err)
			}
		case Transferring:
			// Late approval after ForceStart.
			s.logger.Debug("Ignoring approval for a transfer already running")
		default:
			s.discard(s.violation("approve in phase %s", s.phase))
		}
	case transfer.Reject:
		switch s.phase {
		case WaitingApproval:
			s.logger.Info("Receiver rejected the offer", "name", s.pending.Name, "reason", msg.Reason)
			s.releaseTransfer()
			s.pending = nil
			s.setPhase(Connected, rejection(transfer.ErrRejected, msg.Reason))
		case Transferring:
			s.fail(rejection(transfer.ErrCancelled, msg.Reason))
		default:
			s.discard(s.violation("reject in phase %s", s.phase))
		}
	default:
		s.discard(s.violation("sender does not accept %s", msg.Type))
	}
}

func rejection(base error, reason string) error {
	if reason == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, reason)
}

// beginTransfer moves the pending offer to Transferring and schedules the
// first chunk after the start delay.
func (s *Session) beginTransfer() error {
	desc := s.pending
	chunker, err := transfer.NewChunker(s.source, desc.Size, s.cfg.ChunkSize)
	if err != nil {
		return err
	}

	s.chunker = chunker
	s.active = desc
	s.pending = nil
	s.progress = 0
	s.bytesTransferred = 0
	s.setPhase(Transferring, nil)

	if err := s.send(transfer.NewControl(transfer.TransferBegin)); err != nil {
		s.fail(err)
		return nil
	}
	s.stepTimer = s.after(s.cfg.StartDelay, timerStep)
	return nil
}

// sendStep sends at most one chunk. It waits out backpressure on a timer
// and otherwise queues the next step, so other events interleave with a
// running transfer.
func (s *Session) sendStep(gen uint64) {
	if gen != s.gen || s.phase != Transferring || s.chunker == nil {
		return
	}
	if !s.ch.IsOpen() {
		s.fail(fmt.Errorf("%w: channel not open during transfer", transfer.ErrConnectionLost))
		return
	}
	if s.ch.BufferedAmount() > s.cfg.HighWaterMark {
		s.stepTimer = s.after(s.cfg.BackpressureRetry, timerStep)
		return
	}

	data, err := s.chunker.Next()
	switch {
	case errors.Is(err, io.EOF):
	case err != nil:
		s.fail(fmt.Errorf("read source: %w", err))
		return
	default:
		if err := s.send(transfer.NewChunk(data)); err != nil {
			s.fail(err)
			return
		}
		s.bytesTransferred = s.chunker.Offset()
		s.reportProgress(transfer.Progress(s.bytesTransferred, s.chunker.Size()))
	}

	if !s.chunker.Done() {
		s.scheduleStep()
		return
	}
	s.finish()
}

func (s *Session) finish() {
	if err := s.send(transfer.NewControl(transfer.TransferEnd)); err != nil {
		s.fail(err)
		return
	}
	s.reportProgress(100)
	s.logger.Info("File sent", "name", s.active.Name, "bytes", s.bytesTransferred)
	s.source = nil
	s.chunker = nil
	s.setPhase(Completed, nil)
}
