package session

import (
	"fmt"

	"github.com/rescp17/dropline/pkg/transfer"
)

func (s *Session) respondToOffer(accept bool) error {
	if s.role != Receiver || s.phase != WaitingApproval {
		return s.invalid("RespondToOffer")
	}

	if !accept {
		if err := s.send(transfer.NewReject("declined")); err != nil {
			return err
		}
		s.logger.Info("Declined offer", "name", s.pending.Name)
		s.pending = nil
		s.setPhase(Idle, nil)
		return nil
	}

	if err := s.send(transfer.NewControl(transfer.Approve)); err != nil {
		return err
	}
	s.logger.Info("Accepted offer", "name", s.pending.Name, "size", s.pending.Size)
	s.active = s.pending
	s.pending = nil
	s.artifact = nil
	s.progress = 0
	s.bytesTransferred = 0
	s.buffer.Reset()
	s.begun = false
	s.setPhase(Transferring, nil)
	return nil
}

func (s *Session) receiverFrame(msg *transfer.Message) {
	switch msg.Type {
	case transfer.FileOffer:
		s.receiveOffer(msg.File)
	case transfer.Reject:
		switch s.phase {
		case WaitingApproval:
			s.pending = nil
			s.setPhase(Connected, rejection(transfer.ErrCancelled, msg.Reason))
		case Transferring:
			s.fail(rejection(transfer.ErrCancelled, msg.Reason))
		default:
			s.discard(s.violation("reject in phase %s", s.phase))
		}
	case transfer.TransferBegin:
		if s.phase != Transferring {
			s.discard(s.violation("transfer begin in phase %s", s.phase))
			return
		}
		s.buffer.Reset()
		s.begun = true
	case transfer.ChunkData:
		s.receiveChunk(msg.Data)
	case transfer.TransferEnd:
		s.receiveEnd()
	default:
		s.discard(s.violation("receiver does not accept %s", msg.Type))
	}
}

func (s *Session) receiveOffer(desc *transfer.FileDescriptor) {
	if s.phase != Connected && s.phase != Idle {
		s.discard(s.violation("file offer in phase %s", s.phase))
		return
	}
	if s.phase == Idle && !s.ch.IsOpen() {
		s.discard(s.violation("file offer on a closed channel"))
		return
	}

	d := *desc
	s.pending = &d
	s.logger.Info("Received offer", "name", d.Name, "size", d.Size, "type", d.MediaType)
	s.setPhase(WaitingApproval, nil)
	s.listener.OnOffer(d)
}

func (s *Session) receiveChunk(data []byte) {
	switch {
	case s.phase == Completed:
		s.fail(s.violation("chunk after transfer completed"))
		return
	case s.phase != Transferring || !s.begun:
		s.discard(s.violation("chunk in phase %s before transfer began", s.phase))
		return
	}

	total := s.buffer.Append(data)
	if total > s.active.Size {
		s.fail(s.violation("received %d bytes, expected %d", total, s.active.Size))
		return
	}
	s.bytesTransferred = total
	s.reportProgress(transfer.Progress(total, s.active.Size))
}

func (s *Session) receiveEnd() {
	switch s.phase {
	case Transferring:
	case WaitingApproval, Completed:
		s.discard(s.violation("transfer end in phase %s", s.phase))
		return
	default:
		s.fail(s.violation("transfer end with no file descriptor"))
		return
	}

	desc := s.active
	if desc == nil {
		s.fail(s.violation("transfer end with no file descriptor"))
		return
	}
	if !s.begun {
		s.discard(s.violation("transfer end before transfer began"))
		return
	}
	if got := s.buffer.Len(); got != desc.Size {
		s.fail(s.violation("received %d bytes, expected %d", got, desc.Size))
		return
	}

	data := s.buffer.Drain()
	if !transfer.VerifyChecksum(data, desc.Checksum) {
		s.fail(fmt.Errorf("%w: checksum mismatch for %s", transfer.ErrProtocolViolation, desc.Name))
		return
	}

	s.artifact = &transfer.Artifact{Name: desc.Name, MediaType: desc.MediaType, Data: data}
	s.begun = false
	s.reportProgress(100)
	s.logger.Info("File received", "name", desc.Name, "bytes", len(data))
	s.setPhase(Completed, nil)
	s.listener.OnArtifact(s.artifact)
}
