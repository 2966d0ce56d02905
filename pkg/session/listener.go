package session

import "github.com/rescp17/dropline/pkg/transfer"

// PhaseChange describes one transition. Cause is set when the transition
// was driven by an error, a rejection or a cancellation.
type PhaseChange struct {
	From  Phase
	To    Phase
	Cause error
}

// Listener receives session updates. Methods are called on the session's
// event goroutine, in order, and must not block or call back into Session
// methods that wait for the event loop (Connect, OfferFile,
// RespondToOffer, ForceStart, Cancel, Reset).
type Listener interface {
	OnPhaseChanged(change PhaseChange)
	// OnProgress reports an integer percentage that never decreases within
	// one transfer.
	OnProgress(percent int)
	OnOffer(desc transfer.FileDescriptor)
	OnArtifact(artifact *transfer.Artifact)
	// OnDiscard reports a frame that was dropped, either because it could
	// not be decoded or because the current phase cannot accept it.
	OnDiscard(err error)
}

// ListenerFuncs adapts optional functions to Listener.
type ListenerFuncs struct {
	PhaseChanged func(PhaseChange)
	Progress     func(int)
	Offer        func(transfer.FileDescriptor)
	Artifact     func(*transfer.Artifact)
	Discard      func(error)
}

var _ Listener = ListenerFuncs{}

func (l ListenerFuncs) OnPhaseChanged(change PhaseChange) {
	if l.PhaseChanged != nil {
		l.PhaseChanged(change)
	}
}

func (l ListenerFuncs) OnProgress(percent int) {
	if l.Progress != nil {
		l.Progress(percent)
	}
}

func (l ListenerFuncs) OnOffer(desc transfer.FileDescriptor) {
	if l.Offer != nil {
		l.Offer(desc)
	}
}

func (l ListenerFuncs) OnArtifact(artifact *transfer.Artifact) {
	if l.Artifact != nil {
		l.Artifact(artifact)
	}
}

func (l ListenerFuncs) OnDiscard(err error) {
	if l.Discard != nil {
		l.Discard(err)
	}
}

// Listeners fans every update out to each listener in order.
type Listeners []Listener

func (ls Listeners) OnPhaseChanged(change PhaseChange) {
	for _, l := range ls {
		l.OnPhaseChanged(change)
	}
}

func (ls Listeners) OnProgress(percent int) {
	for _, l := range ls {
		l.OnProgress(percent)
	}
}

func (ls Listeners) OnOffer(desc transfer.FileDescriptor) {
	for _, l := range ls {
		l.OnOffer(desc)
	}
}

func (ls Listeners) OnArtifact(artifact *transfer.Artifact) {
	for _, l := range ls {
		l.OnArtifact(artifact)
	}
}

func (ls Listeners) OnDiscard(err error) {
	for _, l := range ls {
		l.OnDiscard(err)
	}
}
