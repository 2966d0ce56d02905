package appevents

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
)

// AppEvent is a marker interface for events sent from the TUI to the App's logic controller.
// It uses an unexported method to ensure that only types from this package (by embedding Event)
// can satisfy the interface, providing compile-time safety.
type AppEvent interface {
	isAppEvent()
}

// Event is a struct that can be embedded in other event types to satisfy the AppEvent interface.
type Event struct{}

// isAppEvent is the marker method that makes a struct an AppEvent.
func (Event) isAppEvent() {}

// --- App Events (from TUI to App) ---

// CancelEvent withdraws the pending offer or aborts the running transfer.
type CancelEvent struct {
	Event
}

// ResetEvent returns a finished or failed session to Idle.
type ResetEvent struct {
	Event
}

// --- UI Messages (from App to TUI) ---

// Error reports a failure outside the session state machine.
type Error struct {
	Err error
}

type StatusMsg struct {
	Message string
}

// PhaseMsg carries one session transition. The UI derives its text from
// the phases and the cause.
type PhaseMsg struct {
	Role   session.Role
	Change session.PhaseChange
}

type ProgressMsg struct {
	Percent int
}

type OfferMsg struct {
	File transfer.FileDescriptor
}

type DiscardMsg struct {
	Err error
}

// Forwarder turns session callbacks into UI messages. It never blocks the
// session: when out is full the message is dropped and logged.
type Forwarder struct {
	role session.Role
	out  chan<- tea.Msg
}

var _ session.Listener = (*Forwarder)(nil)

func NewForwarder(role session.Role, out chan<- tea.Msg) *Forwarder {
	return &Forwarder{role: role, out: out}
}

func (f *Forwarder) send(msg tea.Msg) {
	select {
	case f.out <- msg:
	default:
		slog.Warn("UI message queue full, dropping message", "msg", msg)
	}
}

func (f *Forwarder) OnPhaseChanged(change session.PhaseChange) {
	f.send(PhaseMsg{Role: f.role, Change: change})
}

func (f *Forwarder) OnProgress(percent int) {
	f.send(ProgressMsg{Percent: percent})
}

func (f *Forwarder) OnOffer(desc transfer.FileDescriptor) {
	f.send(OfferMsg{File: desc})
}

func (f *Forwarder) OnArtifact(*transfer.Artifact) {}

func (f *Forwarder) OnDiscard(err error) {
	f.send(DiscardMsg{Err: err})
}
