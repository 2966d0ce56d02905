package appevents

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarder_TranslatesCallbacks(t *testing.T) {
	out := make(chan tea.Msg, 8)
	f := NewForwarder(session.Receiver, out)

	change := session.PhaseChange{From: session.Connected, To: session.WaitingApproval}
	desc := transfer.FileDescriptor{Name: "a.txt", Size: 3}
	boom := errors.New("bad frame")

	f.OnPhaseChanged(change)
	f.OnOffer(desc)
	f.OnProgress(42)
	f.OnDiscard(boom)
	f.OnArtifact(&transfer.Artifact{Name: "a.txt"})

	require.Len(t, out, 4)
	assert.Equal(t, PhaseMsg{Role: session.Receiver, Change: change}, <-out)
	assert.Equal(t, OfferMsg{File: desc}, <-out)
	assert.Equal(t, ProgressMsg{Percent: 42}, <-out)
	assert.Equal(t, DiscardMsg{Err: boom}, <-out)
}

func TestForwarder_NeverBlocks(t *testing.T) {
	out := make(chan tea.Msg, 1)
	f := NewForwarder(session.Sender, out)

	f.OnProgress(1)
	f.OnProgress(2)
	f.OnProgress(3)

	assert.Equal(t, ProgressMsg{Percent: 1}, <-out)
	assert.Empty(t, out)
}
