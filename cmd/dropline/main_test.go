package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	appevents "github.com/rescp17/dropline/internal/app_events"
	receiverEvent "github.com/rescp17/dropline/internal/app_events/receiver"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestTransferFlagsAreValidated(t *testing.T) {
	err := execute("--serializer", "xml", "send", "--plain", "--to", "10.0.0.2:8988", "a.txt")
	assert.ErrorIs(t, err, transfer.ErrUnknownSerializer)

	err = execute("--chunk-size", "10", "receive")
	assert.ErrorContains(t, err, "invalid transfer settings")
}

func TestSendPlainNeedsTarget(t *testing.T) {
	err := execute("send", "--plain", "a.txt")
	assert.ErrorContains(t, err, "--plain needs both FILE and --to")
}

func TestReceiveRejectsMissingOutDir(t *testing.T) {
	err := execute("receive", "--out", t.TempDir()+"/missing")
	assert.ErrorContains(t, err, "output directory")
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := &printer{w: &out}

	p.print(receiverEvent.ListeningMsg{ID: "3f2a9c1b", Addr: "[::]:8988"})
	p.print(appevents.OfferMsg{File: transfer.FileDescriptor{Name: "photo.jpg", Size: 2048}})
	prompt := p.print(appevents.PhaseMsg{Role: session.Receiver, Change: session.PhaseChange{From: session.Connected, To: session.WaitingApproval}})
	require.True(t, prompt)

	p.print(appevents.PhaseMsg{Role: session.Receiver, Change: session.PhaseChange{From: session.WaitingApproval, To: session.Transferring}})
	for _, pct := range []int{3, 9, 10, 15, 20, 100} {
		p.print(appevents.ProgressMsg{Percent: pct})
	}
	p.print(appevents.PhaseMsg{Role: session.Receiver, Change: session.PhaseChange{From: session.Transferring, To: session.Failed, Cause: errors.New("boom")}})

	assert.Equal(t, "Listening as 3f2a9c1b on [::]:8988\n"+
		"Accept photo.jpg (2 KB)? [y/N] "+
		"Transferring photo.jpg\n"+
		" 10%\n"+
		" 20%\n"+
		"100%\n"+
		"Transfer failed: boom\n", out.String())
}

func TestPrinter_AutoAcceptDoesNotPrompt(t *testing.T) {
	var out bytes.Buffer
	p := &printer{w: &out, autoAccept: true}
	p.print(appevents.OfferMsg{File: transfer.FileDescriptor{Name: "a.txt", Size: 10}})
	prompt := p.print(appevents.PhaseMsg{Role: session.Receiver, Change: session.PhaseChange{To: session.WaitingApproval}})
	assert.False(t, prompt)
	assert.Contains(t, out.String(), "Accepting a.txt")
}
