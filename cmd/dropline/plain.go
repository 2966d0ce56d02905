package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/dropline/internal/app_events"
	receiverEvent "github.com/rescp17/dropline/internal/app_events/receiver"
	"github.com/rescp17/dropline/internal/util"
	receiverApp "github.com/rescp17/dropline/pkg/receiver"
	senderApp "github.com/rescp17/dropline/pkg/sender"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
)

// printer renders app messages as plain lines.
type printer struct {
	w io.Writer
	// autoAccept suppresses the approval prompt.
	autoAccept bool
	offer      transfer.FileDescriptor
	lastStep   int
}

// print writes msg and reports whether it asks the user to approve an offer.
func (p *printer) print(msg tea.Msg) (prompt bool) {
	switch msg := msg.(type) {
	case receiverEvent.ListeningMsg:
		fmt.Fprintf(p.w, "Listening as %s on %s\n", msg.ID, msg.Addr)
	case receiverEvent.PeerConnectedMsg:
		fmt.Fprintln(p.w, "Sender connected")
	case receiverEvent.PeerDisconnectedMsg:
		fmt.Fprintln(p.w, "Sender disconnected")
	case appevents.StatusMsg:
		fmt.Fprintln(p.w, msg.Message)
	case appevents.OfferMsg:
		p.offer = msg.File
	case appevents.PhaseMsg:
		return p.phase(msg)
	case appevents.ProgressMsg:
		// One line per 10%.
		if step := msg.Percent / 10; step > p.lastStep {
			p.lastStep = step
			fmt.Fprintf(p.w, "%3d%%\n", msg.Percent)
		}
	case receiverEvent.FileSavedMsg:
		fmt.Fprintf(p.w, "Saved %s (%s)\n", msg.Path, util.FormatSize(msg.Size))
	case appevents.Error:
		fmt.Fprintf(p.w, "Error: %v\n", msg.Err)
	}
	return false
}

func (p *printer) phase(msg appevents.PhaseMsg) bool {
	change := msg.Change
	switch change.To {
	case session.WaitingApproval:
		if msg.Role == session.Receiver && p.autoAccept {
			fmt.Fprintf(p.w, "Accepting %s (%s)\n", p.offer.Name, util.FormatSize(p.offer.Size))
			return false
		}
		if msg.Role == session.Receiver {
			fmt.Fprintf(p.w, "Accept %s (%s)? [y/N] ", p.offer.Name, util.FormatSize(p.offer.Size))
			return true
		}
		fmt.Fprintln(p.w, "Waiting for the receiver to accept...")
	case session.Transferring:
		p.lastStep = 0
		fmt.Fprintf(p.w, "Transferring %s\n", p.offer.Name)
	case session.Completed:
		fmt.Fprintln(p.w, "Transfer complete")
	case session.Failed:
		fmt.Fprintf(p.w, "Transfer failed: %v\n", change.Cause)
	case session.Connected:
		if change.Cause != nil {
			fmt.Fprintf(p.w, "Offer ended: %v\n", change.Cause)
		}
	}
	return false
}

func runPlainSender(ctx context.Context, app *senderApp.App, to, path string, out io.Writer) error {
	p := &printer{w: out, offer: transfer.FileDescriptor{Name: filepath.Base(path)}}
	done := make(chan error, 1)
	go func() {
		done <- app.SendFile(ctx, to, path)
	}()
	for {
		select {
		case msg := <-app.UIMessages():
			p.print(msg)
		case err := <-done:
			return err
		}
	}
}

func runPlainReceiver(ctx context.Context, app *receiverApp.App, autoAccept bool, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	p := &printer{w: out, autoAccept: autoAccept}
	awaiting := false
	for {
		select {
		case msg := <-app.UIMessages():
			if p.print(msg) {
				awaiting = true
			}
		case line := <-lines:
			if !awaiting {
				continue
			}
			awaiting = false
			var event appevents.AppEvent = receiverEvent.RejectFileRequestEvent{}
			if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
				event = receiverEvent.AcceptFileRequestEvent{}
			}
			select {
			case app.AppEvents() <- event:
			case <-ctx.Done():
			}
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
