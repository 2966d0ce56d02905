package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/dropline/internal/app_events"
	receiverEvent "github.com/rescp17/dropline/internal/app_events/receiver"
	"github.com/rescp17/dropline/internal/style"
	"github.com/rescp17/dropline/internal/util"
	receiverApp "github.com/rescp17/dropline/pkg/receiver"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
)

// receiverState defines the different states of the receiver UI
type receiverState int

const (
	awaitingConnection receiverState = iota
	awaitingOffer
	awaitingConfirmation
	receivingFile
)

type receiverModel struct {
	state    receiverState
	spinner  spinner.Model
	progress progress.Model
	id       string
	addr     string
	outDir   string
	offer    transfer.FileDescriptor
	// saved lists the files written so far, newest last.
	saved     []receiverEvent.FileSavedMsg
	status    string
	lastError error
}

type KeyMap struct {
	Accept key.Binding
	Reject key.Binding
	Cancel key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Accept: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "Accept")),
	Reject: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "Reject")),
	Cancel: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "Cancel")),
}

func initReceiverModel(outDir string) receiverModel {
	return receiverModel{
		spinner:  style.NewSpinner(),
		progress: style.NewProgress(),
		outDir:   outDir,
		state:    awaitingConnection,
	}
}

// NewReceiverModel builds the receiver TUI.
func NewReceiverModel(app *receiverApp.App, outDir string) tea.Model {
	m := newModel(Receiver, app)
	m.receiver = initReceiverModel(outDir)
	return m
}

func (m model) initReceiver() tea.Cmd {
	return m.receiver.spinner.Tick
}

func (m model) updateReceiver(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleReceiverKey(msg))
	case receiverEvent.ListeningMsg:
		m.receiver.id = msg.ID
		m.receiver.addr = msg.Addr
	case receiverEvent.PeerConnectedMsg:
		m.receiver.status = "Sender connected"
	case receiverEvent.PeerDisconnectedMsg:
		m.receiver.status = "Sender disconnected"
		m.receiver.state = awaitingConnection
	case appevents.OfferMsg:
		m.receiver.offer = msg.File
	case appevents.PhaseMsg:
		cmds = append(cmds, m.receiverPhase(msg.Change))
	case appevents.ProgressMsg:
		cmds = append(cmds, m.receiver.progress.SetPercent(float64(msg.Percent)/100))
	case receiverEvent.FileSavedMsg:
		m.receiver.saved = append(m.receiver.saved, msg)
		m.receiver.lastError = nil
	case appevents.Error:
		m.receiver.lastError = msg.Err
	}

	var spinCmd tea.Cmd
	m.receiver.spinner, spinCmd = m.receiver.spinner.Update(msg)
	cmds = append(cmds, spinCmd)
	return m, tea.Batch(cmds...)
}

func (m *model) receiverPhase(change session.PhaseChange) tea.Cmd {
	switch change.To {
	case session.Idle:
		m.receiver.state = awaitingConnection
		if change.Cause != nil {
			m.receiver.lastError = change.Cause
		}
	case session.Connected:
		m.receiver.state = awaitingOffer
		if change.Cause != nil {
			m.receiver.status = change.Cause.Error()
		}
	case session.WaitingApproval:
		m.receiver.state = awaitingConfirmation
	case session.Transferring:
		m.receiver.state = receivingFile
		return m.receiver.progress.SetPercent(0)
	}
	return nil
}

func (m *model) handleReceiverKey(msg tea.KeyMsg) tea.Cmd {
	switch m.receiver.state {
	case awaitingConfirmation:
		switch {
		case key.Matches(msg, DefaultKeyMap.Accept):
			return m.emit(receiverEvent.AcceptFileRequestEvent{})
		case key.Matches(msg, DefaultKeyMap.Reject):
			return m.emit(receiverEvent.RejectFileRequestEvent{})
		}
	case receivingFile:
		if key.Matches(msg, DefaultKeyMap.Cancel) {
			return m.emit(appevents.CancelEvent{})
		}
	}
	return nil
}

func (m model) receiverView() string {
	var b strings.Builder

	b.WriteString(style.TitleStyle.Render("dropline receiver"))
	if m.receiver.id != "" {
		fmt.Fprintf(&b, "  id %s  on %s", style.HighlightFontStyle.Render(m.receiver.id), m.receiver.addr)
	}
	b.WriteString("\n\n")

	switch m.receiver.state {
	case awaitingConnection:
		fmt.Fprintf(&b, "%s Awaiting sender connection...", m.receiver.spinner.View())
	case awaitingOffer:
		fmt.Fprintf(&b, "%s Connected, waiting for a file offer...", m.receiver.spinner.View())
	case awaitingConfirmation:
		b.WriteString(m.offerCard())
		help := fmt.Sprintf("  %s/%s  %s/%s",
			DefaultKeyMap.Accept.Help().Key, DefaultKeyMap.Accept.Help().Desc,
			DefaultKeyMap.Reject.Help().Key, DefaultKeyMap.Reject.Help().Desc,
		)
		b.WriteString("\n" + style.HelpStyle.Render(help))
	case receivingFile:
		fmt.Fprintf(&b, "Receiving %s\n\n%s\n\n", m.receiver.offer.Name, m.receiver.progress.View())
		b.WriteString(style.HelpStyle.Render(fmt.Sprintf("  %s/%s", DefaultKeyMap.Cancel.Help().Key, DefaultKeyMap.Cancel.Help().Desc)))
	default:
		return "Internal error: unknown receiver state"
	}

	if m.receiver.status != "" {
		b.WriteString("\n\n" + style.HelpStyle.Render(m.receiver.status))
	}
	if m.receiver.lastError != nil {
		b.WriteString("\n\n" + style.ErrorStyle.Render(m.receiver.lastError.Error()))
	}
	if n := len(m.receiver.saved); n > 0 {
		b.WriteString("\n\nSaved:")
		for _, f := range m.receiver.saved[max(0, n-5):] {
			fmt.Fprintf(&b, "\n  %s %s (%s)", style.SuccessStyle.Render("✔"), f.Path, util.FormatSize(f.Size))
		}
	}
	return b.String()
}

func (m model) offerCard() string {
	offer := m.receiver.offer
	mediaType := offer.MediaType
	if mediaType == "" {
		mediaType = "unknown"
	}
	rows := []string{
		style.LabelStyle.Render("File") + offer.Name,
		style.LabelStyle.Render("Size") + util.FormatSize(offer.Size),
		style.LabelStyle.Render("Type") + mediaType,
		style.LabelStyle.Render("Save to") + m.receiver.outDir,
	}
	return "Incoming file:\n" + style.CardStyle.Render(strings.Join(rows, "\n"))
}
