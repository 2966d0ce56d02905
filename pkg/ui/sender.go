package ui

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/dropline/internal/app_events"
	senderEvent "github.com/rescp17/dropline/internal/app_events/sender"
	"github.com/rescp17/dropline/internal/style"
	"github.com/rescp17/dropline/internal/util"
	"github.com/rescp17/dropline/pkg/discovery"
	"github.com/rescp17/dropline/pkg/filePicker"
	senderApp "github.com/rescp17/dropline/pkg/sender"
	"github.com/rescp17/dropline/pkg/session"
)

// senderState defines the different states of the sender UI.
type senderState int

const (
	findingReceivers senderState = iota
	selectingReceiver
	selectingFile
	connecting
	waitingForReceiverConfirmation
	sendingFile
	transferComplete
	transferFailed
)

type senderKeyMap struct {
	ForceStart key.Binding
	Cancel     key.Binding
	Again      key.Binding
}

var senderKeys = senderKeyMap{
	ForceStart: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "start without approval")),
	Cancel:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
	Again:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send another")),
}

type senderModel struct {
	state    senderState
	spinner  spinner.Model
	table    table.Model
	fp       filePicker.Model
	progress progress.Model
	services []discovery.ServiceInfo
	// target is what the app dials; targetName is what the user sees.
	target     string
	targetName string
	path       string
	size       int64
	status     string
	lastError  error
}

var columns = []table.Column{
	{Title: "Index", Width: 10},
	{Title: "ID", Width: 20},
	{Title: "Address", Width: 20},
	{Title: "Port", Width: 10},
}

func initSenderModel() senderModel {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	return senderModel{
		spinner:  style.NewSpinner(),
		table:    t,
		fp:       filePicker.InitialModel(),
		progress: style.NewProgress(),
		state:    findingReceivers,
	}
}

// NewSenderModel builds the sender TUI. With a target and a path the
// transfer starts right away; with only a path the user picks a receiver.
func NewSenderModel(app *senderApp.App, target, path string) tea.Model {
	m := newModel(Sender, app)
	m.sender = initSenderModel()
	m.sender.target = target
	m.sender.targetName = target
	m.sender.path = path
	return m
}

func (m model) initSender() tea.Cmd {
	cmds := []tea.Cmd{m.sender.spinner.Tick}
	if m.sender.target != "" && m.sender.path != "" {
		cmds = append(cmds, m.emit(senderEvent.SendFileMsg{Target: m.sender.target, Path: m.sender.path}))
	}
	return tea.Batch(cmds...)
}

func (m *model) updateReceiverTable(services []discovery.ServiceInfo) {
	m.sender.services = services
	rows := []table.Row{}
	for index, svc := range services {
		rows = append(rows, table.Row{
			strconv.Itoa(index), svc.Name, svc.Addr.String(), strconv.Itoa(svc.Port),
		})
	}
	m.sender.table.SetRows(rows)
	m.sender.table.SetHeight(len(rows) + 1)
}

func (m model) updateSender(msg tea.Msg) (tea.Model, tea.Cmd) {
	// A preset target skips discovery and picking.
	if m.sender.state == findingReceivers && m.sender.target != "" && m.sender.path != "" {
		m.sender.state = connecting
	}
	if cmd, processed := m.handleSenderAppEvent(msg); processed {
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.sender.state {
	case selectingReceiver:
		cmd = m.updateSelectingReceiverState(msg)
	case selectingFile:
		cmd = m.updateSelectingFileState(msg)
	case waitingForReceiverConfirmation, sendingFile:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(keyMsg, senderKeys.ForceStart) && m.sender.state == waitingForReceiverConfirmation:
				cmd = m.emit(senderEvent.ForceStartMsg{})
			case key.Matches(keyMsg, senderKeys.Cancel):
				cmd = m.emit(appevents.CancelEvent{})
			}
		}
	case transferComplete, transferFailed:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, senderKeys.Again) {
			services := m.sender.services
			m.sender = initSenderModel()
			m.updateReceiverTable(services)
			if len(services) > 0 {
				m.sender.state = selectingReceiver
			}
			return m, m.sender.spinner.Tick
		}
	}

	var spinCmd tea.Cmd
	m.sender.spinner, spinCmd = m.sender.spinner.Update(msg)
	return m, tea.Batch(cmd, spinCmd)
}

func (m *model) handleSenderAppEvent(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case senderEvent.FoundServicesMsg:
		slog.Debug("Discovery update", "service_count", len(msg.Services))
		if len(msg.Services) > 0 && m.sender.state == findingReceivers {
			m.sender.state = selectingReceiver
		}
		// If the list of services becomes empty, go back to the finding state.
		if len(msg.Services) == 0 && m.sender.state == selectingReceiver {
			m.sender.state = findingReceivers
		}
		m.updateReceiverTable(msg.Services)
		return nil, true
	case appevents.StatusMsg:
		m.sender.status = msg.Message
		return nil, true
	case appevents.PhaseMsg:
		return m.senderPhase(msg.Change), true
	case appevents.ProgressMsg:
		return m.sender.progress.SetPercent(float64(msg.Percent) / 100), true
	case senderEvent.TransferFinishedMsg:
		if msg.Err != nil {
			m.sender.lastError = msg.Err
			m.sender.state = transferFailed
		} else {
			m.sender.state = transferComplete
		}
		return nil, true
	case appevents.Error:
		m.sender.lastError = msg.Err
		return nil, true
	case appevents.DiscardMsg:
		slog.Debug("Frame discarded", "error", msg.Err)
		return nil, true
	}
	return nil, false
}

func (m *model) senderPhase(change session.PhaseChange) tea.Cmd {
	switch change.To {
	case session.Connecting:
		m.sender.state = connecting
		m.sender.status = "Connecting..."
	case session.WaitingApproval:
		m.sender.state = waitingForReceiverConfirmation
	case session.Transferring:
		m.sender.state = sendingFile
		return m.sender.progress.SetPercent(0)
	case session.Connected:
		if change.Cause != nil {
			m.sender.status = change.Cause.Error()
		}
	}
	return nil
}

// updateSelectingReceiverState handles UI events for the selectingReceiver state.
func (m *model) updateSelectingReceiverState(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	if keyMsg.Type == tea.KeyEnter {
		idx := m.sender.table.Cursor()
		if idx >= 0 && idx < len(m.sender.services) {
			svc := m.sender.services[idx]
			m.sender.lastError = nil
			m.sender.target = svc.Address()
			m.sender.targetName = svc.Name
			if m.sender.path != "" {
				m.sender.state = connecting
				return m.emit(senderEvent.SendFileMsg{Target: m.sender.target, Path: m.sender.path})
			}
			m.sender.state = selectingFile
			return m.sender.fp.Init()
		}
		return nil
	}
	var cmd tea.Cmd
	m.sender.table, cmd = m.sender.table.Update(msg)
	return cmd
}

func (m *model) updateSelectingFileState(msg tea.Msg) tea.Cmd {
	if picked, ok := msg.(filePicker.PickedFileMsg); ok {
		m.sender.path = picked.Path
		m.sender.size = picked.Size
		m.sender.state = connecting
		return m.emit(senderEvent.SendFileMsg{Target: m.sender.target, Path: picked.Path})
	}
	next, cmd := m.sender.fp.Update(msg)
	m.sender.fp = next.(filePicker.Model)
	return cmd
}

func (m model) senderView() string {
	name := style.HighlightFontStyle.Render(m.sender.targetName)
	switch m.sender.state {
	case findingReceivers:
		return fmt.Sprintf("\n%s Finding receivers...", m.sender.spinner.View())
	case selectingReceiver:
		s := fmt.Sprintf("\n✔  Found %d receiver(s)\n", len(m.sender.services))
		s += style.BaseStyle.Render(m.sender.table.View()) + "\n"
		s += style.HelpStyle.Render("Use arrow keys to navigate, Enter to select.")
		return s
	case selectingFile:
		return fmt.Sprintf("Receiver: %s\n%s\n", name, m.sender.fp.View())
	case connecting:
		status := m.sender.status
		if status == "" {
			status = "Connecting..."
		}
		return fmt.Sprintf("\n%s %s %s", m.sender.spinner.View(), status, name)
	case waitingForReceiverConfirmation:
		return fmt.Sprintf("\n%s Waiting for %s to accept %s...\n\n%s",
			m.sender.spinner.View(), name, m.fileLabel(), m.senderHelp(senderKeys.ForceStart, senderKeys.Cancel))
	case sendingFile:
		return fmt.Sprintf("\nSending %s to %s\n\n%s\n\n%s",
			m.fileLabel(), name, m.sender.progress.View(), m.senderHelp(senderKeys.Cancel))
	case transferComplete:
		return fmt.Sprintf("\n%s\n\n%s", style.SuccessStyle.Render("Transfer complete!"), m.senderHelp(senderKeys.Again))
	case transferFailed:
		return fmt.Sprintf("\nTransfer failed: %s\n\n%s",
			style.ErrorStyle.Render(errorText(m.sender.lastError)), m.senderHelp(senderKeys.Again))
	default:
		return "Internal error: unknown sender state"
	}
}

func (m model) fileLabel() string {
	if m.sender.size > 0 {
		return fmt.Sprintf("%s (%s)", m.sender.path, util.FormatSize(m.sender.size))
	}
	return m.sender.path
}

func (m model) senderHelp(bindings ...key.Binding) string {
	s := ""
	for _, b := range bindings {
		s += fmt.Sprintf("  %s %s", b.Help().Key, b.Help().Desc)
	}
	return style.HelpStyle.Render(s)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
