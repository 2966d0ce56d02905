package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/dropline/internal/app_events"
	"github.com/rescp17/dropline/internal/style"
)

// AppController is the part of a sender or receiver app the TUI drives.
type AppController interface {
	Run(ctx context.Context) error
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
}

type mode int

const (
	None mode = iota
	Sender
	Receiver
)

// appMsg wraps a message read from the app so the listener can be re-armed
// exactly once per message.
type appMsg struct {
	msg tea.Msg
}

type appExitMsg struct {
	err error
}

var quitKey = key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))

type model struct {
	mode          mode
	appController AppController
	ctx           context.Context
	cancel        context.CancelFunc
	sender        senderModel
	receiver      receiverModel
	err           error
}

func newModel(m mode, app AppController) model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{
		mode:          m,
		appController: app,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Err is the error the app stopped with, if any.
func Err(m tea.Model) error {
	if mm, ok := m.(model); ok {
		return mm.err
	}
	return nil
}

func (m model) Init() tea.Cmd {
	var modeCmd tea.Cmd
	switch m.mode {
	case Sender:
		modeCmd = m.initSender()
	case Receiver:
		modeCmd = m.initReceiver()
	}
	return tea.Batch(m.runApp(), m.listenForAppMessages(), modeCmd)
}

// runApp runs the app controller for the lifetime of the program.
func (m model) runApp() tea.Cmd {
	return func() tea.Msg {
		return appExitMsg{err: m.appController.Run(m.ctx)}
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.appController.UIMessages():
			return appMsg{msg: msg}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// emit hands an event to the app without blocking the UI loop.
func (m model) emit(event appevents.AppEvent) tea.Cmd {
	return func() tea.Msg {
		select {
		case m.appController.AppEvents() <- event:
		case <-m.ctx.Done():
		}
		return nil
	}
}

func (m model) View() string {
	var s string
	switch m.mode {
	case Sender:
		s += m.senderView()
	case Receiver:
		s += m.receiverView()
	default:
		return ""
	}
	s += "\n" + style.HelpStyle.Render("Press ctrl + c to quit")
	return s
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.cancel()
			return m, tea.Quit
		}
	case appExitMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		m.cancel()
		return m, tea.Quit
	case appMsg:
		next, cmd := m.updateMode(msg.msg)
		return next, tea.Batch(cmd, next.(model).listenForAppMessages())
	case progress.FrameMsg:
		return m.updateProgress(msg)
	}
	return m.updateMode(msg)
}

func (m model) updateMode(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case Sender:
		return m.updateSender(msg)
	case Receiver:
		return m.updateReceiver(msg)
	}
	return m, nil
}

func (m model) updateProgress(msg progress.FrameMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var next tea.Model
	switch m.mode {
	case Sender:
		next, cmd = m.sender.progress.Update(msg)
		m.sender.progress = next.(progress.Model)
	case Receiver:
		next, cmd = m.receiver.progress.Update(msg)
		m.receiver.progress = next.(progress.Model)
	}
	return m, cmd
}
