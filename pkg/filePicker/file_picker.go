package filePicker

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rescp17/dropline/internal/style"
	"github.com/rescp17/dropline/internal/util"
)

type mode int

const (
	modeBrowse mode = iota
	modeInput
)

// PickedFileMsg is emitted when the user confirms a regular file.
type PickedFileMsg struct {
	Path string
	Size int64
}

// --- Key Map ---
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding // Page up
	Right       key.Binding // Page down
	Parent      key.Binding
	ToggleInput key.Binding
	Confirm     key.Binding
	Quit        key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "page up")),
	Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "page down")),
	Parent:      key.NewBinding(key.WithKeys("backspace"), key.WithHelp("backspace", "parent dir")),
	ToggleInput: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "input path")),
	Confirm:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/pick")),
	Quit:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit/back")),
}

// --- Model ---
type Model struct {
	path     string
	lastPath string // For relative path resolution
	items    []fs.DirEntry
	cursor   int
	keys     KeyMap
	quitting bool
	mode     mode
	input    textinput.Model
	inputErr error
	height   int // For viewport height
	offset   int // For scrolling
}

func InitialModel() Model {
	ti := textinput.New()
	ti.Placeholder = "path to a file or directory"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80
	ti.Cursor.Style = style.InputCursorStyle
	ti.PromptStyle = style.InputPromptStyle

	wd, err := os.Getwd()
	if err != nil {
		slog.Warn("Could not get working directory", "error", err)
	}

	return Model{
		lastPath: wd,
		keys:     DefaultKeyMap,
		mode:     modeInput, // Start in input mode
		input:    ti,
	}
}

// --- Bubble Tea Methods ---
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.mode == modeInput && m.path != "" {
				// Go back to browsing the currently loaded path.
				m.mode = modeBrowse
				m.input.Blur()
				m.input.Reset()
				m.inputErr = nil
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		}

		switch m.mode {
		case modeBrowse:
			return m.updateBrowse(msg)
		case modeInput:
			return m.updateInput(msg)
		}
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleInput):
		m.mode = modeInput
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset--
			}
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
			if m.cursor >= m.offset+m.visibleItems() {
				m.offset++
			}
		}

	case key.Matches(msg, m.keys.Right): // Page down
		if len(m.items) == 0 {
			break
		}
		visible := m.visibleItems()
		m.cursor = min(m.cursor+visible, len(m.items)-1)
		m.offset = max(0, min(m.offset+visible, len(m.items)-visible))
		if m.cursor >= m.offset+visible {
			m.offset = m.cursor - visible + 1
		}

	case key.Matches(msg, m.keys.Left): // Page up
		visible := m.visibleItems()
		m.cursor = max(m.cursor-visible, 0)
		m.offset = max(m.offset-visible, 0)
		if m.cursor < m.offset {
			m.offset = m.cursor
		}

	case key.Matches(msg, m.keys.Parent):
		if parent := filepath.Dir(m.path); parent != m.path {
			if err := m.SetPath(parent); err != nil {
				m.inputErr = err
			}
		}

	case key.Matches(msg, m.keys.Confirm):
		if len(m.items) == 0 {
			return m, nil
		}
		return m.open(filepath.Join(m.path, m.items[m.cursor].Name()))
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if key.Matches(msg, m.keys.Confirm) {
		path := m.input.Value()
		// Resolve path relative to the last path
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.lastPath, path)
		}
		model, cmd := m.open(path)
		if next := model.(Model); next.inputErr == nil {
			next.input.Reset()
			return next, cmd
		}
		return model, cmd
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// open descends into a directory or picks a regular file.
func (m Model) open(path string) (tea.Model, tea.Cmd) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		m.inputErr = fmt.Errorf("invalid path: %w", err)
		return m, nil
	}
	info, err := os.Stat(absPath)
	if err != nil {
		m.inputErr = fmt.Errorf("path does not exist: %s", absPath)
		return m, nil
	}

	switch {
	case info.IsDir():
		if err := m.SetPath(absPath); err != nil {
			m.inputErr = err
		}
		return m, nil
	case info.Mode().IsRegular():
		m.inputErr = nil
		size := info.Size()
		return m, func() tea.Msg {
			return PickedFileMsg{Path: absPath, Size: size}
		}
	default:
		m.inputErr = fmt.Errorf("not a regular file: %s", absPath)
		return m, nil
	}
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString("Enter a path, or pick a file below. " + m.helpView() + "\n \n")
	s.WriteString(m.input.View())
	if m.inputErr != nil {
		s.WriteString("\n" + style.ErrorStyle.Render(m.inputErr.Error()))
	}
	s.WriteString("\n\n")

	if m.path == "" {
		return s.String()
	}
	s.WriteString(fmt.Sprintf("Browsing: %s\n\n", m.path))

	// Table column widths
	nameWidth := 36
	typeWidth := 30
	timeWidth := 20
	sizeWidth := 16

	// Table header: pad first, then style
	headerStyle := lipgloss.NewStyle().Bold(true)
	s.WriteString(
		headerStyle.Render(util.PadRight("", 2)) + " " +
			headerStyle.Render(util.PadRight("Name", nameWidth)) + " " +
			headerStyle.Render(util.PadRight("Last Modified", timeWidth)) + " " +
			headerStyle.Render(util.PadRight("Size", sizeWidth)) +
			headerStyle.Render(util.PadRight("Type", typeWidth)) + "\n\n",
	)

	start := max(m.offset, 0)
	end := min(start+m.visibleItems(), len(m.items))
	if start > end {
		start = end
	}

	for i, item := range m.items[start:end] {
		if m.cursor == start+i {
			s.WriteString(style.CursorStyle.String())
		} else {
			s.WriteString(style.NoCursorStyle.String())
		}

		path := filepath.Join(m.path, item.Name())
		modTime, size := "", ""
		if info, err := item.Info(); err == nil {
			modTime = info.ModTime().Format("2006-01-02 15:04:05")
			if info.IsDir() {
				size = "<DIR>"
			} else {
				size = util.FormatSize(info.Size())
			}
		}

		nameStr := item.Name()
		typeStr := ""
		if item.IsDir() {
			nameStr += "/"
		} else if mime, err := mimetype.DetectFile(path); err == nil {
			typeStr = mime.String()
		}

		// Pad right first, then add style
		nameCell := util.PadRight(nameStr, nameWidth)
		if item.IsDir() {
			nameCell = style.DirStyle.Render(nameCell)
		} else {
			nameCell = style.FileStyle.Render(nameCell)
		}
		s.WriteString(nameCell + " " +
			util.PadRight(modTime, timeWidth) + " " +
			util.PadRight(size, sizeWidth) +
			util.PadRight(typeStr, typeWidth) + "\n\n")
	}

	// Scroll indicator
	if len(m.items) > m.visibleItems() {
		s.WriteString(fmt.Sprintf("\n... %d/%d ...\n", m.cursor+1, len(m.items)))
	}

	return s.String()
}

func (m Model) helpView() string {
	return style.HelpStyle.Render(
		fmt.Sprintf("'%s'/'%s' to page, '%s' to go up, '%s' to type a path, '%s' to open or pick, '%s' to quit",
			m.keys.Left.Help().Key, m.keys.Right.Help().Key, m.keys.Parent.Help().Key,
			m.keys.ToggleInput.Help().Key, m.keys.Confirm.Help().Key, m.keys.Quit.Help().Key),
	)
}

// SetPath loads the directory at path, directories first.
func (m *Model) SetPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	exists, isDir, err := util.CheckDirectory(absPath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("path does not exist: %s", absPath)
	}
	if !isDir {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}
	items, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return items[i].Name() < items[j].Name()
	})
	m.path = absPath
	m.lastPath = absPath
	m.items = items
	m.cursor = 0
	m.offset = 0
	m.inputErr = nil
	m.mode = modeBrowse
	m.input.Blur()
	return nil
}

func (m *Model) visibleItems() int {
	headerHeight := 8
	if m.inputErr != nil {
		headerHeight++
	}
	// Each item takes up 2 lines
	visible := (m.height - headerHeight) / 2
	if visible < 1 {
		visible = 8
	}
	return visible
}
