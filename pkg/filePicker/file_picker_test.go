package filePicker

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDir creates a small directory tree:
//
//	subdir_b/file_c.txt
//	file_a.txt
//	file_d.txt
func setupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file_a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir_b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir_b", "file_c.txt"), []byte("cc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file_d.txt"), []byte("d"), 0o644))
	return dir
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	keyUp    = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func names(m Model) []string {
	out := make([]string, len(m.items))
	for i, item := range m.items {
		out[i] = item.Name()
	}
	return out
}

func TestSetPath_ListsDirectoriesFirst(t *testing.T) {
	dir := setupTestDir(t)
	m := InitialModel()
	require.NoError(t, m.SetPath(dir))

	assert.Equal(t, dir, m.path)
	assert.Equal(t, []string{"subdir_b", "file_a.txt", "file_d.txt"}, names(m))
	assert.Equal(t, modeBrowse, m.mode)

	assert.Error(t, m.SetPath(filepath.Join(dir, "file_a.txt")))
	assert.Error(t, m.SetPath(filepath.Join(dir, "missing")))
}

func TestUpdateMovement(t *testing.T) {
	m := InitialModel()
	require.NoError(t, m.SetPath(setupTestDir(t)))

	m, _ = update(t, m, keyDown)
	assert.Equal(t, 1, m.cursor)
	m, _ = update(t, m, keyDown)
	m, _ = update(t, m, keyDown)
	assert.Equal(t, 2, m.cursor, "cursor stays at the bottom")
	m, _ = update(t, m, keyUp)
	m, _ = update(t, m, keyUp)
	m, _ = update(t, m, keyUp)
	assert.Equal(t, 0, m.cursor, "cursor stays at the top")
}

func TestEnterOpensDirectoryAndPicksFile(t *testing.T) {
	dir := setupTestDir(t)
	m := InitialModel()
	require.NoError(t, m.SetPath(dir))

	// Cursor is on subdir_b.
	m, cmd := update(t, m, keyEnter)
	assert.Nil(t, cmd)
	assert.Equal(t, filepath.Join(dir, "subdir_b"), m.path)
	assert.Equal(t, []string{"file_c.txt"}, names(m))

	m, cmd = update(t, m, keyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, PickedFileMsg{Path: filepath.Join(dir, "subdir_b", "file_c.txt"), Size: 2}, cmd())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, dir, m.path)
}

func TestInputPath(t *testing.T) {
	dir := setupTestDir(t)
	m := InitialModel()
	m.lastPath = dir

	for _, r := range "file_d.txt" {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, cmd := update(t, m, keyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, PickedFileMsg{Path: filepath.Join(dir, "file_d.txt"), Size: 1}, cmd())
	assert.NoError(t, m.inputErr)

	for _, r := range "nope" {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, cmd = update(t, m, keyEnter)
	assert.Nil(t, cmd)
	assert.Error(t, m.inputErr)
	assert.Contains(t, m.View(), "path does not exist")
}

func TestQuit(t *testing.T) {
	m := InitialModel()
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	// With a directory loaded, esc from the input only leaves input mode.
	m = InitialModel()
	require.NoError(t, m.SetPath(setupTestDir(t)))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, modeInput, m.mode)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.Equal(t, modeBrowse, m.mode)
	assert.False(t, m.quitting)
}
