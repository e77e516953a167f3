package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/cleanloom-cli/internal/download"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote/remotetest"
	"github.com/KaramelBytes/cleanloom-cli/internal/workflow"
)

func newModel(t *testing.T) (Model, *remotetest.Server, string) {
	t.Helper()
	srv := remotetest.New(t)
	client := remote.NewClient(srv.BaseURL, 5*time.Second)
	dir := t.TempDir()
	mc := workflow.New(client, download.NewCoordinator(client, download.DirSaver{Dir: dir}), workflow.Options{RequestTimeout: 5 * time.Second})
	load := func() (workflow.FileRef, error) {
		return workflow.FileRef{Name: "data.csv", Data: []byte("a,b\n1,x\n1,x\n2,y\n")}, nil
	}
	m := New(context.Background(), mc, load, 2)
	return m, srv, dir
}

// step feeds msg to the model and runs any returned command to completion,
// feeding its result back in.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, quit := out.(tea.QuitMsg); quit {
				return m
			}
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFullRoundThroughKeys(t *testing.T) {
	m, srv, dir := newModel(t)

	m = step(t, m, m.loadCmd()())
	assert.Equal(t, workflow.LocalPreview, m.machine.Stage())
	assert.Contains(t, m.View(), "Showing 1-2 of 3 rows (page 1/2)")

	m = step(t, m, key("n"))
	assert.Contains(t, m.View(), "Showing 3-3 of 3 rows (page 2/2)")

	m = step(t, m, key("enter"))
	require.Equal(t, workflow.Analyzed, m.machine.Stage(), m.lastError)
	assert.Equal(t, focusIssues, m.focus)
	view := m.View()
	assert.Contains(t, view, "Duplicate Rows")
	assert.Contains(t, view, "[x]")

	m = step(t, m, key(" "))
	assert.Contains(t, m.View(), "[ ]")
	m = step(t, m, key("enter"))
	assert.Equal(t, workflow.Analyzed, m.machine.Stage())
	assert.Contains(t, m.lastError, "select at least one issue")

	m = step(t, m, key("x"))
	m = step(t, m, key("enter"))
	require.Equal(t, workflow.Cleaned, m.machine.Stage(), m.lastError)
	assert.Empty(t, m.lastError)
	assert.Equal(t, []int{7}, srv.LastSelected())
	assert.Contains(t, m.View(), "Final dataset: 2 rows × 2 columns")

	m = step(t, m, key("1"))
	want := filepath.Join(dir, "data_cleaned.csv")
	assert.Equal(t, "✓ Saved "+want, m.status)
	_, err := os.Stat(want)
	assert.NoError(t, err)
	assert.Equal(t, "csv", srv.LastFormat())

	m = step(t, m, key("esc"))
	assert.Equal(t, workflow.Idle, m.machine.Stage())
	m = step(t, m, key("enter"))
	assert.Equal(t, workflow.LocalPreview, m.machine.Stage())
}

func TestTabSwitchesBetweenIssuesAndData(t *testing.T) {
	m, _, _ := newModel(t)
	m = step(t, m, m.loadCmd()())
	m = step(t, m, key("enter"))
	require.Equal(t, workflow.Analyzed, m.machine.Stage())

	m = step(t, m, key("tab"))
	assert.Equal(t, focusTable, m.focus)
	assert.Contains(t, m.View(), "of 3 rows")
	m = step(t, m, key("tab"))
	assert.Equal(t, focusIssues, m.focus)
}

func TestAnalyzedTotalComesFromAnalysis(t *testing.T) {
	m, srv, _ := newModel(t)
	srv.Configure(func(sc *remotetest.Script) { sc.AnalysisRows = 500 })
	m = step(t, m, m.loadCmd()())
	m = step(t, m, key("enter"))
	require.Equal(t, workflow.Analyzed, m.machine.Stage(), m.lastError)

	m = step(t, m, key("tab"))
	assert.Contains(t, m.View(), "Showing 1-2 of 500 rows")
}

func TestFailureShowsErrorAndKeepsStage(t *testing.T) {
	m, srv, _ := newModel(t)
	srv.Fail("upload", 400, "Only CSV and Excel files are supported")
	m = step(t, m, m.loadCmd()())
	m = step(t, m, key("enter"))

	assert.Equal(t, workflow.LocalPreview, m.machine.Stage())
	assert.Contains(t, m.lastError, "failed to upload file")
	assert.Contains(t, m.View(), "⚠")
}

func TestLoaderErrorIsShown(t *testing.T) {
	m, _, _ := newModel(t)
	m.load = func() (workflow.FileRef, error) { return workflow.FileRef{}, errors.New("open data.csv: no such file") }
	m = step(t, m, m.loadCmd()())
	assert.Equal(t, workflow.Idle, m.machine.Stage())
	assert.Contains(t, m.View(), "no such file")
}

func TestDownloadKeysIgnoredBeforeCleaning(t *testing.T) {
	m, srv, _ := newModel(t)
	m = step(t, m, m.loadCmd()())
	m = step(t, m, key("1"))
	assert.Equal(t, 0, srv.Calls("download"))
	assert.Equal(t, workflow.LocalPreview, m.machine.Stage())
}

func TestQuit(t *testing.T) {
	m, _, _ := newModel(t)
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpLineFollowsStage(t *testing.T) {
	assert.Contains(t, helpLine(workflow.Cleaned, focusTable), "[4] SQL")
	assert.Contains(t, helpLine(workflow.Analyzed, focusIssues), "Toggle fix")
	assert.Contains(t, helpLine(workflow.Idle, focusTable), "Load file")
}
