// Package tui is the interactive terminal front end for one cleaning round.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/KaramelBytes/cleanloom-cli/internal/download"
	"github.com/KaramelBytes/cleanloom-cli/internal/paging"
	"github.com/KaramelBytes/cleanloom-cli/internal/render"
	"github.com/KaramelBytes/cleanloom-cli/internal/workflow"
)

// Loader produces the file to work on. It is called at startup and again
// after a reset.
type Loader func() (workflow.FileRef, error)

type focus int

const (
	focusTable focus = iota
	focusIssues
)

type fileLoadedMsg struct{ err error }

type opDoneMsg struct {
	op   string
	path string
	err  error
}

// Model is the BubbleTea model driving a workflow.Machine.
type Model struct {
	ctx     context.Context
	machine *workflow.Machine
	load    Loader
	pager   *paging.Pager

	width  int
	height int

	theme   render.Theme
	spinner spinner.Model

	focus  focus
	cursor int
	source workflow.Stage

	status    string
	lastError string
}

func New(ctx context.Context, m *workflow.Machine, load Loader, pageSize int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		ctx:     ctx,
		machine: m,
		load:    load,
		pager:   paging.New(pageSize),
		theme:   render.NewDefaultTheme(),
		spinner: s,
		source:  -1,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m Model) loadCmd() tea.Cmd {
	mc, load := m.machine, m.load
	return func() tea.Msg {
		ref, err := load()
		if err != nil {
			return fileLoadedMsg{err: err}
		}
		return fileLoadedMsg{err: mc.SelectFile(ref)}
	}
}

func (m Model) submitCmd() tea.Cmd {
	ctx, mc := m.ctx, m.machine
	return func() tea.Msg { return opDoneMsg{op: "submit", err: mc.Submit(ctx)} }
}

func (m Model) cleanCmd() tea.Cmd {
	ctx, mc := m.ctx, m.machine
	return func() tea.Msg { return opDoneMsg{op: "clean", err: mc.ApplyCleanup(ctx)} }
}

func (m Model) downloadCmd(f download.Format) tea.Cmd {
	ctx, mc := m.ctx, m.machine
	return func() tea.Msg {
		p, err := mc.Download(ctx, f)
		return opDoneMsg{op: "download", path: p, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fileLoadedMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
		} else {
			m.status = "Press enter to analyze"
		}
		m.sync()

	case opDoneMsg:
		m.status = ""
		switch {
		case errors.Is(msg.err, workflow.ErrReset):
		case msg.err != nil:
			m.lastError = msg.err.Error()
		case msg.op == "submit":
			m.lastError = ""
			m.status = "Analysis complete"
		case msg.op == "clean":
			m.lastError = ""
			m.status = "Cleaning complete"
		case msg.op == "download":
			m.lastError = ""
			m.status = "✓ Saved " + msg.path
		}
		m.sync()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.machine.Reset()
		m.lastError = ""
		m.status = "Press enter to load the file again"
		m.sync()
		return m, nil
	}

	snap := m.machine.Snapshot()
	switch key {
	case "n", "right", "l":
		m.pager.Next()
		return m, nil
	case "p", "left", "h":
		m.pager.Prev()
		return m, nil
	case "a":
		m.pager.SetShowAll(!m.pager.ShowAll())
		return m, nil
	}
	// Loading is local; remote actions wait for a call still in flight.
	if snap.Busy && snap.Stage != workflow.Idle {
		return m, nil
	}

	switch snap.Stage {
	case workflow.Idle:
		if key == "enter" {
			return m, m.loadCmd()
		}

	case workflow.LocalPreview:
		if key == "enter" {
			m.status = "Uploading and analyzing…"
			m.lastError = ""
			return m, m.submitCmd()
		}

	case workflow.Analyzed:
		issues := snap.Issues()
		switch key {
		case "tab":
			if m.focus == focusIssues {
				m.focus = focusTable
			} else {
				m.focus = focusIssues
			}
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(issues)-1 {
				m.cursor++
			}
		case " ", "x":
			if m.cursor < len(issues) {
				if _, err := m.machine.Toggle(issues[m.cursor].ID); err != nil {
					m.lastError = err.Error()
				}
			}
		case "enter":
			m.status = "Cleaning…"
			m.lastError = ""
			return m, m.cleanCmd()
		}

	case workflow.Cleaned:
		formats := download.Formats
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(formats) {
			f := formats[key[0]-'1']
			m.status = fmt.Sprintf("Downloading %s…", f)
			m.lastError = ""
			return m, m.downloadCmd(f)
		}
	}
	return m, nil
}

// sync points the pager at the table for the current stage. Paging resets
// only when the displayed table changes.
func (m *Model) sync() {
	snap := m.machine.Snapshot()
	src := snap.Stage
	switch src {
	case workflow.Submitting:
		src = workflow.LocalPreview
	case workflow.CleaningInProgress:
		src = workflow.Analyzed
	}
	if src == m.source {
		return
	}
	m.source = src
	m.pager.SetSource(snap.Current())
	switch src {
	case workflow.Analyzed:
		total := snap.UploadStats.TotalRows
		if snap.Analysis != nil && snap.Analysis.Stats.TotalRows > 0 {
			total = snap.Analysis.Stats.TotalRows
		}
		m.pager.SetReportedTotal(total)
		m.focus = focusIssues
	case workflow.Cleaned:
		if snap.Cleaning != nil {
			m.pager.SetReportedTotal(snap.Cleaning.Stats.CleanedRows)
		}
		m.focus = focusTable
	default:
		m.focus = focusTable
	}
	m.cursor = 0
}

func (m Model) View() string {
	snap := m.machine.Snapshot()
	th := m.theme

	title := th.Title.Render("cleanloom")
	if snap.FileName != "" {
		title += th.Dim.Render(" · " + snap.FileName)
	}
	title += " " + th.Highlight.Render("["+snap.Stage.String()+"]")
	if snap.Busy {
		title += " " + m.spinner.View()
	}

	parts := []string{title}

	switch snap.Stage {
	case workflow.Idle:
		parts = append(parts, th.Dim.Render("No file loaded."))
	case workflow.Analyzed, workflow.CleaningInProgress:
		if snap.Analysis != nil {
			parts = append(parts, render.AnalysisSummary(th, snap.Analysis))
		}
		if m.focus == focusIssues {
			parts = append(parts, render.Issues(th, snap.Issues(), snap.Selection, m.cursor))
		} else {
			parts = append(parts, render.Page(th, snap.Current().Columns, m.pager.Window()))
		}
	case workflow.Cleaned:
		if snap.Cleaning != nil {
			parts = append(parts, render.CleaningSummary(th, snap.Cleaning, snap.CleanedPreview))
		}
		parts = append(parts, render.Page(th, snap.Current().Columns, m.pager.Window()))
		for _, p := range snap.Downloads {
			parts = append(parts, th.OK.Render("✓ "+p))
		}
	default:
		parts = append(parts, render.Page(th, snap.Current().Columns, m.pager.Window()))
	}

	if m.lastError != "" {
		parts = append(parts, th.Error.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	if m.status != "" {
		parts = append(parts, th.Dim.Render(m.status))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(helpLine(snap.Stage, m.focus)))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func helpLine(st workflow.Stage, f focus) string {
	pages := " • [n/p] Page • [a] All rows"
	switch st {
	case workflow.Idle:
		return " [enter] Load file • [q] Quit"
	case workflow.LocalPreview:
		return " [enter] Analyze" + pages + " • [esc] Reset • [q] Quit"
	case workflow.Analyzed:
		if f == focusIssues {
			return " [↑/↓] Navigate • [space] Toggle fix • [enter] Apply • [tab] Data • [esc] Reset • [q] Quit"
		}
		return " [enter] Apply" + pages + " • [tab] Issues • [esc] Reset • [q] Quit"
	case workflow.Cleaned:
		return " [1] CSV • [2] Excel • [3] JSON • [4] SQL" + pages + " • [esc] Clean another file • [q] Quit"
	default:
		return " [esc] Reset • [q] Quit"
	}
}

// Run starts the program on the alternate screen and blocks until it exits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx)).Run()
	return err
}
