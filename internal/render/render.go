package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/KaramelBytes/cleanloom-cli/internal/paging"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

const maxCellWidth = 40

// CellText is the display form of a cell; blank cells read "empty".
func CellText(c table.Cell) string {
	if table.IsBlank(c) {
		return "empty"
	}
	s := table.FormatCell(c)
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		s = string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

// Page renders one pager window with a position footer.
func Page(th Theme, columns []string, w paging.Window) string {
	if len(columns) == 0 {
		return th.Dim.Render("(no preview)")
	}
	rows := make([][]string, len(w.Rows))
	blank := make([][]bool, len(w.Rows))
	for i, r := range w.Rows {
		rows[i] = make([]string, len(r))
		blank[i] = make([]bool, len(r))
		for j, c := range r {
			rows[i][j] = CellText(c)
			blank[i][j] = table.IsBlank(c)
		}
	}
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.Dim).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return th.Header.Padding(0, 1)
			}
			if row >= 0 && row < len(blank) && col < len(blank[row]) && blank[row][col] {
				return th.Empty.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(th.Dim.Render(Footer(w)))
	return b.String()
}

// Footer describes the window position, e.g. "Showing 41-45 of 45 rows (page 3/3)".
func Footer(w paging.Window) string {
	if w.Total == 0 {
		return "No rows"
	}
	return fmt.Sprintf("Showing %d-%d of %d rows (page %d/%d)", w.First, w.Last, w.Total, w.Page, w.TotalPages)
}

// SeverityBadge renders a severity label; unknown values render as Low.
func SeverityBadge(th Theme, s remote.Severity) string {
	switch s {
	case remote.SeverityHigh:
		return th.SeverityHigh.Render("[High]")
	case remote.SeverityMedium:
		return th.SeverityMedium.Render("[Medium]")
	default:
		return th.SeverityLow.Render("[Low]")
	}
}

// IssueCard renders one issue with its fix checkbox.
func IssueCard(th Theme, is remote.Issue, selected bool) string {
	box := "[ ]"
	if selected {
		box = "[x]"
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("%s #%d %s %s", box, is.ID, SeverityBadge(th, is.Severity), th.Title.Render(is.Title)))
	if is.Description != "" {
		lines = append(lines, is.Description)
	}
	if len(is.Examples) > 0 {
		ex := make([]string, len(is.Examples))
		for i, e := range is.Examples {
			ex[i] = table.FormatCell(e)
		}
		lines = append(lines, th.Dim.Render("Examples: "+strings.Join(ex, ", ")))
	}
	if is.Suggestion != "" {
		lines = append(lines, th.Suggestion.Render("💡 "+is.Suggestion))
	}
	for _, s := range is.Suggestions {
		lines = append(lines, fmt.Sprintf("  %s → %s", th.Dim.Render(s.From), th.OK.Render(s.To)))
	}
	if is.Column != "" {
		lines = append(lines, th.Dim.Render("Column: "+is.Column))
	}
	if len(is.Columns.Names) > 0 {
		lines = append(lines, th.Dim.Render("Affected columns: "+strings.Join(is.Columns.Names, ", ")))
	}
	if is.AISuggestion != "" {
		lines = append(lines, th.AISuggestion.Render("🤖 AI: "+is.AISuggestion))
	}
	style := th.Border
	if selected {
		style = th.Selected
	}
	return style.Render(strings.Join(lines, "\n"))
}

// Issues renders every issue card followed by the selection count. cursor
// marks the focused card in the TUI; pass -1 for none.
func Issues(th Theme, issues []remote.Issue, selected map[int]bool, cursor int) string {
	if len(issues) == 0 {
		return th.OK.Render("✓ No issues found")
	}
	cards := make([]string, 0, len(issues)+1)
	n := 0
	for i, is := range issues {
		card := IssueCard(th, is, selected[is.ID])
		if i == cursor {
			card = lipgloss.JoinHorizontal(lipgloss.Center, th.Highlight.Render("▶ "), card)
		}
		cards = append(cards, card)
		if selected[is.ID] {
			n++
		}
	}
	cards = append(cards, th.Dim.Render(fmt.Sprintf("%d of %d fixes selected", n, len(issues))))
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// AnalysisSummary is the one-line headline of an analysis.
func AnalysisSummary(th Theme, an *remote.AnalysisResult) string {
	s := fmt.Sprintf("Found %d issue(s) in %d rows × %d columns", len(an.Issues), an.Stats.TotalRows, an.Stats.TotalColumns)
	extra := []string{}
	if an.Stats.EmptyRows > 0 {
		extra = append(extra, fmt.Sprintf("%d empty rows", an.Stats.EmptyRows))
	}
	if an.Stats.DuplicateRows > 0 {
		extra = append(extra, fmt.Sprintf("%d duplicate rows", an.Stats.DuplicateRows))
	}
	if len(extra) > 0 {
		s += " (" + strings.Join(extra, ", ") + ")"
	}
	return th.Title.Render(s)
}

// CleaningSummary reports what cleaning changed and the final dataset shape.
func CleaningSummary(th Theme, res *remote.CleaningResult, preview table.Table) string {
	lines := []string{th.OK.Render("✓ Data cleaned successfully")}
	if res.CleanedFilename != "" {
		lines = append(lines, "Saved as: "+th.Highlight.Render(res.CleanedFilename))
	}
	lines = append(lines,
		fmt.Sprintf("✓ %d rows removed   ✓ %d values fixed   ✓ %d columns renamed",
			res.Changes.RowsRemoved, res.Changes.ValuesFixed, res.Changes.ColumnsRenamed),
		th.Dim.Render(fmt.Sprintf("Final dataset: %d rows × %d columns", res.Stats.CleanedRows, preview.Width())),
	)
	return strings.Join(lines, "\n")
}

// ErrorLine renders a failure the way the CLI and TUI show it.
func ErrorLine(th Theme, err error) string {
	return th.Error.Render("⚠ " + err.Error())
}
