package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/KaramelBytes/cleanloom-cli/internal/journal"
	"github.com/KaramelBytes/cleanloom-cli/internal/remote"
)

func listTable(th Theme, headers []string, rows [][]string) string {
	return ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(th.Dim).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return th.Header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

// History renders the server-side upload history.
func History(th Theme, recs []remote.HistoryRecord) string {
	if len(recs) == 0 {
		return th.Dim.Render("No files processed yet")
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.FileID,
			r.OriginalFilename,
			r.UploadDate,
			fmt.Sprintf("%d×%d", r.TotalRows, r.TotalColumns),
			fmt.Sprintf("%d", r.IssuesCount),
			r.Status,
		})
	}
	return listTable(th, []string{"FILE ID", "FILENAME", "UPLOADED", "SIZE", "ISSUES", "STATUS"}, rows)
}

// HistoryDetail renders a single history record.
func HistoryDetail(th Theme, r remote.HistoryRecord) string {
	lines := []string{
		th.Title.Render(r.OriginalFilename) + th.Dim.Render(" ("+r.FileID+")"),
		fmt.Sprintf("Status: %s", r.Status),
		fmt.Sprintf("Uploaded: %s", r.UploadDate),
		fmt.Sprintf("Dataset: %d rows × %d columns, %d bytes", r.TotalRows, r.TotalColumns, r.FileSize),
		fmt.Sprintf("Issues found: %d", r.IssuesCount),
	}
	for _, is := range r.IssuesFound {
		lines = append(lines, fmt.Sprintf("  %s %s", SeverityBadge(th, is.Severity), is.Title))
	}
	if r.CleanedFilename != "" {
		lines = append(lines,
			fmt.Sprintf("Cleaned: %s at %s", r.CleanedFilename, r.CleanedDate),
			fmt.Sprintf("✓ %d rows removed   ✓ %d values fixed   ✓ %d columns renamed", r.RowsRemoved, r.ValuesFixed, r.ColumnsRenamed),
		)
	}
	if r.ErrorMessage != "" {
		lines = append(lines, th.Error.Render("⚠ "+r.ErrorMessage))
	}
	return strings.Join(lines, "\n")
}

// Journal renders locally recorded runs, newest first.
func Journal(th Theme, runs []journal.Run) string {
	if len(runs) == 0 {
		return th.Dim.Render("No runs recorded")
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		short := r.RunID
		if len(short) > 8 {
			short = short[:8]
		}
		errText := r.LastError
		if len([]rune(errText)) > maxCellWidth {
			errText = string([]rune(errText)[:maxCellWidth-1]) + "…"
		}
		rows = append(rows, []string{
			short,
			r.FileName,
			r.Stage,
			fmt.Sprintf("%d", r.IssuesCount),
			fmt.Sprintf("%d", r.RowsRemoved),
			r.StartedAt,
			errText,
		})
	}
	return listTable(th, []string{"RUN", "FILE", "STAGE", "ISSUES", "REMOVED", "STARTED", "LAST ERROR"}, rows)
}
