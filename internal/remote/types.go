package remote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

// Stats is the dataset summary reported by upload and analyze.
type Stats struct {
	TotalRows     int      `json:"total_rows" yaml:"total_rows"`
	TotalColumns  int      `json:"total_columns" yaml:"total_columns"`
	Columns       []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	FileSize      int64    `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	EmptyRows     int      `json:"empty_rows,omitempty" yaml:"empty_rows,omitempty"`
	DuplicateRows int      `json:"duplicate_rows,omitempty" yaml:"duplicate_rows,omitempty"`
}

type UploadResult struct {
	FileID   string        `json:"file_id"`
	Filename string        `json:"filename"`
	Preview  table.Preview `json:"-"`
	Stats    Stats         `json:"stats"`
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Suggestion is a from->to rename proposed for one column.
type Suggestion struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// AffectedColumns accepts either a list of column names or a mapping of
// column name to count. A mapping decodes to its keys in document order with
// the counts kept alongside.
type AffectedColumns struct {
	Names  []string
	Counts map[string]int
}

func (a *AffectedColumns) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = AffectedColumns{}
		return nil
	}
	switch b[0] {
	case '[':
		var names []string
		if err := json.Unmarshal(b, &names); err != nil {
			return fmt.Errorf("affected columns: %w", err)
		}
		*a = AffectedColumns{Names: names}
		return nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(b))
		if _, err := dec.Token(); err != nil {
			return err
		}
		out := AffectedColumns{Counts: map[string]int{}}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := kt.(string)
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("affected columns %q: %w", key, err)
			}
			out.Names = append(out.Names, key)
			var n int
			if json.Unmarshal(v, &n) == nil {
				out.Counts[key] = n
			}
		}
		*a = out
		return nil
	default:
		return fmt.Errorf("affected columns: unexpected JSON %s", string(b))
	}
}

func (a AffectedColumns) MarshalJSON() ([]byte, error) {
	if a.Names == nil {
		return []byte("null"), nil
	}
	return json.Marshal(a.Names)
}

// IsZero reports whether no columns are listed, so the field is omitted
// from JSON and YAML output.
func (a AffectedColumns) IsZero() bool {
	return len(a.Names) == 0
}

func (a AffectedColumns) MarshalYAML() (any, error) {
	return a.Names, nil
}

// Issue is one data-quality problem reported by analysis.
type Issue struct {
	ID           int             `json:"id" yaml:"id"`
	Type         string          `json:"type,omitempty" yaml:"type,omitempty"`
	Severity     Severity        `json:"severity" yaml:"severity"`
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description" yaml:"description"`
	Examples     []any           `json:"examples,omitempty" yaml:"examples,omitempty"`
	Suggestion   string          `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Suggestions  []Suggestion    `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Column       string          `json:"column,omitempty" yaml:"column,omitempty"`
	Columns      AffectedColumns `json:"columns,omitzero" yaml:"columns,omitempty"`
	AISuggestion string          `json:"ai_suggestion,omitempty" yaml:"ai_suggestion,omitempty"`
	AutoFix      bool            `json:"auto_fix,omitempty" yaml:"auto_fix,omitempty"`
}

type AnalysisResult struct {
	FileID string  `json:"file_id,omitempty" yaml:"file_id,omitempty"`
	Stats  Stats   `json:"stats" yaml:"stats"`
	Issues []Issue `json:"issues" yaml:"issues"`
}

// IssueIDs lists the ids of all reported issues in report order.
func (r *AnalysisResult) IssueIDs() []int {
	ids := make([]int, len(r.Issues))
	for i, is := range r.Issues {
		ids[i] = is.ID
	}
	return ids
}

type Changes struct {
	RowsRemoved    int `json:"rows_removed" yaml:"rows_removed"`
	ValuesFixed    int `json:"values_fixed" yaml:"values_fixed"`
	ColumnsRenamed int `json:"columns_renamed" yaml:"columns_renamed"`
}

type CleanStats struct {
	OriginalRows int `json:"original_rows,omitempty" yaml:"original_rows,omitempty"`
	CleanedRows  int `json:"cleaned_rows" yaml:"cleaned_rows"`
	RowsRemoved  int `json:"rows_removed,omitempty" yaml:"rows_removed,omitempty"`
}

type CleaningResult struct {
	FileID          string        `json:"file_id,omitempty" yaml:"file_id,omitempty"`
	Changes         Changes       `json:"changes" yaml:"changes"`
	Stats           CleanStats    `json:"stats" yaml:"stats"`
	CleanedFilename string        `json:"cleaned_filename,omitempty" yaml:"cleaned_filename,omitempty"`
	Preview         table.Preview `json:"-" yaml:"-"`
}

// Export is a downloaded file body with the headers needed to name it.
type Export struct {
	Body               []byte
	ContentDisposition string
	ContentType        string
}

// IssueSummary is the compact issue form kept in the service's history.
type IssueSummary struct {
	Type     string   `json:"type" yaml:"type"`
	Severity Severity `json:"severity" yaml:"severity"`
	Title    string   `json:"title" yaml:"title"`
}

// HistoryRecord is one processed file as recorded by the service.
type HistoryRecord struct {
	FileID           string         `json:"file_id" yaml:"file_id"`
	OriginalFilename string         `json:"original_filename" yaml:"original_filename"`
	UploadDate       string         `json:"upload_date" yaml:"upload_date"`
	FileSize         int64          `json:"file_size" yaml:"file_size"`
	TotalRows        int            `json:"total_rows" yaml:"total_rows"`
	TotalColumns     int            `json:"total_columns" yaml:"total_columns"`
	IssuesCount      int            `json:"issues_count" yaml:"issues_count"`
	IssuesFound      []IssueSummary `json:"issues_found,omitempty" yaml:"issues_found,omitempty"`
	CleanedFilename  string         `json:"cleaned_filename,omitempty" yaml:"cleaned_filename,omitempty"`
	CleanedDate      string         `json:"cleaned_date,omitempty" yaml:"cleaned_date,omitempty"`
	Status           string         `json:"status" yaml:"status"`
	RowsRemoved      int            `json:"rows_removed" yaml:"rows_removed"`
	ValuesFixed      int            `json:"values_fixed" yaml:"values_fixed"`
	ColumnsRenamed   int            `json:"columns_renamed" yaml:"columns_renamed"`
	ErrorMessage     string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}
