package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Cell is a single scalar value: string, json.Number, float64, int or bool.
// The empty string stands for a missing value; nil never survives New.
type Cell = any

// Table is the canonical tabular representation every preview shape is
// normalized into. Every row holds exactly len(Columns) cells.
type Table struct {
	Columns []string `json:"columns" yaml:"columns"`
	Rows    [][]Cell `json:"rows" yaml:"rows"`
}

func (Table) preview() {}

// New builds a Table, padding short rows with "" and truncating long ones.
// Inputs are copied; the result shares no slices with the arguments.
func New(columns []string, rows [][]Cell) Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	out := make([][]Cell, 0, len(rows))
	for _, r := range rows {
		row := make([]Cell, len(cols))
		for i := range row {
			if i < len(r) && r[i] != nil {
				row[i] = r[i]
			} else {
				row[i] = ""
			}
		}
		out = append(out, row)
	}
	return Table{Columns: cols, Rows: out}
}

// RowCount returns the number of data rows.
func (t Table) RowCount() int { return len(t.Rows) }

// Width returns the number of columns.
func (t Table) Width() int { return len(t.Columns) }

// IsEmpty reports the explicit "no preview" state: no columns and no rows.
func (t Table) IsEmpty() bool { return len(t.Columns) == 0 && len(t.Rows) == 0 }

// FormatCell renders a cell as plain text. Missing values render as "".
func FormatCell(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// IsBlank reports whether a cell carries no value.
func IsBlank(c Cell) bool {
	if c == nil {
		return true
	}
	s, ok := c.(string)
	return ok && s == ""
}
