package parser

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

// Parser turns the raw bytes of an uploaded file into a canonical table.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) (table.Table, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}

// ErrUnsupported indicates no registered parser accepts the file name.
var ErrUnsupported = errors.New("unsupported file type")

// ParseError wraps a failure while decoding a supported file.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Sentinel tables carry "preview unavailable" through the normal rendering path.
var (
	unsupportedColumns = []string{"Preview not available"}
	unsupportedCell    = "Unsupported file type"
	errorColumns       = []string{"Error"}
)

// UnsupportedTable is returned for file types no parser accepts.
func UnsupportedTable() table.Table {
	return table.New(unsupportedColumns, [][]table.Cell{{unsupportedCell}})
}

// ErrorTable reports a decode failure as a one-cell table.
func ErrorTable(msg string) table.Table {
	return table.New(errorColumns, [][]table.Cell{{msg}})
}

// IsSentinel reports whether t is one of the placeholder tables above.
func IsSentinel(t table.Table) bool {
	if len(t.Columns) != 1 || len(t.Rows) != 1 {
		return false
	}
	return t.Columns[0] == unsupportedColumns[0] || t.Columns[0] == errorColumns[0]
}

// Decode selects a parser by file name and decodes data. The caller's slice is
// only read.
func Decode(name string, data []byte) (table.Table, error) {
	for _, p := range registry {
		if p.CanParse(name) {
			t, err := p.Parse(data)
			if err != nil {
				return table.Table{}, &ParseError{Name: name, Err: err}
			}
			return t, nil
		}
	}
	return table.Table{}, ErrUnsupported
}

// Preview is Decode without failure: unsupported files and decode errors come
// back as sentinel tables.
func Preview(name string, data []byte) (t table.Table) {
	defer func() {
		if r := recover(); r != nil {
			t = ErrorTable(fmt.Sprint(r))
		}
	}()
	t, err := Decode(name, data)
	if err == nil {
		return t
	}
	if errors.Is(err, ErrUnsupported) {
		return UnsupportedTable()
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return ErrorTable(pe.Err.Error())
	}
	return ErrorTable(err.Error())
}
