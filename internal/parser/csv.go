package parser

import (
	"strings"

	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".csv")
}

// Parse splits on line breaks and commas only. Quoted fields containing commas
// or newlines are not recognized; such rows come out over-split.
func (csvParser) Parse(content []byte) (table.Table, error) {
	text := strings.TrimPrefix(string(content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return table.New(nil, nil), nil
	}
	columns := strings.Split(lines[0], ",")
	rows := make([][]table.Cell, 0, len(lines)-1)
	for _, l := range lines[1:] {
		parts := strings.Split(l, ",")
		row := make([]table.Cell, len(parts))
		for i, p := range parts {
			row[i] = p
		}
		rows = append(rows, row)
	}
	return table.New(columns, rows), nil
}
