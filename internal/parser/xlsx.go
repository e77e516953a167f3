package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/KaramelBytes/cleanloom-cli/internal/table"
)

// xlsxParser reads the first worksheet of a workbook. Legacy .xls files are
// routed here too; they are not zip containers and surface as a parse error.
type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls")
}

var errNotWorkbook = errors.New("not an xlsx workbook")

func (xlsxParser) Parse(content []byte) (table.Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return table.Table{}, fmt.Errorf("%w: %v", errNotWorkbook, err)
	}
	workbookXML := readZipFile(zr, "xl/workbook.xml")
	if workbookXML == nil {
		return table.Table{}, fmt.Errorf("%w: missing xl/workbook.xml", errNotWorkbook)
	}
	sheets := parseWorkbook(workbookXML)
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	target := ""
	if len(sheets) > 0 {
		if rel, ok := rels[sheets[0].RID]; ok {
			target = normalizeRelPath(rel)
		}
	}
	if target == "" {
		target = "xl/worksheets/sheet1.xml"
	}
	sheetXML := readZipFile(zr, target)
	if sheetXML == nil {
		return table.Table{}, fmt.Errorf("worksheet %s not found", target)
	}

	rr := newSheetRowReader(sheetXML, shared)
	header, ok := rr.Next()
	if !ok {
		return table.New(nil, nil), nil
	}
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = table.FormatCell(c)
	}
	var rows [][]table.Cell
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return table.New(columns, rows), nil
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// parseWorkbook extracts sheet entries in workbook order.
func parseWorkbook(data []byte) []wbSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships returns r:id -> Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams <row> elements as typed cells. Gaps left by sparse
// cell references are filled with "".
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	curRow []table.Cell
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]table.Cell, bool) {
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				r.curRow = nil
				continue
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			idx := colIndexFromRef(ref)
			if idx < 0 {
				idx = len(r.curRow)
			}
			for len(r.curRow) <= idx {
				r.curRow = append(r.curRow, "")
			}
			r.curRow[idx] = r.readCellValue(typ)
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				if r.curRow == nil {
					r.curRow = []table.Cell{}
				}
				return r.curRow, true
			}
		}
	}
}

// readCellValue consumes tokens up to </c> and converts the captured text
// according to the cell type attribute.
func (r *sheetRowReader) readCellValue(typ string) table.Cell {
	var raw string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return convertCell(typ, raw, r.shared)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				raw += r.readText(se.Name.Local)
			}
		case xml.EndElement:
			if se.Name.Local == "c" {
				return convertCell(typ, raw, r.shared)
			}
		}
	}
}

func (r *sheetRowReader) readText(local string) string {
	var sb strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return sb.String()
		}
		switch v := tok.(type) {
		case xml.EndElement:
			if v.Name.Local == local {
				return sb.String()
			}
		case xml.CharData:
			sb.Write(v)
		}
	}
}

func convertCell(typ, raw string, shared []string) table.Cell {
	switch typ {
	case "s":
		idx := atoiSafe(raw)
		if idx >= 0 && idx < len(shared) {
			return shared[idx]
		}
		return ""
	case "b":
		return raw == "1"
	case "str", "inlineStr", "e", "d":
		return raw
	default:
		if raw == "" {
			return ""
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column index, or -1 when
// the ref carries no column letters.
func colIndexFromRef(ref string) int {
	idx := 0
	i := 0
	for ; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to zip entry names. Targets
// may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
