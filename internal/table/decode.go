package table

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodePreview classifies a raw preview payload from the service. This is the
// only place wire bytes are sniffed for their shape:
//
//	[ ... ]                 -> Records (key order of each record preserved)
//	{"columns", "rows"}     -> Table
//	null, empty, anything else -> Empty
//
// columns is the optional externally supplied column list for Records.
func DecodePreview(raw json.RawMessage, columns []string) (Preview, error) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return Empty{}, nil
	}
	switch b[0] {
	case '[':
		items, err := decodeRecords(b)
		if err != nil {
			return nil, fmt.Errorf("decode preview records: %w", err)
		}
		return Records{Items: items, Columns: columns}, nil
	case '{':
		var obj struct {
			Columns []string            `json:"columns"`
			Rows    [][]json.RawMessage `json:"rows"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil, fmt.Errorf("decode preview table: %w", err)
		}
		if obj.Columns == nil && obj.Rows == nil {
			return Empty{}, nil
		}
		rows := make([][]Cell, 0, len(obj.Rows))
		for _, r := range obj.Rows {
			row := make([]Cell, len(r))
			for i, c := range r {
				row[i] = cellFromJSON(c)
			}
			rows = append(rows, row)
		}
		return New(obj.Columns, rows), nil
	default:
		return Empty{}, nil
	}
}

func decodeRecords(b []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []Record
	for dec.More() {
		rec, err := decodeRecord(dec, len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRecord(dec *json.Decoder, idx int) (Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return Record{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Record{}, fmt.Errorf("record %d is not an object", idx)
	}
	rec := Record{Values: map[string]Cell{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return Record{}, err
		}
		key, ok := kt.(string)
		if !ok {
			return Record{}, fmt.Errorf("record %d: unexpected key token %v", idx, kt)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return Record{}, fmt.Errorf("record %d key %q: %w", idx, key, err)
		}
		rec.Set(key, cellFromJSON(v))
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// cellFromJSON keeps numbers as json.Number so values round-trip unchanged.
// Nested objects and arrays are carried as their compact JSON text.
func cellFromJSON(raw json.RawMessage) Cell {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return string(b)
		}
		return s
	case 't':
		return true
	case 'f':
		return false
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return string(b)
		}
		return buf.String()
	default:
		return json.Number(b)
	}
}
