package table

// Preview is the closed set of preview shapes the service and the local
// parser produce: Table (canonical), Records (array of row records) and Empty.
type Preview interface {
	preview()
}

// Record is one row record with its keys in document order.
type Record struct {
	Keys   []string
	Values map[string]Cell
}

// RecordOf builds a Record from alternating key/value pairs.
func RecordOf(pairs ...any) Record {
	r := Record{Values: make(map[string]Cell, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		var v Cell = ""
		if i+1 < len(pairs) {
			v = pairs[i+1]
		}
		r.Set(k, v)
	}
	return r
}

// Set assigns a value, appending the key on first use.
func (r *Record) Set(key string, v Cell) {
	if r.Values == nil {
		r.Values = make(map[string]Cell)
	}
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = v
}

// Records is an array of row records plus an optional externally supplied
// column list (the service reports it separately from the records).
type Records struct {
	Items   []Record
	Columns []string
}

func (Records) preview() {}

// Empty is the explicit "no preview" shape.
type Empty struct{}

func (Empty) preview() {}

// Normalize maps any preview shape to a canonical Table. It is deterministic
// and idempotent: Normalize(Normalize(p)) equals Normalize(p).
func Normalize(p Preview) Table {
	switch v := p.(type) {
	case Table:
		return New(v.Columns, v.Rows)
	case Records:
		return v.normalize()
	default:
		return Table{Columns: []string{}, Rows: [][]Cell{}}
	}
}

func (r Records) normalize() Table {
	columns := r.Columns
	if len(columns) == 0 && len(r.Items) > 0 {
		columns = r.Items[0].Keys
	}
	rows := make([][]Cell, 0, len(r.Items))
	for _, rec := range r.Items {
		row := make([]Cell, len(columns))
		for i, c := range columns {
			v, ok := rec.Values[c]
			if !ok || v == nil {
				v = ""
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return New(columns, rows)
}
