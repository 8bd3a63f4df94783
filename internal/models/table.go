package models

import (
	"encoding/json"
	"strconv"
)

// Kind tags the scalar type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
)

// Value is a single table cell: a string, a number, or null.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
}

func Null() Value                { return Value{Kind: KindNull} }
func IntValue(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders the value the way it appears in previews. Nulls render as NaN.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindString:
		return v.Str
	default:
		return "NaN"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// Row holds one value per table column, in column order.
type Row []Value

// Table is an immutable, fully materialised dataset parsed from an upload.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Head returns at most n leading rows. The slice aliases the table.
func (t *Table) Head(n int) []Row {
	if t == nil || n <= 0 {
		return nil
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// Get returns the value of the named column in row i.
func (t *Table) Get(i int, column string) (Value, bool) {
	if t == nil || i < 0 || i >= len(t.Rows) {
		return Value{}, false
	}
	for idx, name := range t.Columns {
		if name == column {
			return t.Rows[i][idx], true
		}
	}
	return Value{}, false
}
