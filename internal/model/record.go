package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies which scalar kind a Value holds.
type ValueKind int

// Permitted value kinds for survey cells.
const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a single survey cell: a string, a number, a boolean, or null.
// Arrays and objects are rejected on decode; survey records are flat.
type Value struct {
	str  string
	num  float64
	kind ValueKind
	b    bool
}

// StringValue creates a string-kind Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue creates a number-kind Value.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue creates a boolean-kind Value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// NullValue creates a null Value.
func NullValue() Value { return Value{kind: KindNull} }

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float64 returns the numeric value and whether the value is a number.
func (v Value) Float64() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Bool returns the boolean value and whether the value is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// String returns a display form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// MarshalJSON encodes the value as the underlying JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON scalar; arrays and objects are errors.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode survey value: %w", err)
	}

	switch val := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(val)
	case bool:
		*v = BoolValue(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric survey value %q: %w", val.String(), err)
		}
		*v = NumberValue(f)
	default:
		return fmt.Errorf("survey values must be scalar, got %T", raw)
	}

	return nil
}

// SurveyRecord is a single survey response keyed by column name.
type SurveyRecord map[string]Value

// Columns returns the sorted union of column names across all records.
func Columns(records []SurveyRecord) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for name := range record {
			seen[name] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	return columns
}
