package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind int

const (
	NullKind Kind = iota
	IntegerKind
	RealKind
	TextKind
	BinaryKind
)

func (kind Kind) String() string {
	switch kind {
	case NullKind:
		return "null"
	case IntegerKind:
		return "integer"
	case RealKind:
		return "real"
	case TextKind:
		return "text"
	case BinaryKind:
		return "binary"
	default:
		return fmt.Sprintf("Kind(%d)", int(kind))
	}
}

// Value is a single column value. The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

func Null() Value              { return Value{} }
func Integer(i int64) Value    { return Value{kind: IntegerKind, i: i} }
func Real(f float64) Value     { return Value{kind: RealKind, f: f} }
func Text(s string) Value      { return Value{kind: TextKind, s: s} }
func Binary(b []byte) Value    { return Value{kind: BinaryKind, b: b} }
func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == NullKind }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string    { return v.s }
func (v Value) Bytes() []byte  { return v.b }

// Any returns the value as a plain Go value (nil, int64, float64, string or []byte).
func (v Value) Any() any {
	switch v.kind {
	case IntegerKind:
		return v.i
	case RealKind:
		return v.f
	case TextKind:
		return v.s
	case BinaryKind:
		return v.b
	default:
		return nil
	}
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case IntegerKind:
		return strconv.FormatInt(v.i, 10)
	case RealKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TextKind:
		return v.s
	case BinaryKind:
		return fmt.Sprintf("x'%X'", v.b)
	default:
		return "NULL"
	}
}

// MarshalJSON never fails. Non-finite reals encode as the strings "NaN",
// "Infinity" and "-Infinity".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case IntegerKind:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case RealKind:
		switch {
		case math.IsNaN(v.f):
			return []byte(`"NaN"`), nil
		case math.IsInf(v.f, 1):
			return []byte(`"Infinity"`), nil
		case math.IsInf(v.f, -1):
			return []byte(`"-Infinity"`), nil
		}
		return json.Marshal(v.f)
	case TextKind:
		return json.Marshal(v.s)
	case BinaryKind:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes numbers without a fraction or exponent as integers.
// Binary values cannot be told apart from text once encoded and decode as text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = Null()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		if b {
			*v = Integer(1)
		} else {
			*v = Integer(0)
		}
		return nil
	}

	raw := string(data)
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			*v = Integer(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid value %s: %w", raw, err)
	}
	*v = Real(f)
	return nil
}

// Field is one column of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered column name to value mapping. Order follows the engine's
// column order.
type Record []Field

// Get returns the value of the named column.
func (record Record) Get(name string) (Value, bool) {
	for _, field := range record {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value of an existing column in place or appends a new one.
func (record Record) Set(name string, value Value) Record {
	for i := range record {
		if record[i].Name == name {
			record[i].Value = value
			return record
		}
	}
	return append(record, Field{Name: name, Value: value})
}

// Columns returns the column names in order.
func (record Record) Columns() []string {
	names := make([]string, len(record))
	for i, field := range record {
		names[i] = field.Name
	}
	return names
}

func (record Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range record {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the key order of the encoded object.
func (record *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	out := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var value Value
		if err := value.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		out = out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*record = out
	return nil
}
