package model

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	// KindString holds a UTF-8 string.
	KindString Kind = iota
	// KindBool holds a boolean.
	KindBool
	// KindInt holds a signed 64-bit integer.
	KindInt
	// KindDouble holds a 64-bit float.
	KindDouble
	// KindBytes holds an opaque byte sequence.
	KindBytes
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is one telemetry attribute value: a string, bool, int64, float64,
// or byte sequence. The zero Value is the empty string. Values are
// immutable once constructed; compare them with Equal.
type Value struct {
	kind Kind
	str  string
	num  uint64
	raw  []byte
}

// StringValue returns a Value holding s.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// IntValue returns a Value holding i.
func IntValue(i int64) Value {
	return Value{kind: KindInt, num: uint64(i)}
}

// DoubleValue returns a Value holding f.
func DoubleValue(f float64) Value {
	return Value{kind: KindDouble, num: math.Float64bits(f)}
}

// BytesValue returns a Value holding a copy of b.
func BytesValue(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte(nil), b...)}
}

// Kind reports which variant the Value holds.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string variant; zero value for other kinds.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.str
}

// Bool returns the bool variant; zero value for other kinds.
func (v Value) Bool() bool {
	return v.kind == KindBool && v.num != 0
}

// Int returns the int variant; zero value for other kinds.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		return 0
	}
	return int64(v.num)
}

// Double returns the double variant; zero value for other kinds.
func (v Value) Double() float64 {
	if v.kind != KindDouble {
		return 0
	}
	return math.Float64frombits(v.num)
}

// Bytes returns a copy of the bytes variant; nil for other kinds.
func (v Value) Bytes() []byte {
	if v.kind != KindBytes {
		return nil
	}
	return append([]byte(nil), v.raw...)
}

// String renders the value as text: bools via strconv, numbers in their
// shortest form, bytes as standard base64.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.raw)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return v.num == o.num
	}
}

// MarshalJSON encodes the value as a plain JSON scalar. Byte sequences
// encode as base64 text, so they read back as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.Bool())
	case KindInt:
		return json.Marshal(v.Int())
	case KindDouble:
		return json.Marshal(v.Double())
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.raw))
	default:
		return nil, fmt.Errorf("marshal attribute value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON decodes a JSON scalar. Numbers become int values when they
// parse as integers and double values otherwise. Composite JSON (arrays,
// objects) degrades to its raw text; null becomes the empty string.
// Decoding never loses the input.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("unmarshal attribute value: %w", err)
	}
	switch t := raw.(type) {
	case string:
		*v = StringValue(t)
	case bool:
		*v = BoolValue(t)
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			*v = IntValue(i)
			break
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("unmarshal attribute value %q: %w", t.String(), err)
		}
		*v = DoubleValue(f)
	case nil:
		*v = StringValue("")
	default:
		*v = StringValue(string(data))
	}
	return nil
}
