package enum

import (
	"fmt"
	"strconv"
	"time"
)

// ValueKind discriminates the closed set of attribute value types
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindBool
)

// Value is a single member attribute: a string, an integer, a boolean, or
// null. Values are plain comparable structs so they can key maps and be
// compared with ==.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flag bool
}

// Null returns the null value
func Null() Value {
	return Value{kind: KindNull}
}

// String returns a string value
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int returns an integer value
func Int(n int64) Value {
	return Value{kind: KindInt, num: n}
}

// Bool returns a boolean value
func Bool(b bool) Value {
	return Value{kind: KindBool, flag: b}
}

// ValueOf converts a database-level value into a Value. Integer widths
// collapse to int64, []byte collapses to string, timestamps render as
// RFC 3339 strings. Anything else is rejected.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(x), nil
	case []byte:
		return String(string(x)), nil
	case int:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return String(x.Format(time.RFC3339Nano)), nil
	case Value:
		return x, nil
	default:
		return Value{}, fmt.Errorf("unsupported attribute value type %T", v)
	}
}

// Kind returns the value's kind
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Str returns the string payload and whether the value is a string
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Int64 returns the integer payload and whether the value is an integer
func (v Value) Int64() (int64, bool) {
	return v.num, v.kind == KindInt
}

// Boolean returns the boolean payload and whether the value is a boolean
func (v Value) Boolean() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// Native returns the value as a plain Go value suitable for a database
// driver parameter or JSON encoding
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindBool:
		return v.flag
	default:
		return nil
	}
}

// String renders the value for logs and error messages
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return "<null>"
	}
}
