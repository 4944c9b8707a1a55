// Package dataset defines the in-memory data model used by the pipeline: a closed
// scalar Value variant, loosely-typed Rows, named DataSets and the BizModel that
// groups them together with contextual tag parameters.
package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull   Kind = iota // Absent or explicit null
	KindBool               // true/false
	KindNumber             // float64
	KindString             // UTF-8 text
	KindDate               // time.Time
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a dynamically typed scalar. The zero value is Null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	t    time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Date wraps a point in time.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// FromAny converts a Go value, as produced by encoding/json or database/sql drivers,
// into a Value. Unsupported composite values are rendered to their JSON text.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null()
	case Value:
		return val
	case bool:
		return Bool(val)
	case string:
		return String(val)
	case []byte:
		return String(string(val))
	case float64:
		return Number(val)
	case float32:
		return Number(float64(val))
	case int:
		return Number(float64(val))
	case int8:
		return Number(float64(val))
	case int16:
		return Number(float64(val))
	case int32:
		return Number(float64(val))
	case int64:
		return Number(float64(val))
	case uint:
		return Number(float64(val))
	case uint8:
		return Number(float64(val))
	case uint16:
		return Number(float64(val))
	case uint32:
		return Number(float64(val))
	case uint64:
		return Number(float64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return Number(f)
		}
		return String(val.String())
	case time.Time:
		return Date(val)
	case *time.Time:
		if val == nil {
			return Null()
		}
		return Date(*val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return String(fmt.Sprintf("%v", val))
		}
		return String(string(raw))
	}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsNumber returns the numeric interpretation of v. Strings that parse as a
// float are numeric; every other non-number kind is not.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsNumeric reports whether v coerces to a number.
func (v Value) IsNumeric() bool {
	_, ok := v.AsNumber()
	return ok
}

// AsString returns the canonical text form of v. Null renders as "".
func (v Value) AsString() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindDate:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// AsTime returns the time held by v. Strings in RFC 3339 or YYYY-MM-DD form are
// accepted as well.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindDate:
		return v.t, true
	case KindString:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v.str); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Truthy returns the boolean interpretation used by filters and logical operators.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		if f, ok := v.AsNumber(); ok {
			return f != 0
		}
		switch strings.ToLower(strings.TrimSpace(v.str)) {
		case "", "false":
			return false
		}
		return true
	case KindDate:
		return !v.t.IsZero()
	default:
		return false
	}
}

// Any returns v as a plain Go value suitable for encoding/json or database/sql.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindDate:
		return v.t
	default:
		return nil
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.AsString()
}

// Compare orders two values. Null sorts first and numeric values sort before
// non-numeric ones. Numeric operands compare by value, dates chronologically,
// booleans false before true, anything else by text.
func Compare(a, b Value) int {
	if a.kind == KindNull || b.kind == KindNull {
		switch {
		case a.kind == b.kind:
			return 0
		case a.kind == KindNull:
			return -1
		default:
			return 1
		}
	}
	fa, aNum := a.AsNumber()
	fb, bNum := b.AsNumber()
	switch {
	case aNum && bNum:
		return compareFloat(fa, fb)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	if a.kind == KindDate && b.kind == KindDate {
		return a.t.Compare(b.t)
	}
	if a.kind == KindBool && b.kind == KindBool {
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(a.AsString(), b.AsString())
}

// Equal reports whether a and b compare equal. Null is only equal to null.
func Equal(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return Compare(a, b) == 0
}

// Identical reports whether a and b hold the same kind and the same value,
// without the numeric coercion Equal applies. Strings compare byte for byte
// and dates by instant.
func Identical(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num || (math.IsNaN(a.num) && math.IsNaN(b.num))
	case KindDate:
		return a.t.Equal(b.t)
	default:
		return a.str == b.str
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MarshalJSON renders v as a JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.num, 0) || math.IsNaN(v.num) {
			return []byte("null"), nil
		}
	case KindDate:
		return json.Marshal(v.t.Format(time.RFC3339))
	}
	return json.Marshal(v.Any())
}

// UnmarshalJSON reads any JSON scalar. Objects and arrays are kept as JSON text.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	*v = FromAny(raw)
	return nil
}

// KeyOf encodes a tuple of values into a string usable as a map key. Values that
// compare equal under Equal produce the same key.
func KeyOf(values []Value) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		if f, ok := v.AsNumber(); ok {
			sb.WriteByte('n')
			sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			continue
		}
		switch v.kind {
		case KindNull:
			sb.WriteByte('0')
		case KindDate:
			sb.WriteByte('d')
			sb.WriteString(v.t.UTC().Format(time.RFC3339Nano))
		default:
			sb.WriteByte('s')
			sb.WriteString(v.AsString())
		}
	}
	return sb.String()
}

// CompareTuples orders two equally sized tuples field by field.
func CompareTuples(a, b []Value) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}
