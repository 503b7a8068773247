package types

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
)

// String returns the kind name for logs and cache keys.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is the closed variant used for every cell and every lookup argument:
// string, int, float, bool, time or null. Using a closed variant instead of
// interface{} keeps the equality rules explicit and testable.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Null returns the null value. Null compares equal to nothing, including
// another Null, so a lookup for a missing cell never matches.
func Null() Value { return Value{kind: KindNull} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time wraps a timestamp.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Kind reports the concrete type held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the underlying string. Zero value for non-string kinds.
func (v Value) Str() string { return v.s }

// IntVal returns the underlying integer. Zero for non-int kinds.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the underlying float. Zero for non-float kinds.
func (v Value) FloatVal() float64 { return v.f }

// BoolVal returns the underlying bool. False for non-bool kinds.
func (v Value) BoolVal() bool { return v.b }

// TimeVal returns the underlying timestamp. Zero for non-time kinds.
func (v Value) TimeVal() time.Time { return v.t }

// Equal implements the engine's value-equality policy:
//
//   - int and float compare numerically, so Int(1) == Float(1.0);
//   - string never silently equals a number: String("1") != Int(1);
//   - bool only equals bool, time only equals time (same instant);
//   - null equals nothing, not even null.
//
// The policy is strict about strings because auxiliary files routinely hold
// identifier columns ("E001", "0042") where numeric coercion would merge
// distinct keys.
func (v Value) Equal(o Value) bool {
	if v.kind == KindNull || o.kind == KindNull {
		return false
	}
	switch v.kind {
	case KindString:
		return o.kind == KindString && v.s == o.s
	case KindBool:
		return o.kind == KindBool && v.b == o.b
	case KindTime:
		return o.kind == KindTime && v.t.Equal(o.t)
	case KindInt:
		switch o.kind {
		case KindInt:
			return v.i == o.i
		case KindFloat:
			return float64(v.i) == o.f
		}
		return false
	case KindFloat:
		switch o.kind {
		case KindInt:
			return v.f == float64(o.i)
		case KindFloat:
			return v.f == o.f
		}
		return false
	}
	return false
}

// Key returns a canonical string form usable as an exact-match index key,
// and whether one exists. Int and float share a numeric key space so that
// the index agrees with Equal: Int(1) and Float(1.0) produce the same key.
// Null has no key.
func (v Value) Key() (string, bool) {
	switch v.kind {
	case KindString:
		return "s:" + v.s, true
	case KindBool:
		if v.b {
			return "b:1", true
		}
		return "b:0", true
	case KindTime:
		return "t:" + strconv.FormatInt(v.t.UnixNano(), 10), true
	case KindInt:
		return "n:" + strconv.FormatInt(v.i, 10), true
	case KindFloat:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) && math.Abs(v.f) < 1e15 {
			return "n:" + strconv.FormatInt(int64(v.f), 10), true
		}
		return "n:" + strconv.FormatFloat(v.f, 'g', -1, 64), true
	default:
		return "", false
	}
}

// String renders the value for messages and tracked operations.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(timeDisplayLayout)
	default:
		return ""
	}
}

const timeDisplayLayout = "2006-01-02"

// Date layouts accepted by ParseValue, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseValue infers a typed Value from raw cell text. The rules mirror how
// the data files are actually authored:
//
//   - empty text is null;
//   - "true"/"false" (any case) is bool;
//   - integer text is int, except when it carries a leading zero
//     ("007", "0042"): identifier columns depend on those zeros, so the
//     text stays a string;
//   - decimal text is float;
//   - RFC3339 / ISO / US date text is time;
//   - everything else is a string.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null()
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if hasLeadingZero(s) {
			return String(s)
		}
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if hasLeadingZero(s) {
			return String(s)
		}
		return Float(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time(t)
		}
	}
	return String(s)
}

func hasLeadingZero(s string) bool {
	digits := strings.TrimLeft(s, "+-")
	return len(digits) > 1 && digits[0] == '0' && digits[1] != '.'
}
