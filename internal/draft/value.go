package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Value is a field value: a string, a number, or null. The zero Value is
// null. It encodes as the bare JSON scalar.
type Value struct {
	kind ValueKind
	str  string
	num  float64
}

// ErrNotFinite rejects NaN and infinite numbers, which have no JSON form.
var ErrNotFinite = errors.New("field value is not a finite number")

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Str() string { return v.str }

func (v Value) Num() float64 { return v.num }

// Finite is false only for NaN and infinite numbers.
func (v Value) Finite() bool {
	return v.kind != KindNumber || !(math.IsNaN(v.num) || math.IsInf(v.num, 0))
}

// Text is the display form used by renderers and prompts. Null renders empty.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Empty reports whether the value counts as missing for "required" rules.
func (v Value) Empty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

func (v Value) Equal(other Value) bool {
	return v == other
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if !v.Finite() {
			return nil, fmt.Errorf("%w: %v", ErrNotFinite, v.num)
		}
		return json.Marshal(v.num)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = Null()
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = Number(n)
		return nil
	}
	return fmt.Errorf("field value must be a string, number or null: %s", trimmed)
}

// ParseValue turns command-line style input into a Value: "null" is null,
// a finite float written in its canonical form is a number, everything
// else a string. "00501", "1.50" and "inf" stay strings.
func ParseValue(raw string) Value {
	if raw == "null" {
		return Null()
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		value := Number(n)
		if value.Finite() && strconv.FormatFloat(n, 'f', -1, 64) == raw {
			return value
		}
	}
	return String(raw)
}

// Fields maps field keys to values. Any string key is accepted; integrity is
// checked separately by OrphanKeys and Schema.Validate.
type Fields map[string]Value

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	cloned := make(Fields, len(f))
	for key, value := range f {
		cloned[key] = value
	}
	return cloned
}
