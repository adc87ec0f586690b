package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/invopop/jsonschema"
)

// ScalarKind tags the variant held by a ScalarValue.
type ScalarKind string

const (
	KindString ScalarKind = "string"
	KindNumber ScalarKind = "number"
	KindBool   ScalarKind = "bool"
	KindDate   ScalarKind = "date"
)

// ISODate is the day-precision layout accepted for dates.
const ISODate = "2006-01-02"

// ScalarValue is a closed variant over string, number, bool and date. It is the value
// type of every open-ended key/value map in the payloads (custom filters, preferences,
// memory). Dates travel as ISO strings and are recognised on decode.
type ScalarValue struct {
	kind ScalarKind
	str  string
	num  float64
	b    bool
	date time.Time
}

func StringValue(s string) ScalarValue { return ScalarValue{kind: KindString, str: s} }

func NumberValue(n float64) ScalarValue { return ScalarValue{kind: KindNumber, num: n} }

func BoolValue(b bool) ScalarValue { return ScalarValue{kind: KindBool, b: b} }

// DateValue keeps the original text so date-only values round-trip unchanged.
func DateValue(t time.Time) ScalarValue {
	text := t.Format(time.RFC3339)
	if t.Equal(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())) {
		text = t.Format(ISODate)
	}
	return ScalarValue{kind: KindDate, str: text, date: t}
}

func (v ScalarValue) Kind() ScalarKind { return v.kind }

func (v ScalarValue) IsZero() bool { return v.kind == "" }

func (v ScalarValue) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

func (v ScalarValue) Number() (float64, bool) { return v.num, v.kind == KindNumber }

func (v ScalarValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v ScalarValue) Time() (time.Time, bool) { return v.date, v.kind == KindDate }

// Interface returns the plain Go value used as a query argument.
func (v ScalarValue) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindString, KindDate:
		return v.str
	}
	return nil
}

func (v ScalarValue) Equal(o ScalarValue) bool {
	return v.kind == o.kind && v.String() == o.String()
}

func (v ScalarValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindString, KindDate:
		return json.Marshal(v.str)
	}
	return []byte("null"), nil
}

func (v *ScalarValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("scalar: empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ParseScalarString(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case '{', '[', 'n':
		return fmt.Errorf("scalar: expected string, number or boolean, got %s", data)
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("scalar: %w", err)
		}
		*v = NumberValue(n)
		return nil
	}
}

// ParseScalarString classifies s as a date when it is YYYY-MM-DD or RFC 3339.
func ParseScalarString(s string) ScalarValue {
	if t, ok := ParseDate(s); ok {
		return ScalarValue{kind: KindDate, str: s, date: t}
	}
	return StringValue(s)
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps.
func ParseDate(s string) (time.Time, bool) {
	if len(s) == len(ISODate) {
		if t, err := time.Parse(ISODate, s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (ScalarValue) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "number"},
			{Type: "boolean"},
		},
	}
}

// ScalarMap is an open key/value map restricted to scalar values.
type ScalarMap map[string]ScalarValue
