package dates

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Kind reports which representation a RawDate was built from.
type Kind string

const (
	KindNone   Kind = "none"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindTime   Kind = "time"
)

// RawDate is a createDate value exactly as the data layer delivered it:
// epoch seconds, a string in one of several shapes, or a time value.
// It is never interpreted here; see Normalizer.
type RawDate struct {
	kind Kind
	num  float64
	str  string
	t    time.Time
}

// FromSeconds wraps a numeric epoch-seconds value.
func FromSeconds(sec float64) RawDate {
	return RawDate{kind: KindNumber, num: sec}
}

// FromString wraps a string date of any shape.
func FromString(s string) RawDate {
	return RawDate{kind: KindString, str: s}
}

// FromTime wraps a native time value.
func FromTime(t time.Time) RawDate {
	return RawDate{kind: KindTime, t: t}
}

// Kind returns the representation kind.
func (r RawDate) Kind() Kind {
	if r.kind == "" {
		return KindNone
	}
	return r.kind
}

// IsZero reports whether no value was supplied.
func (r RawDate) IsZero() bool {
	return r.Kind() == KindNone
}

// String renders the raw value for logs and storage.
func (r RawDate) String() string {
	switch r.Kind() {
	case KindNumber:
		return strconv.FormatFloat(r.num, 'f', -1, 64)
	case KindString:
		return r.str
	case KindTime:
		return r.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Decode rebuilds a RawDate from the pair produced by Kind and String.
// Unknown kinds decode as strings so nothing is lost.
func Decode(kind Kind, value string) RawDate {
	switch kind {
	case KindNone, "":
		return RawDate{}
	case KindNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return FromSeconds(f)
		}
		return FromString(value)
	case KindTime:
		if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return FromTime(t)
		}
		return FromString(value)
	default:
		return FromString(value)
	}
}

// UnmarshalJSON accepts a number, a string or null. Any other JSON token
// is kept as its literal text; normalization will then fall back.
// Decoding never fails because of the date's shape.
func (r *RawDate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = RawDate{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = FromString(s)
	default:
		if f, err := strconv.ParseFloat(string(data), 64); err == nil {
			*r = FromSeconds(f)
			return nil
		}
		*r = FromString(string(data))
	}
	return nil
}

// MarshalJSON writes the value back in its original representation.
func (r RawDate) MarshalJSON() ([]byte, error) {
	switch r.Kind() {
	case KindNumber:
		return []byte(strconv.FormatFloat(r.num, 'f', -1, 64)), nil
	case KindString:
		return json.Marshal(r.str)
	case KindTime:
		return json.Marshal(r.t.Format(time.RFC3339Nano))
	default:
		return []byte("null"), nil
	}
}
