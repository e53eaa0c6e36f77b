package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ValueType is the logical type of an entity property value.
type ValueType int

const (
	// TypeAny holds arbitrary JSON (e.g. an observation result)
	TypeAny ValueType = iota
	TypeID
	TypeString
	TypeNumber
	TypeBoolean
	// TypeObject holds a JSON object (properties, parameters, unitOfMeasurement)
	TypeObject
	TypeTimeInstant
	TypeTimeInterval
	// TypeTimeValue holds either an instant or an interval
	TypeTimeValue
	// TypeGeometry holds a GeoJSON document
	TypeGeometry
)

// String returns the string representation of the value type
func (t ValueType) String() string {
	switch t {
	case TypeID:
		return "Id"
	case TypeString:
		return "String"
	case TypeNumber:
		return "Number"
	case TypeBoolean:
		return "Boolean"
	case TypeObject:
		return "Object"
	case TypeTimeInstant:
		return "TimeInstant"
	case TypeTimeInterval:
		return "TimeInterval"
	case TypeTimeValue:
		return "TimeValue"
	case TypeGeometry:
		return "Geometry"
	default:
		return "Any"
	}
}

// IsTime reports whether values of this type are TimeValues
func (t ValueType) IsTime() bool {
	return t == TypeTimeInstant || t == TypeTimeInterval || t == TypeTimeValue
}

// IsJSON reports whether values of this type are stored as serialized JSON
func (t ValueType) IsJSON() bool {
	return t == TypeAny || t == TypeObject || t == TypeGeometry
}

// TimeValue is a time instant or a time interval. Instants have End == Start.
type TimeValue struct {
	Start    time.Time
	End      time.Time
	Interval bool
}

// Instant returns the TimeValue for a single point in time
func Instant(t time.Time) TimeValue {
	t = t.UTC()
	return TimeValue{Start: t, End: t}
}

// NewInterval returns the TimeValue for [start, end]
func NewInterval(start, end time.Time) TimeValue {
	return TimeValue{Start: start.UTC(), End: end.UTC(), Interval: true}
}

// ParseTimeValue parses an ISO 8601 instant or a start/end interval
func ParseTimeValue(s string) (TimeValue, error) {
	if start, end, ok := strings.Cut(s, "/"); ok {
		st, err := time.Parse(time.RFC3339Nano, start)
		if err != nil {
			return TimeValue{}, InvalidEntity("bad interval start %q", start)
		}
		en, err := time.Parse(time.RFC3339Nano, end)
		if err != nil {
			return TimeValue{}, InvalidEntity("bad interval end %q", end)
		}
		if en.Before(st) {
			return TimeValue{}, InvalidEntity("interval %q ends before it starts", s)
		}
		return NewInterval(st, en), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return TimeValue{}, InvalidEntity("bad time instant %q", s)
	}
	return Instant(t), nil
}

// IsZero reports whether no time is set
func (v TimeValue) IsZero() bool {
	return v.Start.IsZero() && v.End.IsZero()
}

func (v TimeValue) String() string {
	if v.Interval {
		return v.Start.Format(time.RFC3339Nano) + "/" + v.End.Format(time.RFC3339Nano)
	}
	return v.Start.Format(time.RFC3339Nano)
}

// Normalize converts a decoded JSON value into the canonical Go value for
// the type. Storage converters produce the same canonical values, so two
// values of one property compare with reflect.DeepEqual.
func (t ValueType) Normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, InvalidEntity("expected a string, got %T", v)
		}
		return s, nil
	case TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, InvalidEntity("expected a number, got %q", n)
			}
			return f, nil
		}
		return nil, InvalidEntity("expected a number, got %T", v)
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, InvalidEntity("expected a boolean, got %T", v)
		}
		return b, nil
	case TypeObject:
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, InvalidEntity("expected an object, got %T", v)
		}
		return m, nil
	case TypeTimeInstant, TypeTimeInterval, TypeTimeValue:
		var tv TimeValue
		switch x := v.(type) {
		case TimeValue:
			tv = x
		case time.Time:
			tv = Instant(x)
		case string:
			parsed, err := ParseTimeValue(x)
			if err != nil {
				return nil, err
			}
			tv = parsed
		default:
			return nil, InvalidEntity("expected a time, got %T", v)
		}
		if t == TypeTimeInstant && tv.Interval {
			return nil, InvalidEntity("expected a time instant, got interval %s", tv)
		}
		if t == TypeTimeInterval && !tv.Interval {
			return nil, InvalidEntity("expected a time interval, got instant %s", tv)
		}
		return tv, nil
	}
	return v, nil
}

// JSONValue converts a canonical value back into its JSON form
func (t ValueType) JSONValue(v interface{}) interface{} {
	if tv, ok := v.(TimeValue); ok {
		return tv.String()
	}
	return v
}
