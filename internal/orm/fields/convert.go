package fields

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/conduit-lang/sensorthings/internal/model"
)

func identity(v interface{}) (interface{}, error) {
	return v, nil
}

func toString(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return fmt.Sprint(v), nil
}

func toFloat(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return nil, fmt.Errorf("cannot read %T as a number", v)
}

func toBool(v interface{}) (interface{}, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case []byte:
		return strconv.ParseBool(string(b))
	case string:
		return strconv.ParseBool(b)
	}
	return nil, fmt.Errorf("cannot read %T as a boolean", v)
}

// decodeJSON reads a jsonb column. Drivers deliver it as text or bytes.
func decodeJSON(v interface{}) (interface{}, error) {
	var raw []byte
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return v, nil
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid json column value: %w", err)
	}
	return out, nil
}

func encodeJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, model.InvalidEntity("value cannot be stored as json: %v", err)
	}
	return string(data), nil
}

func toTime(v interface{}) (time.Time, bool, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return t.UTC(), true, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed.UTC(), err == nil, err
	case []byte:
		parsed, err := time.Parse(time.RFC3339Nano, string(t))
		return parsed.UTC(), err == nil, err
	}
	return time.Time{}, false, fmt.Errorf("cannot read %T as a time", v)
}

func toInstant(v interface{}) (interface{}, error) {
	t, ok, err := toTime(v)
	if err != nil || !ok {
		return nil, err
	}
	return model.Instant(t), nil
}

func fromInstant(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case model.TimeValue:
		return t.Start, nil
	case time.Time:
		return t, nil
	}
	return nil, model.InvalidEntity("expected a time instant, got %T", v)
}

func toTimeValue(start, end interface{}, interval bool) (interface{}, error) {
	st, hasStart, err := toTime(start)
	if err != nil {
		return nil, err
	}
	en, hasEnd, err := toTime(end)
	if err != nil {
		return nil, err
	}
	if !hasStart && !hasEnd {
		return nil, nil
	}
	if !hasStart {
		st = en
	}
	if !hasEnd {
		en = st
	}
	if !interval && st.Equal(en) {
		return model.Instant(st), nil
	}
	return model.NewInterval(st, en), nil
}
