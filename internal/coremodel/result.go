package coremodel

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/fields"
)

// Result type codes stored in RESULT_TYPE
const (
	resultNumber  int64 = 0
	resultBoolean int64 = 1
	resultString  int64 = 2
	resultJSON    int64 = 3
)

// addEntryResult stores an observation result in typed columns. Numbers and
// booleans also fill RESULT_STRING so string comparisons match them.
func addEntryResult(r *fields.Registry) {
	columns := map[string]string{
		fields.KeyType:    "RESULT_TYPE",
		fields.KeyNumber:  "RESULT_NUMBER",
		fields.KeyString:  "RESULT_STRING",
		fields.KeyBoolean: "RESULT_BOOLEAN",
		fields.KeyJSON:    "RESULT_JSON",
	}
	write := func(e *model.Entity, values map[string]interface{}) error {
		row, err := resultColumns(e.Get(EPResult))
		if err != nil {
			return err
		}
		for key, column := range columns {
			values[column] = row[key]
		}
		return nil
	}

	r.AddEntry(EPResult, fields.Converter{
		Read: func(v fields.Values, e *model.Entity) error {
			value, err := readResult(v)
			if err != nil {
				return err
			}
			e.Set(EPResult, value)
			return nil
		},
		Insert: func(e *model.Entity, insert map[string]interface{}) error {
			return write(e, insert)
		},
		Update: func(e *model.Entity, update map[string]interface{}, msg *model.ChangeMessage) error {
			if err := write(e, update); err != nil {
				return err
			}
			msg.AddField(EPResult)
			return nil
		},
	},
		fields.Field{Key: fields.KeyType, Column: columns[fields.KeyType]},
		fields.Field{Key: fields.KeyNumber, Column: columns[fields.KeyNumber]},
		fields.Field{Key: fields.KeyString, Column: columns[fields.KeyString]},
		fields.Field{Key: fields.KeyBoolean, Column: columns[fields.KeyBoolean]},
		fields.Field{Key: fields.KeyJSON, Column: columns[fields.KeyJSON]},
	)
}

// resultColumns returns the column values of a result keyed by field key
func resultColumns(v interface{}) (map[string]interface{}, error) {
	row := map[string]interface{}{}
	switch r := v.(type) {
	case nil:
	case float64:
		row[fields.KeyType] = resultNumber
		row[fields.KeyNumber] = r
		row[fields.KeyString] = strconv.FormatFloat(r, 'g', -1, 64)
	case int64:
		row[fields.KeyType] = resultNumber
		row[fields.KeyNumber] = float64(r)
		row[fields.KeyString] = strconv.FormatInt(r, 10)
	case int:
		row[fields.KeyType] = resultNumber
		row[fields.KeyNumber] = float64(r)
		row[fields.KeyString] = strconv.Itoa(r)
	case json.Number:
		f, err := r.Float64()
		if err != nil {
			return nil, model.InvalidEntity("result %q is not a number", r)
		}
		row[fields.KeyType] = resultNumber
		row[fields.KeyNumber] = f
		row[fields.KeyString] = r.String()
	case bool:
		row[fields.KeyType] = resultBoolean
		row[fields.KeyBoolean] = r
		row[fields.KeyString] = strconv.FormatBool(r)
	case string:
		row[fields.KeyType] = resultString
		row[fields.KeyString] = r
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return nil, model.InvalidEntity("result cannot be stored as json: %v", err)
		}
		row[fields.KeyType] = resultJSON
		row[fields.KeyJSON] = string(data)
	}
	return row, nil
}

func readResult(v fields.Values) (interface{}, error) {
	if v[fields.KeyType] == nil {
		return nil, nil
	}
	code, err := toInt64(v[fields.KeyType])
	if err != nil {
		return nil, err
	}
	switch code {
	case resultNumber:
		return toFloat64(v[fields.KeyNumber])
	case resultBoolean:
		switch b := v[fields.KeyBoolean].(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case nil:
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read %T as a boolean result", v[fields.KeyBoolean])
	case resultString:
		switch s := v[fields.KeyString].(type) {
		case []byte:
			return string(s), nil
		default:
			return s, nil
		}
	case resultJSON:
		var raw []byte
		switch j := v[fields.KeyJSON].(type) {
		case nil:
			return nil, nil
		case []byte:
			raw = j
		case string:
			raw = []byte(j)
		default:
			return j, nil
		}
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("invalid json result: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown result type %d", code)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	}
	return 0, fmt.Errorf("cannot read %T as a result type", v)
}

func toFloat64(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	}
	return nil, fmt.Errorf("cannot read %T as a number result", v)
}
