package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID is an opaque entity identifier. The concrete value type is fixed for a
// whole registry by its IDCodec; code outside the codec never inspects it.
type ID struct {
	value interface{}
}

// NewID wraps a codec-native value
func NewID(v interface{}) ID {
	return ID{value: v}
}

// Value returns the codec-native value
func (id ID) Value() interface{} {
	return id.value
}

// IsZero reports whether the id is unset
func (id ID) IsZero() bool {
	return id.value == nil
}

func (id ID) String() string {
	if id.value == nil {
		return ""
	}
	return fmt.Sprint(id.value)
}

// IDCodec converts ids between their URL, JSON and storage representations.
type IDCodec interface {
	// Name is the configuration name of the codec
	Name() string
	// Parse reads the literal found between the parentheses of a path segment
	Parse(literal string) (ID, error)
	// Literal renders the id the way Parse accepts it
	Literal(id ID) string
	FromJSON(v interface{}) (ID, error)
	ToJSON(id ID) interface{}
	FromStorage(v interface{}) (ID, error)
	ToStorage(id ID) interface{}
	// Generate returns a fresh id, or false when the database generates ids
	Generate() (ID, bool)
}

// IDCodecByName returns the codec configured by persistence.id_type
func IDCodecByName(name string) (IDCodec, error) {
	switch strings.ToLower(name) {
	case "", "long":
		return LongIDs{}, nil
	case "uuid":
		return UUIDIDs{}, nil
	case "string":
		return StringIDs{}, nil
	}
	return nil, fmt.Errorf("unknown id type %q", name)
}

// LongIDs stores ids as 64-bit integers generated by the database.
type LongIDs struct{}

func (LongIDs) Name() string { return "long" }

func (LongIDs) Parse(literal string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(literal), 10, 64)
	if err != nil {
		return ID{}, InvalidPath("id %q is not a number", literal)
	}
	return NewID(n), nil
}

func (LongIDs) Literal(id ID) string {
	return id.String()
}

func (c LongIDs) FromJSON(v interface{}) (ID, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return ID{}, InvalidEntity("id %v is not an integer", n)
		}
		return NewID(int64(n)), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return ID{}, InvalidEntity("id %v is not an integer", n)
		}
		return NewID(i), nil
	}
	return c.FromStorage(v)
}

func (LongIDs) ToJSON(id ID) interface{} {
	return id.value
}

func (LongIDs) FromStorage(v interface{}) (ID, error) {
	switch n := v.(type) {
	case int64:
		return NewID(n), nil
	case int32:
		return NewID(int64(n)), nil
	case int:
		return NewID(int64(n)), nil
	case []byte:
		return LongIDs{}.Parse(string(n))
	case string:
		return LongIDs{}.Parse(n)
	case nil:
		return ID{}, nil
	}
	return ID{}, InvalidEntity("unsupported id value %T", v)
}

func (LongIDs) ToStorage(id ID) interface{} {
	return id.value
}

func (LongIDs) Generate() (ID, bool) {
	return ID{}, false
}

// UUIDIDs stores ids as UUIDs generated by the server.
type UUIDIDs struct{}

func (UUIDIDs) Name() string { return "uuid" }

func (UUIDIDs) Parse(literal string) (ID, error) {
	u, err := uuid.Parse(unquote(literal))
	if err != nil {
		return ID{}, InvalidPath("id %q is not a uuid", literal)
	}
	return NewID(u), nil
}

func (UUIDIDs) Literal(id ID) string {
	return "'" + id.String() + "'"
}

func (c UUIDIDs) FromJSON(v interface{}) (ID, error) {
	s, ok := v.(string)
	if !ok {
		return ID{}, InvalidEntity("id %v is not a uuid string", v)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, InvalidEntity("id %q is not a uuid", s)
	}
	return NewID(u), nil
}

func (UUIDIDs) ToJSON(id ID) interface{} {
	return id.String()
}

func (UUIDIDs) FromStorage(v interface{}) (ID, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return NewID(u), nil
	case [16]byte:
		return NewID(uuid.UUID(u)), nil
	case []byte:
		if len(u) == 16 {
			parsed, err := uuid.FromBytes(u)
			if err != nil {
				return ID{}, err
			}
			return NewID(parsed), nil
		}
		return UUIDIDs{}.FromStorage(string(u))
	case string:
		parsed, err := uuid.Parse(u)
		if err != nil {
			return ID{}, InvalidEntity("id %q is not a uuid", u)
		}
		return NewID(parsed), nil
	case nil:
		return ID{}, nil
	}
	return ID{}, InvalidEntity("unsupported id value %T", v)
}

func (UUIDIDs) ToStorage(id ID) interface{} {
	return id.value
}

func (UUIDIDs) Generate() (ID, bool) {
	return NewID(uuid.New()), true
}

// StringIDs stores ids as text. Generated ids use the UUID string form.
type StringIDs struct{}

func (StringIDs) Name() string { return "string" }

func (StringIDs) Parse(literal string) (ID, error) {
	s := unquote(literal)
	if s == "" {
		return ID{}, InvalidPath("empty id")
	}
	return NewID(s), nil
}

func (StringIDs) Literal(id ID) string {
	return "'" + strings.ReplaceAll(id.String(), "'", "''") + "'"
}

func (StringIDs) FromJSON(v interface{}) (ID, error) {
	switch s := v.(type) {
	case string:
		return NewID(s), nil
	case float64:
		return NewID(strconv.FormatFloat(s, 'f', -1, 64)), nil
	}
	return ID{}, InvalidEntity("id %v is not a string", v)
}

func (StringIDs) ToJSON(id ID) interface{} {
	return id.value
}

func (StringIDs) FromStorage(v interface{}) (ID, error) {
	switch s := v.(type) {
	case string:
		return NewID(s), nil
	case []byte:
		return NewID(string(s)), nil
	case nil:
		return ID{}, nil
	}
	return NewID(fmt.Sprint(v)), nil
}

func (StringIDs) ToStorage(id ID) interface{} {
	return id.value
}

func (StringIDs) Generate() (ID, bool) {
	return NewID(uuid.NewString()), true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
