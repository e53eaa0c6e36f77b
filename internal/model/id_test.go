package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongIDs(t *testing.T) {
	c := LongIDs{}

	id, err := c.Parse("42")
	require.NoError(t, err)
	assert.Equal(t, NewID(int64(42)), id)
	assert.Equal(t, "42", c.Literal(id))

	fromJSON, err := c.FromJSON(float64(42))
	require.NoError(t, err)
	assert.Equal(t, id, fromJSON)

	_, err = c.FromJSON(4.5)
	assert.ErrorIs(t, err, ErrInvalidEntity)

	fromDB, err := c.FromStorage(int32(42))
	require.NoError(t, err)
	assert.True(t, id == fromDB)

	_, generated := c.Generate()
	assert.False(t, generated)

	_, err = c.Parse("abc")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestUUIDIDs(t *testing.T) {
	c := UUIDIDs{}
	u := uuid.MustParse("6f1f3a6e-8d0f-4b55-9a3e-6a3b2b1f0c11")

	id, err := c.Parse("'" + u.String() + "'")
	require.NoError(t, err)
	assert.Equal(t, NewID(u), id)
	assert.Equal(t, "'"+u.String()+"'", c.Literal(id))
	assert.Equal(t, u.String(), c.ToJSON(id))

	fromDB, err := c.FromStorage(u.String())
	require.NoError(t, err)
	assert.True(t, id == fromDB)

	generated, ok := c.Generate()
	assert.True(t, ok)
	assert.False(t, generated.IsZero())
}

func TestStringIDs(t *testing.T) {
	c := StringIDs{}

	id, err := c.Parse("'it''s'")
	require.NoError(t, err)
	assert.Equal(t, "it's", id.Value())
	assert.Equal(t, "'it''s'", c.Literal(id))
}

func TestIDCodecByName(t *testing.T) {
	for name, want := range map[string]IDCodec{"": LongIDs{}, "LONG": LongIDs{}, "uuid": UUIDIDs{}, "string": StringIDs{}} {
		got, err := IDCodecByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := IDCodecByName("bigint")
	assert.Error(t, err)
}

func TestValueType_NormalizeTimes(t *testing.T) {
	v, err := TypeTimeValue.Normalize("2024-01-02T03:04:05Z/2024-01-02T04:04:05Z")
	require.NoError(t, err)
	tv := v.(TimeValue)
	assert.True(t, tv.Interval)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), tv.Start)
	assert.Equal(t, "2024-01-02T03:04:05Z/2024-01-02T04:04:05Z", TypeTimeValue.JSONValue(tv))

	_, err = TypeTimeInstant.Normalize("2024-01-02T03:04:05Z/2024-01-02T04:04:05Z")
	assert.ErrorIs(t, err, ErrInvalidEntity)

	_, err = TypeTimeInterval.Normalize("2024-01-02T03:04:05Z")
	assert.ErrorIs(t, err, ErrInvalidEntity)

	n, err := TypeNumber.Normalize(int64(3))
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)
}
