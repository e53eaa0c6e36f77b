package path_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/path"
)

func TestParse(t *testing.T) {
	m, reg, _ := coremodel.New(model.LongIDs{}, nil)

	tests := []struct {
		raw        string
		elements   int
		main       *model.EntityType
		collection bool
		property   *model.Property
		value      bool
		ref        bool
	}{
		{raw: "/Things", elements: 1, main: m.Thing, collection: true},
		{raw: "Things(1)", elements: 1, main: m.Thing},
		{raw: "/Things(1)/Datastreams", elements: 2, main: m.Datastream, collection: true},
		{raw: "/Datastreams(7)/Thing", elements: 2, main: m.Thing},
		{raw: "/Things(1)/Datastreams(3)/Observations", elements: 3, main: m.Observation, collection: true},
		{raw: "/Things(1)/name", elements: 1, main: m.Thing, property: coremodel.EPName},
		{raw: "/Observations(5)/result/$value", elements: 1, main: m.Observation, property: coremodel.EPResult, value: true},
		{raw: "/Things(1)/Datastreams/$ref", elements: 2, main: m.Datastream, collection: true, ref: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rp, err := path.Parse(reg, tt.raw)
			require.NoError(t, err)
			assert.Len(t, rp.Elements, tt.elements)
			assert.Same(t, tt.main, rp.MainType())
			assert.Equal(t, tt.collection, rp.IsCollection())
			assert.Equal(t, tt.property, rp.Property)
			assert.Equal(t, tt.value, rp.Value)
			assert.Equal(t, tt.ref, rp.Ref)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	_, reg, _ := coremodel.New(model.LongIDs{}, nil)

	for _, raw := range []string{
		"",
		"/",
		"/Thing(1)",
		"/Gadgets",
		"/Things(x)",
		"/Things/Datastreams",
		"/Things(1)/$value",
		"/Things(1)/name/location",
		"/Things(1)/name(2)",
		"/Datastreams(1)/Thing(2)",
		"/Things(1)/nope",
		"/Observations(5)/result/$value/x",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := path.Parse(reg, raw)
			assert.ErrorIs(t, err, model.ErrInvalidPath)
		})
	}
}

func TestParse_QuotedStringIDs(t *testing.T) {
	_, reg, _ := coremodel.New(model.StringIDs{}, nil)

	rp, err := path.Parse(reg, "/Things('a/b')/Datastreams")
	require.NoError(t, err)
	require.Len(t, rp.Elements, 2)
	assert.Equal(t, model.NewID("a/b"), rp.Elements[0].ID)
	assert.Equal(t, "/Things('a/b')/Datastreams", rp.String(reg.IDs()))
}

func TestString_RoundTrip(t *testing.T) {
	_, reg, _ := coremodel.New(model.LongIDs{}, nil)

	for _, raw := range []string{
		"/Things",
		"/Things(1)/Datastreams",
		"/Datastreams(7)/Thing",
		"/Observations(5)/result/$value",
		"/Things(1)/Datastreams/$ref",
	} {
		rp, err := path.Parse(reg, raw)
		require.NoError(t, err)
		assert.Equal(t, raw, rp.String(reg.IDs()))
	}
}

func TestParent(t *testing.T) {
	m, reg, _ := coremodel.New(model.LongIDs{}, nil)

	rp, err := path.Parse(reg, "/Things(1)/Datastreams")
	require.NoError(t, err)
	assert.Equal(t, &model.ParentRef{Type: m.Thing, ID: model.NewID(int64(1))}, rp.Parent())

	assert.Nil(t, path.New(m.Thing).Parent())
}

func TestChild(t *testing.T) {
	m, reg, _ := coremodel.New(model.LongIDs{}, nil)
	thing := path.ForEntity(m.Thing, model.NewID(int64(1)))

	all := thing.Child(reg, coremodel.NPDatastreams, model.ID{})
	assert.True(t, all.IsCollection())
	assert.Equal(t, "/Things(1)/Datastreams", all.String(reg.IDs()))

	one := thing.Child(reg, coremodel.NPDatastreams, model.NewID(int64(4)))
	assert.False(t, one.IsCollection())
	assert.Equal(t, "/Things(1)/Datastreams(4)", one.String(reg.IDs()))

	assert.Len(t, thing.Elements, 1)
}
