package jsonio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
)

func registry(t *testing.T) (*coremodel.Model, *model.Registry) {
	t.Helper()
	m, reg, _ := coremodel.New(model.LongIDs{}, nil)
	return m, reg
}

func TestRead_Observation(t *testing.T) {
	m, reg := registry(t)

	e, err := Read(reg, m.Observation, []byte(`{
		"result": 21.5,
		"phenomenonTime": "2024-01-01T10:00:00Z",
		"validTime": "2024-01-01T00:00:00Z/2024-01-02T00:00:00Z",
		"Datastream": {"@iot.id": 7}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 21.5, e.Get(coremodel.EPResult))
	assert.Equal(t, model.Instant(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)), e.Get(coremodel.EPPhenomenonTime))
	assert.Equal(t, model.NewInterval(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	), e.Get(coremodel.EPValidTime))

	ds := e.Related(coremodel.NPDatastream)
	require.NotNil(t, ds)
	assert.Equal(t, m.Datastream, ds.Type())
	assert.Equal(t, model.NewID(int64(7)), ds.ID())
	assert.False(t, e.IsSet(coremodel.NPFeatureOfInterest))
}

func TestRead_DeepInsert(t *testing.T) {
	m, reg := registry(t)

	e, err := Read(reg, m.Thing, []byte(`{
		"name": "weather station",
		"description": "roof",
		"Locations": [
			{"name": "roof", "description": "the roof", "encodingType": "application/geo+json",
			 "location": {"type": "Point", "coordinates": [8.4, 49.0]}},
			{"@iot.id": 3}
		]
	}`))
	require.NoError(t, err)

	locations := e.RelatedSet(coremodel.NPLocations)
	require.NotNil(t, locations)
	require.Equal(t, 2, locations.Len())
	assert.Equal(t, "roof", locations.Entities[0].Get(coremodel.EPName))
	assert.True(t, locations.Entities[0].ID().IsZero())
	assert.Equal(t, model.NewID(int64(3)), locations.Entities[1].ID())
}

func TestRead_Errors(t *testing.T) {
	m, reg := registry(t)

	tests := []struct {
		name string
		doc  string
	}{
		{name: "malformed", doc: `{"name": `},
		{name: "not an object", doc: `[1, 2]`},
		{name: "unknown property", doc: `{"colour": "red"}`},
		{name: "wrong type", doc: `{"name": 5}`},
		{name: "bad navigation", doc: `{"Locations": {"@iot.id": 1}}`},
		{name: "bad id", doc: `{"@iot.id": 1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(reg, m.Thing, []byte(tt.doc))
			assert.ErrorIs(t, err, model.ErrInvalidEntity)
		})
	}
}

func TestRead_SkipsAnnotations(t *testing.T) {
	m, reg := registry(t)

	e, err := Read(reg, m.Thing, []byte(`{"name": "a", "Datastreams@iot.count": 3, "Locations@iot.navigationLink": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, []*model.Property{coremodel.EPName}, e.SetProperties())
}

func TestWrite(t *testing.T) {
	m, reg := registry(t)
	ids := reg.IDs()

	datastreams := model.NewEntitySet(m.Datastream, model.NewEntity(m.Datastream).SetID(model.NewID(int64(4))).Set(coremodel.EPName, "temp"))
	datastreams.Count = 1
	thing := model.NewEntity(m.Thing).
		SetID(model.NewID(int64(1))).
		Set(coremodel.EPName, "station").
		Set(coremodel.EPProperties, map[string]interface{}{"building": "A"}).
		Set(coremodel.NPDatastreams, datastreams)

	assert.Equal(t, map[string]interface{}{
		"@iot.id":    int64(1),
		"name":       "station",
		"properties": map[string]interface{}{"building": "A"},
		"Datastreams": []interface{}{
			map[string]interface{}{"@iot.id": int64(4), "name": "temp"},
		},
		"Datastreams@iot.count": int64(1),
	}, Write(ids, thing))
}

func TestWrite_TimesAndLinks(t *testing.T) {
	m, reg := registry(t)

	obs := model.NewEntity(m.Observation).
		SetID(model.NewID(int64(9))).
		Set(coremodel.EPPhenomenonTime, model.Instant(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))).
		Set(coremodel.EPResult, true).
		Set(coremodel.NPDatastream, model.NewEntity(m.Datastream).SetID(model.NewID(int64(2)))).
		Set(coremodel.NPFeatureOfInterest, nil)

	assert.Equal(t, map[string]interface{}{
		"@iot.id":        int64(9),
		"phenomenonTime": "2024-03-01T12:00:00Z",
		"result":         true,
		"Datastream":     map[string]interface{}{"@iot.id": int64(2)},
	}, Write(reg.IDs(), obs))
}

func TestWrite_CustomProperties(t *testing.T) {
	m, reg := registry(t)

	floor := model.NewCustomProperty(coremodel.EPProperties, "room", "floor")
	building := model.NewCustomProperty(coremodel.EPProperties, "building")
	thing := model.NewEntity(m.Thing).
		Set(floor, float64(2)).
		Set(building, "A")

	assert.Equal(t, map[string]interface{}{
		"properties": map[string]interface{}{
			"building": "A",
			"room":     map[string]interface{}{"floor": float64(2)},
		},
	}, Write(reg.IDs(), thing))
}

func TestWriteSet(t *testing.T) {
	m, reg := registry(t)

	set := model.NewEntitySet(m.Sensor, model.NewEntity(m.Sensor).SetID(model.NewID(int64(1))))
	assert.Equal(t, map[string]interface{}{
		"value": []interface{}{map[string]interface{}{"@iot.id": int64(1)}},
	}, WriteSet(reg.IDs(), set))

	set.Count = 10
	assert.Equal(t, int64(10), WriteSet(reg.IDs(), set)["@iot.count"])
}

func TestRoundTrip(t *testing.T) {
	m, reg := registry(t)
	doc := []byte(`{"@iot.id": 5, "name": "a", "description": "b", "encodingType": "application/pdf", "metadata": "http://example.org/spec.pdf"}`)

	e, err := Read(reg, m.Sensor, doc)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"@iot.id":      int64(5),
		"name":         "a",
		"description":  "b",
		"encodingType": "application/pdf",
		"metadata":     "http://example.org/spec.pdf",
	}, Write(reg.IDs(), e))
}

func TestIsAnnotation(t *testing.T) {
	assert.True(t, IsAnnotation("Datastreams@iot.count"))
	assert.True(t, IsAnnotation("Thing@iot.navigationLink"))
	assert.False(t, IsAnnotation("@iot.id"))
	assert.False(t, IsAnnotation("name"))
}
