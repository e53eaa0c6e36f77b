package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sensorthings/internal/model"
)

var (
	epName       = model.NewEntityProperty("name", model.TypeString)
	epProperties = model.NewEntityProperty("properties", model.TypeObject)
	epTime       = model.NewEntityProperty("phenomenonTime", model.TypeTimeValue)
	epCreated    = model.NewEntityProperty("created", model.TypeTimeInstant)
	epOther      = model.NewEntityProperty("other", model.TypeString)
	npParent     = model.NewNavigationProperty("Parent", "Parent", false)
)

func testTypes() (*model.EntityType, *model.EntityType) {
	parent := model.NewEntityType("Parent", "Parents").
		RegisterProperty(model.IDProperty, false)
	child := model.NewEntityType("Child", "Children").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(epName, true).
		RegisterProperty(epProperties, false).
		RegisterProperty(epTime, false).
		RegisterProperty(epCreated, false).
		RegisterProperty(npParent, false)
	return parent, child
}

func testRegistry(parent *model.EntityType) *Registry {
	return NewRegistry("CHILDREN", model.LongIDs{}).
		AddEntryID("ID").
		AddEntryString(epName, "NAME").
		AddEntryMap(epProperties, "PROPERTIES").
		AddEntryTimeValue(epTime, "PT_START", "PT_END").
		AddEntryTimeInstant(epCreated, "CREATED").
		AddEntryNavigation(npParent, parent, "PARENT_ID")
}

func TestRegistry_SelectFields(t *testing.T) {
	parent, _ := testTypes()
	reg := testRegistry(parent)

	assert.Equal(t, []Field{{Key: "name", Column: "NAME"}}, reg.SelectFields(epName))
	assert.Equal(t, []Field{{Key: KeyStart, Column: "PT_START"}, {Key: KeyEnd, Column: "PT_END"}}, reg.SelectFields(epTime))

	custom := model.NewCustomProperty(epProperties, "a", "b")
	assert.Equal(t, []Field{{Key: "properties/a/b", Column: "PROPERTIES", Path: []string{"a", "b"}}}, reg.SelectFields(custom))

	assert.PanicsWithError(t, "illegal state: table CHILDREN has no fields for property other", func() {
		reg.SelectFields(epOther)
	})
	assert.Nil(t, reg.Entry(model.NewCustomProperty(epOther, "x")))
}

func TestRegistry_Read(t *testing.T) {
	parent, child := testTypes()
	reg := testRegistry(parent)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	e := model.NewEntity(child)
	reads := []struct {
		p *model.Property
		v Values
	}{
		{model.IDProperty, Values{"id": int64(4)}},
		{epName, Values{"name": []byte("thermo")}},
		{epProperties, Values{"properties": `{"a":{"b":2}}`}},
		{epTime, Values{KeyStart: start, KeyEnd: end}},
		{epCreated, Values{"created": start}},
		{npParent, Values{"Parent": int64(9)}},
	}
	for _, r := range reads {
		require.NoError(t, reg.Entry(r.p).Converter.Read(r.v, e), r.p.Name)
	}

	assert.Equal(t, model.NewID(int64(4)), e.ID())
	assert.Equal(t, "thermo", e.Get(epName))
	assert.Equal(t, map[string]interface{}{"a": map[string]interface{}{"b": 2.0}}, e.Get(epProperties))
	assert.Equal(t, model.NewInterval(start, end), e.Get(epTime))
	assert.Equal(t, model.Instant(start), e.Get(epCreated))
	require.NotNil(t, e.Related(npParent))
	assert.Equal(t, model.NewID(int64(9)), e.Related(npParent).ID())

	custom := model.NewCustomProperty(epProperties, "a", "b")
	require.NoError(t, reg.Entry(custom).Converter.Read(Values{"properties/a/b": "2"}, e))
	assert.Equal(t, 2.0, e.Get(custom))
}

func TestRegistry_ReadTimeValue(t *testing.T) {
	parent, child := testTypes()
	reg := testRegistry(parent)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	e := model.NewEntity(child)
	require.NoError(t, reg.Entry(epTime).Converter.Read(Values{KeyStart: at, KeyEnd: at}, e))
	assert.Equal(t, model.Instant(at), e.Get(epTime))

	require.NoError(t, reg.Entry(epTime).Converter.Read(Values{KeyStart: nil, KeyEnd: nil}, e))
	assert.Nil(t, e.Get(epTime))

	require.NoError(t, reg.Entry(npParent).Converter.Read(Values{"Parent": nil}, e))
	assert.Nil(t, e.Related(npParent))
}

func TestRegistry_InsertFields(t *testing.T) {
	parent, child := testTypes()
	reg := testRegistry(parent)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	e := model.NewEntity(child).
		Set(epName, "thermo").
		Set(epProperties, map[string]interface{}{"a": 1.0}).
		Set(epTime, model.Instant(at)).
		Set(npParent, model.NewEntity(parent).SetID(model.NewID(int64(3))))

	insert, err := reg.InsertFields(e)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"NAME":       "thermo",
		"PROPERTIES": `{"a":1}`,
		"PT_START":   at,
		"PT_END":     at,
		"PARENT_ID":  int64(3),
	}, insert)

	e.SetID(model.NewID(int64(12)))
	insert, err = reg.InsertFields(e)
	require.NoError(t, err)
	assert.Equal(t, int64(12), insert["ID"])
}

func TestRegistry_UpdateFields(t *testing.T) {
	parent, child := testTypes()
	reg := testRegistry(parent)

	e := model.NewEntity(child).SetID(model.NewID(int64(1))).
		Set(epName, "renamed").
		Set(epCreated, nil)
	msg := model.NewChangeMessage(model.EventUpdate, e)

	update, err := reg.UpdateFields(e, msg)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"NAME": "renamed", "CREATED": nil}, update)
	assert.Equal(t, []*model.Property{epName, epCreated}, msg.Fields)
}

func TestRegistry_AddEntryReplaces(t *testing.T) {
	reg := NewRegistry("T", model.LongIDs{}).
		AddEntryString(epName, "NAME").
		AddEntryString(epName, "TITLE")

	require.Len(t, reg.Entries(), 1)
	assert.Equal(t, "TITLE", reg.SelectFields(epName)[0].Column)
	assert.Equal(t, "T", reg.Table())
}
