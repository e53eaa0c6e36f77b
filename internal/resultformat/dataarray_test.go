package resultformat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
	"github.com/conduit-lang/sensorthings/internal/query/parser"
)

func observation(m *coremodel.Model, id, datastream int64, result float64, at time.Time) *model.Entity {
	return model.NewEntity(m.Observation).
		SetID(model.NewID(id)).
		Set(coremodel.EPPhenomenonTime, model.Instant(at)).
		Set(coremodel.EPResult, result).
		Set(coremodel.NPDatastream, model.NewEntity(m.Datastream).SetID(model.NewID(datastream)))
}

func TestPrepare(t *testing.T) {
	m, reg, _ := coremodel.New(model.LongIDs{}, nil)

	tests := []struct {
		name       string
		path       string
		query      string
		wantErr    bool
		wantSelect []*model.Property
	}{
		{name: "observations", path: "/Observations"},
		{name: "nested observations", path: "/Datastreams(1)/Observations"},
		{
			name:       "select gets datastream",
			path:       "/Observations",
			query:      "$select=result",
			wantSelect: []*model.Property{coremodel.EPResult, coremodel.NPDatastream},
		},
		{name: "single observation", path: "/Observations(1)", wantErr: true},
		{name: "things", path: "/Things", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := path.Parse(reg, tt.path)
			require.NoError(t, err)
			q, err := parser.Parse(reg, tt.query)
			require.NoError(t, err)

			err = Prepare(m, rp, q)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSelect, q.Select)
		})
	}
}

func TestFormat_GroupsByDatastream(t *testing.T) {
	m, _, _ := coremodel.New(model.LongIDs{}, nil)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	set := model.NewEntitySet(m.Observation,
		observation(m, 1, 7, 20.5, at),
		observation(m, 2, 8, 3, at),
		observation(m, 3, 7, 21, at.Add(time.Minute)),
	)
	set.Count = 3

	res := Format(model.LongIDs{}, set, query.New().AddSelect(model.IDProperty, coremodel.EPResult, coremodel.EPPhenomenonTime))
	data, err := json.Marshal(res)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"@iot.count": 3,
		"value": [
			{
				"Datastream@iot.navigationLink": "/Datastreams(7)",
				"components": ["id", "phenomenonTime", "result"],
				"dataArray@iot.count": 2,
				"dataArray": [[1, "2024-03-01T12:00:00Z", 20.5], [3, "2024-03-01T12:01:00Z", 21]]
			},
			{
				"Datastream@iot.navigationLink": "/Datastreams(8)",
				"components": ["id", "phenomenonTime", "result"],
				"dataArray@iot.count": 1,
				"dataArray": [[2, "2024-03-01T12:00:00Z", 3]]
			}
		]
	}`, string(data))
}

func TestFormat_AllComponents(t *testing.T) {
	m, _, _ := coremodel.New(model.LongIDs{}, nil)
	set := model.NewEntitySet(m.Observation, observation(m, 1, 7, 1, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	res := Format(model.LongIDs{}, set, nil)
	require.Len(t, res.Value, 1)
	assert.Nil(t, res.Count)
	assert.Equal(t, []string{"id", "phenomenonTime", "result", "resultTime", "resultQuality", "validTime", "parameters"}, res.Value[0].Components)
	assert.Equal(t, []interface{}{int64(1), "2024-01-01T00:00:00Z", 1.0, nil, nil, nil, nil}, res.Value[0].DataArray[0])
}

func TestFormat_Empty(t *testing.T) {
	m, _, _ := coremodel.New(model.LongIDs{}, nil)
	data, err := json.Marshal(Format(model.LongIDs{}, model.NewEntitySet(m.Observation), nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"value": []}`, string(data))
}
