// Package resultformat renders Observation collections in the compact
// dataArray encoding: one block per Datastream holding a component list and
// a row of values per Observation.
package resultformat

import (
	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// components lists the Observation properties a dataArray can carry, in
// output order
var components = []*model.Property{
	model.IDProperty,
	coremodel.EPPhenomenonTime,
	coremodel.EPResult,
	coremodel.EPResultTime,
	coremodel.EPResultQuality,
	coremodel.EPValidTime,
	coremodel.EPParameters,
}

// Result is the top level dataArray document
type Result struct {
	Count *int64  `json:"@iot.count,omitempty"`
	Value []Block `json:"value"`
}

// Block holds the observations of one Datastream
type Block struct {
	NavigationLink string          `json:"Datastream@iot.navigationLink,omitempty"`
	Components     []string        `json:"components"`
	Count          int             `json:"dataArray@iot.count"`
	DataArray      [][]interface{} `json:"dataArray"`
}

// Prepare checks that a dataArray was requested for a collection of
// Observations and makes sure the Datastream link is read, which the
// grouping needs.
func Prepare(m *coremodel.Model, rp *path.ResourcePath, q *query.Query) error {
	if !rp.IsCollection() || rp.MainType() != m.Observation {
		return model.InvalidQuery("$resultFormat=%s is only valid for collections of Observations", query.ResultFormatDataArray)
	}
	if len(q.Select) > 0 {
		q.AddSelect(coremodel.NPDatastream)
	}
	return nil
}

// Format groups a collection of Observations by Datastream. The components
// are the selected Observation properties, or all of them when the query
// selects nothing.
func Format(ids model.IDCodec, set *model.EntitySet, q *query.Query) *Result {
	visible := visibleComponents(q)
	names := make([]string, len(visible))
	for i, p := range visible {
		names[i] = p.Name
	}

	res := &Result{Value: []Block{}}
	if set.Count >= 0 {
		count := set.Count
		res.Count = &count
	}

	index := make(map[string]int)
	for _, obs := range set.Entities {
		key, link := "", ""
		if ds := obs.Related(coremodel.NPDatastream); ds != nil && !ds.ID().IsZero() {
			key = ds.ID().String()
			link = path.ForEntity(ds.Type(), ds.ID()).String(ids)
		}
		i, ok := index[key]
		if !ok {
			i = len(res.Value)
			index[key] = i
			res.Value = append(res.Value, Block{NavigationLink: link, Components: names})
		}
		block := &res.Value[i]
		block.DataArray = append(block.DataArray, row(ids, obs, visible))
		block.Count++
	}
	return res
}

func visibleComponents(q *query.Query) []*model.Property {
	if q == nil || len(q.Select) == 0 {
		return components
	}
	selected := make(map[*model.Property]bool, len(q.Select))
	for _, p := range q.Select {
		selected[p] = true
	}
	var out []*model.Property
	for _, p := range components {
		if selected[p] {
			out = append(out, p)
		}
	}
	return out
}

func row(ids model.IDCodec, obs *model.Entity, visible []*model.Property) []interface{} {
	values := make([]interface{}, len(visible))
	for i, p := range visible {
		if p == model.IDProperty {
			values[i] = ids.ToJSON(obs.ID())
			continue
		}
		values[i] = p.Type.JSONValue(obs.Get(p))
	}
	return values
}
