package coremodel

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/orm/relations"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// defaultPhenomenonTime stamps Observations posted without a phenomenonTime
func (m *Model) defaultPhenomenonTime(_ context.Context, _ tables.Session, e *model.Entity) error {
	if e.Get(EPPhenomenonTime) == nil {
		e.Set(EPPhenomenonTime, model.Instant(m.Now()))
	}
	return nil
}

// deriveFeatureOfInterest links an Observation posted without a feature of
// interest to the feature generated from the Location of its Datastream's
// Thing. The feature is created on first use and remembered on the Location.
func (m *Model) deriveFeatureOfInterest(ctx context.Context, s tables.Session, e *model.Entity) error {
	if e.Related(NPFeatureOfInterest) != nil {
		return nil
	}
	ds := e.Related(NPDatastream)
	if ds == nil || ds.ID().IsZero() {
		return model.IncompleteEntity("FeatureOfInterest is required for Observation without a Datastream")
	}

	reg := s.Tables().Registry()
	rp := path.ForEntity(m.Datastream, ds.ID()).
		Child(reg, NPThing, model.ID{}).
		Child(reg, NPLocations, model.ID{})
	q := query.New().
		AddSelect(model.IDProperty, EPName, EPDescription, EPEncodingType, EPLocation).
		SetTop(2).
		SetCount(false)
	locations, err := s.Query(ctx, rp, q)
	if err != nil {
		return err
	}
	switch {
	case locations.Len() == 0:
		return model.IncompleteEntity("no FeatureOfInterest given and the Thing of Datastream %s has no Location", ds.ID())
	case locations.Len() > 1 || locations.HasMore:
		return model.IncompleteEntity("no FeatureOfInterest given and the Thing of Datastream %s has more than one Location", ds.ID())
	}
	location := locations.Entities[0]

	foiID, err := generatedFeature(ctx, s, location)
	if err != nil {
		return err
	}
	if foiID.IsZero() {
		foi := model.NewEntity(m.FeatureOfInterest).
			Set(EPName, location.Get(EPName)).
			Set(EPDescription, location.Get(EPDescription)).
			Set(EPEncodingType, location.Get(EPEncodingType)).
			Set(EPFeature, location.Get(EPLocation))
		if err := s.Insert(ctx, foi); err != nil {
			return err
		}
		if err := rememberFeature(ctx, s, location, foi); err != nil {
			return err
		}
		foiID = foi.ID()
		m.logger.Debug("feature of interest generated",
			zap.Stringer("location", location.ID()), zap.Stringer("feature", foiID))
	}
	e.Set(NPFeatureOfInterest, model.NewEntity(m.FeatureOfInterest).SetID(foiID))
	return nil
}

// generatedFeature returns the id of the feature generated from a Location,
// zero when there is none
func generatedFeature(ctx context.Context, s tables.Session, location *model.Entity) (model.ID, error) {
	ids := s.Tables().Registry().IDs()
	p := &plan.Plan{
		From:       plan.Table{Name: TableLocations},
		Projection: []plan.Column{{Expr: plan.Field{Column: ColumnGenFoiID}}},
		Where:      plan.Eq(plan.Field{Column: relations.DefaultIDColumn}, plan.Literal{Value: storageID(ids, location)}),
	}
	stmt, args, err := p.SQL()
	if err != nil {
		return model.ID{}, err
	}
	var raw interface{}
	err = s.Querier().QueryRowContext(ctx, stmt, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ID{}, nil
	}
	if err != nil {
		return model.ID{}, err
	}
	return ids.FromStorage(raw)
}

func rememberFeature(ctx context.Context, s tables.Session, location, foi *model.Entity) error {
	ids := s.Tables().Registry().IDs()
	stmt, args, err := plan.Update{
		Table: TableLocations,
		Set:   map[string]interface{}{ColumnGenFoiID: storageID(ids, foi)},
		Where: plan.Eq(plan.Field{Column: relations.DefaultIDColumn}, plan.Literal{Value: storageID(ids, location)}),
	}.Render()
	if err != nil {
		return err
	}
	_, err = s.Querier().ExecContext(ctx, stmt, args...)
	return err
}

// clearGeneratedFeature forgets a deleted feature on the Location it was
// generated from
func clearGeneratedFeature(ctx context.Context, s tables.Session, id model.ID) error {
	ids := s.Tables().Registry().IDs()
	stmt, args, err := plan.Update{
		Table: TableLocations,
		Set:   map[string]interface{}{ColumnGenFoiID: nil},
		Where: plan.Eq(plan.Field{Column: ColumnGenFoiID}, plan.Literal{Value: ids.ToStorage(id)}),
	}.Render()
	if err != nil {
		return err
	}
	_, err = s.Querier().ExecContext(ctx, stmt, args...)
	return err
}

// deleteOrphanHistoricalLocations removes the HistoricalLocations left
// without any Location after a Location was deleted
func deleteOrphanHistoricalLocations(ctx context.Context, s tables.Session, _ model.ID) error {
	linked := &plan.Plan{
		From:       plan.Table{Name: TableLocationsHistLocs},
		Projection: []plan.Column{{Expr: plan.Field{Column: "HIST_LOCATION_ID"}}},
	}
	stmt, args, err := plan.Delete{
		Table: TableHistLocations,
		Where: plan.In{Operand: plan.Field{Column: relations.DefaultIDColumn}, Select: linked, Negate: true},
	}.Render()
	if err != nil {
		return err
	}
	_, err = s.Querier().ExecContext(ctx, stmt, args...)
	return err
}

// extendDatastreamTimes widens the phenomenonTime and resultTime of the
// Datastream to cover a new Observation
func extendDatastreamTimes(ctx context.Context, s tables.Session, e *model.Entity) error {
	ds := e.Related(NPDatastream)
	if ds == nil || ds.ID().IsZero() {
		return nil
	}
	set := map[string]interface{}{}
	widen := func(startColumn, endColumn string, tv model.TimeValue) {
		set[startColumn] = plan.Func{Name: "least", Args: []plan.Expr{plan.Field{Column: startColumn}, plan.Literal{Value: tv.Start}}}
		set[endColumn] = plan.Func{Name: "greatest", Args: []plan.Expr{plan.Field{Column: endColumn}, plan.Literal{Value: tv.End}}}
	}
	if tv, ok := e.Get(EPPhenomenonTime).(model.TimeValue); ok {
		widen("PHENOMENON_TIME_START", "PHENOMENON_TIME_END", tv)
	}
	if tv, ok := e.Get(EPResultTime).(model.TimeValue); ok {
		widen("RESULT_TIME_START", "RESULT_TIME_END", tv)
	}
	if len(set) == 0 {
		return nil
	}
	ids := s.Tables().Registry().IDs()
	stmt, args, err := plan.Update{
		Table: TableDatastreams,
		Set:   set,
		Where: plan.Eq(plan.Field{Column: relations.DefaultIDColumn}, plan.Literal{Value: storageID(ids, ds)}),
	}.Render()
	if err != nil {
		return err
	}
	_, err = s.Querier().ExecContext(ctx, stmt, args...)
	return err
}

// extendDatastreamTimesOnUpdate widens the Datastream of an Observation when
// an update sets its phenomenonTime or resultTime. The Datastream is the one
// the update links, or the stored one.
func (m *Model) extendDatastreamTimesOnUpdate(ctx context.Context, s tables.Session, e *model.Entity) error {
	if !e.IsSet(EPPhenomenonTime) && !e.IsSet(EPResultTime) {
		return nil
	}
	ds := e.Related(NPDatastream)
	if ds == nil || ds.ID().IsZero() {
		id, err := storedDatastream(ctx, s, e)
		if err != nil || id.IsZero() {
			return err
		}
		ds = model.NewEntity(m.Datastream).SetID(id)
	}
	times := model.NewEntity(m.Observation).Set(NPDatastream, ds)
	for _, p := range []*model.Property{EPPhenomenonTime, EPResultTime} {
		if e.IsSet(p) {
			times.Set(p, e.Get(p))
		}
	}
	return extendDatastreamTimes(ctx, s, times)
}

func storedDatastream(ctx context.Context, s tables.Session, obs *model.Entity) (model.ID, error) {
	ids := s.Tables().Registry().IDs()
	p := &plan.Plan{
		From:       plan.Table{Name: TableObservations},
		Projection: []plan.Column{{Expr: plan.Field{Column: "DATASTREAM_ID"}}},
		Where:      plan.Eq(plan.Field{Column: relations.DefaultIDColumn}, plan.Literal{Value: storageID(ids, obs)}),
	}
	stmt, args, err := p.SQL()
	if err != nil {
		return model.ID{}, err
	}
	var raw interface{}
	err = s.Querier().QueryRowContext(ctx, stmt, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ID{}, nil
	}
	if err != nil {
		return model.ID{}, err
	}
	return ids.FromStorage(raw)
}

// linkThingLocations replaces the Locations of a Thing and records the move
// as a HistoricalLocation
func (m *Model) linkThingLocations(ctx context.Context, s tables.Session, thing *model.Entity, locations []*model.Entity) error {
	rel := thingLocationRelation(s)
	ids := s.Tables().Registry().IDs()
	thingID := storageID(ids, thing)
	if _, err := rel.UnlinkAll(ctx, s.Querier(), thingID); err != nil {
		return err
	}
	for _, location := range locations {
		if err := rel.Link(ctx, s.Querier(), thingID, storageID(ids, location)); err != nil {
			return err
		}
	}
	return m.recordHistory(ctx, s, thing, locations)
}

// linkLocationThings moves each Thing to the Location
func (m *Model) linkLocationThings(ctx context.Context, s tables.Session, location *model.Entity, things []*model.Entity) error {
	for _, thing := range things {
		if err := m.linkThingLocations(ctx, s, thing, []*model.Entity{location}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) recordHistory(ctx context.Context, s tables.Session, thing *model.Entity, locations []*model.Entity) error {
	if len(locations) == 0 {
		return nil
	}
	linked := model.NewEntitySet(m.Location)
	for _, location := range locations {
		linked.Add(model.NewEntity(m.Location).SetID(location.ID()))
	}
	hl := model.NewEntity(m.HistoricalLocation).
		Set(EPTime, model.Instant(m.Now())).
		Set(NPThing, model.NewEntity(m.Thing).SetID(thing.ID())).
		Set(NPLocations, linked)
	return s.Insert(ctx, hl)
}

func thingLocationRelation(s tables.Session) *relations.ManyToMany {
	rel, ok := s.Tables().Relations().Find(TypeThing, TypeLocation).(*relations.ManyToMany)
	if !ok {
		panic(model.IllegalState("relation %s -> %s is not many-to-many", TypeThing, TypeLocation))
	}
	return rel
}
