// Package coremodel defines the sensing entity model: Things, Locations,
// HistoricalLocations, Datastreams, Sensors, ObservedProperties,
// Observations and FeaturesOfInterest, together with their tables,
// relations and hooks.
package coremodel

import (
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
)

// Model holds the entity types of one registry. Entity types are initialised
// by the registry build, so each registry gets its own Model.
type Model struct {
	Thing              *model.EntityType
	Location           *model.EntityType
	HistoricalLocation *model.EntityType
	Datastream         *model.EntityType
	Sensor             *model.EntityType
	ObservedProperty   *model.EntityType
	Observation        *model.EntityType
	FeatureOfInterest  *model.EntityType

	// Now stamps HistoricalLocations and default phenomenon times
	Now func() time.Time

	logger *zap.Logger
}

// Register adds the sensing entity types to a registry builder
func Register(b *model.Builder, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		Now:    time.Now,
		logger: logger.Named("coremodel"),
	}

	m.Thing = model.NewEntityType(TypeThing, "Things").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPName, true).
		RegisterProperty(EPDescription, true).
		RegisterProperty(EPProperties, false).
		RegisterProperty(NPLocations, false).
		RegisterProperty(NPHistoricalLocations, false).
		RegisterProperty(NPDatastreams, false)

	m.Location = model.NewEntityType(TypeLocation, "Locations").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPName, true).
		RegisterProperty(EPDescription, true).
		RegisterProperty(EPEncodingType, true).
		RegisterProperty(EPLocation, true).
		RegisterProperty(EPProperties, false).
		RegisterProperty(NPThings, false).
		RegisterProperty(NPHistoricalLocations, false)

	m.HistoricalLocation = model.NewEntityType(TypeHistoricalLocation, "HistoricalLocations").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPTime, true).
		RegisterProperty(NPThing, true).
		RegisterProperty(NPLocations, false)

	m.Datastream = model.NewEntityType(TypeDatastream, "Datastreams").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPName, true).
		RegisterProperty(EPDescription, true).
		RegisterProperty(EPObservationType, true).
		RegisterProperty(EPUnitOfMeasurement, true).
		RegisterProperty(EPObservedArea, false).
		RegisterProperty(EPPhenomenonTime, false).
		RegisterProperty(EPResultTime, false).
		RegisterProperty(EPProperties, false).
		RegisterProperty(NPThing, true).
		RegisterProperty(NPSensor, true).
		RegisterProperty(NPObservedProperty, true).
		RegisterProperty(NPObservations, false)

	m.Sensor = model.NewEntityType(TypeSensor, "Sensors").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPName, true).
		RegisterProperty(EPDescription, true).
		RegisterProperty(EPEncodingType, true).
		RegisterProperty(EPMetadata, true).
		RegisterProperty(EPProperties, false).
		RegisterProperty(NPDatastreams, false)

	m.ObservedProperty = model.NewEntityType(TypeObservedProperty, "ObservedProperties").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPName, true).
		RegisterProperty(EPDefinition, true).
		RegisterProperty(EPDescription, true).
		RegisterProperty(EPProperties, false).
		RegisterProperty(NPDatastreams, false)

	// phenomenonTime defaults to the insert time and the feature of interest
	// is derived from the Thing's Location, so neither is required
	m.Observation = model.NewEntityType(TypeObservation, "Observations").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPPhenomenonTime, false).
		RegisterProperty(EPResultTime, false).
		RegisterProperty(EPResult, true).
		RegisterProperty(EPResultQuality, false).
		RegisterProperty(EPValidTime, false).
		RegisterProperty(EPParameters, false).
		RegisterProperty(NPDatastream, true).
		RegisterProperty(NPFeatureOfInterest, false).
		AddValidator(validateResultTime)

	m.FeatureOfInterest = model.NewEntityType(TypeFeatureOfInterest, "FeaturesOfInterest").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPName, true).
		RegisterProperty(EPDescription, true).
		RegisterProperty(EPEncodingType, true).
		RegisterProperty(EPFeature, true).
		RegisterProperty(EPProperties, false).
		RegisterProperty(NPObservations, false)

	b.RegisterEntityType(m.Thing).
		RegisterEntityType(m.Location).
		RegisterEntityType(m.HistoricalLocation).
		RegisterEntityType(m.Datastream).
		RegisterEntityType(m.Sensor).
		RegisterEntityType(m.ObservedProperty).
		RegisterEntityType(m.Observation).
		RegisterEntityType(m.FeatureOfInterest)
	return m
}

// validateResultTime rejects intervals, the resultTime of an Observation is
// an instant
func validateResultTime(e *model.Entity, _ bool) error {
	if tv, ok := e.Get(EPResultTime).(model.TimeValue); ok && tv.Interval {
		return model.InvalidEntity("resultTime of an Observation must be an instant, got %s", tv)
	}
	return nil
}

// Fragment extends the sensing model with more entity types. Register runs
// after the sensing types are registered, so a fragment can add navigation
// properties to them through the builder; RegisterTables runs after the
// sensing tables exist.
type Fragment interface {
	Register(b *model.Builder)
	RegisterTables(c *tables.Collection)
}

// New builds the registry and the validated table collection of the sensing
// model and the given fragments
func New(ids model.IDCodec, logger *zap.Logger, fragments ...Fragment) (*Model, *model.Registry, *tables.Collection) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := model.NewBuilder(ids, logger)
	m := Register(b, logger)
	for _, f := range fragments {
		f.Register(b)
	}
	reg := b.Build()
	c := tables.NewCollection(reg, logger)
	m.RegisterTables(c)
	for _, f := range fragments {
		f.RegisterTables(c)
	}
	c.Validate()
	return m, reg, c
}
