package coremodel

import (
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/relations"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
)

// Table names
const (
	TableThings            = "THINGS"
	TableLocations         = "LOCATIONS"
	TableHistLocations     = "HIST_LOCATIONS"
	TableDatastreams       = "DATASTREAMS"
	TableSensors           = "SENSORS"
	TableObsProperties     = "OBS_PROPERTIES"
	TableObservations      = "OBSERVATIONS"
	TableFeatures          = "FEATURES"
	TableThingsLocations   = "THINGS_LOCATIONS"
	TableLocationsHistLocs = "LOCATIONS_HIST_LOCATIONS"
)

// ColumnGenFoiID holds the id of the feature of interest generated from a
// Location
const ColumnGenFoiID = "GEN_FOI_ID"

// RegisterTables adds the tables, relations and hooks of the model to a
// collection
func (m *Model) RegisterTables(c *tables.Collection) {
	ids := c.Registry().IDs()
	id := relations.DefaultIDColumn

	things := tables.New(TableThings, m.Thing, ids)
	things.Fields.
		AddEntryID(id).
		AddEntryString(EPName, "NAME").
		AddEntryString(EPDescription, "DESCRIPTION").
		AddEntryMap(EPProperties, "PROPERTIES").
		AddEntryNavigationSet(NPLocations, id).
		AddEntryNavigationSet(NPHistoricalLocations, id).
		AddEntryNavigationSet(NPDatastreams, id)
	things.SetLinkHook(NPLocations, m.linkThingLocations)

	locations := tables.New(TableLocations, m.Location, ids)
	locations.Fields.
		AddEntryID(id).
		AddEntryString(EPName, "NAME").
		AddEntryString(EPDescription, "DESCRIPTION").
		AddEntryString(EPEncodingType, "ENCODING_TYPE").
		AddEntryMap(EPLocation, "LOCATION").
		AddEntryMap(EPProperties, "PROPERTIES").
		AddEntryNavigationSet(NPThings, id).
		AddEntryNavigationSet(NPHistoricalLocations, id)
	locations.SetLinkHook(NPThings, m.linkLocationThings)
	locations.AddPostDeleteHook(deleteOrphanHistoricalLocations)

	histLocations := tables.New(TableHistLocations, m.HistoricalLocation, ids)
	histLocations.Fields.
		AddEntryID(id).
		AddEntryTimeInstant(EPTime, "TIME").
		AddEntryNavigation(NPThing, m.Thing, "THING_ID").
		AddEntryNavigationSet(NPLocations, id)

	datastreams := tables.New(TableDatastreams, m.Datastream, ids)
	datastreams.Fields.
		AddEntryID(id).
		AddEntryString(EPName, "NAME").
		AddEntryString(EPDescription, "DESCRIPTION").
		AddEntryString(EPObservationType, "OBSERVATION_TYPE").
		AddEntryMap(EPUnitOfMeasurement, "UNIT_OF_MEASUREMENT").
		AddEntryMap(EPObservedArea, "OBSERVED_AREA").
		AddEntryTimeValue(EPPhenomenonTime, "PHENOMENON_TIME_START", "PHENOMENON_TIME_END").
		AddEntryTimeValue(EPResultTime, "RESULT_TIME_START", "RESULT_TIME_END").
		AddEntryMap(EPProperties, "PROPERTIES").
		AddEntryNavigation(NPThing, m.Thing, "THING_ID").
		AddEntryNavigation(NPSensor, m.Sensor, "SENSOR_ID").
		AddEntryNavigation(NPObservedProperty, m.ObservedProperty, "OBS_PROPERTY_ID").
		AddEntryNavigationSet(NPObservations, id)

	sensors := tables.New(TableSensors, m.Sensor, ids)
	sensors.Fields.
		AddEntryID(id).
		AddEntryString(EPName, "NAME").
		AddEntryString(EPDescription, "DESCRIPTION").
		AddEntryString(EPEncodingType, "ENCODING_TYPE").
		AddEntryMap(EPMetadata, "METADATA").
		AddEntryMap(EPProperties, "PROPERTIES").
		AddEntryNavigationSet(NPDatastreams, id)

	obsProperties := tables.New(TableObsProperties, m.ObservedProperty, ids)
	obsProperties.Fields.
		AddEntryID(id).
		AddEntryString(EPName, "NAME").
		AddEntryString(EPDefinition, "DEFINITION").
		AddEntryString(EPDescription, "DESCRIPTION").
		AddEntryMap(EPProperties, "PROPERTIES").
		AddEntryNavigationSet(NPDatastreams, id)

	observations := tables.New(TableObservations, m.Observation, ids)
	observations.Fields.
		AddEntryID(id).
		AddEntryTimeValue(EPPhenomenonTime, "PHENOMENON_TIME_START", "PHENOMENON_TIME_END").
		AddEntryTimeInstant(EPResultTime, "RESULT_TIME").
		AddEntryMap(EPResultQuality, "RESULT_QUALITY").
		AddEntryTimeInterval(EPValidTime, "VALID_TIME_START", "VALID_TIME_END").
		AddEntryMap(EPParameters, "PARAMETERS").
		AddEntryNavigation(NPDatastream, m.Datastream, "DATASTREAM_ID").
		AddEntryNavigation(NPFeatureOfInterest, m.FeatureOfInterest, "FEATURE_ID")
	addEntryResult(observations.Fields)
	observations.AddPreInsertHook(m.defaultPhenomenonTime)
	observations.AddPreInsertHook(m.deriveFeatureOfInterest)
	observations.AddPostInsertHook(extendDatastreamTimes)
	observations.AddPreUpdateHook(m.extendDatastreamTimesOnUpdate)

	features := tables.New(TableFeatures, m.FeatureOfInterest, ids)
	features.Fields.
		AddEntryID(id).
		AddEntryString(EPName, "NAME").
		AddEntryString(EPDescription, "DESCRIPTION").
		AddEntryString(EPEncodingType, "ENCODING_TYPE").
		AddEntryMap(EPFeature, "FEATURE").
		AddEntryMap(EPProperties, "PROPERTIES").
		AddEntryNavigationSet(NPObservations, id)
	features.AddPostDeleteHook(clearGeneratedFeature)

	for _, t := range []*tables.Table{things, locations, histLocations, datastreams, sensors, obsProperties, observations, features} {
		c.Register(t)
	}
	registerRelations(c.Relations())
}

// OneToMany registers both directions of a foreign key held by the child
// table. The child to parent direction may auto-create the parent inline.
func OneToMany(g *relations.Graph, child, childTable, fk, parent, parentTable string, autoCreate bool) {
	g.Register(&relations.OneToMany{
		Source:      child,
		SourceTable: childTable,
		SourceField: fk,
		Target:      parent,
		TargetTable: parentTable,
		TargetField: relations.DefaultIDColumn,
		AutoCreate:  autoCreate,
	})
	g.Register(&relations.OneToMany{
		Source:           parent,
		SourceTable:      parentTable,
		SourceField:      relations.DefaultIDColumn,
		Target:           child,
		TargetTable:      childTable,
		TargetField:      fk,
		DistinctRequired: true,
	})
}

func manyToMany(g *relations.Graph, r *relations.ManyToMany) {
	g.Register(r)
	g.Register(r.Inverse())
}

func registerRelations(g *relations.Graph) {
	OneToMany(g, TypeDatastream, TableDatastreams, "THING_ID", TypeThing, TableThings, true)
	OneToMany(g, TypeDatastream, TableDatastreams, "SENSOR_ID", TypeSensor, TableSensors, true)
	OneToMany(g, TypeDatastream, TableDatastreams, "OBS_PROPERTY_ID", TypeObservedProperty, TableObsProperties, true)
	OneToMany(g, TypeObservation, TableObservations, "DATASTREAM_ID", TypeDatastream, TableDatastreams, true)
	OneToMany(g, TypeObservation, TableObservations, "FEATURE_ID", TypeFeatureOfInterest, TableFeatures, true)
	// a HistoricalLocation records an existing Thing
	OneToMany(g, TypeHistoricalLocation, TableHistLocations, "THING_ID", TypeThing, TableThings, false)

	manyToMany(g, thingLocations())
	manyToMany(g, locationHistLocations())
}

func thingLocations() *relations.ManyToMany {
	return &relations.ManyToMany{
		Source:          TypeThing,
		SourceTable:     TableThings,
		SourceField:     relations.DefaultIDColumn,
		LinkTable:       TableThingsLocations,
		SourceLinkField: "THING_ID",
		TargetLinkField: "LOCATION_ID",
		Target:          TypeLocation,
		TargetTable:     TableLocations,
		TargetField:     relations.DefaultIDColumn,
	}
}

func locationHistLocations() *relations.ManyToMany {
	return &relations.ManyToMany{
		Source:          TypeLocation,
		SourceTable:     TableLocations,
		SourceField:     relations.DefaultIDColumn,
		LinkTable:       TableLocationsHistLocs,
		SourceLinkField: "LOCATION_ID",
		TargetLinkField: "HIST_LOCATION_ID",
		Target:          TypeHistoricalLocation,
		TargetTable:     TableHistLocations,
		TargetField:     relations.DefaultIDColumn,
	}
}

// storageID converts an entity id for use in statements
func storageID(ids model.IDCodec, e *model.Entity) interface{} {
	return ids.ToStorage(e.ID())
}
