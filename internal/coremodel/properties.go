package coremodel

import "github.com/conduit-lang/sensorthings/internal/model"

// Entity properties of the sensing model. Properties with the same name
// share one definition across entity types.
var (
	EPName              = model.NewEntityProperty("name", model.TypeString)
	EPDescription       = model.NewEntityProperty("description", model.TypeString)
	EPProperties        = model.NewEntityProperty("properties", model.TypeObject)
	EPEncodingType      = model.NewEntityProperty("encodingType", model.TypeString)
	EPDefinition        = model.NewEntityProperty("definition", model.TypeString)
	EPMetadata          = model.NewEntityProperty("metadata", model.TypeAny)
	EPLocation          = model.NewEntityProperty("location", model.TypeGeometry)
	EPFeature           = model.NewEntityProperty("feature", model.TypeGeometry)
	EPTime              = model.NewEntityProperty("time", model.TypeTimeInstant)
	EPResult            = model.NewEntityProperty("result", model.TypeAny)
	EPResultQuality     = model.NewEntityProperty("resultQuality", model.TypeAny)
	EPValidTime         = model.NewEntityProperty("validTime", model.TypeTimeInterval)
	EPParameters        = model.NewEntityProperty("parameters", model.TypeObject)
	EPObservationType   = model.NewEntityProperty("observationType", model.TypeString)
	EPUnitOfMeasurement = model.NewEntityProperty("unitOfMeasurement", model.TypeObject)
	EPObservedArea      = model.NewEntityProperty("observedArea", model.TypeGeometry)
	EPPhenomenonTime    = model.NewEntityProperty("phenomenonTime", model.TypeTimeValue)
	EPResultTime        = model.NewEntityProperty("resultTime", model.TypeTimeValue)
)

// Navigation properties of the sensing model
var (
	NPThing               = model.NewNavigationProperty("Thing", TypeThing, false)
	NPThings              = model.NewNavigationProperty("Things", TypeThing, true)
	NPLocations           = model.NewNavigationProperty("Locations", TypeLocation, true)
	NPHistoricalLocations = model.NewNavigationProperty("HistoricalLocations", TypeHistoricalLocation, true)
	NPDatastream          = model.NewNavigationProperty("Datastream", TypeDatastream, false)
	NPDatastreams         = model.NewNavigationProperty("Datastreams", TypeDatastream, true)
	NPSensor              = model.NewNavigationProperty("Sensor", TypeSensor, false)
	NPObservedProperty    = model.NewNavigationProperty("ObservedProperty", TypeObservedProperty, false)
	NPObservations        = model.NewNavigationProperty("Observations", TypeObservation, true)
	NPFeatureOfInterest   = model.NewNavigationProperty("FeatureOfInterest", TypeFeatureOfInterest, false)
)

// Entity type names
const (
	TypeThing              = "Thing"
	TypeLocation           = "Location"
	TypeHistoricalLocation = "HistoricalLocation"
	TypeDatastream         = "Datastream"
	TypeSensor             = "Sensor"
	TypeObservedProperty   = "ObservedProperty"
	TypeObservation        = "Observation"
	TypeFeatureOfInterest  = "FeatureOfInterest"
)
