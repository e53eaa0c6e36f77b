// Package actuation adds the tasking entity types to the sensing model:
// Actuators, TaskingCapabilities and Tasks. Things gain the
// TaskingCapabilities navigation set.
package actuation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/coremodel"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/relations"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
)

// Model holds the tasking entity types of one registry
type Model struct {
	Actuator          *model.EntityType
	TaskingCapability *model.EntityType
	Task              *model.EntityType

	// Now stamps the creationTime of Tasks posted without one
	Now func() time.Time

	logger *zap.Logger
}

var _ coremodel.Fragment = (*Model)(nil)

// New creates the fragment. Its entity types are set by Register.
func New(logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		Now:    time.Now,
		logger: logger.Named("actuation"),
	}
}

// Register adds the tasking entity types to a builder that already holds
// the sensing model
func (m *Model) Register(b *model.Builder) {
	thing := b.EntityType(coremodel.TypeThing)
	if thing == nil {
		panic(model.IllegalState("actuation requires the %s entity type", coremodel.TypeThing))
	}
	thing.RegisterProperty(NPTaskingCapabilities, false)

	m.Actuator = model.NewEntityType(TypeActuator, "Actuators").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(coremodel.EPName, true).
		RegisterProperty(coremodel.EPDescription, true).
		RegisterProperty(coremodel.EPEncodingType, true).
		RegisterProperty(coremodel.EPMetadata, true).
		RegisterProperty(coremodel.EPProperties, false).
		RegisterProperty(NPTaskingCapabilities, false)

	m.TaskingCapability = model.NewEntityType(TypeTaskingCapability, "TaskingCapabilities").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(coremodel.EPName, true).
		RegisterProperty(coremodel.EPDescription, true).
		RegisterProperty(coremodel.EPProperties, false).
		RegisterProperty(EPTaskingParameters, true).
		RegisterProperty(NPActuator, true).
		RegisterProperty(coremodel.NPThing, true).
		RegisterProperty(NPTasks, false)

	m.Task = model.NewEntityType(TypeTask, "Tasks").
		RegisterProperty(model.IDProperty, false).
		RegisterProperty(EPCreationTime, false).
		RegisterProperty(EPTaskingParameters, true).
		RegisterProperty(NPTaskingCapability, true)

	b.RegisterEntityType(m.Actuator).
		RegisterEntityType(m.TaskingCapability).
		RegisterEntityType(m.Task)
	m.logger.Debug("tasking entity types registered")
}

// RegisterTables adds the tasking tables and relations to a collection that
// already holds the sensing tables
func (m *Model) RegisterTables(c *tables.Collection) {
	ids := c.Registry().IDs()
	id := relations.DefaultIDColumn

	things := c.ForType(coremodel.TypeThing)
	if things == nil {
		panic(model.IllegalState("actuation requires the %s table", coremodel.TableThings))
	}
	things.Fields.AddEntryNavigationSet(NPTaskingCapabilities, id)

	actuators := tables.New(TableActuators, m.Actuator, ids)
	actuators.Fields.
		AddEntryID(id).
		AddEntryString(coremodel.EPName, "NAME").
		AddEntryString(coremodel.EPDescription, "DESCRIPTION").
		AddEntryString(coremodel.EPEncodingType, "ENCODING_TYPE").
		AddEntryMap(coremodel.EPMetadata, "METADATA").
		AddEntryMap(coremodel.EPProperties, "PROPERTIES").
		AddEntryNavigationSet(NPTaskingCapabilities, id)

	capabilities := tables.New(TableTaskingCapabilities, m.TaskingCapability, ids)
	capabilities.Fields.
		AddEntryID(id).
		AddEntryString(coremodel.EPName, "NAME").
		AddEntryString(coremodel.EPDescription, "DESCRIPTION").
		AddEntryMap(coremodel.EPProperties, "PROPERTIES").
		AddEntryMap(EPTaskingParameters, "TASKING_PARAMETERS").
		AddEntryNavigation(NPActuator, m.Actuator, "ACTUATOR_ID").
		AddEntryNavigation(coremodel.NPThing, things.Type, "THING_ID").
		AddEntryNavigationSet(NPTasks, id)

	tasks := tables.New(TableTasks, m.Task, ids)
	tasks.Fields.
		AddEntryID(id).
		AddEntryTimeInstant(EPCreationTime, "CREATION_TIME").
		AddEntryMap(EPTaskingParameters, "TASKING_PARAMETERS").
		AddEntryNavigation(NPTaskingCapability, m.TaskingCapability, "TASKINGCAPABILITY_ID")
	tasks.AddPreInsertHook(m.stampCreationTime)

	for _, t := range []*tables.Table{actuators, capabilities, tasks} {
		c.Register(t)
	}

	g := c.Relations()
	coremodel.OneToMany(g, TypeTaskingCapability, TableTaskingCapabilities, "THING_ID", coremodel.TypeThing, coremodel.TableThings, true)
	coremodel.OneToMany(g, TypeTaskingCapability, TableTaskingCapabilities, "ACTUATOR_ID", TypeActuator, TableActuators, true)
	// a Task is posted against an existing TaskingCapability
	coremodel.OneToMany(g, TypeTask, TableTasks, "TASKINGCAPABILITY_ID", TypeTaskingCapability, TableTaskingCapabilities, false)
}

func (m *Model) stampCreationTime(_ context.Context, _ tables.Session, e *model.Entity) error {
	if e.Get(EPCreationTime) == nil {
		e.Set(EPCreationTime, model.Instant(m.Now()))
	}
	return nil
}
