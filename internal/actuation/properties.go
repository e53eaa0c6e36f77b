package actuation

import "github.com/conduit-lang/sensorthings/internal/model"

// Entity properties of the tasking model. Names shared with the sensing
// model reuse its definitions.
var (
	EPTaskingParameters = model.NewEntityProperty("taskingParameters", model.TypeObject)
	EPCreationTime      = model.NewEntityProperty("creationTime", model.TypeTimeInstant)
)

// Navigation properties of the tasking model
var (
	NPActuator            = model.NewNavigationProperty("Actuator", TypeActuator, false)
	NPTaskingCapability   = model.NewNavigationProperty("TaskingCapability", TypeTaskingCapability, false)
	NPTaskingCapabilities = model.NewNavigationProperty("TaskingCapabilities", TypeTaskingCapability, true)
	NPTasks               = model.NewNavigationProperty("Tasks", TypeTask, true)
)

// Entity type names
const (
	TypeActuator          = "Actuator"
	TypeTaskingCapability = "TaskingCapability"
	TypeTask              = "Task"
)

// Table names
const (
	TableActuators           = "ACTUATORS"
	TableTaskingCapabilities = "TASKINGCAPABILITIES"
	TableTasks               = "TASKS"
)
