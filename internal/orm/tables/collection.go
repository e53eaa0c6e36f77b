package tables

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/relations"
)

// Collection holds the tables of all entity types and the relation graph
type Collection struct {
	registry  *model.Registry
	relations *relations.Graph
	tables    map[string]*Table
	order     []*Table
	logger    *zap.Logger
}

// NewCollection creates an empty collection for a registry
func NewCollection(reg *model.Registry, logger *zap.Logger) *Collection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection{
		registry:  reg,
		relations: relations.NewGraph(logger),
		tables:    make(map[string]*Table),
		logger:    logger.Named("tables"),
	}
}

// Registry returns the entity model
func (c *Collection) Registry() *model.Registry {
	return c.registry
}

// Relations returns the relation graph
func (c *Collection) Relations() *relations.Graph {
	return c.relations
}

// Register adds the table of an entity type. Two tables for one type are a
// programming error.
func (c *Collection) Register(t *Table) *Table {
	if _, exists := c.tables[t.Type.Name]; exists {
		c.logger.Error("table registered twice", zap.String("type", t.Type.Name))
		panic(model.IllegalState("table for %s is already registered", t.Type.Name))
	}
	c.tables[t.Type.Name] = t
	c.order = append(c.order, t)
	return t
}

// ForType returns the table of an entity type name, or nil
func (c *Collection) ForType(name string) *Table {
	return c.tables[name]
}

// ForEntityType returns the table of an entity type. Every type has one after
// Validate.
func (c *Collection) ForEntityType(t *model.EntityType) *Table {
	table := c.tables[t.Name]
	if table == nil {
		panic(model.IllegalState("no table for entity type %s", t.Name))
	}
	return table
}

// Tables returns the tables in registration order
func (c *Collection) Tables() []*Table {
	return c.order
}

// Validate checks that every entity type has a table and every navigation
// property has a relation and a field entry.
func (c *Collection) Validate() {
	for _, et := range c.registry.EntityTypes() {
		table := c.tables[et.Name]
		if table == nil {
			panic(model.IllegalState("no table for entity type %s", et.Name))
		}
		for _, np := range et.NavigationProperties() {
			if c.relations.ForProperty(et.Name, np) == nil {
				panic(model.IllegalState("no relation for %s/%s", et.Name, np.Name))
			}
			if table.Fields.Entry(np) == nil {
				panic(model.IllegalState("no fields for %s/%s", et.Name, np.Name))
			}
		}
	}
	c.logger.Debug("tables validated", zap.Int("tables", len(c.order)))
}
