package relations

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
)

type key struct {
	source string
	name   string
}

// Graph indexes relations by source type name and relation name. Entries
// refer to types by name only, so the graph holds no pointer cycles.
type Graph struct {
	relations map[key]Relation
	bySource  map[string][]Relation
	logger    *zap.Logger
}

// NewGraph creates an empty relation graph
func NewGraph(logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		relations: make(map[key]Relation),
		bySource:  make(map[string][]Relation),
		logger:    logger.Named("relations"),
	}
}

// Register adds a relation. A second relation with the same source and name
// is a programming error.
func (g *Graph) Register(r Relation) {
	k := key{source: r.SourceType(), name: r.Name()}
	if _, exists := g.relations[k]; exists {
		g.logger.Error("relation registered twice",
			zap.String("source", r.SourceType()),
			zap.String("name", r.Name()))
		panic(model.IllegalState("relation %s -> %s is already registered", r.SourceType(), r.Name()))
	}
	g.relations[k] = r
	g.bySource[r.SourceType()] = append(g.bySource[r.SourceType()], r)
}

// Find returns the relation from source named name, or nil
func (g *Graph) Find(source, name string) Relation {
	return g.relations[key{source: source, name: name}]
}

// ForProperty returns the relation a navigation property of source uses
func (g *Graph) ForProperty(source string, np *model.Property) Relation {
	return g.Find(source, np.Target)
}

// From returns the relations of a source type in registration order
func (g *Graph) From(source string) []Relation {
	return g.bySource[source]
}
