package model

import (
	"go.uber.org/zap"
)

// Registry is the immutable entity model. It is produced by a Builder at
// startup and shared read-only by every request.
type Registry struct {
	ids         IDCodec
	types       []*EntityType
	typesByName map[string]*EntityType
	entityProps map[string]*Property
	navProps    map[string]*Property
}

// IDs returns the id codec used for all entity types
func (r *Registry) IDs() IDCodec {
	return r.ids
}

// EntityType returns a type by singular or plural name, or nil
func (r *Registry) EntityType(name string) *EntityType {
	return r.typesByName[name]
}

// EntityTypes returns all types in registration order
func (r *Registry) EntityTypes() []*EntityType {
	return r.types
}

// EntityProperty returns a scalar property by name, JSON name or alias
func (r *Registry) EntityProperty(name string) *Property {
	return r.entityProps[name]
}

// NavigationProperty returns a navigation property by name
func (r *Registry) NavigationProperty(name string) *Property {
	return r.navProps[name]
}

// Builder assembles a Registry from model fragments.
type Builder struct {
	reg    *Registry
	logger *zap.Logger
	built  bool
}

// NewBuilder creates a builder for a registry using the given id codec
func NewBuilder(ids IDCodec, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		reg: &Registry{
			ids:         ids,
			typesByName: make(map[string]*EntityType),
			entityProps: map[string]*Property{IDProperty.Name: IDProperty, IDProperty.JSONName: IDProperty},
			navProps:    make(map[string]*Property),
		},
		logger: logger.Named("model"),
	}
}

// RegisterEntityType adds a type. Registering a name twice is a programming
// error and panics.
func (b *Builder) RegisterEntityType(t *EntityType) *Builder {
	if b.built {
		panic(IllegalState("registry already built, cannot register %s", t.Name))
	}
	for _, name := range []string{t.Name, t.Plural} {
		if _, exists := b.reg.typesByName[name]; exists {
			b.logger.Error("entity type registered twice", zap.String("name", name))
			panic(IllegalState("entity type %s is already registered", name))
		}
	}
	t.logger = b.logger.With(zap.String("type", t.Name))
	b.reg.types = append(b.reg.types, t)
	b.reg.typesByName[t.Name] = t
	b.reg.typesByName[t.Plural] = t
	return b
}

// EntityType returns a type registered so far, for fragments extending
// types declared by earlier fragments
func (b *Builder) EntityType(name string) *EntityType {
	return b.reg.typesByName[name]
}

// Build initialises all types and indexes their properties. The builder
// cannot be used afterwards.
func (b *Builder) Build() *Registry {
	if b.built {
		b.logger.Error("registry built more than once")
		return b.reg
	}
	for _, t := range b.reg.types {
		t.Init()
		for _, p := range t.Properties() {
			if p.IsNavigation() {
				if _, ok := b.reg.typesByName[p.Target]; !ok {
					panic(IllegalState("navigation property %s of %s targets unknown type %s", p.Name, t.Name, p.Target))
				}
				b.index(b.reg.navProps, p, p.Name)
				continue
			}
			for _, name := range append([]string{p.Name, p.JSONName}, p.Aliases...) {
				b.index(b.reg.entityProps, p, name)
			}
		}
	}
	b.built = true
	return b.reg
}

func (b *Builder) index(m map[string]*Property, p *Property, name string) {
	if existing, ok := m[name]; ok && existing != p {
		b.logger.Error("conflicting property definitions", zap.String("name", name))
		panic(IllegalState("property name %s is defined twice", name))
	}
	m[name] = p
}
