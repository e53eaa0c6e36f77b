package model

import (
	"go.uber.org/zap"
)

// Validator checks an entity after its required properties were verified.
type Validator func(e *Entity, entityPropertiesOnly bool) error

// EntityType describes a named kind of entity and its properties.
//
// A type is populated with RegisterProperty and finalized with Init, which
// partitions the properties into the derived sets. After Init the type is
// immutable and shared by all requests.
type EntityType struct {
	Name   string
	Plural string

	properties []*Property
	required   map[*Property]bool
	byName     map[string]*Property
	validators []Validator

	initialised          bool
	entityProperties     []*Property
	navigationProperties []*Property
	navigationEntities   []*Property
	navigationSets       []*Property
	navigationByTarget   map[string]*Property

	logger *zap.Logger
}

// NewEntityType creates an empty entity type
func NewEntityType(name, plural string) *EntityType {
	return &EntityType{
		Name:               name,
		Plural:             plural,
		required:           make(map[*Property]bool),
		byName:             make(map[string]*Property),
		navigationByTarget: make(map[string]*Property),
		logger:             zap.NewNop(),
	}
}

// RegisterProperty adds a property. Registering the same property again
// only updates its required flag.
func (t *EntityType) RegisterProperty(p *Property, required bool) *EntityType {
	if t.initialised {
		panic(IllegalState("entity type %s is initialised, cannot register %s", t.Name, p.Name))
	}
	if _, exists := t.required[p]; !exists {
		t.properties = append(t.properties, p)
		t.byName[p.Name] = p
		t.byName[p.JSONName] = p
		for _, alias := range p.Aliases {
			t.byName[alias] = p
		}
	}
	t.required[p] = required
	return t
}

// AddValidator registers a validator run by Complete
func (t *EntityType) AddValidator(v Validator) *EntityType {
	t.validators = append(t.validators, v)
	return t
}

// Init partitions the registered properties. A second call is logged and ignored.
func (t *EntityType) Init() {
	if t.initialised {
		t.logger.Error("entity type initialised more than once", zap.String("type", t.Name))
		return
	}
	for _, p := range t.properties {
		switch p.Kind {
		case KindEntity:
			t.entityProperties = append(t.entityProperties, p)
		case KindNavigation:
			t.navigationProperties = append(t.navigationProperties, p)
			t.navigationEntities = append(t.navigationEntities, p)
			t.navigationByTarget[p.Target] = p
		case KindNavigationSet:
			t.navigationProperties = append(t.navigationProperties, p)
			t.navigationSets = append(t.navigationSets, p)
			t.navigationByTarget[p.Target] = p
		}
	}
	t.initialised = true
}

// Initialised reports whether Init has run
func (t *EntityType) Initialised() bool {
	return t.initialised
}

// Properties returns all properties in registration order
func (t *EntityType) Properties() []*Property {
	return t.properties
}

// EntityProperties returns the scalar properties
func (t *EntityType) EntityProperties() []*Property {
	return t.entityProperties
}

// NavigationProperties returns all navigation properties
func (t *EntityType) NavigationProperties() []*Property {
	return t.navigationProperties
}

// NavigationEntities returns the navigation properties pointing at one entity
func (t *EntityType) NavigationEntities() []*Property {
	return t.navigationEntities
}

// NavigationSets returns the navigation properties pointing at collections
func (t *EntityType) NavigationSets() []*Property {
	return t.navigationSets
}

// NavigationPropertyTo returns the navigation property pointing at the named
// type, or nil
func (t *EntityType) NavigationPropertyTo(target string) *Property {
	return t.navigationByTarget[target]
}

// Property looks a property up by name, JSON name or alias
func (t *EntityType) Property(name string) *Property {
	return t.byName[name]
}

// HasProperty reports whether p is registered on this type
func (t *EntityType) HasProperty(p *Property) bool {
	_, ok := t.required[p]
	return ok
}

// IsRequired reports whether p is required. Unknown properties are optional.
func (t *EntityType) IsRequired(p *Property) bool {
	return t.required[p]
}

// Complete verifies that all required properties are set and runs the
// validators. With entityPropertiesOnly, required navigation properties
// are not checked.
func (t *EntityType) Complete(e *Entity, entityPropertiesOnly bool) error {
	for _, p := range t.properties {
		if entityPropertiesOnly && p.IsNavigation() {
			continue
		}
		if t.required[p] && !e.IsSet(p) {
			return IncompleteEntity("%s is required for %s", p.Name, t.Name)
		}
	}
	for _, v := range t.validators {
		if err := v(e, entityPropertiesOnly); err != nil {
			return err
		}
	}
	return nil
}

// CompleteInSet injects the link to the parent owning the collection the
// entity is created in, then runs Complete.
func (t *EntityType) CompleteInSet(e *Entity, parent *ParentRef) error {
	if parent != nil && parent.Type != nil {
		np := t.NavigationPropertyTo(parent.Type.Name)
		if np == nil {
			return IncompleteEntity("no navigation property from %s to %s", t.Name, parent.Type.Name)
		}
		if np.IsEntitySet() {
			return IncompleteEntity("navigation property %s of %s is a collection, parent must be single", np.Name, t.Name)
		}
		e.Set(np, NewEntity(parent.Type).SetID(parent.ID))
	}
	return t.Complete(e, false)
}

func (t *EntityType) String() string {
	return t.Name
}
