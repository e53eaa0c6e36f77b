package model

import "sort"

// Entity is a property bag of one entity type. The set bits distinguish an
// absent property from one explicitly set to null, which drives partial
// updates. An Entity belongs to the request that created it.
type Entity struct {
	entityType *EntityType
	id         ID
	values     map[*Property]interface{}
	set        map[*Property]bool
}

// NewEntity creates an empty entity of the given type
func NewEntity(t *EntityType) *Entity {
	return &Entity{
		entityType: t,
		values:     make(map[*Property]interface{}),
		set:        make(map[*Property]bool),
	}
}

// Type returns the entity type
func (e *Entity) Type() *EntityType {
	return e.entityType
}

// ID returns the entity id, zero when not yet assigned
func (e *Entity) ID() ID {
	return e.id
}

// SetID assigns the id and marks it set
func (e *Entity) SetID(id ID) *Entity {
	e.id = id
	e.set[IDProperty] = true
	return e
}

// Get returns the value of a property. Navigation properties hold *Entity or
// *EntitySet values.
func (e *Entity) Get(p *Property) interface{} {
	if p == IDProperty {
		if e.id.IsZero() {
			return nil
		}
		return e.id
	}
	return e.values[p]
}

// Set assigns a property value and marks it set
func (e *Entity) Set(p *Property, v interface{}) *Entity {
	if p == IDProperty {
		if id, ok := v.(ID); ok {
			return e.SetID(id)
		}
	}
	e.values[p] = v
	e.set[p] = true
	return e
}

// Unset removes a property value and its set bit
func (e *Entity) Unset(p *Property) {
	if p == IDProperty {
		e.id = ID{}
	}
	delete(e.values, p)
	delete(e.set, p)
}

// IsSet reports whether a property was explicitly set
func (e *Entity) IsSet(p *Property) bool {
	return e.set[p]
}

// MarkSet flips the set bit without changing the value
func (e *Entity) MarkSet(p *Property, set bool) {
	if set {
		e.set[p] = true
		return
	}
	delete(e.set, p)
}

// ClearSetFlags marks all properties unset while keeping their values.
func (e *Entity) ClearSetFlags() {
	e.set = make(map[*Property]bool)
}

// Related returns the entity a single navigation property points at
func (e *Entity) Related(p *Property) *Entity {
	related, _ := e.values[p].(*Entity)
	return related
}

// RelatedSet returns the collection a navigation set property holds
func (e *Entity) RelatedSet(p *Property) *EntitySet {
	set, _ := e.values[p].(*EntitySet)
	return set
}

// SetProperties returns the set properties in type declaration order
func (e *Entity) SetProperties() []*Property {
	var props []*Property
	for _, p := range e.entityType.Properties() {
		if e.set[p] {
			props = append(props, p)
		}
	}
	return props
}

// CustomProperties returns the set custom properties ordered by name. They
// are not part of the type, so SetProperties never lists them.
func (e *Entity) CustomProperties() []*Property {
	var props []*Property
	for p := range e.values {
		if p.IsCustom() && e.set[p] {
			props = append(props, p)
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props
}

// EntitySet is an ordered collection of entities of one type.
type EntitySet struct {
	Type     *EntityType
	Entities []*Entity
	// Count is the total number of matches, -1 when not requested
	Count int64
	// HasMore is set when the page was truncated by top
	HasMore bool
}

// NewEntitySet creates an empty collection
func NewEntitySet(t *EntityType, entities ...*Entity) *EntitySet {
	return &EntitySet{Type: t, Entities: entities, Count: -1}
}

// Add appends an entity
func (s *EntitySet) Add(e *Entity) {
	s.Entities = append(s.Entities, e)
}

// Len returns the number of entities in the page
func (s *EntitySet) Len() int {
	return len(s.Entities)
}

// ParentRef identifies the entity owning a collection path segment.
type ParentRef struct {
	Type *EntityType
	ID   ID
}

// EventType is the kind of change reported in a ChangeMessage
type EventType int

const (
	EventCreate EventType = iota
	EventUpdate
	EventDelete
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeMessage records one created, updated or deleted entity and the
// properties that changed.
type ChangeMessage struct {
	Event  EventType
	Entity *Entity
	Fields []*Property
}

// NewChangeMessage creates a message without changed fields
func NewChangeMessage(event EventType, e *Entity) *ChangeMessage {
	return &ChangeMessage{Event: event, Entity: e}
}

// AddField records a changed property once
func (m *ChangeMessage) AddField(p *Property) *ChangeMessage {
	if !m.HasField(p) {
		m.Fields = append(m.Fields, p)
	}
	return m
}

// HasField reports whether the property is recorded as changed
func (m *ChangeMessage) HasField(p *Property) bool {
	for _, f := range m.Fields {
		if f == p {
			return true
		}
	}
	return false
}
