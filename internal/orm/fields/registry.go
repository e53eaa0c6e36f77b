// Package fields maps entity properties to the table columns that store
// them and converts values between entities and rows.
package fields

import (
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
)

// Field keys of multi-column properties
const (
	// KeyStart and KeyEnd are the columns of a time value
	KeyStart = "start"
	KeyEnd   = "end"

	// KeyNumber, KeyString, KeyBoolean and KeyJSON are the typed columns of
	// a property holding arbitrary JSON, e.g. an observation result
	KeyNumber  = "n"
	KeyString  = "s"
	KeyBoolean = "b"
	KeyJSON    = "j"
	KeyType    = "t"
)

// Field is one selectable storage field of a property. Path is set for JSON
// sub-path fields.
type Field struct {
	Key    string
	Column string
	Path   []string
}

// Expr returns the field as an expression on the given table reference
func (f Field) Expr(t plan.Table) plan.Expr {
	if len(f.Path) > 0 {
		return plan.JSONPath{Field: t.Field(f.Column), Path: f.Path, As: plan.AsJSON}
	}
	return t.Field(f.Column)
}

// Values holds the scanned values of one entry's fields, keyed by field key
type Values map[string]interface{}

// Converter moves a property value between an entity and storage.
type Converter struct {
	// Read sets the property on the entity from the scanned field values
	Read func(v Values, e *model.Entity) error
	// Insert adds the column values for the property to an insert
	Insert func(e *model.Entity, insert map[string]interface{}) error
	// Update adds the column values to an update and records the changed
	// property in the message
	Update func(e *model.Entity, update map[string]interface{}, msg *model.ChangeMessage) error
}

// Entry binds a property to its converter and fields
type Entry struct {
	Property  *model.Property
	Converter Converter
	Fields    []Field
}

// Field returns the field with the given key, or false
func (e *Entry) Field(key string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Registry holds the entries of one table
type Registry struct {
	table   string
	ids     model.IDCodec
	entries map[*model.Property]*Entry
	order   []*Entry
}

// NewRegistry creates an empty registry for a table
func NewRegistry(table string, ids model.IDCodec) *Registry {
	return &Registry{
		table:   table,
		ids:     ids,
		entries: make(map[*model.Property]*Entry),
	}
}

// Table returns the table name
func (r *Registry) Table() string {
	return r.table
}

// IDs returns the id codec
func (r *Registry) IDs() model.IDCodec {
	return r.ids
}

// AddEntry registers a property. A later entry for the same property replaces
// the earlier one.
func (r *Registry) AddEntry(p *model.Property, conv Converter, fields ...Field) *Registry {
	entry := &Entry{Property: p, Converter: conv, Fields: fields}
	if _, exists := r.entries[p]; !exists {
		r.order = append(r.order, entry)
	} else {
		for i, old := range r.order {
			if old.Property == p {
				r.order[i] = entry
			}
		}
	}
	r.entries[p] = entry
	return r
}

// Entries returns the entries in registration order
func (r *Registry) Entries() []*Entry {
	return r.order
}

// Entry returns the entry of a property. Custom properties get an entry
// synthesized from their main property. It returns nil when the property
// is not stored in this table.
func (r *Registry) Entry(p *model.Property) *Entry {
	if entry, ok := r.entries[p]; ok {
		return entry
	}
	if p.IsCustom() {
		return r.customEntry(p)
	}
	return nil
}

// SelectFields returns the fields to select for a property. Asking for a
// property the table does not store is a programming error.
func (r *Registry) SelectFields(p *model.Property) []Field {
	entry := r.Entry(p)
	if entry == nil {
		panic(model.IllegalState("table %s has no fields for property %s", r.table, p.Name))
	}
	return entry.Fields
}

// InsertFields converts the set properties of an entity into column values
func (r *Registry) InsertFields(e *model.Entity) (map[string]interface{}, error) {
	insert := make(map[string]interface{})
	for _, entry := range r.order {
		if entry.Converter.Insert == nil || !e.IsSet(entry.Property) {
			continue
		}
		if err := entry.Converter.Insert(e, insert); err != nil {
			return nil, err
		}
	}
	return insert, nil
}

// UpdateFields converts the set properties of an entity into column values
// for an update and records them in msg. The id is never updated.
func (r *Registry) UpdateFields(e *model.Entity, msg *model.ChangeMessage) (map[string]interface{}, error) {
	update := make(map[string]interface{})
	for _, entry := range r.order {
		if entry.Property == model.IDProperty || entry.Converter.Update == nil || !e.IsSet(entry.Property) {
			continue
		}
		if err := entry.Converter.Update(e, update, msg); err != nil {
			return nil, err
		}
	}
	return update, nil
}

func (r *Registry) customEntry(p *model.Property) *Entry {
	main, ok := r.entries[p.Main]
	if !ok || len(main.Fields) != 1 {
		return nil
	}
	field := Field{Key: p.Name, Column: main.Fields[0].Column, Path: p.SubPath}
	return &Entry{
		Property: p,
		Fields:   []Field{field},
		Converter: Converter{
			Read: func(v Values, e *model.Entity) error {
				value, err := decodeJSON(v[field.Key])
				if err != nil {
					return err
				}
				e.Set(p, value)
				return nil
			},
		},
	}
}
