package fields

import (
	"github.com/conduit-lang/sensorthings/internal/model"
)

// AddEntryID registers the id column. The id is written on insert only when
// the entity carries one.
func (r *Registry) AddEntryID(column string) *Registry {
	return r.AddEntry(model.IDProperty, Converter{
		Read: func(v Values, e *model.Entity) error {
			id, err := r.ids.FromStorage(v[model.IDProperty.Name])
			if err != nil {
				return err
			}
			if !id.IsZero() {
				e.SetID(id)
			}
			return nil
		},
		Insert: func(e *model.Entity, insert map[string]interface{}) error {
			if !e.ID().IsZero() {
				insert[column] = r.ids.ToStorage(e.ID())
			}
			return nil
		},
	}, Field{Key: model.IDProperty.Name, Column: column})
}

// AddEntryString registers a text column
func (r *Registry) AddEntryString(p *model.Property, column string) *Registry {
	return r.addSimple(p, column, toString, identity)
}

// AddEntryNumber registers a double precision column
func (r *Registry) AddEntryNumber(p *model.Property, column string) *Registry {
	return r.addSimple(p, column, toFloat, identity)
}

// AddEntryBoolean registers a boolean column
func (r *Registry) AddEntryBoolean(p *model.Property, column string) *Registry {
	return r.addSimple(p, column, toBool, identity)
}

// AddEntryMap registers a jsonb column holding a JSON document
func (r *Registry) AddEntryMap(p *model.Property, column string) *Registry {
	return r.addSimple(p, column, decodeJSON, encodeJSON)
}

// AddEntryTimeInstant registers a timestamp column holding an instant
func (r *Registry) AddEntryTimeInstant(p *model.Property, column string) *Registry {
	return r.addSimple(p, column, toInstant, fromInstant)
}

// AddEntryTimeInterval registers a start and end column pair holding an interval
func (r *Registry) AddEntryTimeInterval(p *model.Property, startColumn, endColumn string) *Registry {
	return r.addTime(p, startColumn, endColumn, true)
}

// AddEntryTimeValue registers a start and end column pair holding an instant
// (equal start and end) or an interval
func (r *Registry) AddEntryTimeValue(p *model.Property, startColumn, endColumn string) *Registry {
	return r.addTime(p, startColumn, endColumn, false)
}

// AddEntryNavigation registers a foreign key column holding the id of the
// entity a single navigation property points at
func (r *Registry) AddEntryNavigation(np *model.Property, target *model.EntityType, column string) *Registry {
	key := np.Name
	return r.AddEntry(np, Converter{
		Read: func(v Values, e *model.Entity) error {
			id, err := r.ids.FromStorage(v[key])
			if err != nil {
				return err
			}
			if id.IsZero() {
				e.Set(np, nil)
				return nil
			}
			e.Set(np, model.NewEntity(target).SetID(id))
			return nil
		},
		Insert: func(e *model.Entity, insert map[string]interface{}) error {
			insert[column] = r.relatedID(e, np)
			return nil
		},
		Update: func(e *model.Entity, update map[string]interface{}, msg *model.ChangeMessage) error {
			update[column] = r.relatedID(e, np)
			msg.AddField(np)
			return nil
		},
	}, Field{Key: key, Column: column})
}

// AddEntryNavigationSet registers a navigation set. Selecting it selects the
// id column, which expands need to find the related entities.
func (r *Registry) AddEntryNavigationSet(np *model.Property, idColumn string) *Registry {
	return r.AddEntry(np, Converter{}, Field{Key: model.IDProperty.Name, Column: idColumn})
}

func (r *Registry) relatedID(e *model.Entity, np *model.Property) interface{} {
	related := e.Related(np)
	if related == nil || related.ID().IsZero() {
		return nil
	}
	return r.ids.ToStorage(related.ID())
}

func (r *Registry) addSimple(p *model.Property, column string, read func(interface{}) (interface{}, error), write func(interface{}) (interface{}, error)) *Registry {
	key := p.Name
	return r.AddEntry(p, Converter{
		Read: func(v Values, e *model.Entity) error {
			value, err := read(v[key])
			if err != nil {
				return err
			}
			e.Set(p, value)
			return nil
		},
		Insert: func(e *model.Entity, insert map[string]interface{}) error {
			value, err := write(e.Get(p))
			if err != nil {
				return err
			}
			insert[column] = value
			return nil
		},
		Update: func(e *model.Entity, update map[string]interface{}, msg *model.ChangeMessage) error {
			value, err := write(e.Get(p))
			if err != nil {
				return err
			}
			update[column] = value
			msg.AddField(p)
			return nil
		},
	}, Field{Key: key, Column: column})
}

func (r *Registry) addTime(p *model.Property, startColumn, endColumn string, interval bool) *Registry {
	write := func(e *model.Entity, values map[string]interface{}) {
		tv, ok := e.Get(p).(model.TimeValue)
		if !ok {
			values[startColumn] = nil
			values[endColumn] = nil
			return
		}
		values[startColumn] = tv.Start
		values[endColumn] = tv.End
	}
	return r.AddEntry(p, Converter{
		Read: func(v Values, e *model.Entity) error {
			value, err := toTimeValue(v[KeyStart], v[KeyEnd], interval)
			if err != nil {
				return err
			}
			e.Set(p, value)
			return nil
		},
		Insert: func(e *model.Entity, insert map[string]interface{}) error {
			write(e, insert)
			return nil
		},
		Update: func(e *model.Entity, update map[string]interface{}, msg *model.ChangeMessage) error {
			write(e, update)
			msg.AddField(p)
			return nil
		},
	}, Field{Key: KeyStart, Column: startColumn}, Field{Key: KeyEnd, Column: endColumn})
}
