package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/orm/relations"
	"github.com/conduit-lang/sensorthings/internal/path"
)

// Create inserts a client supplied entity into the collection rp addresses.
// When rp is below an entity, e.g. /Datastreams(1)/Observations, the link to
// that entity is set on e. Inline related entities are created or linked.
func (s *Session) Create(ctx context.Context, rp *path.ResourcePath, e *model.Entity) error {
	if !rp.IsCollection() {
		return model.InvalidPath("entities are created in a collection, not in %s", rp.String(s.ids()))
	}
	if rp.MainType() != e.Type() {
		return model.InvalidEntity("cannot create a %s in %s", e.Type().Name, rp.String(s.ids()))
	}
	if err := s.ValidatePath(ctx, rp); err != nil {
		return err
	}
	return s.insert(ctx, e, rp.Parent(), true)
}

// Insert creates an entity on behalf of the server, e.g. from a hook. The id
// generation mode does not apply.
func (s *Session) Insert(ctx context.Context, e *model.Entity) error {
	return s.insert(ctx, e, nil, false)
}

func (s *Session) insert(ctx context.Context, e *model.Entity, parent *model.ParentRef, client bool) error {
	et := e.Type()
	table := s.m.tables.ForEntityType(et)

	// the parent is known to exist
	var parentLink *model.Property
	if parent != nil {
		if np := et.NavigationPropertyTo(parent.Type.Name); np != nil && !np.IsEntitySet() {
			e.Set(np, model.NewEntity(parent.Type).SetID(parent.ID))
			parentLink = np
		}
	}

	for _, np := range et.NavigationEntities() {
		target := e.Related(np)
		if np == parentLink || !e.IsSet(np) || target == nil {
			continue
		}
		if err := s.resolveTarget(ctx, et, np, target, client); err != nil {
			return err
		}
	}

	if err := table.PreInsert(ctx, s, e); err != nil {
		return err
	}
	if err := et.CompleteInSet(e, parent); err != nil {
		return err
	}
	if err := s.assignID(e, client); err != nil {
		return err
	}

	values, err := table.Fields.InsertFields(e)
	if err != nil {
		return err
	}
	stmt, args := plan.Insert{Table: table.Name, Values: values, Returning: table.IDColumn}.Render()
	var raw interface{}
	if err := s.tx.QueryRowContext(ctx, stmt, args...).Scan(&raw); err != nil {
		return fmt.Errorf("failed to insert %s: %w", et.Name, ConvertDBError(err))
	}
	if e.ID().IsZero() {
		id, err := s.ids().FromStorage(raw)
		if err != nil {
			return fmt.Errorf("read generated %s id: %w", et.Name, err)
		}
		e.SetID(id)
	}

	for _, np := range et.NavigationSets() {
		set := e.RelatedSet(np)
		if !e.IsSet(np) || set == nil || set.Len() == 0 {
			continue
		}
		if err := s.linkSet(ctx, e, np, set.Entities, true, client); err != nil {
			return err
		}
	}

	if err := table.PostInsert(ctx, s, e); err != nil {
		return err
	}
	s.Emit(model.NewChangeMessage(model.EventCreate, e))
	return nil
}

// resolveTarget makes sure the entity a single navigation points at exists.
// An inline entity without id is created when the relation allows it.
func (s *Session) resolveTarget(ctx context.Context, et *model.EntityType, np *model.Property, target *model.Entity, client bool) error {
	if !target.ID().IsZero() {
		return s.mustExist(ctx, target.Type(), target.ID())
	}
	rel, _ := s.m.tables.Relations().ForProperty(et.Name, np).(*relations.OneToMany)
	if rel == nil || !rel.AutoCreate {
		return model.NoSuchEntity("%s of %s must reference an existing entity", np.Name, et.Name)
	}
	return s.insert(ctx, target, nil, client)
}

// assignID applies the id generation mode. Long ids are left to the
// database and read back from RETURNING.
func (s *Session) assignID(e *model.Entity, client bool) error {
	if client {
		switch s.m.opts.IDMode {
		case ServerGeneratedOnly:
			if !e.ID().IsZero() {
				return fmt.Errorf("%w: the id of a %s is generated by the server", model.ErrIDNotAllowed, e.Type().Name)
			}
		case ClientGeneratedOnly:
			if e.ID().IsZero() {
				return model.IncompleteEntity("the id of a %s must be supplied", e.Type().Name)
			}
		}
	}
	if e.ID().IsZero() {
		if id, ok := s.ids().Generate(); ok {
			e.SetID(id)
		}
	}
	return nil
}

// linkSet links the entities of a navigation set to source. Targets without
// an id are created first when create is set.
func (s *Session) linkSet(ctx context.Context, source *model.Entity, np *model.Property, targets []*model.Entity, create, client bool) error {
	et := source.Type()
	ids := s.ids()
	rel := s.m.tables.Relations().ForProperty(et.Name, np)
	if rel == nil {
		panic(model.IllegalState("no relation for %s/%s", et.Name, np.Name))
	}

	newTarget := func() error {
		if !create {
			return model.NoSuchEntity("%s of %s can only link existing entities", np.Name, et.Name)
		}
		return nil
	}

	if hook := s.m.tables.ForEntityType(et).LinkHook(np); hook != nil {
		for _, t := range targets {
			if !t.ID().IsZero() {
				if err := s.mustExist(ctx, t.Type(), t.ID()); err != nil {
					return err
				}
				continue
			}
			if err := newTarget(); err != nil {
				return err
			}
			if err := s.insert(ctx, t, nil, client); err != nil {
				return err
			}
		}
		return hook(ctx, s, source, targets)
	}

	switch r := rel.(type) {
	case *relations.OneToMany:
		for _, t := range targets {
			if t.ID().IsZero() {
				if err := newTarget(); err != nil {
					return err
				}
				if err := s.insert(ctx, t, &model.ParentRef{Type: et, ID: source.ID()}, client); err != nil {
					return err
				}
				continue
			}
			if err := r.Link(ctx, s.tx, ids.ToStorage(source.ID()), ids.ToStorage(t.ID())); err != nil {
				return fmt.Errorf("link %s: %w", np.Name, ConvertDBError(err))
			}
		}
	case *relations.ManyToMany:
		for _, t := range targets {
			if t.ID().IsZero() {
				if err := newTarget(); err != nil {
					return err
				}
				if err := s.insert(ctx, t, nil, client); err != nil {
					return err
				}
			} else if err := s.mustExist(ctx, t.Type(), t.ID()); err != nil {
				return err
			}
			if err := r.Link(ctx, s.tx, ids.ToStorage(source.ID()), ids.ToStorage(t.ID())); err != nil {
				return fmt.Errorf("link %s: %w", np.Name, ConvertDBError(err))
			}
		}
	default:
		panic(model.IllegalState("relation %s -> %s has unknown kind %T", rel.SourceType(), rel.TargetType(), rel))
	}
	return nil
}

// mustExist returns ErrNoSuchEntity unless the entity is stored
func (s *Session) mustExist(ctx context.Context, et *model.EntityType, id model.ID) error {
	table := s.m.tables.ForEntityType(et)
	p := &plan.Plan{
		From:       plan.Table{Name: table.Name},
		Projection: []plan.Column{{Expr: plan.Field{Column: table.IDColumn}}},
		Where:      plan.Eq(plan.Field{Column: table.IDColumn}, plan.Literal{Value: s.ids().ToStorage(id)}),
	}
	stmt, args, err := p.SQL()
	if err != nil {
		return err
	}
	rows, err := s.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", et.Name, ConvertDBError(err))
	}
	defer rows.Close()
	found, err := scanRows(rows, 1)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", et.Name, ConvertDBError(err))
	}
	if len(found) == 0 {
		return model.NoSuchEntity("%s %s not found", et.Name, id)
	}
	return nil
}
