package crud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/jsonio"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/orm/tracking"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// Update writes the set properties of e to the entity with e's id. Set
// navigation sets link existing entities; no new entities are created.
func (s *Session) Update(ctx context.Context, e *model.Entity) (*model.ChangeMessage, error) {
	et := e.Type()
	table := s.m.tables.ForEntityType(et)
	ids := s.ids()
	if e.ID().IsZero() {
		return nil, model.IncompleteEntity("an update of a %s needs the id", et.Name)
	}

	if err := table.PreUpdate(ctx, s, e); err != nil {
		return nil, err
	}

	for _, p := range e.SetProperties() {
		if p != model.IDProperty && !p.IsEntitySet() && et.IsRequired(p) && e.Get(p) == nil {
			return nil, model.IncompleteEntity("%s of %s cannot be set to null", p.Name, et.Name)
		}
	}
	for _, np := range et.NavigationEntities() {
		target := e.Related(np)
		if !e.IsSet(np) || target == nil {
			continue
		}
		if target.ID().IsZero() {
			return nil, model.NoSuchEntity("%s of %s must reference an existing entity", np.Name, et.Name)
		}
		if err := s.mustExist(ctx, target.Type(), target.ID()); err != nil {
			return nil, err
		}
	}

	msg := model.NewChangeMessage(model.EventUpdate, e)
	values, err := table.Fields.UpdateFields(e, msg)
	if err != nil {
		return nil, err
	}

	if len(values) > 0 {
		stmt, args, err := plan.Update{
			Table: table.Name,
			Set:   values,
			Where: plan.Eq(plan.Field{Column: table.IDColumn}, plan.Literal{Value: ids.ToStorage(e.ID())}),
		}.Render()
		if err != nil {
			return nil, err
		}
		result, err := s.tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", et.Name, ConvertDBError(err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		switch {
		case affected == 0:
			return nil, model.NoSuchEntity("%s %s not found", et.Name, e.ID())
		case affected > 1:
			panic(model.IllegalState("update of %s %s changed %d rows", et.Name, e.ID(), affected))
		}
	} else if err := s.mustExist(ctx, et, e.ID()); err != nil {
		return nil, err
	}

	for _, np := range et.NavigationSets() {
		set := e.RelatedSet(np)
		if !e.IsSet(np) || set == nil || set.Len() == 0 {
			continue
		}
		if err := s.linkSet(ctx, e, np, set.Entities, false, true); err != nil {
			return nil, err
		}
		msg.AddField(np)
	}

	s.Emit(msg)
	return msg, nil
}

// Patch applies a JSON Patch (RFC 6902) array or a JSON Merge Patch
// (RFC 7386) object to the entity rp addresses. The patched document holds
// the entity properties and a {"@iot.id": ...} object per linked navigation
// entity, so /Thing can be replaced like any other member. The entity is
// locked for the rest of the transaction. A patch that changes nothing is
// rejected.
func (s *Session) Patch(ctx context.Context, rp *path.ResourcePath, patch []byte) (*model.ChangeMessage, error) {
	if !rp.IsEntityTerminal() || rp.IsCollection() {
		return nil, model.InvalidPath("%s does not address an entity", rp.String(s.ids()))
	}
	ids := s.ids()
	reg := s.m.tables.Registry()

	target, err := s.lockTarget(ctx, rp)
	if err != nil {
		return nil, err
	}
	et := target.MainType()
	lock := query.New().
		AddSelect(et.EntityProperties()...).
		AddSelect(et.NavigationEntities()...)
	original, err := s.get(ctx, target, lock, true)
	if err != nil {
		return nil, err
	}
	before, err := json.Marshal(jsonio.Write(ids, original))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", et.Name, err)
	}
	after, err := applyPatch(before, patch)
	if err != nil {
		return nil, err
	}

	var beforeDoc, afterDoc map[string]interface{}
	if err := json.Unmarshal(before, &beforeDoc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", et.Name, err)
	}
	if err := json.Unmarshal(after, &afterDoc); err != nil || afterDoc == nil {
		return nil, model.InvalidPatch("patched document is not an object")
	}

	changes := tracking.NewChangeTracker(beforeDoc, afterDoc)
	if idKey := model.IDProperty.JSONName; changes.Changed(idKey) {
		// the id is not patchable
		s.m.logger.Debug("id change in patch ignored", zap.String("type", et.Name))
		changes.Ignore(idKey)
	}
	if !changes.HasChanges() {
		return nil, model.InvalidPatch("patch did not change anything")
	}
	for _, field := range changes.ChangedFields() {
		change := changes.GetChange(field)
		s.m.logger.Debug("patching field",
			zap.String("type", et.Name),
			zap.String("field", field),
			zap.Any("old", change.OldValue),
			zap.Any("new", change.NewValue))
	}

	patched, err := jsonio.ReadMap(reg, et, changes.GetChangedData())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidPatch, err)
	}
	patched.SetID(original.ID())
	return s.Update(ctx, patched)
}

// lockTarget resolves rp to a single-segment path so the row lock is taken
// on the entity's own table and not on the rows joined to reach it.
func (s *Session) lockTarget(ctx context.Context, rp *path.ResourcePath) (*path.ResourcePath, error) {
	if len(rp.Elements) == 1 {
		return rp, nil
	}
	main := rp.Main()
	if !main.ID.IsZero() {
		if err := s.ValidatePath(ctx, rp); err != nil {
			return nil, err
		}
		return path.ForEntity(main.Type, main.ID), nil
	}
	e, err := s.get(ctx, rp, query.New().AddSelect(model.IDProperty), false)
	if err != nil {
		return nil, err
	}
	return path.ForEntity(main.Type, e.ID()), nil
}

func applyPatch(doc, patch []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(patch)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		out, err := jsonpatch.MergePatch(doc, trimmed)
		if err != nil {
			return nil, model.InvalidPatch("merge patch: %v", err)
		}
		return out, nil
	}

	ops, err := jsonpatch.DecodePatch(trimmed)
	if err != nil {
		return nil, model.InvalidPatch("%v", err)
	}
	out, err := ops.Apply(doc)
	if err != nil {
		return nil, model.InvalidPatch("%v", err)
	}
	return out, nil
}
