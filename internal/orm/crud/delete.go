package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/path"
)

// Delete removes one entity and runs the post-delete hooks of its table
func (s *Session) Delete(ctx context.Context, et *model.EntityType, id model.ID) error {
	table := s.m.tables.ForEntityType(et)
	stmt, args, err := plan.Delete{
		Table: table.Name,
		Where: plan.Eq(plan.Field{Column: table.IDColumn}, plan.Literal{Value: s.ids().ToStorage(id)}),
	}.Render()
	if err != nil {
		return err
	}

	result, err := s.tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", et.Name, ConvertDBError(err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	switch {
	case affected == 0:
		return model.NoSuchEntity("%s %s not found", et.Name, id)
	case affected > 1:
		panic(model.IllegalState("delete of %s %s removed %d rows", et.Name, id, affected))
	}

	if err := table.PostDelete(ctx, s, id); err != nil {
		return err
	}
	s.Emit(model.NewChangeMessage(model.EventDelete, model.NewEntity(et).SetID(id)))
	return nil
}

// DeletePath removes the entity rp addresses. Every id on the path must
// exist and be reachable.
func (s *Session) DeletePath(ctx context.Context, rp *path.ResourcePath) error {
	main := rp.Main()
	if !rp.IsEntityTerminal() || main.ID.IsZero() {
		return model.InvalidPath("%s does not address an entity by id", rp.String(s.ids()))
	}
	if len(rp.Elements) > 1 {
		if err := s.ValidatePath(ctx, rp); err != nil {
			return err
		}
	}
	return s.Delete(ctx, main.Type, main.ID)
}
