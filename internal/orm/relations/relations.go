// Package relations holds the relation graph between entity tables: how one
// table joins to another and how two entities are linked in storage.
package relations

import (
	"context"
	"database/sql"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
)

// DefaultIDColumn is the primary key column name used when a relation does
// not name one
const DefaultIDColumn = "ID"

// Execer is an interface for executing SQL statements, satisfied by *sql.DB
// and *sql.Tx
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Relation connects a source entity table to a target entity table.
type Relation interface {
	// Name is the relation name, the target type name for core relations
	Name() string
	SourceType() string
	TargetType() string
	// Join joins the target table to source and returns the joined reference
	Join(state *plan.State, source plan.Table) plan.Table
	// Link stores that sourceID points at targetID. Ids are storage values.
	Link(ctx context.Context, db Execer, sourceID, targetID interface{}) error
}

// OneToMany is a relation over a plain foreign key: SourceField on the source
// table equals TargetField on the target table. Exactly one of the two fields
// is a primary key.
type OneToMany struct {
	Source      string
	SourceTable string
	SourceField string
	Target      string
	TargetTable string
	TargetField string

	// SourceIDField and TargetIDField default to DefaultIDColumn
	SourceIDField string
	TargetIDField string

	// AutoCreate permits creating an inline target entity that has no id
	AutoCreate bool
	// DistinctRequired is set for the to-many direction, where the join can
	// repeat source rows
	DistinctRequired bool
}

func (r *OneToMany) Name() string       { return r.Target }
func (r *OneToMany) SourceType() string { return r.Source }
func (r *OneToMany) TargetType() string { return r.Target }

func (r *OneToMany) sourceID() string {
	if r.SourceIDField == "" {
		return DefaultIDColumn
	}
	return r.SourceIDField
}

func (r *OneToMany) targetID() string {
	if r.TargetIDField == "" {
		return DefaultIDColumn
	}
	return r.TargetIDField
}

// Join joins the target table on TargetField = SourceField
func (r *OneToMany) Join(state *plan.State, source plan.Table) plan.Table {
	joined := state.AddJoin(plan.JoinInner, r.TargetTable, func(target plan.Table) plan.Expr {
		return plan.Eq(target.Field(r.TargetField), source.Field(r.SourceField))
	})
	if r.DistinctRequired {
		state.RequireDistinct()
	}
	return joined
}

// Link writes the foreign key. When the key lives in the target table the
// target row is updated, otherwise the source row is.
func (r *OneToMany) Link(ctx context.Context, db Execer, sourceID, targetID interface{}) error {
	update := plan.Update{
		Table: r.TargetTable,
		Set:   map[string]interface{}{r.TargetField: sourceID},
		Where: plan.Eq(plan.Field{Column: r.targetID()}, plan.Literal{Value: targetID}),
	}
	missing, missingID := r.Target, targetID
	if r.TargetField == r.targetID() {
		update = plan.Update{
			Table: r.SourceTable,
			Set:   map[string]interface{}{r.SourceField: targetID},
			Where: plan.Eq(plan.Field{Column: r.sourceID()}, plan.Literal{Value: sourceID}),
		}
		missing, missingID = r.Source, sourceID
	}
	query, args, err := update.Render()
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.NoSuchEntity("%s %v not found", missing, missingID)
	}
	return nil
}

// ManyToMany is a relation through a link table holding pairs of
// (SourceLinkField, TargetLinkField).
type ManyToMany struct {
	Source      string
	SourceTable string
	SourceField string

	LinkTable       string
	SourceLinkField string
	TargetLinkField string

	Target      string
	TargetTable string
	TargetField string
}

func (r *ManyToMany) Name() string       { return r.Target }
func (r *ManyToMany) SourceType() string { return r.Source }
func (r *ManyToMany) TargetType() string { return r.Target }

// Join joins the link table and the target table. The link join can repeat
// source rows, so distinct is always required.
func (r *ManyToMany) Join(state *plan.State, source plan.Table) plan.Table {
	link := state.AddJoin(plan.JoinInner, r.LinkTable, func(link plan.Table) plan.Expr {
		return plan.Eq(link.Field(r.SourceLinkField), source.Field(r.SourceField))
	})
	target := state.AddJoin(plan.JoinInner, r.TargetTable, func(target plan.Table) plan.Expr {
		return plan.Eq(target.Field(r.TargetField), link.Field(r.TargetLinkField))
	})
	state.RequireDistinct()
	return target
}

// Link inserts a row into the link table
func (r *ManyToMany) Link(ctx context.Context, db Execer, sourceID, targetID interface{}) error {
	query, args := plan.Insert{
		Table: r.LinkTable,
		Values: map[string]interface{}{
			r.SourceLinkField: sourceID,
			r.TargetLinkField: targetID,
		},
	}.Render()
	_, err := db.ExecContext(ctx, query, args...)
	return err
}

// UnlinkAll removes every link row of the source entity
func (r *ManyToMany) UnlinkAll(ctx context.Context, db Execer, sourceID interface{}) (int64, error) {
	query, args, err := plan.Delete{
		Table: r.LinkTable,
		Where: plan.Eq(plan.Field{Column: r.SourceLinkField}, plan.Literal{Value: sourceID}),
	}.Render()
	if err != nil {
		return 0, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Inverse returns the same link table seen from the target side
func (r *ManyToMany) Inverse() *ManyToMany {
	return &ManyToMany{
		Source:          r.Target,
		SourceTable:     r.TargetTable,
		SourceField:     r.TargetField,
		LinkTable:       r.LinkTable,
		SourceLinkField: r.TargetLinkField,
		TargetLinkField: r.SourceLinkField,
		Target:          r.Source,
		TargetTable:     r.SourceTable,
		TargetField:     r.SourceField,
	}
}
