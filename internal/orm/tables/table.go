// Package tables binds entity types to their storage tables. A Table holds
// the field registry and the hooks of one entity type; a Collection holds
// all tables and the relation graph between them.
package tables

import (
	"context"
	"database/sql"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/fields"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// Querier is an interface for executing SQL, satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Session is the request scope hooks run in. All statements share the
// request transaction.
type Session interface {
	Querier() Querier
	Tables() *Collection
	// Query reads the entities a collection path addresses
	Query(ctx context.Context, rp *path.ResourcePath, q *query.Query) (*model.EntitySet, error)
	// Insert creates an entity, running its hooks and linking its relations
	Insert(ctx context.Context, e *model.Entity) error
	// Emit buffers a change message, published after commit
	Emit(msg *model.ChangeMessage)
}

// PreInsertHook runs before an entity is inserted. It may complete the entity.
type PreInsertHook func(ctx context.Context, s Session, e *model.Entity) error

// PostInsertHook runs after an entity and its links were inserted
type PostInsertHook func(ctx context.Context, s Session, e *model.Entity) error

// PreUpdateHook runs before an entity update is written
type PreUpdateHook func(ctx context.Context, s Session, e *model.Entity) error

// PostDeleteHook runs after an entity was deleted. It cleans up references
// the foreign keys do not cascade.
type PostDeleteHook func(ctx context.Context, s Session, id model.ID) error

// LinkHook replaces the default linking of a navigation set. It receives the
// source entity and all targets, which exist in storage when it runs.
type LinkHook func(ctx context.Context, s Session, source *model.Entity, targets []*model.Entity) error

// Table is the storage binding of one entity type
type Table struct {
	Name     string
	IDColumn string
	Type     *model.EntityType
	Fields   *fields.Registry

	preInsert  []PreInsertHook
	postInsert []PostInsertHook
	preUpdate  []PreUpdateHook
	postDelete []PostDeleteHook
	linkHooks  map[*model.Property]LinkHook
}

// New creates a table with an "ID" primary key column
func New(name string, t *model.EntityType, ids model.IDCodec) *Table {
	return &Table{
		Name:      name,
		IDColumn:  "ID",
		Type:      t,
		Fields:    fields.NewRegistry(name, ids),
		linkHooks: make(map[*model.Property]LinkHook),
	}
}

// AddPreInsertHook registers a hook run before insert
func (t *Table) AddPreInsertHook(h PreInsertHook) *Table {
	t.preInsert = append(t.preInsert, h)
	return t
}

// AddPostInsertHook registers a hook run after insert
func (t *Table) AddPostInsertHook(h PostInsertHook) *Table {
	t.postInsert = append(t.postInsert, h)
	return t
}

// AddPreUpdateHook registers a hook run before update
func (t *Table) AddPreUpdateHook(h PreUpdateHook) *Table {
	t.preUpdate = append(t.preUpdate, h)
	return t
}

// AddPostDeleteHook registers a hook run after delete
func (t *Table) AddPostDeleteHook(h PostDeleteHook) *Table {
	t.postDelete = append(t.postDelete, h)
	return t
}

// SetLinkHook replaces the default link of a navigation set
func (t *Table) SetLinkHook(np *model.Property, h LinkHook) *Table {
	t.linkHooks[np] = h
	return t
}

// LinkHook returns the link hook of a navigation set, or nil
func (t *Table) LinkHook(np *model.Property) LinkHook {
	return t.linkHooks[np]
}

// PreInsert runs the pre-insert hooks in order, stopping at the first error
func (t *Table) PreInsert(ctx context.Context, s Session, e *model.Entity) error {
	for _, h := range t.preInsert {
		if err := h(ctx, s, e); err != nil {
			return err
		}
	}
	return nil
}

// PostInsert runs the post-insert hooks
func (t *Table) PostInsert(ctx context.Context, s Session, e *model.Entity) error {
	for _, h := range t.postInsert {
		if err := h(ctx, s, e); err != nil {
			return err
		}
	}
	return nil
}

// PreUpdate runs the pre-update hooks
func (t *Table) PreUpdate(ctx context.Context, s Session, e *model.Entity) error {
	for _, h := range t.preUpdate {
		if err := h(ctx, s, e); err != nil {
			return err
		}
	}
	return nil
}

// PostDelete runs the post-delete hooks
func (t *Table) PostDelete(ctx context.Context, s Session, id model.ID) error {
	for _, h := range t.postDelete {
		if err := h(ctx, s, id); err != nil {
			return err
		}
	}
	return nil
}
