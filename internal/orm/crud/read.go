package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/sensorthings/internal/jsonio"
	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/compiler"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// Query reads the entities a collection path addresses
func (s *Session) Query(ctx context.Context, rp *path.ResourcePath, q *query.Query) (*model.EntitySet, error) {
	res, err := s.m.compiler.ForPath(rp, q)
	if err != nil {
		return nil, err
	}
	if res.Single {
		return nil, model.InvalidPath("%s does not address a collection", rp.String(s.ids()))
	}
	return s.execute(ctx, res, nil)
}

// Get reads the entity a path addresses. A path ending in a property reads
// only that property.
func (s *Session) Get(ctx context.Context, rp *path.ResourcePath, q *query.Query) (*model.Entity, error) {
	return s.get(ctx, rp, q, false)
}

func (s *Session) get(ctx context.Context, rp *path.ResourcePath, q *query.Query, forUpdate bool) (*model.Entity, error) {
	res, err := s.m.compiler.ForPath(rp, q)
	if err != nil {
		return nil, err
	}
	if !res.Single {
		return nil, model.InvalidPath("%s addresses a collection", rp.String(s.ids()))
	}
	res.Plan.ForUpdate = forUpdate
	set, err := s.execute(ctx, res, nil)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, model.NoSuchEntity("%s not found", rp.String(s.ids()))
	}
	return set.Entities[0], nil
}

// execute runs a compiled read and its expands. params binds the parent id
// of an expand.
func (s *Session) execute(ctx context.Context, res *compiler.Result, params map[string]interface{}) (*model.EntitySet, error) {
	stmt, args, err := res.Plan.Render(params)
	if err != nil {
		return nil, fmt.Errorf("render %s read: %w", res.Type.Name, err)
	}
	rows, err := s.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", res.Type.Plural, ConvertDBError(err))
	}
	defer rows.Close()

	values, err := scanRows(rows, len(res.Columns))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", res.Type.Plural, ConvertDBError(err))
	}

	set := model.NewEntitySet(res.Type)
	for _, row := range values {
		e, err := entityFromRow(res, row)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", res.Type.Name, err)
		}
		set.Add(e)
	}

	if !res.Single && int64(set.Len()) > res.Top {
		set.Entities = set.Entities[:res.Top]
		set.HasMore = true
	}

	if res.Count != nil {
		count, err := s.count(ctx, res.Count, params)
		if err != nil {
			return nil, err
		}
		set.Count = count
	}

	for _, e := range set.Entities {
		for _, exp := range res.Expands {
			if err := s.expand(ctx, e, exp); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func (s *Session) count(ctx context.Context, p *plan.Plan, params map[string]interface{}) (int64, error) {
	stmt, args, err := p.Render(params)
	if err != nil {
		return 0, fmt.Errorf("render count: %w", err)
	}
	var count int64
	if err := s.tx.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count: %w", ConvertDBError(err))
	}
	return count, nil
}

// expand reads the entities one navigation property of e points at and
// stores them on e
func (s *Session) expand(ctx context.Context, e *model.Entity, exp *compiler.Expand) error {
	ids := s.ids()
	var parent interface{}
	if exp.Property.IsCustom() {
		id, ok := customLinkID(ids, e, exp.Property)
		if !ok {
			return nil
		}
		parent = ids.ToStorage(id)
	} else {
		parent = ids.ToStorage(e.ID())
	}

	sub, err := s.execute(ctx, exp.Result, map[string]interface{}{compiler.ParentParam: parent})
	if err != nil {
		return err
	}
	if !exp.Result.Single {
		e.Set(exp.Property, sub)
		return nil
	}
	switch {
	case sub.Len() > 0:
		e.Set(exp.Property, sub.Entities[0])
	case !exp.Property.IsCustom():
		e.Set(exp.Property, nil)
	}
	return nil
}

// customLinkID reads the target id of a custom link from the JSON value of
// its main property. The link properties/owner.Thing reads the id stored
// under properties["owner.Thing@iot.id"].
func customLinkID(ids model.IDCodec, e *model.Entity, p *model.Property) (model.ID, bool) {
	doc, _ := e.Get(p.Main).(map[string]interface{})
	last := len(p.SubPath) - 1
	for _, segment := range p.SubPath[:last] {
		doc, _ = doc[segment].(map[string]interface{})
	}
	raw, ok := doc[p.SubPath[last]+jsonio.IDAnnotation]
	if !ok {
		return model.ID{}, false
	}
	id, err := ids.FromJSON(raw)
	if err != nil || id.IsZero() {
		return model.ID{}, false
	}
	return id, true
}
