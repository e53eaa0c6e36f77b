package crud

import (
	"context"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// DeleteWhere deletes every entity of the collection rp that matches the
// filter of q, one by one so each runs its post-delete hooks. It returns the
// number of deleted entities.
func (s *Session) DeleteWhere(ctx context.Context, rp *path.ResourcePath, q *query.Query) (int, error) {
	if !rp.IsCollection() {
		return 0, model.InvalidPath("%s does not address a collection", rp.String(s.ids()))
	}
	if err := s.ValidatePath(ctx, rp); err != nil {
		return 0, err
	}

	ids := query.New().
		AddSelect(model.IDProperty).
		SetTop(s.m.compiler.MaxTop()).
		SetCount(false)
	if q != nil {
		ids.Filter = q.Filter
	}

	et := rp.MainType()
	deleted := 0
	for {
		// deleted rows drop out of the next page
		page, err := s.Query(ctx, rp, ids)
		if err != nil {
			return deleted, err
		}
		for _, e := range page.Entities {
			if err := s.Delete(ctx, et, e.ID()); err != nil {
				return deleted, err
			}
			deleted++
		}
		if !page.HasMore {
			return deleted, nil
		}
	}
}
