package crud

import (
	"context"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// ValidatePath checks that every entity a path names by id exists and is
// reachable from the elements before it. /Things(1)/Datastreams(7) fails
// when Datastream 7 does not belong to Thing 1.
func (s *Session) ValidatePath(ctx context.Context, rp *path.ResourcePath) error {
	for i, el := range rp.Elements {
		if el.ID.IsZero() {
			continue
		}
		prefix := &path.ResourcePath{Elements: rp.Elements[:i+1]}
		q := query.New().AddSelect(model.IDProperty)
		res, err := s.m.compiler.ForPath(prefix, q)
		if err != nil {
			return err
		}
		set, err := s.execute(ctx, res, nil)
		if err != nil {
			return err
		}
		if set.Len() == 0 {
			return model.NoSuchEntity("%s not found", prefix.String(s.ids()))
		}
	}
	return nil
}
