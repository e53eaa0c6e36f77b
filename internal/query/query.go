// Package query holds the in-memory form of the query options of a request.
package query

import (
	"github.com/conduit-lang/sensorthings/internal/model"
)

// ResultFormatDataArray selects the compact dataArray encoding of Observations
const ResultFormatDataArray = "dataArray"

// Query is the set of query options of one request or one expand.
// Two queries are equal iff all fields are equal, which reflect.DeepEqual
// checks, so fields keep nil slices until something is added.
type Query struct {
	Filter         Expression
	Select         []*model.Property
	SelectDistinct bool
	Expand         []*Expand
	OrderBy        []OrderBy
	Top            *int64
	Skip           *int64
	Count          *bool
	Format         string
	ResultFormat   string
}

// Expand inlines the entities a navigation property points at.
type Expand struct {
	Property *model.Property
	// Query holds the nested options, nil when none were given
	Query *Query
}

// OrderBy is one sort key
type OrderBy struct {
	Expr Expression
	Desc bool
}

// New returns an empty query
func New() *Query {
	return &Query{}
}

// SetFilter sets the filter expression
func (q *Query) SetFilter(e Expression) *Query {
	q.Filter = e
	return q
}

// AddSelect appends properties to the select list, skipping duplicates
func (q *Query) AddSelect(props ...*model.Property) *Query {
	for _, p := range props {
		if !q.selects(p) {
			q.Select = append(q.Select, p)
		}
	}
	return q
}

func (q *Query) selects(p *model.Property) bool {
	for _, s := range q.Select {
		if sameProperty(s, p) {
			return true
		}
	}
	return false
}

// SetSelectDistinct sets the distinct flag of the select list
func (q *Query) SetSelectDistinct(distinct bool) *Query {
	q.SelectDistinct = distinct
	return q
}

// AddExpand appends an expand
func (q *Query) AddExpand(np *model.Property, sub *Query) *Query {
	q.Expand = append(q.Expand, &Expand{Property: np, Query: sub})
	return q
}

// MergeExpand adds an expand along a path of navigation properties. An
// expand whose leading property is already expanded is merged into it, so
// Datastreams/Sensor,Datastreams/Thing ends up as one Datastreams expand
// holding both.
func (q *Query) MergeExpand(props []*model.Property, sub *Query) *Query {
	if len(props) == 0 {
		return q
	}
	var target *Expand
	for _, e := range q.Expand {
		if sameProperty(e.Property, props[0]) {
			target = e
			break
		}
	}
	if target == nil {
		target = &Expand{Property: props[0]}
		q.Expand = append(q.Expand, target)
	}

	if len(props) > 1 {
		if target.Query == nil {
			target.Query = New()
		}
		target.Query.MergeExpand(props[1:], sub)
		return q
	}
	switch {
	case target.Query == nil:
		target.Query = sub
	case sub != nil:
		target.Query.merge(sub)
	}
	return q
}

// merge copies the options set in o into q. Expands are merged, select
// and orderby lists are appended.
func (q *Query) merge(o *Query) {
	if o.Filter != nil {
		q.Filter = o.Filter
	}
	q.AddSelect(o.Select...)
	q.SelectDistinct = q.SelectDistinct || o.SelectDistinct
	for _, e := range o.Expand {
		q.MergeExpand([]*model.Property{e.Property}, e.Query)
	}
	q.OrderBy = append(q.OrderBy, o.OrderBy...)
	if o.Top != nil {
		q.Top = o.Top
	}
	if o.Skip != nil {
		q.Skip = o.Skip
	}
	if o.Count != nil {
		q.Count = o.Count
	}
	if o.Format != "" {
		q.Format = o.Format
	}
	if o.ResultFormat != "" {
		q.ResultFormat = o.ResultFormat
	}
}

func sameProperty(a, b *model.Property) bool {
	return a == b || (a.IsCustom() && b.IsCustom() && a.Name == b.Name)
}

// AddOrderBy appends a sort key
func (q *Query) AddOrderBy(e Expression, desc bool) *Query {
	q.OrderBy = append(q.OrderBy, OrderBy{Expr: e, Desc: desc})
	return q
}

// SetTop sets $top
func (q *Query) SetTop(n int64) *Query {
	q.Top = &n
	return q
}

// SetSkip sets $skip
func (q *Query) SetSkip(n int64) *Query {
	q.Skip = &n
	return q
}

// SetCount sets $count
func (q *Query) SetCount(c bool) *Query {
	q.Count = &c
	return q
}

// SetFormat sets $format
func (q *Query) SetFormat(f string) *Query {
	q.Format = f
	return q
}

// SetResultFormat sets $resultFormat
func (q *Query) SetResultFormat(f string) *Query {
	q.ResultFormat = f
	return q
}

// TopOrDefault returns $top or the given default
func (q *Query) TopOrDefault(def int64) int64 {
	if q == nil || q.Top == nil {
		return def
	}
	return *q.Top
}

// SkipOrDefault returns $skip or zero
func (q *Query) SkipOrDefault() int64 {
	if q == nil || q.Skip == nil {
		return 0
	}
	return *q.Skip
}

// CountOrDefault returns $count or the given default
func (q *Query) CountOrDefault(def bool) bool {
	if q == nil || q.Count == nil {
		return def
	}
	return *q.Count
}

// IsDataArray reports whether the dataArray result format was requested
func (q *Query) IsDataArray() bool {
	return q != nil && q.ResultFormat == ResultFormatDataArray
}

// Clone returns a shallow copy. Nested queries and expressions are shared.
func (q *Query) Clone() *Query {
	c := *q
	return &c
}

// ClearSelectExpand drops select and expand, used when the path ends in a
// property value.
func (q *Query) ClearSelectExpand() {
	q.Select = nil
	q.SelectDistinct = false
	q.Expand = nil
}
