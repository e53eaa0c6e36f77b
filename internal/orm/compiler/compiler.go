// Package compiler turns a resource path and its query options into
// execution plans. It reads the entity model, the relation graph and the
// field registries, and performs no I/O.
package compiler

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/fields"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/orm/relations"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
	"github.com/conduit-lang/sensorthings/internal/path"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// ParentParam is the parameter an expand sub-plan is bound with: the storage
// id of the parent entity, or the target id read from a custom link.
const ParentParam = "parent"

// Options holds the paging defaults
type Options struct {
	DefaultTop   int64
	MaxTop       int64
	DefaultCount bool
}

// DefaultOptions returns the paging defaults used when none are configured
func DefaultOptions() Options {
	return Options{DefaultTop: 100, MaxTop: 10000}
}

// Compiler compiles reads. It is safe for concurrent use.
type Compiler struct {
	tables *tables.Collection
	opts   Options
	logger *zap.Logger
}

// New creates a compiler over a validated table collection
func New(c *tables.Collection, opts Options, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultTop <= 0 {
		opts.DefaultTop = DefaultOptions().DefaultTop
	}
	if opts.MaxTop <= 0 {
		opts.MaxTop = DefaultOptions().MaxTop
	}
	return &Compiler{tables: c, opts: opts, logger: logger.Named("compiler")}
}

// MaxTop returns the largest page size a read may request
func (c *Compiler) MaxTop() int64 {
	return c.opts.MaxTop
}

// Column maps a projected column back to the field it reads. Entry is nil for
// columns projected only to satisfy SELECT DISTINCT ordering.
type Column struct {
	Entry *fields.Entry
	Key   string
}

// Result is a compiled read
type Result struct {
	Type    *model.EntityType
	Table   *tables.Table
	Plan    *plan.Plan
	Count   *plan.Plan
	Columns []Column
	// Entries lists the entries of Columns once each, in projection order
	Entries []*fields.Entry
	Expands []*Expand
	// Single is set when at most one entity is addressed
	Single bool
	// Top is the page size of a collection. The plan fetches one row more
	// to detect further pages.
	Top  int64
	Skip int64
	// Property is set when the path ends in a scalar property
	Property *model.Property
	Query    *query.Query
}

// Expand is a compiled expand, run once per parent entity
type Expand struct {
	Property *model.Property
	Result   *Result
}

// ForPath compiles the read of a resource path
func (c *Compiler) ForPath(rp *path.ResourcePath, q *query.Query) (*Result, error) {
	if q == nil {
		q = query.New()
	}
	if !rp.IsEntityTerminal() && (len(q.Select) > 0 || len(q.Expand) > 0) {
		c.logger.Warn("select and expand are ignored for property paths",
			zap.String("path", rp.String(c.tables.Registry().IDs())))
		q = q.Clone()
		q.ClearSelectExpand()
	}
	return c.compile(target{
		elements:   rp.Elements,
		property:   rp.Property,
		collection: rp.IsCollection(),
		count:      q.CountOrDefault(c.opts.DefaultCount),
	}, q)
}

// target describes what a plan reads: a chain of path elements, the last of
// which is the main table
type target struct {
	elements []path.Element
	// paramFirst binds the first element's id to ParentParam
	paramFirst bool
	property   *model.Property
	collection bool
	count      bool
}

func (c *Compiler) compile(t target, q *query.Query) (*Result, error) {
	main := t.elements[len(t.elements)-1]
	table := c.tables.ForEntityType(main.Type)
	state := plan.NewState(table.Name)

	if err := c.walkPath(state, t); err != nil {
		return nil, err
	}

	ctx := newExprContext(c, state, table)
	if q.Filter != nil {
		filter, err := ctx.predicate(q.Filter)
		if err != nil {
			return nil, err
		}
		state.Where(filter)
	}

	res := &Result{
		Type:     main.Type,
		Table:    table,
		Plan:     state.Plan(),
		Single:   !t.collection,
		Property: t.property,
		Query:    q,
	}

	if err := c.compileSelect(res, state, t, q); err != nil {
		return nil, err
	}

	for _, o := range q.OrderBy {
		op, err := ctx.compile(o.Expr)
		if err != nil {
			return nil, err
		}
		exprs, err := ctx.orderExprs(op)
		if err != nil {
			return nil, err
		}
		for _, e := range exprs {
			res.Plan.OrderBy = append(res.Plan.OrderBy, plan.Order{Expr: e, Desc: o.Desc})
		}
	}

	res.Plan.Distinct = q.SelectDistinct || state.DistinctRequired()

	if t.collection {
		// stable paging
		idField := state.Main().Field(table.IDColumn)
		if !ordersBy(res.Plan.OrderBy, idField) {
			res.Plan.OrderBy = append(res.Plan.OrderBy, plan.Order{Expr: idField})
		}
		res.Top = q.TopOrDefault(c.opts.DefaultTop)
		if res.Top > c.opts.MaxTop {
			res.Top = c.opts.MaxTop
		}
		res.Skip = q.SkipOrDefault()
		limit := res.Top + 1
		res.Plan.Limit = &limit
		res.Plan.Offset = res.Skip
		if t.count {
			res.Count = res.Plan.CountPlan(table.IDColumn)
		}
	}

	if res.Plan.Distinct {
		// SELECT DISTINCT needs the ordering expressions projected
		for _, o := range res.Plan.OrderBy {
			if !projects(res.Plan.Projection, o.Expr) {
				res.Plan.Project(o.Expr)
				res.Columns = append(res.Columns, Column{})
			}
		}
	}

	for _, exp := range q.Expand {
		compiled, err := c.compileExpand(main.Type, exp)
		if err != nil {
			return nil, err
		}
		res.Expands = append(res.Expands, compiled)
	}
	return res, nil
}

// walkPath joins the path elements to the main table, walking backwards from
// the main table through the relation of each element to the one before it.
func (c *Compiler) walkPath(state *plan.State, t target) error {
	ids := c.tables.Registry().IDs()
	graph := c.tables.Relations()
	idPredicate := func(i int, ref plan.Table, table *tables.Table) {
		el := t.elements[i]
		switch {
		case i == 0 && t.paramFirst:
			state.Where(plan.Eq(ref.Field(table.IDColumn), plan.Param{Name: ParentParam}))
		case !el.ID.IsZero():
			state.Where(plan.Eq(ref.Field(table.IDColumn), plan.Literal{Value: ids.ToStorage(el.ID)}))
		}
	}

	last := len(t.elements) - 1
	current := state.Main()
	idPredicate(last, current, c.tables.ForEntityType(t.elements[last].Type))
	linked := false
	for i := last; i > 0; i-- {
		el, prev := t.elements[i], t.elements[i-1]
		rel := graph.Find(el.Type.Name, prev.Type.Name)
		if rel == nil {
			return model.InvalidPath("no relation from %s to %s", el.Type.Name, prev.Type.Name)
		}
		if _, ok := rel.(*relations.ManyToMany); ok {
			linked = true
		}
		current = rel.Join(state, current)
		idPredicate(i-1, current, c.tables.ForEntityType(prev.Type))
	}
	// every element before the main one is a single entity, pinned by its
	// id or by the to-one step from the element before it. Link tables keep
	// the flag.
	if !linked {
		state.ClearDistinct()
	}
	return nil
}

func (c *Compiler) compileSelect(res *Result, state *plan.State, t target, q *query.Query) error {
	et := res.Type
	var props []*model.Property
	switch {
	case t.property != nil:
		props = []*model.Property{t.property}
	case len(q.Select) == 0:
		props = et.EntityProperties()
	default:
		props = q.Select
	}
	if t.property == nil && len(q.Expand) > 0 {
		props = withProperty(props, model.IDProperty)
		for _, exp := range q.Expand {
			if exp.Property.IsCustom() {
				props = withProperty(props, exp.Property.Main)
			}
		}
	}

	for _, p := range props {
		owner := p
		if p.IsCustom() {
			owner = p.Main
		}
		if !et.HasProperty(owner) {
			return model.InvalidQuery("%s has no property %s", et.Name, p.Name)
		}
		entry := res.Table.Fields.Entry(p)
		if entry == nil {
			if p.IsCustom() {
				return model.InvalidQuery("property %s has no sub-properties", owner.Name)
			}
			panic(model.IllegalState("table %s has no fields for property %s", res.Table.Name, p.Name))
		}
		res.Entries = append(res.Entries, entry)
		for _, f := range entry.Fields {
			res.Plan.Project(f.Expr(state.Main()))
			res.Columns = append(res.Columns, Column{Entry: entry, Key: f.Key})
		}
	}
	return nil
}

func (c *Compiler) compileExpand(parent *model.EntityType, exp *query.Expand) (*Expand, error) {
	np := exp.Property
	reg := c.tables.Registry()
	sub := exp.Query
	if sub == nil {
		sub = query.New()
	}

	targetType := reg.EntityType(np.Target)
	if targetType == nil {
		return nil, model.InvalidQuery("unknown expand target %s", np.Target)
	}

	var t target
	switch {
	case np.IsCustom():
		if !parent.HasProperty(np.Main) {
			return nil, model.InvalidQuery("%s has no property %s", parent.Name, np.Main.Name)
		}
		t = target{
			elements:   []path.Element{{Type: targetType}},
			paramFirst: true,
		}
	case parent.HasProperty(np):
		t = target{
			elements: []path.Element{
				{Type: parent},
				{Type: targetType, Set: np.IsEntitySet(), Property: np},
			},
			paramFirst: true,
			collection: np.IsEntitySet(),
			count:      np.IsEntitySet() && sub.CountOrDefault(false),
		}
	default:
		return nil, model.InvalidQuery("%s has no navigation property %s", parent.Name, np.Name)
	}

	res, err := c.compile(t, sub)
	if err != nil {
		return nil, err
	}
	return &Expand{Property: np, Result: res}, nil
}

func withProperty(props []*model.Property, p *model.Property) []*model.Property {
	for _, existing := range props {
		if existing == p {
			return props
		}
	}
	out := make([]*model.Property, 0, len(props)+1)
	out = append(out, p)
	return append(out, props...)
}

func ordersBy(orders []plan.Order, e plan.Expr) bool {
	for _, o := range orders {
		if exprEqual(o.Expr, e) {
			return true
		}
	}
	return false
}

func projects(columns []plan.Column, e plan.Expr) bool {
	for _, col := range columns {
		if exprEqual(col.Expr, e) {
			return true
		}
	}
	return false
}
