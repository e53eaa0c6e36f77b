package compiler

import (
	"reflect"

	"github.com/conduit-lang/sensorthings/internal/model"
	"github.com/conduit-lang/sensorthings/internal/orm/fields"
	"github.com/conduit-lang/sensorthings/internal/orm/plan"
	"github.com/conduit-lang/sensorthings/internal/orm/tables"
	"github.com/conduit-lang/sensorthings/internal/query"
)

// operand is a compiled sub-expression together with what is known about
// its type. Multi-column properties keep their entry until the other side
// of a comparison decides which column to use; JSON sub-paths are likewise
// cast by context.
type operand struct {
	expr     plan.Expr
	typ      model.ValueType
	entry    *fields.Entry
	ref      plan.Table
	json     bool
	null     bool
	isConst  bool
	constant interface{}
}

type joined struct {
	ref   plan.Table
	table *tables.Table
}

// exprContext compiles the expressions of one plan. Navigation joins are
// shared by all expressions through the same path prefix.
type exprContext struct {
	c     *Compiler
	state *plan.State
	table *tables.Table
	joins map[string]joined
}

func newExprContext(c *Compiler, state *plan.State, table *tables.Table) *exprContext {
	return &exprContext{c: c, state: state, table: table, joins: make(map[string]joined)}
}

var compareOps = map[query.Operator]plan.CompareOp{
	query.OpEq: plan.OpEqual,
	query.OpNe: plan.OpNotEqual,
	query.OpGt: plan.OpGreaterThan,
	query.OpGe: plan.OpGreaterThanOrEqual,
	query.OpLt: plan.OpLessThan,
	query.OpLe: plan.OpLessThanOrEqual,
}

var arithOps = map[query.Operator]plan.ArithOp{
	query.OpAdd: plan.OpPlus,
	query.OpSub: plan.OpMinus,
	query.OpMul: plan.OpTimes,
	query.OpDiv: plan.OpDivide,
}

var simpleFuncs = map[query.Operator]string{
	query.OpToLower: "lower",
	query.OpToUpper: "upper",
	query.OpTrim:    "trim",
	query.OpRound:   "round",
	query.OpFloor:   "floor",
	query.OpCeiling: "ceil",
}

var dateParts = map[query.Operator]string{
	query.OpYear:   "year",
	query.OpMonth:  "month",
	query.OpDay:    "day",
	query.OpHour:   "hour",
	query.OpMinute: "minute",
	query.OpSecond: "second",
}

// predicate compiles a boolean expression
func (x *exprContext) predicate(e query.Expression) (plan.Expr, error) {
	op, err := x.compile(e)
	if err != nil {
		return nil, err
	}
	return x.coerce(op, model.TypeBoolean)
}

func (x *exprContext) compile(e query.Expression) (operand, error) {
	switch n := e.(type) {
	case *query.Path:
		return x.path(n)
	case query.IntegerConstant:
		return constant(n.Value, model.TypeNumber), nil
	case query.DoubleConstant:
		return constant(n.Value, model.TypeNumber), nil
	case query.StringConstant:
		return constant(n.Value, model.TypeString), nil
	case query.BooleanConstant:
		return constant(n.Value, model.TypeBoolean), nil
	case query.DateTimeConstant:
		return constant(n.Value, model.TypeTimeInstant), nil
	case query.NullConstant:
		return operand{null: true}, nil
	case *query.Function:
		return x.function(n)
	}
	return operand{}, model.InvalidQuery("unsupported expression %T", e)
}

func constant(v interface{}, t model.ValueType) operand {
	return operand{expr: plan.Literal{Value: v}, typ: t, isConst: true, constant: v}
}

func (x *exprContext) path(p *query.Path) (operand, error) {
	table, ref := x.table, x.state.Main()
	prefix := ""
	for _, np := range p.Elements[:len(p.Elements)-1] {
		if !np.IsNavigation() || np.IsCustom() {
			return operand{}, model.InvalidQuery("%s is not a navigation property", np.Name)
		}
		if !table.Type.HasProperty(np) {
			return operand{}, model.InvalidQuery("%s has no property %s", table.Type.Name, np.Name)
		}
		prefix += "/" + np.Name
		if j, ok := x.joins[prefix]; ok {
			table, ref = j.table, j.ref
			continue
		}
		rel := x.c.tables.Relations().ForProperty(table.Type.Name, np)
		if rel == nil {
			return operand{}, model.InvalidQuery("no relation for %s/%s", table.Type.Name, np.Name)
		}
		ref = rel.Join(x.state, ref)
		table = x.c.tables.ForType(np.Target)
		x.joins[prefix] = joined{ref: ref, table: table}
	}

	last := p.Last()
	owner := last
	if last.IsCustom() {
		owner = last.Main
	} else if last.IsNavigation() {
		return operand{}, model.InvalidQuery("navigation property %s cannot be used as a value", last.Name)
	}
	if !table.Type.HasProperty(owner) {
		return operand{}, model.InvalidQuery("%s has no property %s", table.Type.Name, owner.Name)
	}
	entry := table.Fields.Entry(last)
	if entry == nil {
		if last.IsCustom() {
			return operand{}, model.InvalidQuery("property %s has no sub-properties", owner.Name)
		}
		panic(model.IllegalState("table %s has no fields for property %s", table.Name, last.Name))
	}
	if len(entry.Fields) > 1 {
		return operand{entry: entry, ref: ref, typ: last.Type}, nil
	}
	f := entry.Fields[0]
	if last.IsCustom() {
		return operand{expr: f.Expr(ref), typ: model.TypeAny, json: true}, nil
	}
	return operand{expr: f.Expr(ref), typ: last.Type}, nil
}

func (x *exprContext) function(f *query.Function) (operand, error) {
	args := make([]operand, len(f.Args))
	for i, a := range f.Args {
		op, err := x.compile(a)
		if err != nil {
			return operand{}, err
		}
		args[i] = op
	}
	lo, hi := f.Op.Arity()
	if len(args) < lo || len(args) > hi {
		return operand{}, model.InvalidQuery("%s takes %d to %d arguments, got %d", f.Op, lo, hi, len(args))
	}

	switch f.Op.Category() {
	case query.CategoryComparison:
		return x.compare(f.Op, args[0], args[1])
	case query.CategoryLogical:
		return x.logical(f.Op, args)
	case query.CategoryArithmetic:
		return x.arithmetic(f.Op, args)
	case query.CategoryString:
		return x.stringFunction(f.Op, args)
	case query.CategoryDate:
		return x.dateFunction(f.Op, args)
	case query.CategoryMath:
		n, err := x.coerce(args[0], model.TypeNumber)
		if err != nil {
			return operand{}, err
		}
		return operand{expr: plan.Func{Name: simpleFuncs[f.Op], Args: []plan.Expr{n}}, typ: model.TypeNumber}, nil
	}
	return operand{}, model.InvalidQuery("unsupported function %s", f.Op)
}

func (x *exprContext) logical(op query.Operator, args []operand) (operand, error) {
	terms := make([]plan.Expr, len(args))
	for i, a := range args {
		t, err := x.coerce(a, model.TypeBoolean)
		if err != nil {
			return operand{}, err
		}
		terms[i] = t
	}
	var expr plan.Expr
	switch op {
	case query.OpAnd:
		expr = plan.And{Terms: terms}
	case query.OpOr:
		expr = plan.Or{Terms: terms}
	default:
		expr = plan.Not{Operand: terms[0]}
	}
	return operand{expr: expr, typ: model.TypeBoolean}, nil
}

func (x *exprContext) arithmetic(op query.Operator, args []operand) (operand, error) {
	nums := make([]plan.Expr, len(args))
	for i, a := range args {
		n, err := x.coerce(a, model.TypeNumber)
		if err != nil {
			return operand{}, err
		}
		nums[i] = n
	}
	var expr plan.Expr
	switch op {
	case query.OpNeg:
		expr = plan.Neg{Operand: nums[0]}
	case query.OpMod:
		// % is not defined for double precision
		expr = plan.Func{Name: "mod", Args: []plan.Expr{
			plan.Cast{Operand: nums[0], Type: "numeric"},
			plan.Cast{Operand: nums[1], Type: "numeric"},
		}}
	default:
		expr = plan.Arith{Op: arithOps[op], Left: nums[0], Right: nums[1]}
	}
	return operand{expr: expr, typ: model.TypeNumber}, nil
}

func (x *exprContext) stringFunction(op query.Operator, args []operand) (operand, error) {
	strs := make([]plan.Expr, len(args))
	for i, a := range args {
		want := model.TypeString
		if op == query.OpSubstring && i > 0 {
			want = model.TypeNumber
		}
		s, err := x.coerce(a, want)
		if err != nil {
			return operand{}, err
		}
		strs[i] = s
	}
	boolean := func(e plan.Expr) (operand, error) {
		return operand{expr: e, typ: model.TypeBoolean}, nil
	}
	length := func(e plan.Expr) plan.Expr {
		return plan.Func{Name: "length", Args: []plan.Expr{e}}
	}

	switch op {
	case query.OpSubstringOf:
		return boolean(plan.Compare{Op: plan.OpGreaterThan,
			Left:  plan.Func{Name: "strpos", Args: []plan.Expr{strs[1], strs[0]}},
			Right: plan.Literal{Value: 0}})
	case query.OpStartsWith:
		return boolean(plan.Eq(plan.Func{Name: "left", Args: []plan.Expr{strs[0], length(strs[1])}}, strs[1]))
	case query.OpEndsWith:
		return boolean(plan.Eq(plan.Func{Name: "right", Args: []plan.Expr{strs[0], length(strs[1])}}, strs[1]))
	case query.OpLength:
		return operand{expr: length(strs[0]), typ: model.TypeNumber}, nil
	case query.OpIndexOf:
		return operand{expr: plan.Arith{Op: plan.OpMinus,
			Left:  plan.Func{Name: "strpos", Args: []plan.Expr{strs[0], strs[1]}},
			Right: plan.Literal{Value: 1}}, typ: model.TypeNumber}, nil
	case query.OpSubstring:
		// zero-based start
		fnArgs := []plan.Expr{strs[0], plan.Cast{
			Operand: plan.Arith{Op: plan.OpPlus, Left: strs[1], Right: plan.Literal{Value: 1}},
			Type:    "integer",
		}}
		if len(strs) == 3 {
			fnArgs = append(fnArgs, plan.Cast{Operand: strs[2], Type: "integer"})
		}
		return operand{expr: plan.Func{Name: "substr", Args: fnArgs}, typ: model.TypeString}, nil
	case query.OpConcat:
		return operand{expr: plan.Func{Name: "concat", Args: strs}, typ: model.TypeString}, nil
	}
	return operand{expr: plan.Func{Name: simpleFuncs[op], Args: strs}, typ: model.TypeString}, nil
}

func (x *exprContext) dateFunction(op query.Operator, args []operand) (operand, error) {
	if op == query.OpNow {
		return operand{expr: plan.Func{Name: "now"}, typ: model.TypeTimeInstant}, nil
	}
	start, _, _, err := x.timeBounds(args[0])
	if err != nil {
		return operand{}, err
	}
	return operand{
		expr: plan.Func{Name: "date_part", Args: []plan.Expr{plan.Literal{Value: dateParts[op]}, start}},
		typ:  model.TypeNumber,
	}, nil
}

func (x *exprContext) compare(op query.Operator, l, r operand) (operand, error) {
	cmp := compareOps[op]
	if l.null || r.null {
		return x.nullCompare(cmp, l, r)
	}
	if l.typ.IsTime() || r.typ.IsTime() {
		return x.timeCompare(cmp, l, r)
	}
	want, err := commonType(l, r)
	if err != nil {
		return operand{}, err
	}
	le, err := x.operandAs(l, want)
	if err != nil {
		return operand{}, err
	}
	re, err := x.operandAs(r, want)
	if err != nil {
		return operand{}, err
	}
	return operand{expr: plan.Compare{Op: cmp, Left: le, Right: re}, typ: model.TypeBoolean}, nil
}

func (x *exprContext) nullCompare(cmp plan.CompareOp, l, r operand) (operand, error) {
	if cmp != plan.OpEqual && cmp != plan.OpNotEqual {
		return operand{}, model.InvalidQuery("null can only be compared with eq and ne")
	}
	o := l
	if l.null {
		o = r
	}
	if o.null {
		return operand{}, model.InvalidQuery("cannot compare null with null")
	}
	var exprs []plan.Expr
	switch {
	case o.entry != nil:
		for _, f := range o.entry.Fields {
			if f.Key != fields.KeyType {
				exprs = append(exprs, f.Expr(o.ref))
			}
		}
	default:
		exprs = []plan.Expr{o.expr}
	}
	terms := make([]plan.Expr, len(exprs))
	for i, e := range exprs {
		terms[i] = plan.IsNull{Operand: e, Negate: cmp == plan.OpNotEqual}
	}
	if cmp == plan.OpNotEqual {
		return operand{expr: plan.AnyOf(terms...), typ: model.TypeBoolean}, nil
	}
	return operand{expr: plan.AllOf(terms...), typ: model.TypeBoolean}, nil
}

// timeCompare compares time values as [start, end] ranges. An instant has
// equal bounds, so comparing two instants degenerates to a plain comparison.
func (x *exprContext) timeCompare(cmp plan.CompareOp, l, r operand) (operand, error) {
	ls, le, lRange, err := x.timeBounds(l)
	if err != nil {
		return operand{}, err
	}
	rs, re, rRange, err := x.timeBounds(r)
	if err != nil {
		return operand{}, err
	}
	compare := func(op plan.CompareOp, a, b plan.Expr) plan.Expr {
		return plan.Compare{Op: op, Left: a, Right: b}
	}

	var expr plan.Expr
	switch {
	case !lRange && !rRange:
		expr = compare(cmp, ls, rs)
	case cmp == plan.OpGreaterThan, cmp == plan.OpGreaterThanOrEqual:
		expr = compare(cmp, ls, re)
	case cmp == plan.OpLessThan, cmp == plan.OpLessThanOrEqual:
		expr = compare(cmp, le, rs)
	case cmp == plan.OpEqual:
		expr = plan.AllOf(compare(plan.OpEqual, ls, rs), compare(plan.OpEqual, le, re))
	default:
		expr = plan.AnyOf(compare(plan.OpNotEqual, ls, rs), compare(plan.OpNotEqual, le, re))
	}
	return operand{expr: expr, typ: model.TypeBoolean}, nil
}

// timeBounds returns the start and end of a time operand and whether they
// differ. String constants are parsed as ISO 8601 instants or intervals.
func (x *exprContext) timeBounds(o operand) (plan.Expr, plan.Expr, bool, error) {
	switch {
	case o.entry != nil:
		start, okStart := o.entry.Field(fields.KeyStart)
		end, okEnd := o.entry.Field(fields.KeyEnd)
		if !okStart || !okEnd {
			return nil, nil, false, model.InvalidQuery("%s is not a time value", o.entry.Property.Name)
		}
		return start.Expr(o.ref), end.Expr(o.ref), true, nil
	case o.isConst && o.typ == model.TypeString:
		tv, err := model.ParseTimeValue(o.constant.(string))
		if err != nil {
			return nil, nil, false, model.InvalidQuery("%q is not a time", o.constant)
		}
		if tv.Interval {
			return plan.Literal{Value: tv.Start}, plan.Literal{Value: tv.End}, true, nil
		}
		return plan.Literal{Value: tv.Start}, plan.Literal{Value: tv.Start}, false, nil
	case o.json:
		e, err := x.coerce(o, model.TypeTimeInstant)
		return e, e, false, err
	case o.typ.IsTime():
		return o.expr, o.expr, false, nil
	}
	return nil, nil, false, model.InvalidQuery("cannot compare %s with a time", o.typ)
}

// flexible operands take their type from the other side of a comparison
func flexible(o operand) bool {
	return o.json || o.entry != nil
}

func commonType(l, r operand) (model.ValueType, error) {
	switch {
	case l.typ == model.TypeID || r.typ == model.TypeID:
		if flexible(l) || flexible(r) {
			return 0, model.InvalidQuery("cannot compare an id with %s", model.TypeAny)
		}
		return model.TypeID, nil
	case flexible(l) && flexible(r):
		return 0, model.InvalidQuery("cannot compare %s with %s", l.typ, r.typ)
	case flexible(l):
		return r.typ, nil
	case flexible(r):
		return l.typ, nil
	case compatible(l.typ, r.typ):
		return l.typ, nil
	}
	return 0, model.InvalidQuery("cannot compare %s with %s", l.typ, r.typ)
}

func compatible(have, want model.ValueType) bool {
	switch {
	case have == want, want == model.TypeAny:
		return true
	case have.IsTime() && want.IsTime():
		return true
	case have == model.TypeID:
		return want == model.TypeNumber || want == model.TypeString
	case want == model.TypeID:
		return have == model.TypeNumber || have == model.TypeString
	}
	return false
}

// operandAs coerces an operand; id constants go through the id codec
func (x *exprContext) operandAs(o operand, want model.ValueType) (plan.Expr, error) {
	if want == model.TypeID && o.isConst {
		ids := x.c.tables.Registry().IDs()
		id, err := ids.FromJSON(o.constant)
		if n, ok := o.constant.(int64); ok && err != nil {
			id, err = ids.FromJSON(float64(n))
		}
		if err != nil {
			return nil, model.InvalidQuery("%v is not a valid id", o.constant)
		}
		return plan.Literal{Value: ids.ToStorage(id)}, nil
	}
	return x.coerce(o, want)
}

// coerce returns the expression of an operand used as the wanted type
func (x *exprContext) coerce(o operand, want model.ValueType) (plan.Expr, error) {
	switch {
	case o.null:
		return plan.Literal{Value: nil}, nil
	case o.entry != nil:
		return x.pick(o, want)
	case o.json:
		jp := o.expr.(plan.JSONPath)
		switch {
		case want == model.TypeNumber:
			jp.As = plan.AsNumber
		case want == model.TypeBoolean:
			jp.As = plan.AsBoolean
		case want == model.TypeString:
			jp.As = plan.AsText
		case want.IsTime():
			jp.As = plan.AsText
			return plan.Cast{Operand: jp, Type: "timestamptz"}, nil
		default:
			jp.As = plan.AsJSON
		}
		return jp, nil
	case compatible(o.typ, want):
		return o.expr, nil
	}
	return nil, model.InvalidQuery("expected %s, got %s", want, o.typ)
}

// pick selects the column of a multi-column property for the wanted type
func (x *exprContext) pick(o operand, want model.ValueType) (plan.Expr, error) {
	var key string
	switch {
	case want.IsTime():
		key = fields.KeyStart
	case want == model.TypeNumber:
		key = fields.KeyNumber
	case want == model.TypeString:
		key = fields.KeyString
	case want == model.TypeBoolean:
		key = fields.KeyBoolean
	default:
		key = fields.KeyJSON
	}
	f, ok := o.entry.Field(key)
	if !ok {
		return nil, model.InvalidQuery("%s cannot be used as %s", o.entry.Property.Name, want)
	}
	return f.Expr(o.ref), nil
}

func (x *exprContext) orderExprs(o operand) ([]plan.Expr, error) {
	switch {
	case o.null:
		return nil, model.InvalidQuery("cannot order by null")
	case o.entry != nil:
		for _, keys := range [][]string{{fields.KeyStart, fields.KeyEnd}, {fields.KeyNumber, fields.KeyString}} {
			var exprs []plan.Expr
			for _, k := range keys {
				if f, ok := o.entry.Field(k); ok {
					exprs = append(exprs, f.Expr(o.ref))
				}
			}
			if len(exprs) > 0 {
				return exprs, nil
			}
		}
		var exprs []plan.Expr
		for _, f := range o.entry.Fields {
			exprs = append(exprs, f.Expr(o.ref))
		}
		return exprs, nil
	}
	return []plan.Expr{o.expr}, nil
}

func exprEqual(a, b plan.Expr) bool {
	return reflect.DeepEqual(a, b)
}
