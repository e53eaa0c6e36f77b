package plan

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/lib/pq"
)

type renderer struct {
	sb     strings.Builder
	args   []interface{}
	params map[string]interface{}
	err    error
}

func (r *renderer) write(s string) {
	r.sb.WriteString(s)
}

func (r *renderer) bind(v interface{}) {
	r.args = append(r.args, v)
	fmt.Fprintf(&r.sb, "$%d", len(r.args))
}

func (r *renderer) table(t Table) {
	r.write(pq.QuoteIdentifier(t.Name))
	if t.Alias != "" {
		r.write(" " + t.Alias)
	}
}

func (r *renderer) field(f Field) {
	if f.Alias != "" {
		r.write(f.Alias + ".")
	}
	r.write(pq.QuoteIdentifier(f.Column))
}

func (r *renderer) list(sep string, exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			r.write(sep)
		}
		r.expr(e)
	}
}

func (r *renderer) expr(e Expr) {
	switch n := e.(type) {
	case Field:
		r.field(n)
	case JSONPath:
		r.jsonPath(n)
	case Literal:
		r.bind(n.Value)
	case Param:
		v, ok := r.params[n.Name]
		if !ok && r.err == nil {
			r.err = fmt.Errorf("parameter %q is not bound", n.Name)
		}
		r.bind(v)
	case Compare:
		r.write("(")
		r.expr(n.Left)
		r.write(" " + n.Op.String() + " ")
		r.expr(n.Right)
		r.write(")")
	case Arith:
		r.write("(")
		r.expr(n.Left)
		r.write(" " + n.Op.String() + " ")
		r.expr(n.Right)
		r.write(")")
	case Neg:
		r.write("(-")
		r.expr(n.Operand)
		r.write(")")
	case And:
		r.write("(")
		r.list(" AND ", n.Terms)
		r.write(")")
	case Or:
		r.write("(")
		r.list(" OR ", n.Terms)
		r.write(")")
	case Not:
		r.write("NOT ")
		r.expr(n.Operand)
	case IsNull:
		r.write("(")
		r.expr(n.Operand)
		if n.Negate {
			r.write(" IS NOT NULL)")
		} else {
			r.write(" IS NULL)")
		}
	case Func:
		r.write(n.Name + "(")
		r.list(", ", n.Args)
		r.write(")")
	case Cast:
		r.write("(")
		r.expr(n.Operand)
		r.write(")::" + n.Type)
	case In:
		r.write("(")
		r.expr(n.Operand)
		if n.Negate {
			r.write(" NOT")
		}
		r.write(" IN (")
		r.selectPlan(n.Select)
		r.write("))")
	case CountRows:
		if n.Distinct == nil {
			r.write("COUNT(*)")
			return
		}
		r.write("COUNT(DISTINCT ")
		r.expr(n.Distinct)
		r.write(")")
	default:
		if r.err == nil {
			r.err = fmt.Errorf("cannot render %T", e)
		}
	}
}

func (r *renderer) jsonPath(j JSONPath) {
	switch j.As {
	case AsJSON:
		r.write("(")
		r.field(j.Field)
		r.write(" #> ")
		r.bind(pq.StringArray(j.Path))
		r.write(")")
	case AsText:
		r.write("(")
		r.field(j.Field)
		r.write(" #>> ")
		r.bind(pq.StringArray(j.Path))
		r.write(")")
	case AsNumber, AsBoolean:
		jsonType, sqlType := "number", "double precision"
		if j.As == AsBoolean {
			jsonType, sqlType = "boolean", "boolean"
		}
		r.write("CASE WHEN jsonb_typeof(")
		r.field(j.Field)
		r.write(" #> ")
		r.bind(pq.StringArray(j.Path))
		r.write(") = '" + jsonType + "' THEN (")
		r.field(j.Field)
		r.write(" #>> ")
		r.bind(pq.StringArray(j.Path))
		r.write(")::" + sqlType + " END")
	}
}

// SQL renders a plan without named parameters
func (p *Plan) SQL() (string, []interface{}, error) {
	return p.Render(nil)
}

// Render renders the plan to PostgreSQL using $n placeholders; params binds
// the Param nodes.
func (p *Plan) Render(params map[string]interface{}) (string, []interface{}, error) {
	r := &renderer{params: params}
	r.selectPlan(p)
	return r.sb.String(), r.args, r.err
}

func (r *renderer) selectPlan(p *Plan) {
	r.write("SELECT ")
	if p.Distinct {
		r.write("DISTINCT ")
	}

	columns := make([]Expr, 0, len(p.Projection)+len(p.OrderBy))
	for _, c := range p.Projection {
		columns = append(columns, c.Expr)
	}
	if p.Distinct {
		// SELECT DISTINCT requires ORDER BY expressions in the select list
		for _, o := range p.OrderBy {
			if !containsExpr(columns, o.Expr) {
				columns = append(columns, o.Expr)
			}
		}
	}
	if len(columns) == 0 {
		r.write("*")
	}
	r.list(", ", columns)

	r.write(" FROM ")
	r.table(p.From)
	for _, j := range p.Joins {
		r.write(" " + j.Kind.String() + " ")
		r.table(j.Table)
		r.write(" ON ")
		r.expr(j.On)
	}
	if p.Where != nil {
		r.write(" WHERE ")
		r.expr(p.Where)
	}
	for i, o := range p.OrderBy {
		if i == 0 {
			r.write(" ORDER BY ")
		} else {
			r.write(", ")
		}
		r.expr(o.Expr)
		if o.Desc {
			r.write(" DESC")
		}
	}
	if p.Limit != nil {
		r.write(" LIMIT ")
		r.bind(*p.Limit)
	}
	if p.Offset > 0 {
		r.write(" OFFSET ")
		r.bind(p.Offset)
	}
	if p.ForUpdate {
		if p.Distinct {
			if r.err == nil {
				r.err = fmt.Errorf("FOR UPDATE cannot be combined with DISTINCT")
			}
			return
		}
		r.write(" FOR UPDATE")
		if len(p.Joins) > 0 && p.From.Alias != "" {
			r.write(" OF " + p.From.Alias)
		}
	}
}

func containsExpr(list []Expr, e Expr) bool {
	for _, x := range list {
		if reflect.DeepEqual(x, e) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Insert is an INSERT ... RETURNING statement
type Insert struct {
	Table     string
	Values    map[string]interface{}
	Returning string
}

// Render renders the statement with columns in name order
func (s Insert) Render() (string, []interface{}) {
	r := &renderer{}
	r.write("INSERT INTO " + pq.QuoteIdentifier(s.Table))
	keys := sortedKeys(s.Values)
	if len(keys) == 0 {
		r.write(" DEFAULT VALUES")
	} else {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = pq.QuoteIdentifier(k)
		}
		r.write(" (" + strings.Join(quoted, ", ") + ") VALUES (")
		for i, k := range keys {
			if i > 0 {
				r.write(", ")
			}
			r.bind(s.Values[k])
		}
		r.write(")")
	}
	if s.Returning != "" {
		r.write(" RETURNING " + pq.QuoteIdentifier(s.Returning))
	}
	return r.sb.String(), r.args
}

// Update is an UPDATE statement. Where uses fields without alias.
type Update struct {
	Table string
	Set   map[string]interface{}
	Where Expr
}

// Render renders the statement with columns in name order
func (s Update) Render() (string, []interface{}, error) {
	r := &renderer{}
	r.write("UPDATE " + pq.QuoteIdentifier(s.Table) + " SET ")
	for i, k := range sortedKeys(s.Set) {
		if i > 0 {
			r.write(", ")
		}
		r.write(pq.QuoteIdentifier(k) + " = ")
		if e, ok := s.Set[k].(Expr); ok {
			r.expr(e)
		} else {
			r.bind(s.Set[k])
		}
	}
	if s.Where != nil {
		r.write(" WHERE ")
		r.expr(s.Where)
	}
	return r.sb.String(), r.args, r.err
}

// Delete is a DELETE statement. Where uses fields without alias.
type Delete struct {
	Table string
	Where Expr
}

// Render renders the statement
func (s Delete) Render() (string, []interface{}, error) {
	r := &renderer{}
	r.write("DELETE FROM " + pq.QuoteIdentifier(s.Table))
	if s.Where != nil {
		r.write(" WHERE ")
		r.expr(s.Where)
	}
	return r.sb.String(), r.args, r.err
}
