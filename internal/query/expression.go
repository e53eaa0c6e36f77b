package query

import (
	"time"

	"github.com/conduit-lang/sensorthings/internal/model"
)

// Expression is a node of a filter or orderby expression tree.
type Expression interface {
	expression()
}

// Path addresses a property, possibly through navigation hops. All elements
// but the last are navigation properties.
type Path struct {
	Elements []*model.Property
}

func (*Path) expression() {}

// NewPath creates a path expression
func NewPath(elements ...*model.Property) *Path {
	return &Path{Elements: elements}
}

// Last returns the terminal property
func (p *Path) Last() *model.Property {
	return p.Elements[len(p.Elements)-1]
}

// IntegerConstant is an integer literal
type IntegerConstant struct{ Value int64 }

// DoubleConstant is a floating point literal
type DoubleConstant struct{ Value float64 }

// StringConstant is a string literal
type StringConstant struct{ Value string }

// BooleanConstant is true or false
type BooleanConstant struct{ Value bool }

// NullConstant is the null literal
type NullConstant struct{}

// DateTimeConstant is an ISO 8601 date-time literal
type DateTimeConstant struct{ Value time.Time }

func (IntegerConstant) expression()  {}
func (DoubleConstant) expression()   {}
func (StringConstant) expression()   {}
func (BooleanConstant) expression()  {}
func (NullConstant) expression()     {}
func (DateTimeConstant) expression() {}

// Function applies an operator to its arguments. Comparisons, arithmetic,
// logic and built-in functions are all functions.
type Function struct {
	Op   Operator
	Args []Expression
}

func (*Function) expression() {}

// Fn creates a function node
func Fn(op Operator, args ...Expression) *Function {
	return &Function{Op: op, Args: args}
}

// Int creates an integer literal
func Int(v int64) IntegerConstant { return IntegerConstant{Value: v} }

// Double creates a floating point literal
func Double(v float64) DoubleConstant { return DoubleConstant{Value: v} }

// Str creates a string literal
func Str(v string) StringConstant { return StringConstant{Value: v} }

// Bool creates a boolean literal
func Bool(v bool) BooleanConstant { return BooleanConstant{Value: v} }

func Eq(a, b Expression) *Function  { return Fn(OpEq, a, b) }
func Ne(a, b Expression) *Function  { return Fn(OpNe, a, b) }
func Gt(a, b Expression) *Function  { return Fn(OpGt, a, b) }
func Ge(a, b Expression) *Function  { return Fn(OpGe, a, b) }
func Lt(a, b Expression) *Function  { return Fn(OpLt, a, b) }
func Le(a, b Expression) *Function  { return Fn(OpLe, a, b) }
func Add(a, b Expression) *Function { return Fn(OpAdd, a, b) }
func Sub(a, b Expression) *Function { return Fn(OpSub, a, b) }
func And(a, b Expression) *Function { return Fn(OpAnd, a, b) }
func Or(a, b Expression) *Function  { return Fn(OpOr, a, b) }
func Not(a Expression) *Function    { return Fn(OpNot, a) }
