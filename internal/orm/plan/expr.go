// Package plan describes relational execution plans and renders them to
// PostgreSQL. A plan is built by the query compiler and has no I/O of its own.
package plan

// Expr is a node of a predicate, projection or ordering expression.
type Expr interface {
	exprNode()
}

// Field references a column of an aliased table
type Field struct {
	Alias  string
	Column string
}

// JSONCast selects how a JSON sub-path is extracted
type JSONCast int

const (
	// AsJSON extracts the sub-document (#>)
	AsJSON JSONCast = iota
	// AsText extracts the sub-value as text (#>>)
	AsText
	// AsNumber extracts numeric sub-values, NULL otherwise
	AsNumber
	// AsBoolean extracts boolean sub-values, NULL otherwise
	AsBoolean
)

// JSONPath extracts a nested value from a jsonb column
type JSONPath struct {
	Field Field
	Path  []string
	As    JSONCast
}

// Literal is a constant bound as a query parameter
type Literal struct {
	Value interface{}
}

// Param is a named parameter bound when the plan is rendered, e.g. the
// parent id of an expand sub-plan
type Param struct {
	Name string
}

// CompareOp is a comparison operator
type CompareOp int

const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
)

// String returns the SQL form of the operator
func (op CompareOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	default:
		return "?"
	}
}

// Compare compares two expressions
type Compare struct {
	Op          CompareOp
	Left, Right Expr
}

// ArithOp is an arithmetic operator
type ArithOp int

const (
	OpPlus ArithOp = iota
	OpMinus
	OpTimes
	OpDivide
	OpModulo
)

// String returns the SQL form of the operator
func (op ArithOp) String() string {
	switch op {
	case OpPlus:
		return "+"
	case OpMinus:
		return "-"
	case OpTimes:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	default:
		return "?"
	}
}

// Arith combines two numeric expressions
type Arith struct {
	Op          ArithOp
	Left, Right Expr
}

// Neg negates a numeric expression
type Neg struct {
	Operand Expr
}

// And is the conjunction of its terms
type And struct {
	Terms []Expr
}

// Or is the disjunction of its terms
type Or struct {
	Terms []Expr
}

// Not negates a predicate
type Not struct {
	Operand Expr
}

// IsNull tests for NULL, or for NOT NULL when Negate is set
type IsNull struct {
	Operand Expr
	Negate  bool
}

// Func calls a SQL function
type Func struct {
	Name string
	Args []Expr
}

// Cast converts an expression to a SQL type
type Cast struct {
	Operand Expr
	Type    string
}

// In tests membership in the single-column result of a sub-select
type In struct {
	Operand Expr
	Select  *Plan
	Negate  bool
}

// CountRows counts rows, or distinct values of Distinct when set
type CountRows struct {
	Distinct Expr
}

func (Field) exprNode()     {}
func (JSONPath) exprNode()  {}
func (Literal) exprNode()   {}
func (Param) exprNode()     {}
func (Compare) exprNode()   {}
func (Arith) exprNode()     {}
func (Neg) exprNode()       {}
func (And) exprNode()       {}
func (Or) exprNode()        {}
func (Not) exprNode()       {}
func (IsNull) exprNode()    {}
func (Func) exprNode()      {}
func (Cast) exprNode()      {}
func (In) exprNode()        {}
func (CountRows) exprNode() {}

// Eq builds an equality comparison
func Eq(left, right Expr) Compare {
	return Compare{Op: OpEqual, Left: left, Right: right}
}

// AllOf combines predicates with AND, skipping nil terms. It returns nil
// when no term remains and the single term when only one remains.
func AllOf(terms ...Expr) Expr {
	var kept []Expr
	for _, t := range terms {
		if t == nil {
			continue
		}
		if and, ok := t.(And); ok {
			kept = append(kept, and.Terms...)
			continue
		}
		kept = append(kept, t)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Terms: kept}
}

// AnyOf combines predicates with OR
func AnyOf(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return Or{Terms: terms}
}
