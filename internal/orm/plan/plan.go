package plan

import "strconv"

// JoinKind is the kind of a join
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// String returns the SQL form of the join kind
func (k JoinKind) String() string {
	if k == JoinLeft {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// Table is an aliased table reference
type Table struct {
	Name  string
	Alias string
}

// Field returns a reference to a column of the table
func (t Table) Field(column string) Field {
	return Field{Alias: t.Alias, Column: column}
}

// Join adds a table to the FROM clause
type Join struct {
	Kind  JoinKind
	Table Table
	On    Expr
}

// Column is one projected expression
type Column struct {
	Expr Expr
}

// Order is one ordering key
type Order struct {
	Expr Expr
	Desc bool
}

// Plan is a compiled SELECT.
type Plan struct {
	From       Table
	Joins      []Join
	Where      Expr
	Projection []Column
	OrderBy    []Order
	Limit      *int64
	Offset     int64
	Distinct   bool
	ForUpdate  bool
}

// Project appends a column and returns its position
func (p *Plan) Project(e Expr) int {
	p.Projection = append(p.Projection, Column{Expr: e})
	return len(p.Projection) - 1
}

// CountPlan derives the count-only variant: same joins and filter, no
// projection, ordering or pagination. Distinct plans count distinct ids.
func (p *Plan) CountPlan(idColumn string) *Plan {
	count := CountRows{}
	if p.Distinct {
		count.Distinct = p.From.Field(idColumn)
	}
	return &Plan{
		From:       p.From,
		Joins:      p.Joins,
		Where:      p.Where,
		Projection: []Column{{Expr: count}},
	}
}

// State accumulates a plan during compilation: the join list, an alias
// counter and the distinct-required flag.
type State struct {
	plan             *Plan
	aliases          int
	distinctRequired bool
}

// NewState starts a plan selecting from the given table
func NewState(table string) *State {
	s := &State{}
	s.plan = &Plan{From: Table{Name: table, Alias: s.NextAlias()}}
	return s
}

// NextAlias returns a fresh table alias
func (s *State) NextAlias() string {
	alias := "t" + strconv.Itoa(s.aliases)
	s.aliases++
	return alias
}

// Main returns the main table reference
func (s *State) Main() Table {
	return s.plan.From
}

// AddJoin joins a table; on receives the new alias and builds the join predicate
func (s *State) AddJoin(kind JoinKind, table string, on func(joined Table) Expr) Table {
	joined := Table{Name: table, Alias: s.NextAlias()}
	s.plan.Joins = append(s.plan.Joins, Join{Kind: kind, Table: joined, On: on(joined)})
	return joined
}

// Where adds a predicate, AND-ed with existing ones
func (s *State) Where(e Expr) {
	s.plan.Where = AllOf(s.plan.Where, e)
}

// RequireDistinct marks that joins may duplicate logical rows
func (s *State) RequireDistinct() {
	s.distinctRequired = true
}

// ClearDistinct drops the flag set by joins that are known to match at most
// one row per main row
func (s *State) ClearDistinct() {
	s.distinctRequired = false
}

// DistinctRequired reports whether a join may duplicate logical rows
func (s *State) DistinctRequired() bool {
	return s.distinctRequired
}

// Plan returns the plan being built
func (s *State) Plan() *Plan {
	return s.plan
}
