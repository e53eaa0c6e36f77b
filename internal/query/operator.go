package query

import "strings"

// Operator identifies a filter function or operator
type Operator int

const (
	// Comparison
	OpEq Operator = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe

	// Logical
	OpAnd
	OpOr
	OpNot

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// String
	OpSubstringOf
	OpStartsWith
	OpEndsWith
	OpLength
	OpIndexOf
	OpSubstring
	OpToLower
	OpToUpper
	OpTrim
	OpConcat

	// Date
	OpYear
	OpMonth
	OpDay
	OpHour
	OpMinute
	OpSecond
	OpNow

	// Math
	OpRound
	OpFloor
	OpCeiling
)

// Category groups operators by how they compile
type Category int

const (
	CategoryComparison Category = iota
	CategoryLogical
	CategoryArithmetic
	CategoryString
	CategoryDate
	CategoryMath
)

type operatorInfo struct {
	name     string
	category Category
	minArgs  int
	maxArgs  int
}

var operators = map[Operator]operatorInfo{
	OpEq:          {"eq", CategoryComparison, 2, 2},
	OpNe:          {"ne", CategoryComparison, 2, 2},
	OpGt:          {"gt", CategoryComparison, 2, 2},
	OpGe:          {"ge", CategoryComparison, 2, 2},
	OpLt:          {"lt", CategoryComparison, 2, 2},
	OpLe:          {"le", CategoryComparison, 2, 2},
	OpAnd:         {"and", CategoryLogical, 2, 2},
	OpOr:          {"or", CategoryLogical, 2, 2},
	OpNot:         {"not", CategoryLogical, 1, 1},
	OpAdd:         {"add", CategoryArithmetic, 2, 2},
	OpSub:         {"sub", CategoryArithmetic, 2, 2},
	OpMul:         {"mul", CategoryArithmetic, 2, 2},
	OpDiv:         {"div", CategoryArithmetic, 2, 2},
	OpMod:         {"mod", CategoryArithmetic, 2, 2},
	OpNeg:         {"-", CategoryArithmetic, 1, 1},
	OpSubstringOf: {"substringof", CategoryString, 2, 2},
	OpStartsWith:  {"startswith", CategoryString, 2, 2},
	OpEndsWith:    {"endswith", CategoryString, 2, 2},
	OpLength:      {"length", CategoryString, 1, 1},
	OpIndexOf:     {"indexof", CategoryString, 2, 2},
	OpSubstring:   {"substring", CategoryString, 2, 3},
	OpToLower:     {"tolower", CategoryString, 1, 1},
	OpToUpper:     {"toupper", CategoryString, 1, 1},
	OpTrim:        {"trim", CategoryString, 1, 1},
	OpConcat:      {"concat", CategoryString, 2, 2},
	OpYear:        {"year", CategoryDate, 1, 1},
	OpMonth:       {"month", CategoryDate, 1, 1},
	OpDay:         {"day", CategoryDate, 1, 1},
	OpHour:        {"hour", CategoryDate, 1, 1},
	OpMinute:      {"minute", CategoryDate, 1, 1},
	OpSecond:      {"second", CategoryDate, 1, 1},
	OpNow:         {"now", CategoryDate, 0, 0},
	OpRound:       {"round", CategoryMath, 1, 1},
	OpFloor:       {"floor", CategoryMath, 1, 1},
	OpCeiling:     {"ceiling", CategoryMath, 1, 1},
}

var operatorsByName = func() map[string]Operator {
	m := make(map[string]Operator, len(operators))
	for op, info := range operators {
		m[info.name] = op
	}
	return m
}()

// String returns the operator keyword
func (o Operator) String() string {
	if info, ok := operators[o]; ok {
		return info.name
	}
	return "unknown"
}

// Category returns the operator category
func (o Operator) Category() Category {
	return operators[o].category
}

// Arity returns the accepted argument count range
func (o Operator) Arity() (int, int) {
	info := operators[o]
	return info.minArgs, info.maxArgs
}

// LookupFunction returns the operator for a function name, case-insensitive
func LookupFunction(name string) (Operator, bool) {
	op, ok := operatorsByName[strings.ToLower(name)]
	return op, ok
}
