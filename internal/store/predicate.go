package store

import (
	"fmt"
	"strings"
)

// Operator identifies a predicate node.
type Operator string

const (
	OpEq     Operator = "="
	OpNeq    Operator = "<>"
	OpGt     Operator = ">"
	OpGte    Operator = ">="
	OpLt     Operator = "<"
	OpLte    Operator = "<="
	OpIn     Operator = "in"
	OpLike   Operator = "like"
	OpIsNull Operator = "is null"
	OpAnd    Operator = "and"
	OpOr     Operator = "or"
	OpNot    Operator = "not"
)

// Predicate is a filter tree translated by the store into native conditions.
// The zero Predicate matches everything.
type Predicate struct {
	operator Operator
	column   string
	value    any
	children []Predicate
}

func comparison(operator Operator, column string, value any) Predicate {
	return Predicate{operator: operator, column: column, value: value}
}

func Eq(column string, value any) Predicate  { return comparison(OpEq, column, value) }
func Neq(column string, value any) Predicate { return comparison(OpNeq, column, value) }
func Gt(column string, value any) Predicate  { return comparison(OpGt, column, value) }
func Gte(column string, value any) Predicate { return comparison(OpGte, column, value) }
func Lt(column string, value any) Predicate  { return comparison(OpLt, column, value) }
func Lte(column string, value any) Predicate { return comparison(OpLte, column, value) }

// Like matches a SQL LIKE pattern.
func Like(column string, pattern string) Predicate { return comparison(OpLike, column, pattern) }

// IsNull matches rows whose column is NULL.
func IsNull(column string) Predicate { return comparison(OpIsNull, column, nil) }

// In matches any of the values. An empty value list matches nothing.
func In(column string, values ...any) Predicate {
	copied := make([]any, len(values))
	copy(copied, values)
	return comparison(OpIn, column, copied)
}

// And combines predicates; zero predicates are dropped.
func And(predicates ...Predicate) Predicate {
	return combine(OpAnd, predicates)
}

// Or matches when any predicate matches; zero predicates are dropped.
func Or(predicates ...Predicate) Predicate {
	return combine(OpOr, predicates)
}

// Not negates a predicate.
func Not(predicate Predicate) Predicate {
	if predicate.IsZero() {
		return predicate
	}
	return Predicate{operator: OpNot, children: []Predicate{predicate}}
}

func combine(operator Operator, predicates []Predicate) Predicate {
	children := make([]Predicate, 0, len(predicates))
	for _, predicate := range predicates {
		if !predicate.IsZero() {
			children = append(children, predicate)
		}
	}
	switch len(children) {
	case 0:
		return Predicate{}
	case 1:
		return children[0]
	default:
		return Predicate{operator: operator, children: children}
	}
}

// And is shorthand for And(predicate, others...).
func (predicate Predicate) And(others ...Predicate) Predicate {
	return And(append([]Predicate{predicate}, others...)...)
}

func (predicate Predicate) IsZero() bool         { return predicate.operator == "" }
func (predicate Predicate) Operator() Operator   { return predicate.operator }
func (predicate Predicate) Column() string       { return predicate.column }
func (predicate Predicate) Value() any           { return predicate.value }
func (predicate Predicate) Children() []Predicate { return predicate.children }

// String renders the predicate for logs and test failures.
func (predicate Predicate) String() string {
	switch predicate.operator {
	case "":
		return "true"
	case OpAnd, OpOr:
		parts := make([]string, len(predicate.children))
		for index, child := range predicate.children {
			parts[index] = child.String()
		}
		return "(" + strings.Join(parts, " "+string(predicate.operator)+" ") + ")"
	case OpNot:
		return "not " + predicate.children[0].String()
	case OpIsNull:
		return predicate.column + " is null"
	default:
		return fmt.Sprintf("%s %s %v", predicate.column, predicate.operator, predicate.value)
	}
}
