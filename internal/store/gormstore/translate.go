package gormstore

import (
	"fmt"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// expression converts a store predicate into a native GORM clause expression.
func expression(predicate store.Predicate) (clause.Expression, error) {
	column := clause.Column{Name: predicate.Column()}
	switch predicate.Operator() {
	case store.OpEq:
		return clause.Eq{Column: column, Value: predicate.Value()}, nil
	case store.OpNeq:
		return clause.Neq{Column: column, Value: predicate.Value()}, nil
	case store.OpGt:
		return clause.Gt{Column: column, Value: predicate.Value()}, nil
	case store.OpGte:
		return clause.Gte{Column: column, Value: predicate.Value()}, nil
	case store.OpLt:
		return clause.Lt{Column: column, Value: predicate.Value()}, nil
	case store.OpLte:
		return clause.Lte{Column: column, Value: predicate.Value()}, nil
	case store.OpLike:
		return clause.Like{Column: column, Value: predicate.Value()}, nil
	case store.OpIsNull:
		return clause.Eq{Column: column, Value: nil}, nil
	case store.OpIn:
		values, ok := predicate.Value().([]any)
		if !ok {
			return nil, fmt.Errorf("%w: in on %s", store.ErrInvalidQuery, predicate.Column())
		}
		return clause.IN{Column: column, Values: values}, nil
	case store.OpAnd, store.OpOr:
		children := make([]clause.Expression, 0, len(predicate.Children()))
		for _, child := range predicate.Children() {
			childExpression, err := expression(child)
			if err != nil {
				return nil, err
			}
			children = append(children, childExpression)
		}
		if predicate.Operator() == store.OpAnd {
			return clause.And(children...), nil
		}
		return clause.Or(children...), nil
	case store.OpNot:
		childExpression, err := expression(predicate.Children()[0])
		if err != nil {
			return nil, err
		}
		return clause.Not(childExpression), nil
	default:
		return nil, fmt.Errorf("%w: operator %q", store.ErrInvalidQuery, predicate.Operator())
	}
}

func applyPredicate(db *gorm.DB, predicate store.Predicate) (*gorm.DB, error) {
	if predicate.IsZero() {
		return db, nil
	}
	condition, err := expression(predicate)
	if err != nil {
		return nil, err
	}
	return db.Clauses(clause.Where{Exprs: []clause.Expression{condition}}), nil
}

func applyQuery(db *gorm.DB, query store.Query) *gorm.DB {
	for _, ordering := range query.Order {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: ordering.Column}, Desc: ordering.Descending})
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}
	return db
}
