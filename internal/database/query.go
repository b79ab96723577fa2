package database

import (
	"fmt"

	"gorm.io/gorm"
)

// FilterOperator represents SQL comparison operators.
type FilterOperator int

// FilterOperator values.
const (
	OpEqual FilterOperator = iota
	OpNotEqual
	OpGreaterThanOrEqual
	OpLessThan
	OpIn
	OpIsNull
)

// String returns the SQL representation of the operator.
func (o FilterOperator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpIn:
		return "IN"
	case OpIsNull:
		return "IS NULL"
	default:
		return "="
	}
}

// Filter represents a single query filter condition.
type Filter struct {
	field    string
	operator FilterOperator
	value    any
}

// SortDirection represents sort direction.
type SortDirection int

// SortDirection values.
const (
	SortAsc SortDirection = iota
	SortDesc
)

// String returns the SQL representation.
func (s SortDirection) String() string {
	if s == SortDesc {
		return "DESC"
	}
	return "ASC"
}

type orderBy struct {
	field     string
	direction SortDirection
}

// Query represents a database query with filters, ordering, and a limit.
// Queries are values; every builder method returns a copy.
type Query struct {
	filters []Filter
	orderBy []orderBy
	limit   int
}

// NewQuery creates a new empty Query.
func NewQuery() Query {
	return Query{}
}

// Where adds a filter condition.
func (q Query) Where(field string, operator FilterOperator, value any) Query {
	q.filters = append(q.filters[:len(q.filters):len(q.filters)], Filter{field: field, operator: operator, value: value})
	return q
}

// Equal adds an equality filter.
func (q Query) Equal(field string, value any) Query {
	return q.Where(field, OpEqual, value)
}

// In adds an IN filter.
func (q Query) In(field string, values any) Query {
	return q.Where(field, OpIn, values)
}

// IsNull adds an IS NULL filter.
func (q Query) IsNull(field string) Query {
	return q.Where(field, OpIsNull, nil)
}

// OrderAsc adds ascending ordering.
func (q Query) OrderAsc(field string) Query {
	q.orderBy = append(q.orderBy[:len(q.orderBy):len(q.orderBy)], orderBy{field: field, direction: SortAsc})
	return q
}

// OrderDesc adds descending ordering.
func (q Query) OrderDesc(field string) Query {
	q.orderBy = append(q.orderBy[:len(q.orderBy):len(q.orderBy)], orderBy{field: field, direction: SortDesc})
	return q
}

// Limit sets the result limit. Zero or less means no limit.
func (q Query) Limit(limit int) Query {
	q.limit = limit
	return q
}

// Apply applies the query to a GORM database session.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	result := db
	for _, f := range q.filters {
		result = applyFilter(result, f)
	}
	for _, o := range q.orderBy {
		result = result.Order(fmt.Sprintf("%s %s", o.field, o.direction))
	}
	if q.limit > 0 {
		result = result.Limit(q.limit)
	}
	return result
}

func applyFilter(db *gorm.DB, f Filter) *gorm.DB {
	switch f.operator {
	case OpIn:
		return db.Where(fmt.Sprintf("%s IN ?", f.field), f.value)
	case OpIsNull:
		return db.Where(fmt.Sprintf("%s IS NULL", f.field))
	default:
		return db.Where(fmt.Sprintf("%s %s ?", f.field, f.operator), f.value)
	}
}
