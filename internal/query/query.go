// Package query turns dashboard filter selections into store queries.
//
// A Query is a plain value: the SQL stores render it through squirrel and the
// memory store evaluates it directly, so both observe the same predicates,
// ordering and cap.
package query

import (
	"fmt"
	"time"
)

// Collection names a logical collection in the record store.
type Collection string

const (
	CollectionRecords  Collection = "tweets"
	CollectionLogs     Collection = "system_logs"
	CollectionCommands Collection = "system_commands"
)

// Field names a queryable attribute.
type Field string

const (
	// FieldRiskScore is the effective risk score, not the raw column.
	FieldRiskScore   Field = "risk_score"
	FieldCollectedAt Field = "collected_at"
	FieldCreatedAt   Field = "created_at"
)

// Op is a comparison operator.
type Op string

const (
	OpGte Op = ">="
	OpLt  Op = "<"
)

// Predicate compares a field against a bound value.
type Predicate struct {
	Field Field
	Op    Op
	Value any
}

// Order sorts by a field.
type Order struct {
	Field      Field
	Descending bool
}

// Query is a complete request against one collection.
type Query struct {
	Collection Collection
	Predicates []Predicate
	Sort       []Order
	Limit      int
}

// Getter returns the value of a field for one element under evaluation.
type Getter func(Field) any

// Matches reports whether the element satisfies every predicate.
func (q Query) Matches(get Getter) bool {
	for _, p := range q.Predicates {
		c, ok := compare(get(p.Field), p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpGte:
			if c < 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Less reports whether a sorts before b under the query ordering.
func (q Query) Less(a, b Getter) bool {
	for _, o := range q.Sort {
		c, ok := compare(a(o.Field), b(o.Field))
		if !ok || c == 0 {
			continue
		}
		if o.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

// String renders the query for logs.
func (q Query) String() string {
	return fmt.Sprintf("%s where=%v sort=%v limit=%d", q.Collection, q.Predicates, q.Sort, q.Limit)
}
