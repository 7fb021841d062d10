package query

import (
	"time"

	"RiskMonitor/internal/domain"
)

// MaxLimit is the hard ceiling on records returned by one query.
const MaxLimit = 50

// Builder maps filter state to record queries. The zero value uses UTC and MaxLimit.
type Builder struct {
	// Location defines calendar days for date range bounds.
	Location *time.Location
	// Limit caps the result count; values outside [1, MaxLimit] become MaxLimit.
	Limit int
}

// NewBuilder returns a Builder for the given timezone and cap.
func NewBuilder(loc *time.Location, limit int) Builder {
	return Builder{Location: loc, Limit: limit}
}

// Build is pure: identical filters yield structurally identical queries.
func (b Builder) Build(filter domain.FilterState) Query {
	q := Query{
		Collection: CollectionRecords,
		Limit:      b.limit(),
	}

	if filter.MinRisk > 0 {
		q.Predicates = append(q.Predicates, Predicate{
			Field: FieldRiskScore,
			Op:    OpGte,
			Value: float64(filter.MinRisk),
		})
	}

	if start := filter.DateRange.Start; start != nil {
		q.Predicates = append(q.Predicates, Predicate{
			Field: FieldCollectedAt,
			Op:    OpGte,
			Value: b.startOfDay(*start).UTC(),
		})
	}

	// the end date's whole calendar day is included
	if end := filter.DateRange.End; end != nil {
		q.Predicates = append(q.Predicates, Predicate{
			Field: FieldCollectedAt,
			Op:    OpLt,
			Value: b.startOfDay(*end).AddDate(0, 0, 1).UTC(),
		})
	}

	if filter.SortOrder == domain.SortByRisk {
		q.Sort = []Order{
			{Field: FieldRiskScore, Descending: true},
			{Field: FieldCollectedAt, Descending: true},
		}
	} else {
		q.Sort = []Order{{Field: FieldCollectedAt, Descending: true}}
	}

	return q
}

// LatestLog selects the single most recent backend log entry.
func LatestLog() Query {
	return Query{
		Collection: CollectionLogs,
		Sort:       []Order{{Field: FieldCreatedAt, Descending: true}},
		Limit:      1,
	}
}

func (b Builder) limit() int {
	if b.Limit <= 0 || b.Limit > MaxLimit {
		return MaxLimit
	}
	return b.Limit
}

func (b Builder) startOfDay(t time.Time) time.Time {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
