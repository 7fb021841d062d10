package query

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Dialect carries the SQL flavour a store speaks.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	riskExpr    string
	// timeFunc, when set, wraps time columns and bound times so rows written
	// with different UTC offsets compare as instants rather than as text.
	timeFunc string
}

// Postgres reads the nested score out of a jsonb column.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	riskExpr:    "COALESCE(risk_score, (risk_analysis->>'risk_score')::double precision, 0)",
}

// SQLite reads the nested score with the JSON1 functions.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	riskExpr:    "COALESCE(risk_score, json_extract(risk_analysis, '$.risk_score'), 0)",
	timeFunc:    "julianday",
}

// sqliteTimeLayout is a rendering every SQLite date function parses.
const sqliteTimeLayout = "2006-01-02 15:04:05.000"

// RecordColumns is the column order record rows are scanned in.
var RecordColumns = []string{"id", "text", "url", "collected_at", "user_info", `"user"`, "risk_analysis", "risk_score"}

// LogColumns is the column order log rows are scanned in.
var LogColumns = []string{"id", "message", "level", "created_at"}

// Expr returns the SQL expression for a field. The flattened risk_score
// column wins over the nested analysis, matching record normalization.
func (d Dialect) Expr(f Field) string {
	switch {
	case f == FieldRiskScore:
		return d.riskExpr
	case d.timeFunc != "" && isTimeField(f):
		return d.timeFunc + "(" + string(f) + ")"
	}
	return string(f)
}

// bind returns the placeholder expression for a value compared against f.
func (d Dialect) bind(f Field) string {
	if d.timeFunc != "" && isTimeField(f) {
		return d.timeFunc + "(?)"
	}
	return "?"
}

func (d Dialect) arg(v any) any {
	if t, ok := v.(time.Time); ok && d.timeFunc != "" {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return v
}

func isTimeField(f Field) bool {
	return f == FieldCollectedAt || f == FieldCreatedAt
}

// ToSQL renders the query as a SELECT for the dialect.
func (q Query) ToSQL(d Dialect) (string, []any, error) {
	var columns []string
	switch q.Collection {
	case CollectionRecords:
		columns = RecordColumns
	case CollectionLogs:
		columns = LogColumns
	default:
		return "", nil, fmt.Errorf("collection %s is not queryable", q.Collection)
	}

	stmt := sq.Select(columns...).From(string(q.Collection)).PlaceholderFormat(d.Placeholder)
	for _, p := range q.Predicates {
		switch p.Op {
		case OpGte, OpLt:
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
		}
		stmt = stmt.Where(sq.Expr(d.Expr(p.Field)+" "+string(p.Op)+" "+d.bind(p.Field), d.arg(p.Value)))
	}
	for _, o := range q.Sort {
		dir := " ASC"
		if o.Descending {
			dir = " DESC"
		}
		stmt = stmt.OrderBy(d.Expr(o.Field) + dir)
	}
	if q.Limit > 0 {
		stmt = stmt.Limit(uint64(q.Limit))
	}

	return stmt.ToSql()
}
