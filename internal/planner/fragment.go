package planner

import (
	"accounts-api/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Fragment is an immutable, composable read query over a single table.
// Every composing method returns a new value; the receiver is never mutated.
type Fragment struct {
	table      string
	columns    []string
	predicates []sq.Sqlizer
	order      *OrderClause
}

// From starts a fragment that scans table and projects columns.
// An empty column list projects every column.
func From(table string, columns ...string) Fragment {
	return Fragment{
		table:   table,
		columns: append([]string(nil), columns...),
	}
}

// Table returns the base table name.
func (f Fragment) Table() string {
	return f.table
}

// Columns returns a copy of the projected column names.
func (f Fragment) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Predicates returns the number of predicates applied so far.
func (f Fragment) Predicates() int {
	return len(f.predicates)
}

// Where returns a fragment with pred conjoined to the existing predicates.
func (f Fragment) Where(pred sq.Sqlizer) Fragment {
	if pred == nil {
		return f
	}
	next := f
	next.predicates = make([]sq.Sqlizer, len(f.predicates), len(f.predicates)+1)
	copy(next.predicates, f.predicates)
	next.predicates = append(next.predicates, pred)
	return next
}

// OrderBy returns a fragment whose single order clause is o, replacing any
// clause applied earlier.
func (f Fragment) OrderBy(o OrderClause) Fragment {
	next := f
	clause := OrderClause{Terms: append([]OrderTerm(nil), o.Terms...)}
	next.order = &clause
	return next
}

// Order returns the active order clause, if any.
func (f Fragment) Order() (OrderClause, bool) {
	if f.order == nil {
		return OrderClause{}, false
	}
	return *f.order, true
}

// ToSql renders the fragment, including its order clause.
func (f Fragment) ToSql() (string, []interface{}, error) {
	builder := f.unordered()
	if f.order != nil {
		builder = builder.OrderBy(f.order.sqlTerms()...)
	}
	return builder.ToSql()
}

// unordered renders the projection, table and predicates without ordering.
func (f Fragment) unordered() sq.SelectBuilder {
	columns := make([]string, 0, len(f.columns))
	for _, col := range f.columns {
		columns = append(columns, sqlutil.QuoteIdentifier(col))
	}
	if len(columns) == 0 {
		columns = append(columns, "*")
	}

	builder := sq.Select(columns...).
		From(sqlutil.QuoteIdentifier(f.table)).
		PlaceholderFormat(sq.Question)
	for _, pred := range f.predicates {
		builder = builder.Where(pred)
	}
	return builder
}
