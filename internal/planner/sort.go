package planner

import (
	"sort"
	"strings"

	"accounts-api/internal/sqlutil"
)

// Direction is an ORDER BY direction.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// OrderTerm is one column of an order clause.
type OrderTerm struct {
	Column    string
	Direction Direction
}

// OrderClause is the single order clause a fragment may carry.
type OrderClause struct {
	Terms []OrderTerm
}

func (o OrderClause) sqlTerms() []string {
	terms := make([]string, len(o.Terms))
	for i, term := range o.Terms {
		terms[i] = sqlutil.QuoteIdentifier(term.Column) + " " + string(term.Direction)
	}
	return terms
}

// SortField maps a caller-visible sort name to a physical column.
type SortField struct {
	Name    string
	Column  string
	Default Direction
}

// SortWhitelist is the fixed set of sortable fields for one resource. It is
// the only path from a caller-supplied sort key to a column reference.
type SortWhitelist struct {
	fields     map[string]SortField
	tiebreaker string
}

// NewSortWhitelist builds a whitelist. When tiebreaker is set (normally the
// primary key) it is appended to every order clause so that page windows
// over equal sort values stay deterministic.
func NewSortWhitelist(tiebreaker string, fields ...SortField) SortWhitelist {
	byName := make(map[string]SortField, len(fields))
	for _, field := range fields {
		if field.Default == "" {
			field.Default = Ascending
		}
		byName[field.Name] = field
	}
	return SortWhitelist{fields: byName, tiebreaker: tiebreaker}
}

// Names returns the sortable field names in lexical order.
func (w SortWhitelist) Names() []string {
	names := make([]string, 0, len(w.fields))
	for name := range w.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseSortKey splits an optional .asc/.desc suffix off key.
func ParseSortKey(key string) (name string, direction Direction, explicit bool) {
	switch {
	case strings.HasSuffix(key, ".asc"):
		return strings.TrimSuffix(key, ".asc"), Ascending, true
	case strings.HasSuffix(key, ".desc"):
		return strings.TrimSuffix(key, ".desc"), Descending, true
	default:
		return key, "", false
	}
}

// Resolve maps a sort key to an order clause. The second result is false
// when the logical name is not whitelisted.
func (w SortWhitelist) Resolve(key string) (OrderClause, bool) {
	name, direction, explicit := ParseSortKey(key)
	field, ok := w.fields[name]
	if !ok {
		return OrderClause{}, false
	}
	if !explicit {
		direction = field.Default
	}

	terms := []OrderTerm{{Column: field.Column, Direction: direction}}
	if w.tiebreaker != "" && w.tiebreaker != field.Column {
		terms = append(terms, OrderTerm{Column: w.tiebreaker, Direction: direction})
	}
	return OrderClause{Terms: terms}, true
}

// ApplySort orders f by the whitelisted field named in key. An empty or
// unknown key returns f unchanged.
func ApplySort(f Fragment, w SortWhitelist, key string) Fragment {
	if key == "" {
		return f
	}
	clause, ok := w.Resolve(key)
	if !ok {
		return f
	}
	return f.OrderBy(clause)
}
