package planner

import (
	"fmt"

	"accounts-api/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Operator is one of the fixed comparison operators a filter rule may use.
type Operator int

const (
	// OpContains is a case-sensitive substring test over text columns.
	OpContains Operator = iota + 1
	// OpGTE is column >= value.
	OpGTE
	// OpLTE is column <= value.
	OpLTE
)

func (o Operator) String() string {
	switch o {
	case OpContains:
		return "contains"
	case OpGTE:
		return "gte"
	case OpLTE:
		return "lte"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// FilterRule is a single optional column constraint. Rules are only built
// through Contains, GTE and LTE, which keeps the operator set closed.
type FilterRule struct {
	column  string
	op      Operator
	value   interface{}
	present bool
}

// Contains builds a substring rule. A nil value makes the rule a no-op.
func Contains(column string, value *string) FilterRule {
	return newRule(column, OpContains, value)
}

// GTE builds a column >= value rule. A nil value makes the rule a no-op.
func GTE[T any](column string, value *T) FilterRule {
	return newRule(column, OpGTE, value)
}

// LTE builds a column <= value rule. A nil value makes the rule a no-op.
func LTE[T any](column string, value *T) FilterRule {
	return newRule(column, OpLTE, value)
}

func newRule[T any](column string, op Operator, value *T) FilterRule {
	rule := FilterRule{column: column, op: op}
	if value != nil {
		rule.value = *value
		rule.present = true
	}
	return rule
}

// Column returns the physical column the rule constrains.
func (r FilterRule) Column() string { return r.column }

// Operator returns the rule's operator.
func (r FilterRule) Operator() Operator { return r.op }

// Present reports whether the rule carries a value.
func (r FilterRule) Present() bool { return r.present }

func (r FilterRule) predicate() sq.Sqlizer {
	col := sqlutil.QuoteIdentifier(r.column)
	switch r.op {
	case OpContains:
		text, ok := r.value.(string)
		if !ok {
			text = fmt.Sprint(r.value)
		}
		// BINARY keeps the match case-sensitive under ci collations.
		return sq.Expr(col+" LIKE BINARY ? ESCAPE '"+sqlutil.LikeEscapeChar+"'", sqlutil.ContainsPattern(text))
	case OpGTE:
		return sq.GtOrEq{col: r.value}
	case OpLTE:
		return sq.LtOrEq{col: r.value}
	default:
		return nil
	}
}

// ApplyFilters conjoins every present rule onto f. Absent rules are skipped.
func ApplyFilters(f Fragment, rules ...FilterRule) Fragment {
	for _, rule := range rules {
		if !rule.present {
			continue
		}
		f = f.Where(rule.predicate())
	}
	return f
}
