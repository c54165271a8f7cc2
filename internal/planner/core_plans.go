package planner

import (
	"fmt"
	"sort"
	"strings"

	"accounts-api/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// PlanLookup builds a single-table equality lookup over one or more key columns.
func PlanLookup(table string, columns []string, key map[string]interface{}) (SQLQuery, error) {
	if len(key) == 0 {
		return SQLQuery{}, fmt.Errorf("lookup on %s requires at least one key column", table)
	}

	whereClause := sq.Eq{}
	for col, value := range key {
		whereClause[sqlutil.QuoteIdentifier(col)] = value
	}

	query, args, err := From(table, columns...).unordered().
		Where(whereClause).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanInsert builds an INSERT for the given column values. Columns are
// emitted in lexical order so the statement text is stable.
func PlanInsert(table string, values map[string]interface{}) (SQLQuery, error) {
	builder := sq.Insert(sqlutil.QuoteIdentifier(table)).PlaceholderFormat(sq.Question)
	cols, vals := sortedPairs(values)
	builder = builder.Columns(cols...).Values(vals...)

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanUpdate builds an UPDATE of set columns on rows matching key.
func PlanUpdate(table string, set map[string]interface{}, key map[string]interface{}) (SQLQuery, error) {
	if len(key) == 0 {
		return SQLQuery{}, fmt.Errorf("update on %s requires at least one key column", table)
	}

	builder := sq.Update(sqlutil.QuoteIdentifier(table)).PlaceholderFormat(sq.Question)
	cols, vals := sortedPairs(set)
	for i, col := range cols {
		builder = builder.Set(col, vals[i])
	}
	builder = builder.Where(quotedEq(key))

	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDelete builds a DELETE of rows matching key.
func PlanDelete(table string, key map[string]interface{}) (SQLQuery, error) {
	if len(key) == 0 {
		return SQLQuery{}, fmt.Errorf("delete on %s requires at least one key column", table)
	}

	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(table)).
		Where(quotedEq(key)).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func quotedEq(key map[string]interface{}) sq.Eq {
	eq := sq.Eq{}
	for col, value := range key {
		eq[sqlutil.QuoteIdentifier(col)] = value
	}
	return eq
}

func sortedPairs(values map[string]interface{}) ([]string, []interface{}) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]string, len(names))
	vals := make([]interface{}, len(names))
	for i, name := range names {
		cols[i] = sqlutil.QuoteIdentifier(name)
		vals[i] = values[name]
	}
	return cols, vals
}

// PlanUpsert builds an INSERT that, on a duplicate unique key, overwrites
// the listed update columns with the inserted values.
func PlanUpsert(table string, values map[string]interface{}, updateColumns []string) (SQLQuery, error) {
	if len(updateColumns) == 0 {
		return PlanInsert(table, values)
	}

	assignments := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		quoted := sqlutil.QuoteIdentifier(col)
		assignments[i] = quoted + " = VALUES(" + quoted + ")"
	}

	cols, vals := sortedPairs(values)
	query, args, err := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Columns(cols...).
		Values(vals...).
		Suffix("ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", ")).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}
