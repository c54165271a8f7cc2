package dbexec

import (
	"context"
	"fmt"

	"accounts-api/internal/planner"
)

// Page is a materialized list result.
type Page[T any] struct {
	Records    []T   `json:"records"`
	TotalPages int64 `json:"total_pages"`
}

// RecordScanner builds one record from the current row by calling scan with
// destinations for the record's own columns.
type RecordScanner[T any] func(scan func(dest ...any) error) (T, error)

// LoadPage executes a bounded query and materializes its records. For
// paginated queries the trailing window count column is scanned here and
// never reaches the record scanner; unpaginated queries report one page.
func LoadPage[T any](ctx context.Context, exec QueryExecutor, query planner.BoundedQuery, scanRecord RecordScanner[T]) (Page[T], error) {
	rows, err := exec.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return Page[T]{}, err
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]T, 0)
	var total int64
	first := true

	for rows.Next() {
		var rowTotal int64
		scan := rows.Scan
		if query.Paginated {
			scan = func(dest ...any) error {
				return rows.Scan(append(dest, &rowTotal)...)
			}
		}

		record, err := scanRecord(scan)
		if err != nil {
			return Page[T]{}, &Error{Kind: KindScan, Err: err}
		}
		if first {
			total = rowTotal
			first = false
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return Page[T]{}, &Error{Kind: KindQuery, Err: err}
	}

	if !query.Paginated {
		return Page[T]{Records: records, TotalPages: 1}, nil
	}
	return Page[T]{
		Records:    records,
		TotalPages: planner.TotalPages(total, query.PageSize),
	}, nil
}

// LoadOne executes query and scans the first row. It returns ErrNotFound
// when the query yields no rows.
func LoadOne[T any](ctx context.Context, exec QueryExecutor, query planner.SQLQuery, scanRecord RecordScanner[T]) (T, error) {
	var zero T
	rows, err := exec.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return zero, err
	}
	defer func() {
		_ = rows.Close()
	}()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, &Error{Kind: KindQuery, Err: err}
		}
		return zero, ErrNotFound
	}

	record, err := scanRecord(rows.Scan)
	if err != nil {
		return zero, &Error{Kind: KindScan, Err: err}
	}
	return record, nil
}

// Exec runs a write statement and returns the affected row count.
func Exec(ctx context.Context, exec QueryExecutor, query planner.SQLQuery) (int64, error) {
	result, err := exec.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		if IsDuplicateKey(err) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return 0, err
	}
	return result.RowsAffected()
}
