// Package dbexec provides database query execution abstractions.
// Each call runs on a connection checked out of the pool for that call only
// and returned to the pool when the call's rows are closed or it fails.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so callers can swap in test doubles.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PoolExecutor executes each statement on a dedicated pooled connection.
type PoolExecutor struct {
	db *sql.DB
}

// NewPoolExecutor creates an executor over an explicitly constructed pool.
func NewPoolExecutor(db *sql.DB) *PoolExecutor {
	return &PoolExecutor{db: db}
}

func (e *PoolExecutor) acquire(ctx context.Context) (*sql.Conn, error) {
	if e.db == nil {
		return nil, &Error{Kind: KindAcquire, Err: sql.ErrConnDone}
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, &Error{Kind: KindAcquire, Err: err}
	}
	return conn, nil
}

// QueryContext runs query on a checked-out connection. The connection is
// released when the returned Rows are closed, or immediately on error.
func (e *PoolExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		_ = conn.Close()
		return nil, &Error{Kind: KindQuery, Err: err}
	}

	return &connRows{Rows: rows, conn: conn}, nil
}

// ExecContext runs a statement on a checked-out connection and releases it.
func (e *PoolExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close()
	}()

	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &Error{Kind: KindQuery, Err: err}
	}
	return result, nil
}

// connRows returns its connection to the pool on Close.
type connRows struct {
	*sql.Rows
	conn *sql.Conn
}

func (r *connRows) Close() error {
	defer func() {
		_ = r.conn.Close()
	}()
	return r.Rows.Close()
}
