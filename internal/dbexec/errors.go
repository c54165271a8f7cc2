package dbexec

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned by single-row reads that match no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a write violates a unique key.
var ErrDuplicate = errors.New("duplicate record")

// Kind classifies an execution failure.
type Kind string

const (
	// KindAcquire is a failure to check a connection out of the pool.
	KindAcquire Kind = "acquire"
	// KindQuery is a store-side failure executing the statement.
	KindQuery Kind = "query"
	// KindScan is a failure decoding a result row.
	KindScan Kind = "scan"
)

// Error is a typed execution failure wrapping the driver error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var execErr *Error
	return errors.As(err, &execErr) && execErr.Kind == kind
}

const mysqlErrDuplicateEntry = 1062

// IsDuplicateKey reports whether err is a MySQL duplicate-entry error.
func IsDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
