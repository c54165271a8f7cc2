package planner

import (
	"errors"
	"fmt"
	"math"

	"accounts-api/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// DefaultPageSize is used when a page is requested without a page size.
const DefaultPageSize int64 = 10

// TotalCountColumn is the synthetic window count column added to paginated queries.
const TotalCountColumn = "__total_count"

// ErrInvalidPageRequest indicates a non-positive page or page size, or a
// page size above the configured maximum.
var ErrInvalidPageRequest = errors.New("invalid page request")

// PageRequest is the optional 1-indexed page window requested by a caller.
// A nil Page means the whole result set is returned as one page.
type PageRequest struct {
	Page     *int64
	PageSize *int64
}

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// BoundedQuery is a fragment ready for execution. When Paginated is true the
// last projected column is TotalCountColumn.
type BoundedQuery struct {
	SQLQuery
	Paginated bool
	PageSize  int64
}

// Paginator bounds fragments into page windows.
type Paginator struct {
	// DefaultPageSize applies when the request omits a page size.
	DefaultPageSize int64
	// MaxPageSize rejects larger page sizes when positive. Zero leaves page
	// size unbounded.
	MaxPageSize int64
}

// NewPaginator returns a paginator with the given defaults.
func NewPaginator(defaultPageSize, maxPageSize int64) Paginator {
	return Paginator{DefaultPageSize: defaultPageSize, MaxPageSize: maxPageSize}
}

func (p Paginator) defaultPageSize() int64 {
	if p.DefaultPageSize > 0 {
		return p.DefaultPageSize
	}
	return DefaultPageSize
}

// Validate checks the request against the paginator bounds.
func (p Paginator) Validate(req PageRequest) error {
	if req.Page != nil && *req.Page < 1 {
		return fmt.Errorf("%w: page must be at least 1", ErrInvalidPageRequest)
	}
	if req.PageSize != nil {
		if *req.PageSize < 1 {
			return fmt.Errorf("%w: page_size must be at least 1", ErrInvalidPageRequest)
		}
		if p.MaxPageSize > 0 && *req.PageSize > p.MaxPageSize {
			return fmt.Errorf("%w: page_size must be at most %d", ErrInvalidPageRequest, p.MaxPageSize)
		}
	}
	if req.Page != nil && *req.Page-1 > math.MaxInt64/p.pageSize(req) {
		return fmt.Errorf("%w: page is out of range for page_size %d", ErrInvalidPageRequest, p.pageSize(req))
	}
	return nil
}

// pageSize is the requested page size, or the default when none was given.
func (p Paginator) pageSize(req PageRequest) int64 {
	if req.PageSize != nil {
		return *req.PageSize
	}
	return p.defaultPageSize()
}

// Paginate bounds f to the requested page. Without a page the fragment is
// returned as-is. With a page, f is wrapped as a derived table, projected
// with a COUNT(*) OVER () window and limited to the page window; limit and
// offset are bound as positional args.
func (p Paginator) Paginate(f Fragment, req PageRequest) (BoundedQuery, error) {
	if err := p.Validate(req); err != nil {
		return BoundedQuery{}, err
	}

	if req.Page == nil {
		query, args, err := f.ToSql()
		if err != nil {
			return BoundedQuery{}, err
		}
		return BoundedQuery{SQLQuery: SQLQuery{SQL: query, Args: args}}, nil
	}

	pageSize := p.pageSize(req)
	offset := (*req.Page - 1) * pageSize

	// The order clause goes on the outer select: MySQL may drop ORDER BY
	// inside a derived table.
	builder := sq.Select("*", "COUNT(*) OVER () AS "+sqlutil.QuoteIdentifier(TotalCountColumn)).
		FromSelect(f.unordered(), "t").
		PlaceholderFormat(sq.Question)
	if order, ok := f.Order(); ok {
		builder = builder.OrderBy(order.sqlTerms()...)
	}
	builder = builder.Suffix("LIMIT ? OFFSET ?", pageSize, offset)

	query, args, err := builder.ToSql()
	if err != nil {
		return BoundedQuery{}, err
	}

	return BoundedQuery{
		SQLQuery:  SQLQuery{SQL: query, Args: args},
		Paginated: true,
		PageSize:  pageSize,
	}, nil
}

// Paginate bounds f with the default paginator.
func Paginate(f Fragment, req PageRequest) (BoundedQuery, error) {
	return Paginator{}.Paginate(f, req)
}

// TotalPages returns ceil(total / pageSize), and 0 when total is 0.
func TotalPages(total, pageSize int64) int64 {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
