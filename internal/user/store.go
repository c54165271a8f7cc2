package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/logging"
	"accounts-api/internal/observability"
	"accounts-api/internal/planner"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = dbexec.ErrNotFound
	// ErrEmailTaken is returned when another user already has the email.
	ErrEmailTaken = errors.New("email already registered")
)

// Sorts is the whitelist of sort_by values accepted by FindAll.
var Sorts = planner.NewSortWhitelist("id",
	planner.SortField{Name: "id", Column: "id"},
	planner.SortField{Name: "email", Column: "email"},
	planner.SortField{Name: "created_at", Column: "created_at"},
	planner.SortField{Name: "updated_at", Column: "updated_at"},
)

// Store reads and writes users.
type Store struct {
	exec      dbexec.QueryExecutor
	paginator planner.Paginator
	metrics   *observability.ListMetrics
	now       func() time.Time
	newID     func() string
	hashCost  int
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides UUID generation for new users.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithHashCost sets the bcrypt cost for stored passwords.
func WithHashCost(cost int) Option {
	return func(s *Store) { s.hashCost = cost }
}

// WithListMetrics records FindAll timings.
func WithListMetrics(m *observability.ListMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a Store executing through exec.
func NewStore(exec dbexec.QueryExecutor, paginator planner.Paginator, opts ...Option) *Store {
	s := &Store{
		exec:      exec,
		paginator: paginator,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		hashCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func scanUser(scan func(dest ...any) error) (User, error) {
	var u User
	var updated sql.NullTime
	if err := scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt, &updated); err != nil {
		return User{}, err
	}
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return u, nil
}

// ListQuery composes the bounded list query for p.
func (s *Store) ListQuery(p Params) (planner.BoundedQuery, error) {
	f := planner.From(Table, Columns...)
	f = planner.ApplyFilters(f,
		planner.Contains("email", p.Email),
		planner.GTE("created_at", p.CreatedAtGTE),
		planner.LTE("created_at", p.CreatedAtLTE),
		planner.GTE("updated_at", p.UpdatedAtGTE),
		planner.LTE("updated_at", p.UpdatedAtLTE),
	)
	f = planner.ApplySort(f, Sorts, p.SortBy)
	return s.paginator.Paginate(f, planner.PageRequest{Page: p.Page, PageSize: p.PageSize})
}

// FindAll returns the page of users selected by p.
func (s *Store) FindAll(ctx context.Context, p Params) (dbexec.Page[User], error) {
	query, err := s.ListQuery(p)
	if err != nil {
		return dbexec.Page[User]{}, err
	}
	logging.FromContext(ctx).Debug("listing users",
		slog.String("sql", query.SQL),
		slog.Bool("paginated", query.Paginated),
	)

	start := time.Now()
	page, err := dbexec.LoadPage(ctx, s.exec, query, scanUser)
	s.metrics.Record(ctx, Table, time.Since(start), len(page.Records), err)
	if err != nil {
		return dbexec.Page[User]{}, fmt.Errorf("list users: %w", err)
	}
	return page, nil
}

func (s *Store) findBy(ctx context.Context, column string, value any) (User, error) {
	query, err := planner.PlanLookup(Table, Columns, map[string]interface{}{column: value})
	if err != nil {
		return User{}, err
	}
	return dbexec.LoadOne(ctx, s.exec, query, scanUser)
}

// Find returns the user with the given id.
func (s *Store) Find(ctx context.Context, id string) (User, error) {
	u, err := s.findBy(ctx, "id", id)
	if err != nil {
		return User{}, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, nil
}

// FindByEmail returns the user registered with email.
func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	u, err := s.findBy(ctx, "email", email)
	if err != nil {
		return User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (s *Store) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Create inserts a new user with a fresh id and a hashed password.
func (s *Store) Create(ctx context.Context, msg Message) (User, error) {
	hashed, err := s.hash(msg.Password)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:        s.newID(),
		Email:     msg.Email,
		Password:  hashed,
		CreatedAt: s.now(),
	}
	query, err := planner.PlanInsert(Table, map[string]interface{}{
		"id":         u.ID,
		"email":      u.Email,
		"password":   u.Password,
		"created_at": u.CreatedAt,
	})
	if err != nil {
		return User{}, err
	}

	if _, err := dbexec.Exec(ctx, s.exec, query); err != nil {
		return User{}, wrapWrite("create user", err)
	}
	return u, nil
}

// Update replaces the email and password of user id and stamps updated_at.
func (s *Store) Update(ctx context.Context, id string, msg Message) (User, error) {
	hashed, err := s.hash(msg.Password)
	if err != nil {
		return User{}, err
	}

	query, err := planner.PlanUpdate(Table, map[string]interface{}{
		"email":      msg.Email,
		"password":   hashed,
		"updated_at": s.now(),
	}, map[string]interface{}{"id": id})
	if err != nil {
		return User{}, err
	}

	affected, err := dbexec.Exec(ctx, s.exec, query)
	if err != nil {
		return User{}, wrapWrite("update user "+id, err)
	}
	if affected == 0 {
		return User{}, fmt.Errorf("update user %s: %w", id, ErrNotFound)
	}
	return s.Find(ctx, id)
}

// Delete removes user id and returns the number of rows deleted.
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	query, err := planner.PlanDelete(Table, map[string]interface{}{"id": id})
	if err != nil {
		return 0, err
	}
	n, err := dbexec.Exec(ctx, s.exec, query)
	if err != nil {
		return 0, fmt.Errorf("delete user %s: %w", id, err)
	}
	return n, nil
}

func wrapWrite(op string, err error) error {
	if errors.Is(err, dbexec.ErrDuplicate) {
		return fmt.Errorf("%s: %w: %w", op, ErrEmailTaken, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
