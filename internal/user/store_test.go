package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/planner"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	selectUsers = "SELECT `id`, `email`, `password`, `created_at`, `updated_at` FROM `users`"
	lookupByID  = selectUsers + " WHERE `id` = ?"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, paginator planner.Paginator) (*Store, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(dbexec.NewPoolExecutor(db), paginator,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "7d444840-9dc0-11d1-b245-5ffdce74fad2" }),
		WithHashCost(bcrypt.MinCost),
	)
	return store, db, mock
}

func ptr[T any](v T) *T { return &v }

func userColumns(counted bool) []string {
	cols := append([]string(nil), Columns...)
	if counted {
		cols = append(cols, planner.TotalCountColumn)
	}
	return cols
}

func TestListQuery_ComposesFiltersSortAndPage(t *testing.T) {
	store, _, _ := newTestStore(t, planner.Paginator{})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q, err := store.ListQuery(Params{
		Page:         ptr(int64(2)),
		PageSize:     ptr(int64(5)),
		SortBy:       "created_at.desc",
		Email:        ptr("example"),
		CreatedAtGTE: &from,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT *, COUNT(*) OVER () AS `__total_count` FROM ("+selectUsers+
			" WHERE `email` LIKE BINARY ? ESCAPE '!' AND `created_at` >= ?) AS t ORDER BY `created_at` DESC, `id` DESC LIMIT ? OFFSET ?",
		q.SQL)
	assert.Equal(t, []interface{}{"%example%", from, int64(5), int64(5)}, q.Args)
	assert.True(t, q.Paginated)
}

func TestListQuery_UnknownSortIgnored(t *testing.T) {
	store, _, _ := newTestStore(t, planner.Paginator{})

	q, err := store.ListQuery(Params{SortBy: "password.desc"})
	require.NoError(t, err)
	assert.Equal(t, selectUsers, q.SQL)
	assert.False(t, q.Paginated)
}

func TestListQuery_RejectsOversizedPage(t *testing.T) {
	store, _, _ := newTestStore(t, planner.NewPaginator(10, 100))

	_, err := store.ListQuery(Params{Page: ptr(int64(1)), PageSize: ptr(int64(101))})
	assert.ErrorIs(t, err, planner.ErrInvalidPageRequest)

	_, err = store.ListQuery(Params{Page: ptr(int64(0))})
	assert.ErrorIs(t, err, planner.ErrInvalidPageRequest)
}

func TestFindAll_Paginated(t *testing.T) {
	store, db, mock := newTestStore(t, planner.NewPaginator(10, 0))

	params := Params{Page: ptr(int64(3))}
	q, err := store.ListQuery(params)
	require.NoError(t, err)

	rows := sqlmock.NewRows(userColumns(true))
	for i := 0; i < 5; i++ {
		rows.AddRow("id", "user@example.com", "hash", fixedNow, nil, int64(25))
	}
	mock.ExpectQuery(q.SQL).WithArgs(int64(10), int64(20)).WillReturnRows(rows)

	page, err := store.FindAll(context.Background(), params)
	require.NoError(t, err)
	assert.Len(t, page.Records, 5)
	assert.Equal(t, int64(3), page.TotalPages)
	assert.Nil(t, page.Records[0].UpdatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestFindAll_Unpaginated(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	updated := fixedNow.Add(time.Hour)
	mock.ExpectQuery(selectUsers).WillReturnRows(sqlmock.NewRows(userColumns(false)).
		AddRow("a", "a@example.com", "hash", fixedNow, updated).
		AddRow("b", "b@example.com", "hash", fixedNow, nil))

	page, err := store.FindAll(context.Background(), Params{})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	assert.Equal(t, int64(1), page.TotalPages)
	require.NotNil(t, page.Records[0].UpdatedAt)
	assert.Equal(t, updated, *page.Records[0].UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_QueryError(t *testing.T) {
	store, db, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectQuery(selectUsers).WillReturnError(errors.New("connection reset"))

	_, err := store.FindAll(context.Background(), Params{})
	require.Error(t, err)
	assert.True(t, dbexec.IsKind(err, dbexec.KindQuery))
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestFind(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectQuery(lookupByID).WithArgs("a").
		WillReturnRows(sqlmock.NewRows(userColumns(false)).AddRow("a", "a@example.com", "hash", fixedNow, nil))
	u, err := store.Find(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)

	mock.ExpectQuery(lookupByID).WithArgs("missing").WillReturnRows(sqlmock.NewRows(userColumns(false)))
	_, err = store.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmail(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectQuery(selectUsers+" WHERE `email` = ?").WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns(false)).AddRow("a", "a@example.com", "hash", fixedNow, nil))

	u, err := store.FindByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a", u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectExec("INSERT INTO `users` (`created_at`,`email`,`id`,`password`) VALUES (?,?,?,?)").
		WithArgs(fixedNow, "new@example.com", "7d444840-9dc0-11d1-b245-5ffdce74fad2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := store.Create(context.Background(), Message{Email: "new@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "7d444840-9dc0-11d1-b245-5ffdce74fad2", u.ID)
	assert.Equal(t, fixedNow, u.CreatedAt)
	assert.Nil(t, u.UpdatedAt)
	assert.NotEqual(t, "correct horse", u.Password)
	assert.True(t, u.VerifyPassword("correct horse"))
	assert.False(t, u.VerifyPassword("wrong"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectExec("INSERT INTO `users` (`created_at`,`email`,`id`,`password`) VALUES (?,?,?,?)").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'new@example.com' for key 'email'"})

	_, err := store.Create(context.Background(), Message{Email: "new@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, dbexec.ErrDuplicate)
}

func TestUpdate(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectExec("UPDATE `users` SET `email` = ?, `password` = ?, `updated_at` = ? WHERE `id` = ?").
		WithArgs("changed@example.com", sqlmock.AnyArg(), fixedNow, "a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lookupByID).WithArgs("a").
		WillReturnRows(sqlmock.NewRows(userColumns(false)).AddRow("a", "changed@example.com", "hash", fixedNow, fixedNow))

	u, err := store.Update(context.Background(), "a", Message{Email: "changed@example.com", Password: "new password"})
	require.NoError(t, err)
	assert.Equal(t, "changed@example.com", u.Email)
	require.NotNil(t, u.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Missing(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectExec("UPDATE `users` SET `email` = ?, `password` = ?, `updated_at` = ? WHERE `id` = ?").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.Update(context.Background(), "missing", Message{Email: "x@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store, _, mock := newTestStore(t, planner.Paginator{})

	mock.ExpectExec("DELETE FROM `users` WHERE `id` = ?").WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := store.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec("DELETE FROM `users` WHERE `id` = ?").WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = store.Delete(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestUser_JSONOmitsPassword(t *testing.T) {
	data, err := json.Marshal(User{ID: "a", Email: "a@example.com", Password: "hash", CreatedAt: fixedNow})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","email":"a@example.com","created_at":"2024-03-01T12:00:00Z","updated_at":null}`, string(data))
}
