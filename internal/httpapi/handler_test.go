package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/email"
	"accounts-api/internal/middleware"
	"accounts-api/internal/planner"
	"accounts-api/internal/session"
	"accounts-api/internal/user"
	"accounts-api/internal/verification"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	aliceID  = "0b6f4c1e-6b43-4f5e-9a55-0d0f4d3f2a10"
	password = "correct horse"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeUsers struct {
	byID       map[string]user.User
	lastParams user.Params
	page       dbexec.Page[user.User]
	err        error
	created    []user.Message
}

func newFakeUsers(t *testing.T) *fakeUsers {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &fakeUsers{byID: map[string]user.User{
		aliceID: {ID: aliceID, Email: "alice@example.com", Password: string(hash), CreatedAt: testNow},
	}}
}

func (f *fakeUsers) FindAll(_ context.Context, p user.Params) (dbexec.Page[user.User], error) {
	f.lastParams = p
	return f.page, f.err
}

func (f *fakeUsers) Find(_ context.Context, id string) (user.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return user.User{}, fmt.Errorf("find user %s: %w", id, user.ErrNotFound)
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (user.User, error) {
	if f.err != nil {
		return user.User{}, f.err
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, fmt.Errorf("find user by email: %w", user.ErrNotFound)
}

func (f *fakeUsers) Create(_ context.Context, msg user.Message) (user.User, error) {
	for _, u := range f.byID {
		if u.Email == msg.Email {
			return user.User{}, fmt.Errorf("create user: %w: %w", user.ErrEmailTaken, dbexec.ErrDuplicate)
		}
	}
	f.created = append(f.created, msg)
	u := user.User{ID: "2f1e4b8a-0000-4000-8000-000000000002", Email: msg.Email, CreatedAt: testNow}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, msg user.Message) (user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return user.User{}, fmt.Errorf("update user %s: %w", id, user.ErrNotFound)
	}
	u.Email = msg.Email
	updated := testNow
	u.UpdatedAt = &updated
	f.byID[id] = u
	return u, nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) (int64, error) {
	if _, ok := f.byID[id]; !ok {
		return 0, nil
	}
	delete(f.byID, id)
	return 1, nil
}

type fakeTokens struct {
	tokens  map[string]verification.Token
	deleted [][]byte
	now     time.Time
}

func (f *fakeTokens) Create(_ context.Context, email string) (verification.Token, error) {
	t := verification.Token{ID: bytes.Repeat([]byte{0x2a}, verification.TokenBytes), Email: email, CreatedAt: f.now, ExpiresAt: f.now.Add(time.Hour)}
	f.tokens[string(t.ID)] = t
	return t, nil
}

func (f *fakeTokens) Find(_ context.Context, id []byte) (verification.Token, error) {
	if t, ok := f.tokens[string(id)]; ok {
		return t, nil
	}
	return verification.Token{}, fmt.Errorf("find token: %w", verification.ErrNotFound)
}

func (f *fakeTokens) Delete(_ context.Context, id []byte) (int64, error) {
	f.deleted = append(f.deleted, id)
	delete(f.tokens, string(id))
	return 1, nil
}

func (f *fakeTokens) Now() time.Time { return f.now }

type sentMail struct {
	to      email.Contact
	subject string
	html    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendHTML(_ context.Context, to email.Contact, subject, html string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, html: html})
	return "msg-1", nil
}

type testServer struct {
	handler  http.Handler
	users    *fakeUsers
	tokens   *fakeTokens
	mailer   *fakeMailer
	sessions *session.Manager
	redis    *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ts := &testServer{
		users:    newFakeUsers(t),
		tokens:   &fakeTokens{tokens: map[string]verification.Token{}, now: testNow},
		mailer:   &fakeMailer{},
		sessions: session.NewManager(rdb, []byte("0123456789abcdef0123456789abcdef"), time.Hour),
		redis:    mr,
	}

	mux := http.NewServeMux()
	New(Config{
		Users:    ts.users,
		Tokens:   ts.tokens,
		Mailer:   ts.mailer,
		Sessions: ts.sessions,
		Cookie:   CookieConfig{Name: "sid"},
	}).Register(mux)
	ts.handler = middleware.SessionMiddleware("sid", ts.sessions)(mux)
	return ts
}

func (ts *testServer) do(method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestListUsers(t *testing.T) {
	ts := newTestServer(t)
	ts.users.page = dbexec.Page[user.User]{Records: []user.User{ts.users.byID[aliceID]}, TotalPages: 3}

	q := url.Values{}
	q.Set("page", "2")
	q.Set("page_size", "5")
	q.Set("sort_by", "email.desc")
	q.Set("email", "alice")
	q.Set("created_at[gte]", "2024-01-01T00:00:00")
	q.Set("updated_at[lte]", "2024-06-01T00:00:00+02:00")

	rec := ts.do(http.MethodGet, "/users?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["total_pages"])
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0], "password")

	p := ts.users.lastParams
	require.NotNil(t, p.Page)
	assert.Equal(t, int64(2), *p.Page)
	assert.Equal(t, int64(5), *p.PageSize)
	assert.Equal(t, "email.desc", p.SortBy)
	assert.Equal(t, "alice", *p.Email)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *p.CreatedAtGTE)
	assert.Equal(t, time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC), *p.UpdatedAtLTE)
	assert.Nil(t, p.CreatedAtLTE)
}

func TestListUsers_Errors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		storeErr   error
		wantStatus int
	}{
		{name: "bad page", query: "page=two", wantStatus: http.StatusBadRequest},
		{name: "bad date", query: "created_at%5Bgte%5D=yesterday", wantStatus: http.StatusBadRequest},
		{name: "invalid page request", query: "page=0", storeErr: fmt.Errorf("list users: %w", planner.ErrInvalidPageRequest), wantStatus: http.StatusBadRequest},
		{name: "store failure", storeErr: &dbexec.Error{Kind: dbexec.KindAcquire, Err: errors.New("pool closed")}, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.users.err = tt.storeErr
			rec := ts.do(http.MethodGet, "/users?"+tt.query, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["error"])
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", body["error"])
			}
		})
	}
}

func TestUserCRUD(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/users/"+aliceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	rec = ts.do(http.MethodGet, "/users/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/users/7c9e6679-7425-40de-944b-e07fc1f90ae7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/users", map[string]string{"email": "bob@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	assert.Equal(t, "bob@example.com", created["email"])
	assert.NotContains(t, created, "password")

	rec = ts.do(http.MethodPost, "/users", map[string]string{"email": "alice@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", decodeBody(t, rec)["error"])

	rec = ts.do(http.MethodPut, "/users/"+aliceID, map[string]string{"email": "alice2@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice2@example.com", decodeBody(t, rec)["email"])

	rec = ts.do(http.MethodDelete, "/users/"+aliceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["deleted"])

	rec = ts.do(http.MethodDelete, "/users/"+aliceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["deleted"])
}

func TestCreateUser_Validation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/users", map[string]string{"email": "nope", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decodeBody(t, rec)["error"].(string)
	assert.Contains(t, msg, "email")
	assert.Contains(t, msg, "password")

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.users.created)
}

func TestInviteAndRegister(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/invite", map[string]string{"email": "carol@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Verification email sent", decodeBody(t, rec)["message"])

	require.Len(t, ts.mailer.sent, 1)
	mail := ts.mailer.sent[0]
	assert.Equal(t, "carol@example.com", mail.to.Email)
	assert.Equal(t, "Confirm your email", mail.subject)
	code := strings.TrimPrefix(mail.html, "Your confirmation code is: ")
	require.Len(t, code, 2*verification.TokenBytes)

	rec = ts.do(http.MethodPost, "/register", map[string]string{"token": code, "email": "carol@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Successfully registered", body["message"])
	assert.Equal(t, "carol@example.com", body["user"].(map[string]any)["email"])
	assert.Len(t, ts.tokens.deleted, 1)

	rec = ts.do(http.MethodPost, "/register", map[string]string{"token": code, "email": "carol@example.com", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])
}

func TestRegister_Rejections(t *testing.T) {
	ts := newTestServer(t)
	tok, err := ts.tokens.Create(context.Background(), "dave@example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		email   string
		advance time.Duration
		wantMsg string
	}{
		{name: "not hex", token: "zz", email: "dave@example.com", wantMsg: "Invalid token"},
		{name: "unknown", token: strings.Repeat("00", verification.TokenBytes), email: "dave@example.com", wantMsg: "Invalid token"},
		{name: "email mismatch", token: tok.Code(), email: "eve@example.com", wantMsg: "Invalid token"},
		{name: "expired", token: tok.Code(), email: "dave@example.com", advance: 2 * time.Hour, wantMsg: "Token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.tokens.now = testNow.Add(tt.advance)
			rec := ts.do(http.MethodPost, "/register", map[string]string{"token": tt.token, "email": tt.email, "password": "password123"})
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody(t, rec)["error"])
		})
	}
	assert.Empty(t, ts.users.created)
}

func TestInvite_MailFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.mailer.err = &email.SendError{Status: 401, Message: "Key not found"}

	rec := ts.do(http.MethodPost, "/invite", map[string]string{"email": "carol@example.com"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rec)["error"])
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/who-am-i", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, rec)["error"])

	rec = ts.do(http.MethodPost, "/sign-out", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/sign-in", map[string]string{"email": "alice@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Credentials not valid!", decodeBody(t, rec)["error"])

	rec = ts.do(http.MethodPost, "/sign-in", map[string]string{"email": "nobody@example.com", "password": password})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Credentials not valid!", decodeBody(t, rec)["error"])

	rec = ts.do(http.MethodPost, "/sign-in", map[string]string{"email": "alice@example.com", "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, aliceID, decodeBody(t, rec)["id"])
	first := sessionCookie(t, rec)
	assert.True(t, first.HttpOnly)

	rec = ts.do(http.MethodGet, "/who-am-i", nil, first)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	// Signing in again replaces the session.
	rec = ts.do(http.MethodPost, "/sign-in", map[string]string{"email": "alice@example.com", "password": password}, first)
	require.Equal(t, http.StatusOK, rec.Code)
	second := sessionCookie(t, rec)
	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/who-am-i", nil, first).Code)

	rec = ts.do(http.MethodPost, "/sign-out", nil, second)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully signed out", decodeBody(t, rec)["message"])
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/who-am-i", nil, second).Code)
	assert.Empty(t, ts.redis.Keys())
}

func TestSignIn_StoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.users.err = &dbexec.Error{Kind: dbexec.KindQuery, Err: errors.New("boom")}

	rec := ts.do(http.MethodPost, "/sign-in", map[string]string{"email": "alice@example.com", "password": password})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
