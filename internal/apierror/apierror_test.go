package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"accounts-api/internal/dbexec"
	"accounts-api/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	driverErr := errors.New("connection reset")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "passthrough", err: fmt.Errorf("wrapped: %w", Forbidden("Invalid token")), wantStatus: 403, wantMsg: "Invalid token"},
		{name: "page request", err: fmt.Errorf("%w: page must be >= 1", planner.ErrInvalidPageRequest), wantStatus: 400},
		{name: "not found", err: fmt.Errorf("find user x: %w", dbexec.ErrNotFound), wantStatus: 404, wantMsg: "Record not found"},
		{name: "duplicate", err: fmt.Errorf("create: %w", fmt.Errorf("%w: 1062", dbexec.ErrDuplicate)), wantStatus: 409, wantMsg: "Record already exists"},
		{name: "query", err: &dbexec.Error{Kind: dbexec.KindQuery, Err: driverErr}, wantStatus: 500, wantMsg: "Internal server error"},
		{name: "acquire", err: &dbexec.Error{Kind: dbexec.KindAcquire, Err: driverErr}, wantStatus: 500, wantMsg: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.Status)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got.Message)
			}
		})
	}
}

func TestFrom_Nil(t *testing.T) {
	assert.Nil(t, From(nil))
}

func TestError_KeepsCause(t *testing.T) {
	cause := &dbexec.Error{Kind: dbexec.KindScan, Err: errors.New("bad column")}
	err := From(fmt.Errorf("list users: %w", cause))

	assert.True(t, err.Internal())
	assert.True(t, dbexec.IsKind(err, dbexec.KindScan))
	assert.Contains(t, err.Error(), "bad column")
	assert.False(t, Unauthorized("x").Internal())
	assert.Equal(t, http.StatusNotFound, NotFound("x").Status)
}
