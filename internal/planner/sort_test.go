package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserSorts() SortWhitelist {
	return NewSortWhitelist("id",
		SortField{Name: "id", Column: "id"},
		SortField{Name: "email", Column: "email"},
		SortField{Name: "created_at", Column: "created_at"},
		SortField{Name: "updated_at", Column: "updated_at"},
	)
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		key          string
		wantName     string
		wantDir      Direction
		wantExplicit bool
	}{
		{"email", "email", "", false},
		{"email.asc", "email", Ascending, true},
		{"email.desc", "email", Descending, true},
		{"created_at.desc", "created_at", Descending, true},
		{"email.DESC", "email.DESC", "", false},
		{".desc", "", Descending, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			name, dir, explicit := ParseSortKey(tt.key)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDir, dir)
			assert.Equal(t, tt.wantExplicit, explicit)
		})
	}
}

func TestSortWhitelist_Resolve(t *testing.T) {
	w := testUserSorts()

	tests := []struct {
		key   string
		terms []OrderTerm
	}{
		{"email", []OrderTerm{{"email", Ascending}, {"id", Ascending}}},
		{"email.asc", []OrderTerm{{"email", Ascending}, {"id", Ascending}}},
		{"email.desc", []OrderTerm{{"email", Descending}, {"id", Descending}}},
		{"created_at.desc", []OrderTerm{{"created_at", Descending}, {"id", Descending}}},
		{"id.desc", []OrderTerm{{"id", Descending}}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clause, ok := w.Resolve(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.terms, clause.Terms)
		})
	}
}

func TestSortWhitelist_DefaultDirection(t *testing.T) {
	w := NewSortWhitelist("", SortField{Name: "newest", Column: "created_at", Default: Descending})
	clause, ok := w.Resolve("newest")
	require.True(t, ok)
	assert.Equal(t, []OrderTerm{{"created_at", Descending}}, clause.Terms)

	clause, ok = w.Resolve("newest.asc")
	require.True(t, ok)
	assert.Equal(t, []OrderTerm{{"created_at", Ascending}}, clause.Terms)
}

func TestApplySort_UnknownKeyIsIgnored(t *testing.T) {
	base := testUserFragment()
	for _, key := range []string{"password", "password.desc", "email.sideways", "`id`; DROP TABLE users", ""} {
		t.Run(key, func(t *testing.T) {
			f := ApplySort(base, testUserSorts(), key)
			_, ok := f.Order()
			assert.False(t, ok)

			got, _, err := f.ToSql()
			require.NoError(t, err)
			want, _, err := base.ToSql()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestApplySort_RendersOrderClause(t *testing.T) {
	f := ApplySort(testUserFragment(), testUserSorts(), "created_at.desc")
	query, _, err := f.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id`, `email`, `created_at` FROM `users` ORDER BY `created_at` DESC, `id` DESC", query)
}

func TestApplySort_SecondCallOverwrites(t *testing.T) {
	w := testUserSorts()
	f := ApplySort(ApplySort(testUserFragment(), w, "email"), w, "created_at.desc")
	clause, ok := f.Order()
	require.True(t, ok)
	assert.Equal(t, "created_at", clause.Terms[0].Column)
	assert.Len(t, clause.Terms, 2)
}

func TestSortWhitelist_Names(t *testing.T) {
	assert.Equal(t, []string{"created_at", "email", "id", "updated_at"}, testUserSorts().Names())
}
