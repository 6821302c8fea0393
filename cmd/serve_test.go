package cmd

import (
	"bytes"
	"errors"
	"testing"

	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/store"
	"sqlgate/server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLintAmbiguities(t *testing.T) {
	tests := []struct {
		name   string
		tables map[string][]string
		want   []string
		absent []string
	}{
		{
			name:   "shared name",
			tables: map[string][]string{"company": {"projects", "employees"}, "finance": {"projects", "budgets"}},
			want:   []string{"table name is ambiguous", "projects"},
			absent: []string{"employees"},
		},
		{
			name:   "disjoint schemas",
			tables: map[string][]string{"company": {"employees"}, "finance": {"budgets"}},
			absent: []string{"ambiguous"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			db := &testutil.FakeDB{Tables: tt.tables}

			lintAmbiguities(t.Context(), db, logging.NewLogger(&buf, "debug", "json"))

			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
			assert.Equal(t, 1, db.Acquired())
			assert.True(t, db.Balanced())
		})
	}
}

func TestLintAmbiguitiesSkipsOnAcquireFailure(t *testing.T) {
	var buf bytes.Buffer
	db := &testutil.FakeDB{AcquireErr: errors.New("dial postgres://app:hunter2@db/app: refused")}

	lintAmbiguities(t.Context(), db, logging.NewLogger(&buf, "debug", "json"))

	assert.Contains(t, buf.String(), "ambiguity check skipped")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestWithConnReleases(t *testing.T) {
	db := &testutil.FakeDB{}
	sentinel := errors.New("stop")

	err := withConn(t.Context(), db, func(store.Conn) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	assert.True(t, db.Balanced())
}
