package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sqlgate/server/internal/config"
	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/gatekeeper"
	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"
	"sqlgate/server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userKey  = "user-secret"
	adminKey = "admin-secret"
)

type call struct {
	role policy.Role
	sql  string
}

// stubExecutor returns a scripted result and records every call.
type stubExecutor struct {
	mu    sync.Mutex
	calls []call
	rows  []store.Row
	err   error
	fn    func(ctx context.Context) error
}

func (s *stubExecutor) Execute(ctx context.Context, role policy.Role, sql string) ([]store.Row, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{role: role, sql: sql})
	s.mu.Unlock()
	if s.fn != nil {
		return nil, s.fn(ctx)
	}
	return s.rows, s.err
}

func (s *stubExecutor) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, exec Executor, mutate ...func(*Options)) http.Handler {
	t.Helper()
	opts := Options{
		Keys:   config.Keys{User: userKey, Admin: adminKey},
		Logger: logging.Discard(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewRouter(t.Context(), exec, opts)
}

func post(t *testing.T, h http.Handler, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestQueryAuthorization(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "user with user key", path: "/user/query", token: userKey, want: http.StatusOK},
		{name: "admin with admin key", path: "/admin/query", token: adminKey, want: http.StatusOK},
		{name: "user endpoint with admin key", path: "/user/query", token: adminKey, want: http.StatusForbidden},
		{name: "admin endpoint with user key", path: "/admin/query", token: userKey, want: http.StatusForbidden},
		{name: "no token", path: "/admin/query", token: "", want: http.StatusForbidden},
		{name: "garbage token", path: "/user/query", token: "nope", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{}
			rec := post(t, newTestRouter(t, exec), tt.path, tt.token, `{"sql":"SELECT 1"}`)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Empty(t, exec.Calls(), "executor must not run without a valid key")
				assert.Equal(t, "forbidden", decodeError(t, rec).Kind)
			} else {
				assert.Len(t, exec.Calls(), 1)
			}
		})
	}
}

func TestQueryBadKeyNeverTouchesDatabase(t *testing.T) {
	db := &testutil.FakeDB{Tables: map[string][]string{"company": {"employees"}, "finance": {"salaries"}}}
	h := newTestRouter(t, gatekeeper.New(db, nil))

	rec := post(t, h, "/admin/query", "wrong", `{"sql":"SELECT * FROM finance.salaries"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, db.Acquired())
	assert.Empty(t, db.Statements())
}

func TestQueryPassesRoleAndSQL(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestRouter(t, exec)

	post(t, h, "/user/query", userKey, `{"sql":"SELECT * FROM company.employees"}`)
	post(t, h, "/admin/query", adminKey, `{"sql":"SELECT * FROM employees"}`)

	assert.Equal(t, []call{
		{role: policy.User, sql: "SELECT * FROM company.employees"},
		{role: policy.Admin, sql: "SELECT * FROM employees"},
	}, exec.Calls())
}

func TestQueryWithoutAuthenticatedRole(t *testing.T) {
	exec := &stubExecutor{}
	s := &server{exec: exec, logger: logging.Discard()}

	req := httptest.NewRequest(http.MethodPost, "/admin/query", strings.NewReader(`{"sql":"SELECT 1"}`))
	rec := httptest.NewRecorder()
	s.query(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Kind)
	assert.Empty(t, exec.Calls())
}

func TestQuerySuccessBody(t *testing.T) {
	exec := &stubExecutor{rows: []store.Row{
		{Columns: []string{"name", "id"}, Values: []any{"Ada", int64(1)}},
		{Columns: []string{"name", "id"}, Values: []any{"Grace", int64(2)}},
	}}
	rec := post(t, newTestRouter(t, exec), "/user/query", userKey, `{"sql":"SELECT name, id FROM company.employees"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"status":"success","rows":2,"results":[{"name":"Ada","id":1},{"name":"Grace","id":2}],"role":"user"}`,
		rec.Body.String())
	// Column order follows the result descriptor, not alphabetical order.
	assert.Contains(t, rec.Body.String(), `{"name":"Ada","id":1}`)
}

func TestQueryEmptyResult(t *testing.T) {
	rec := post(t, newTestRouter(t, &stubExecutor{}), "/admin/query", adminKey, `{"sql":"SELECT 1 WHERE false"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Rows)
	assert.Equal(t, policy.Admin, resp.Role)
}

func TestQueryInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "not json", body: `SELECT 1`, msg: "Request body must be a JSON object"},
		{name: "empty body", body: ``, msg: "Request body must be a JSON object"},
		{name: "missing field", body: `{}`, msg: "Missing SQL statement"},
		{name: "null field", body: `{"sql":null}`, msg: "Missing SQL statement"},
		{name: "number", body: `{"sql":42}`, msg: "Field 'sql' must be a string"},
		{name: "array", body: `{"sql":["SELECT 1"]}`, msg: "Field 'sql' must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{}
			rec := post(t, newTestRouter(t, exec), "/user/query", userKey, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, string(apperrors.InvalidInput), resp.Kind)
			assert.Equal(t, tt.msg, resp.Message)
			assert.Empty(t, exec.Calls())
		})
	}
}

func TestQueryBodyTooLarge(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestRouter(t, exec, func(o *Options) { o.MaxBodyBytes = 32 })

	body := `{"sql":"SELECT * FROM company.employees WHERE name = 'a long literal'"}`
	rec := post(t, h, "/user/query", userKey, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body exceeds 32 bytes", decodeError(t, rec).Message)
	assert.Empty(t, exec.Calls())
}

func TestQueryErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, resp ErrorResponse)
	}{
		{
			name:   "not select",
			err:    apperrors.New(apperrors.NotSelect, gatekeeper.MsgNotSelect),
			status: http.StatusBadRequest,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "not_select", resp.Kind)
				assert.Equal(t, gatekeeper.MsgNotSelect, resp.Message)
			},
		},
		{
			name:   "schema not permitted",
			err:    apperrors.New(apperrors.SchemaNotPermitted, gatekeeper.MsgUserSchema),
			status: http.StatusBadRequest,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "schema_not_permitted", resp.Kind)
				assert.Equal(t, gatekeeper.MsgUserSchema, resp.Message)
			},
		},
		{
			name:   "invalid input",
			err:    apperrors.New(apperrors.InvalidInput, gatekeeper.MsgMissingSQL),
			status: http.StatusBadRequest,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "invalid_input", resp.Kind)
			},
		},
		{
			name: "table not found",
			err: &apperrors.MissingTable{
				Role:      "admin",
				Table:     "ghosts",
				Searched:  []string{"company", "finance"},
				Available: map[string][]string{"company": {"employees"}, "finance": {}},
				Message:   gatekeeper.MsgMissingInAllowed,
			},
			status: http.StatusBadRequest,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "table_not_found", resp.Kind)
				assert.Equal(t, "ghosts", resp.Table)
				assert.Equal(t, []string{"company", "finance"}, resp.Searched)
				assert.Equal(t, []string{"employees"}, resp.Available["company"])
			},
		},
		{
			name:   "ambiguous table",
			err:    &apperrors.AmbiguousTable{Table: "projects", Schemas: []string{"company", "finance"}},
			status: http.StatusBadRequest,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "schema_not_permitted", resp.Kind)
				assert.Equal(t, "projects", resp.Table)
				assert.Equal(t, []string{"company", "finance"}, resp.Schemas)
			},
		},
		{
			name:   "database error",
			err:    apperrors.Wrap(apperrors.DatabaseError, "permission denied for table salaries", errors.New("42501")),
			status: http.StatusInternalServerError,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "database_error", resp.Kind)
				assert.Equal(t, "Database error", resp.Message)
				assert.NotEmpty(t, resp.RequestID)
			},
		},
		{
			name:   "untyped error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			check: func(t *testing.T, resp ErrorResponse) {
				assert.Equal(t, "database_error", resp.Kind)
				assert.Equal(t, "Database error", resp.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, newTestRouter(t, &stubExecutor{err: tt.err}), "/admin/query", adminKey, `{"sql":"SELECT 1"}`)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "error", resp.Status)
			tt.check(t, resp)
		})
	}
}

func TestQueryDatabaseErrorIsLoggedMasked(t *testing.T) {
	var buf bytes.Buffer
	exec := &stubExecutor{err: apperrors.Wrap(apperrors.DatabaseError, "Database error",
		errors.New("dial postgres://app:hunter2@db:5432/app failed"))}
	h := newTestRouter(t, exec, func(o *Options) { o.Logger = logging.NewLogger(&buf, "debug", "json") })

	rec := post(t, h, "/admin/query", adminKey, `{"sql":"SELECT 1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.Contains(t, buf.String(), "query failed")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestQueryTimeout(t *testing.T) {
	exec := &stubExecutor{fn: func(ctx context.Context) error {
		<-ctx.Done()
		return apperrors.Wrap(apperrors.DatabaseError, "Database error", ctx.Err())
	}}
	h := newTestRouter(t, exec, func(o *Options) { o.QueryTimeout = 20 * time.Millisecond })

	rec := post(t, h, "/user/query", userKey, `{"sql":"SELECT pg_sleep(10)"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, "Query timed out", decodeError(t, rec).Message)
}

func TestQueryEndToEnd(t *testing.T) {
	db := &testutil.FakeDB{
		Tables: map[string][]string{
			"company": {"employees"},
			"finance": {"salaries"},
		},
		Data: map[string]testutil.Result{
			"company.employees": {Columns: []string{"id", "name"}, Rows: [][]any{{int32(1), "Ada"}}},
			"finance.salaries":  {Columns: []string{"amount"}, Rows: [][]any{{int64(5000)}}},
		},
	}
	h := newTestRouter(t, gatekeeper.New(db, nil))

	t.Run("user reads company", func(t *testing.T) {
		rec := post(t, h, "/user/query", userKey, `{"sql":"SELECT * FROM company.employees"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"status":"success","rows":1,"results":[{"id":1,"name":"Ada"}],"role":"user"}`, rec.Body.String())
	})

	t.Run("user denied finance", func(t *testing.T) {
		rec := post(t, h, "/user/query", userKey, `{"sql":"SELECT * FROM finance.salaries"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "schema_not_permitted", resp.Kind)
		assert.Equal(t, gatekeeper.MsgUserSchema, resp.Message)
	})

	t.Run("admin resolves unqualified table", func(t *testing.T) {
		rec := post(t, h, "/admin/query", adminKey, `{"sql":"SELECT * FROM salaries"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"status":"success","rows":1,"results":[{"amount":5000}],"role":"admin"}`, rec.Body.String())
	})

	t.Run("admin missing table", func(t *testing.T) {
		rec := post(t, h, "/admin/query", adminKey, `{"sql":"SELECT * FROM ghosts"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "table_not_found", resp.Kind)
		assert.Equal(t, []string{"company", "finance"}, resp.Searched)
		assert.Equal(t, []string{"employees"}, resp.Available["company"])
		assert.Equal(t, []string{"salaries"}, resp.Available["finance"])
	})

	t.Run("delete rejected", func(t *testing.T) {
		rec := post(t, h, "/admin/query", adminKey, `{"sql":"DELETE FROM company.employees"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "not_select", decodeError(t, rec).Kind)
	})

	assert.True(t, db.Balanced())
}

func TestRequestIDPropagation(t *testing.T) {
	h := newTestRouter(t, &stubExecutor{err: errors.New("boom")})

	req := httptest.NewRequest(http.MethodPost, "/admin/query", strings.NewReader(`{"sql":"SELECT 1"}`))
	req.Header.Set("Authorization", "Bearer "+adminKey)
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "trace-123", decodeError(t, rec).RequestID)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
		want   int
		status string
	}{
		{name: "no pinger", pinger: nil, want: http.StatusOK, status: "ok"},
		{name: "database up", pinger: stubPinger{}, want: http.StatusOK, status: "ok"},
		{name: "database down", pinger: stubPinger{err: errors.New("connection refused")}, want: http.StatusServiceUnavailable, status: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &stubExecutor{}, func(o *Options) { o.Pinger = tt.pinger })
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.want, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
		})
	}
}

func TestRouting(t *testing.T) {
	h := newTestRouter(t, &stubExecutor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/query", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/superuser/query", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Kind)
}

func TestRateLimit(t *testing.T) {
	exec := &stubExecutor{}
	h := newTestRouter(t, exec, func(o *Options) {
		o.RateLimit = config.RateLimit{RequestsPerSecond: 1, Burst: 2}
	})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, post(t, h, "/user/query", userKey, `{"sql":"SELECT 1"}`).Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Len(t, exec.Calls(), 2)
}

func TestCORS(t *testing.T) {
	h := newTestRouter(t, &stubExecutor{}, func(o *Options) { o.CORSOrigins = []string{"https://console.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/admin/query", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
