// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package api exposes the gatekeeper over HTTP: POST /user/query and
// POST /admin/query, each guarded by its role's bearer secret, plus a
// health endpoint.
//
// Status policy: caller mistakes (invalid input, non-SELECT statements,
// schema scoping failures, missing tables) are 400 with a typed body;
// database failures are 500 with a generic message and are logged in full
// server-side; a query that outlives the configured timeout is 504.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sqlgate/server/internal/config"
	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/middleware"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Executor runs a statement for a role. *gatekeeper.Gatekeeper implements it.
type Executor interface {
	Execute(ctx context.Context, role policy.Role, sql string) ([]store.Row, error)
}

// Pinger reports database reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the router.
type Options struct {
	Keys         config.Keys
	RateLimit    config.RateLimit
	CORSOrigins  []string
	QueryTimeout time.Duration
	MaxBodyBytes int64
	Logger       *slog.Logger
	// Pinger is optional; without it /healthz only reports the process.
	Pinger Pinger
}

type server struct {
	exec    Executor
	pinger  Pinger
	logger  *slog.Logger
	timeout time.Duration
}

// NewRouter builds the HTTP handler. ctx bounds background work such as
// rate limiter housekeeping.
func NewRouter(ctx context.Context, exec Executor, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}
	s := &server{exec: exec, pinger: opts.Pinger, logger: logger, timeout: opts.QueryTimeout}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: opts.RateLimit.RequestsPerSecond,
			Burst:             opts.RateLimit.Burst,
		}))
		r.Use(middleware.MaxBodyBytes(maxBody))

		for _, role := range policy.Roles() {
			r.With(middleware.RequireRole(role, opts.Keys.For(role))).
				Post("/"+string(role)+"/query", s.query)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Status: statusError, Kind: "not_found", Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Status: statusError, Kind: "method_not_allowed", Message: "Method not allowed"})
	})
	return r
}

// query serves /{role}/query. The role comes from the credential check in
// front of it, never from the path.
func (s *server) query(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok {
		s.writeJSON(w, http.StatusForbidden, ErrorResponse{Status: statusError, Kind: "forbidden", Message: "Forbidden"})
		return
	}

	sql, err := decodeSQL(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status:  statusError,
			Kind:    string(apperrors.InvalidInput),
			Message: err.Error(),
		})
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.exec.Execute(ctx, role, sql)
	if err != nil {
		s.writeFailure(ctx, w, r, role, err)
		return
	}
	s.writeJSON(w, http.StatusOK, QueryResponse{
		Status:  statusSuccess,
		Rows:    len(rows),
		Results: rows,
		Role:    role,
	})
}

// decodeSQL reads {"sql": "..."} and rejects anything else with a caller
// facing message.
func decodeSQL(r *http.Request) (string, error) {
	var body struct {
		SQL json.RawMessage `json:"sql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", fmt.Errorf("Request body exceeds %d bytes", maxErr.Limit)
		}
		return "", errors.New("Request body must be a JSON object")
	}
	if len(body.SQL) == 0 || string(body.SQL) == "null" {
		return "", errors.New("Missing SQL statement")
	}
	var sql string
	if err := json.Unmarshal(body.SQL, &sql); err != nil {
		return "", errors.New("Field 'sql' must be a string")
	}
	return sql, nil
}

func (s *server) writeFailure(ctx context.Context, w http.ResponseWriter, r *http.Request, role policy.Role, err error) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var mt *apperrors.MissingTable
	var at *apperrors.AmbiguousTable
	var e *apperrors.E
	switch {
	case errors.As(err, &mt):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status:    statusError,
			Kind:      string(apperrors.TableNotFound),
			Message:   mt.Message,
			Table:     mt.Table,
			Searched:  mt.Searched,
			Available: mt.Available,
		})
	case errors.As(err, &at):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status:  statusError,
			Kind:    string(apperrors.SchemaNotPermitted),
			Message: at.Message(),
			Table:   at.Table,
			Schemas: at.Schemas,
		})
	case apperrors.IsCallerError(err) && errors.As(err, &e):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status:  statusError,
			Kind:    string(e.Kind),
			Message: e.Message,
		})
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.logger.Warn("query timed out", "role", role, "request_id", reqID, "timeout", s.timeout)
		s.writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Status:    statusError,
			Kind:      string(apperrors.DatabaseError),
			Message:   "Query timed out",
			RequestID: reqID,
		})
	default:
		s.logger.Error("query failed", "role", role, "request_id", reqID, "error", logging.Mask(err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status:    statusError,
			Kind:      string(apperrors.DatabaseError),
			Message:   "Database error",
			RequestID: reqID,
		})
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", logging.Mask(err.Error()))
			s.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
