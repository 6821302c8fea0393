// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package api

import (
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"
)

// QueryRequest is the body of POST /user/query and POST /admin/query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse is returned on success.
type QueryResponse struct {
	Status  string      `json:"status"`
	Rows    int         `json:"rows"`
	Results []store.Row `json:"results"`
	Role    policy.Role `json:"role"`
}

// ErrorResponse is returned on every failure. The optional fields are set
// for the error kinds that carry them.
type ErrorResponse struct {
	Status    string              `json:"status"`
	Kind      string              `json:"kind"`
	Message   string              `json:"message"`
	Table     string              `json:"table,omitempty"`
	Searched  []string            `json:"searched_schemas,omitempty"`
	Available map[string][]string `json:"available_tables,omitempty"`
	Schemas   []string            `json:"schemas,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)
