// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package middleware holds the HTTP middleware in front of the query
// endpoints: role authentication, request IDs, rate limiting, body limits
// and access logging.
package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the JSON error envelope shared with the API handlers.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"kind":    kind,
		"message": message,
	})
}
