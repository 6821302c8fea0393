// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package middleware

import "net/http"

// DefaultMaxBodyBytes caps query request bodies.
const DefaultMaxBodyBytes = 1 << 20

// MaxBodyBytes limits the request body to n bytes. Reads past the limit
// fail with *http.MaxBytesError.
func MaxBodyBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
