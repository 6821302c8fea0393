// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"sqlgate/server/internal/policy"
)

type roleKey struct{}

// WithRole stores the authenticated role in the context.
func WithRole(ctx context.Context, role policy.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext extracts the authenticated role from the context.
func RoleFromContext(ctx context.Context) (policy.Role, bool) {
	role, ok := ctx.Value(roleKey{}).(policy.Role)
	return role, ok
}

// RequireRole admits requests whose Authorization header carries
// "Bearer <secret>" and rejects everything else with 403 before the next
// handler runs. The token is compared in constant time. An empty secret
// rejects every request.
func RequireRole(role policy.Role, secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	msg := fmt.Sprintf("Invalid %s API key", role)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				writeError(w, http.StatusForbidden, "forbidden", msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}

// bearerToken extracts the credentials of a Bearer Authorization header.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
