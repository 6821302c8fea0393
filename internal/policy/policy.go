// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package policy holds the fixed mapping from caller role to the ordered set
// of schemas that role may query. The mapping is immutable and known at
// process start, so it is safe for concurrent use without locking.
package policy

import (
	"fmt"
	"slices"
	"strings"
)

// Role is a caller classification.
type Role string

const (
	User  Role = "user"
	Admin Role = "admin"
)

// Schema names known to the service.
const (
	SchemaCompany = "company"
	SchemaFinance = "finance"
)

var authorized = map[Role][]string{
	User:  {SchemaCompany},
	Admin: {SchemaCompany, SchemaFinance},
}

// Roles returns every known role in a stable order.
func Roles() []Role {
	return []Role{User, Admin}
}

// ParseRole maps a case-insensitive role name onto a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := authorized[r]; !ok {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := authorized[r]
	return ok
}

// Schemas returns a copy of the ordered schema set the role may query.
// Unknown roles get an empty set.
func (r Role) Schemas() []string {
	return slices.Clone(authorized[r])
}

// Allows reports whether schema is in the role's authorized set. The
// comparison is exact: schema must already be in catalog form, so a quoted
// "Finance" is a different schema from finance.
func (r Role) Allows(schema string) bool {
	return slices.Contains(authorized[r], schema)
}

// AllSchemas returns the union of every role's schemas, ordered by first
// appearance.
func AllSchemas() []string {
	var out []string
	for _, r := range Roles() {
		for _, s := range authorized[r] {
			if !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

func (r Role) String() string { return string(r) }
