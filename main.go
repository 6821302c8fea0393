// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for sqlgate, a role-scoped read-only SQL
// gateway for PostgreSQL.
package main

import (
	"sqlgate/server/cmd"
)

func main() {
	cmd.Execute()
}
