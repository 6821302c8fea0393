// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package gatekeeper decides whether a caller-supplied statement may run for
// a role, scopes it to the role's authorized schemas, executes it and turns
// failures into typed errors the caller can act on.
//
// The checks are lexical. Statement shape is judged by the leading keyword;
// the user role is scoped by a textual "company." test; the admin role works
// on the FROM/JOIN references found by the scanner. Execution always happens
// inside a READ ONLY transaction with the search path pinned to the role's
// schemas, so a statement that slips past the text checks still cannot write
// or fall back to a schema outside the set through an unqualified name.
//
// A Gatekeeper holds no per-call state. Each Execute acquires its own
// session and releases it on every path.
package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"sqlgate/server/internal/catalog"
	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/sqlscan"
	"sqlgate/server/internal/store"
)

// Caller-facing messages.
const (
	MsgMissingSQL       = "Missing SQL statement"
	MsgNotSelect        = "Only SELECT statements are allowed."
	MsgUserSchema       = "Only queries on the 'company' schema are permitted."
	MsgAdminSchema      = "Admins may only query 'company' or 'finance' schemas."
	MsgMissingInAllowed = "The specified table does not exist in one of the allowed schemas."
	MsgDatabase         = "Database error"
)

var reRelation = regexp.MustCompile(`relation "([^"]+)" does not exist`)

// Gatekeeper validates, scopes and executes statements.
type Gatekeeper struct {
	pool   store.Pool
	logger *slog.Logger
}

// New creates a Gatekeeper over pool. A nil logger discards output.
func New(pool store.Pool, logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gatekeeper{pool: pool, logger: logger}
}

// Execute runs sql for role and returns its rows in result order.
//
// Errors are typed: *errors.E for InvalidInput, NotSelect,
// SchemaNotPermitted and DatabaseError; *errors.MissingTable for
// TableNotFound; *errors.AmbiguousTable when an admin statement names a
// table defined in more than one authorized schema.
func (g *Gatekeeper) Execute(ctx context.Context, role policy.Role, sql string) ([]store.Row, error) {
	if !role.Valid() {
		return nil, apperrors.New(apperrors.InvalidInput, fmt.Sprintf("Unknown role %q", role))
	}
	stmt := sqlscan.Inspect(sql)
	if stmt.Text == "" {
		return nil, apperrors.New(apperrors.InvalidInput, MsgMissingSQL)
	}
	if stmt.Keyword != "SELECT" {
		return nil, apperrors.New(apperrors.NotSelect, MsgNotSelect)
	}
	if role == policy.User && !sqlscan.ContainsQualifier(stmt.Text, policy.SchemaCompany) {
		return nil, apperrors.New(apperrors.SchemaNotPermitted, MsgUserSchema)
	}

	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, g.databaseError(role, "acquire connection", err)
	}
	defer conn.Release()

	text := stmt.Text
	if role == policy.Admin {
		text, err = g.scopeAdmin(ctx, conn, role, stmt)
		if err != nil {
			return nil, err
		}
	}

	rows, err := g.run(ctx, conn, role, text)
	if err != nil {
		if store.IsUndefinedTable(err) {
			return nil, g.missingTable(ctx, conn, role, text, err)
		}
		return nil, g.databaseError(role, "execute", err)
	}
	g.logger.Debug("query executed", "role", role, "rows", len(rows))
	return rows, nil
}

// scopeAdmin qualifies every unqualified FROM/JOIN reference with the one
// authorized schema that defines it.
func (g *Gatekeeper) scopeAdmin(ctx context.Context, conn store.Conn, role policy.Role, stmt sqlscan.Statement) (string, error) {
	qualified := 0
	for _, ref := range stmt.Refs {
		if !ref.Qualified() {
			continue
		}
		if !role.Allows(ref.Schema) {
			return "", apperrors.New(apperrors.SchemaNotPermitted, MsgAdminSchema)
		}
		qualified++
	}

	in := catalog.NewInspector(conn)
	text := stmt.Text
	resolved := 0
	for _, name := range stmt.Unqualified() {
		schemas, err := in.Candidates(ctx, name, role.Schemas())
		if err != nil {
			return "", g.logged(role, err)
		}
		switch len(schemas) {
		case 0:
			available, err := in.Snapshot(ctx, role.Schemas())
			if err != nil {
				return "", g.logged(role, err)
			}
			return "", &apperrors.MissingTable{
				Role:      string(role),
				Table:     name,
				Searched:  role.Schemas(),
				Available: available,
				Message:   MsgMissingInAllowed,
			}
		case 1:
			text = sqlscan.Qualify(text, name, schemas[0])
			resolved++
			g.logger.Debug("table resolved", "table", name, "schema", schemas[0])
		default:
			return "", &apperrors.AmbiguousTable{Table: name, Schemas: schemas}
		}
	}

	if resolved == 0 && qualified == 0 && len(sqlscan.QualifiedSchemas(stmt.Text, role.Schemas())) == 0 {
		return "", apperrors.New(apperrors.SchemaNotPermitted, MsgAdminSchema)
	}
	return text, nil
}

// run executes text in a read-only transaction whose search path is the
// role's schema set.
func (g *Gatekeeper) run(ctx context.Context, conn store.Conn, role policy.Role, text string) ([]store.Row, error) {
	tx, err := conn.BeginReadOnly(ctx)
	if err != nil {
		return nil, err
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := store.SetSearchPath(ctx, tx, role.Schemas()); err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, text)
	if err != nil {
		return nil, err
	}
	result, err := store.CollectRows(rows)
	if err != nil {
		return nil, err
	}
	done = true
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// missingTable builds the TableNotFound payload after the transaction has
// been rolled back. The listing runs on the session outside it.
func (g *Gatekeeper) missingTable(ctx context.Context, conn store.Conn, role policy.Role, text string, cause error) error {
	searched := role.Schemas()
	if role == policy.User {
		if qs := sqlscan.QualifiedSchemas(text, searched); len(qs) > 0 {
			searched = qs
		}
	}

	available, err := catalog.NewInspector(conn).Snapshot(ctx, searched)
	if err != nil {
		return g.logged(role, err)
	}

	table := ""
	if m := reRelation.FindStringSubmatch(cause.Error()); m != nil {
		table = m[1]
	}
	g.logger.Info("table not found", "role", role, "table", table, "searched", searched)

	return &apperrors.MissingTable{
		Role:      string(role),
		Table:     table,
		Searched:  searched,
		Available: available,
		Message:   missingMessage(searched),
	}
}

func missingMessage(searched []string) string {
	if len(searched) == 1 {
		return fmt.Sprintf("The specified table does not exist in the '%s' schema.", searched[0])
	}
	return MsgMissingInAllowed
}

func (g *Gatekeeper) databaseError(role policy.Role, op string, err error) error {
	masked := logging.Mask(err.Error())
	g.logger.Error("database error", "role", role, "op", op, "sqlstate", store.SQLState(err), "error", masked)
	return apperrors.Wrap(apperrors.DatabaseError, masked, err)
}

// logged records catalog failures, which already carry their kind.
func (g *Gatekeeper) logged(role policy.Role, err error) error {
	var e *apperrors.E
	if errors.As(err, &e) && e.Kind == apperrors.DatabaseError {
		g.logger.Error("catalog error", "role", role, "error", logging.Mask(err.Error()))
		return err
	}
	return g.databaseError(role, "catalog", err)
}

