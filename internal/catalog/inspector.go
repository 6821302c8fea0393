// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package catalog answers schema questions from information_schema: which
// authorized schema holds a bare table name, what tables a schema has, and
// which names are defined in more than one schema.
//
// Nothing is cached. Every answer reflects the catalog at the time of the
// call, seen through the session the Inspector was built on.
package catalog

import (
	"context"
	"fmt"

	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/store"
)

const (
	resolveQuery = `
		SELECT table_schema
		FROM information_schema.tables
		WHERE table_name = $1 AND table_schema = ANY($2)
		ORDER BY table_schema`

	listQuery = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`

	ambiguityQuery = `
		SELECT table_name, array_agg(table_schema::text ORDER BY table_schema)
		FROM information_schema.tables
		WHERE table_schema = ANY($1)
		GROUP BY table_name
		HAVING count(*) > 1
		ORDER BY table_name`
)

// Inspector runs catalog queries over a single session.
type Inspector struct {
	// q is the session or transaction catalog queries run on
	q store.Querier
}

// NewInspector creates an Inspector that queries through q.
func NewInspector(q store.Querier) *Inspector {
	return &Inspector{q: q}
}

// Resolve returns the first schema among candidates containing table.
// found is false when no candidate has it. Query failures are reported as
// DatabaseError, never as "not found".
func (in *Inspector) Resolve(ctx context.Context, table string, candidates []string) (schema string, found bool, err error) {
	schemas, err := in.Candidates(ctx, table, candidates)
	if err != nil {
		return "", false, err
	}
	if len(schemas) == 0 {
		return "", false, nil
	}
	return schemas[0], true, nil
}

// Candidates returns every schema among candidates that contains table,
// sorted ascending.
func (in *Inspector) Candidates(ctx context.Context, table string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	rows, err := in.q.Query(ctx, resolveQuery, table, candidates)
	if err != nil {
		return nil, catalogError(fmt.Sprintf("resolve table %q", table), err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, catalogError(fmt.Sprintf("resolve table %q", table), err)
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogError(fmt.Sprintf("resolve table %q", table), err)
	}
	return schemas, nil
}

// ListTables returns the table names of schema sorted ascending. An unknown
// schema yields an empty list.
func (in *Inspector) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := in.q.Query(ctx, listQuery, schema)
	if err != nil {
		return nil, catalogError(fmt.Sprintf("list tables of %q", schema), err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, catalogError(fmt.Sprintf("list tables of %q", schema), err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, catalogError(fmt.Sprintf("list tables of %q", schema), err)
	}
	return tables, nil
}

// Snapshot lists the tables of every schema, keyed by schema name.
func (in *Inspector) Snapshot(ctx context.Context, schemas []string) (map[string][]string, error) {
	out := make(map[string][]string, len(schemas))
	for _, s := range schemas {
		tables, err := in.ListTables(ctx, s)
		if err != nil {
			return nil, err
		}
		out[s] = tables
	}
	return out, nil
}

// Ambiguities returns the table names present in more than one of schemas,
// each mapped to the schemas that define it (sorted).
func (in *Inspector) Ambiguities(ctx context.Context, schemas []string) (map[string][]string, error) {
	rows, err := in.q.Query(ctx, ambiguityQuery, schemas)
	if err != nil {
		return nil, catalogError("find ambiguous table names", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var name string
		var defined []string
		if err := rows.Scan(&name, &defined); err != nil {
			return nil, catalogError("find ambiguous table names", err)
		}
		out[name] = defined
	}
	if err := rows.Err(); err != nil {
		return nil, catalogError("find ambiguous table names", err)
	}
	return out, nil
}

func catalogError(op string, err error) error {
	return apperrors.Wrap(apperrors.DatabaseError, "catalog query failed: "+op, err)
}
