// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package store adapts a pgx connection pool to the small set of interfaces
// the gatekeeper and the schema resolver consume: acquire a session, open a
// read-only transaction, run statements, classify failures.
//
// Each call acquires its own pooled connection so session state such as the
// search path never crosses calls.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the statement execution channel: SQL text plus optional
// positional ($n) parameters.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Tx is a transaction opened on a Conn.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a session acquired from a Pool. Release must be called exactly
// once on every path.
type Conn interface {
	Querier
	BeginReadOnly(ctx context.Context) (Tx, error)
	Release()
}

// Pool is the connection provider.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
}

// PgxPool is the production Pool backed by pgxpool.
type PgxPool struct {
	pool *pgxpool.Pool
}

// Open creates a pool for dsn. It does not ping; call Ping to verify.
func Open(ctx context.Context, dsn string) (*PgxPool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "sqlgate"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &PgxPool{pool: pool}, nil
}

// Acquire returns a dedicated connection from the pool.
func (p *PgxPool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxConn{Conn: c}, nil
}

// Ping verifies that a connection can be established.
func (p *PgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes every connection in the pool.
func (p *PgxPool) Close() {
	p.pool.Close()
}

type pgxConn struct {
	*pgxpool.Conn
}

func (c *pgxConn) BeginReadOnly(ctx context.Context) (Tx, error) {
	tx, err := c.Conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// SetSearchPath scopes the search path of the current transaction to
// schemas, in order. SET LOCAL reverts when the transaction ends.
func SetSearchPath(ctx context.Context, q Querier, schemas []string) error {
	if len(schemas) == 0 {
		return errors.New("empty search path")
	}
	ids := make([]string, len(schemas))
	for i, s := range schemas {
		ids[i] = pgx.Identifier{s}.Sanitize()
	}
	_, err := q.Exec(ctx, "SET LOCAL search_path TO "+strings.Join(ids, ", "))
	return err
}

// IsUndefinedTable reports whether err is PostgreSQL's undefined_table
// (42P01), raised when a referenced relation does not exist.
func IsUndefinedTable(err error) bool {
	return SQLState(err) == pgerrcode.UndefinedTable
}

// SQLState returns the SQLSTATE code carried by err, or "".
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
