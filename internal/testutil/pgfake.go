// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package testutil provides shared fakes of the store interfaces for use in
// tests across the codebase. This follows the Go convention of a shared test
// utility package (like net/http/httptest).
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sqlgate/server/internal/sqlscan"
	"sqlgate/server/internal/store"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Result is a scripted result set. Err, when set, surfaces from rows.Err()
// after iteration, the way pgx reports errors found mid-stream.
type Result struct {
	Columns []string
	Rows    [][]any
	Err     error
}

// FakeDB is an in-memory stand-in for PostgreSQL implementing store.Pool.
// It answers the catalog queries from Tables, honors SET LOCAL search_path,
// and serves other statements from Data by looking at the FROM/JOIN
// references, failing with undefined_table for unknown relations.
type FakeDB struct {
	// Tables lists the tables of each schema.
	Tables map[string][]string
	// Data holds result sets keyed by "schema.table".
	Data map[string]Result
	// QueryFn, when set, answers every non-catalog query.
	QueryFn func(sql string, searchPath []string) (Result, error)
	// FailOn fails any statement containing the key with the value.
	FailOn map[string]error
	// AcquireErr fails every Acquire.
	AcquireErr error

	mu         sync.Mutex
	statements []string
	acquired   int
	released   int
	commits    int
	rollbacks  int
}

var _ store.Pool = (*FakeDB)(nil)

// Acquire implements store.Pool.
func (db *FakeDB) Acquire(_ context.Context) (store.Conn, error) {
	if db.AcquireErr != nil {
		return nil, db.AcquireErr
	}
	db.mu.Lock()
	db.acquired++
	db.mu.Unlock()
	return &fakeConn{db: db}, nil
}

// Statements returns every statement run so far, in order.
func (db *FakeDB) Statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.statements)
}

// LastQuery returns the last statement that was not a catalog query,
// BEGIN or SET, or "" when there is none.
func (db *FakeDB) LastQuery() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := len(db.statements) - 1; i >= 0; i-- {
		s := db.statements[i]
		if !isCatalogQuery(s) && !strings.HasPrefix(s, "SET ") && !strings.HasPrefix(s, "BEGIN") {
			return s
		}
	}
	return ""
}

// Balanced reports whether every acquired connection was released.
func (db *FakeDB) Balanced() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.acquired == db.released
}

// Acquired returns how many connections were handed out.
func (db *FakeDB) Acquired() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.acquired
}

// Commits returns the number of committed transactions.
func (db *FakeDB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

// Rollbacks returns the number of rolled back transactions.
func (db *FakeDB) Rollbacks() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rollbacks
}

// Query runs sql outside any transaction. FakeDB itself satisfies
// store.Querier so catalog code can be tested without a Conn.
func (db *FakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.query(sql, args, nil)
}

// Exec runs sql outside any transaction.
func (db *FakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	return db.exec(sql, nil)
}

func (db *FakeDB) record(sql string) error {
	db.mu.Lock()
	db.statements = append(db.statements, sql)
	db.mu.Unlock()
	for needle, err := range db.FailOn {
		if strings.Contains(sql, needle) {
			return err
		}
	}
	return nil
}

func (db *FakeDB) exec(sql string, searchPath *[]string) (pgconn.CommandTag, error) {
	if err := db.record(sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	if rest, ok := strings.CutPrefix(sql, "SET LOCAL search_path TO "); ok {
		if searchPath == nil {
			return pgconn.CommandTag{}, &pgconn.PgError{Severity: "WARNING", Code: pgerrcode.NoActiveSQLTransaction, Message: "SET LOCAL can only be used in transaction blocks"}
		}
		var path []string
		for _, p := range strings.Split(rest, ",") {
			path = append(path, strings.Trim(strings.TrimSpace(p), `"`))
		}
		*searchPath = path
		return pgconn.NewCommandTag("SET"), nil
	}
	return pgconn.NewCommandTag("SELECT 0"), nil
}

func (db *FakeDB) query(sql string, args []any, searchPath []string) (pgx.Rows, error) {
	if err := db.record(sql); err != nil {
		return nil, err
	}
	if isCatalogQuery(sql) {
		return db.catalog(sql, args)
	}

	var res Result
	var err error
	if db.QueryFn != nil {
		res, err = db.QueryFn(sql, searchPath)
	} else {
		res, err = db.lookup(sql, searchPath)
	}
	if err != nil {
		return nil, err
	}
	return &FakeRows{Cols: res.Columns, Data: res.Rows, RowsErr: res.Err}, nil
}

func (db *FakeDB) lookup(sql string, searchPath []string) (Result, error) {
	var first *Result
	for _, ref := range sqlscan.TableRefs(sql) {
		schema := ref.Schema
		if schema == "" {
			for _, s := range searchPath {
				if slices.Contains(db.Tables[s], ref.Name) {
					schema = s
					break
				}
			}
		}
		if schema == "" || !slices.Contains(db.Tables[schema], ref.Name) {
			return Result{}, UndefinedTable(ref.String())
		}
		if first == nil {
			res := db.Data[schema+"."+ref.Name]
			first = &res
		}
	}
	if first == nil {
		return Result{Columns: []string{"?column?"}, Rows: [][]any{{int32(1)}}}, nil
	}
	return *first, nil
}

func isCatalogQuery(sql string) bool {
	return strings.Contains(sql, "information_schema.tables")
}

func (db *FakeDB) catalog(sql string, args []any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "GROUP BY table_name"):
		schemas, _ := args[0].([]string)
		byTable := map[string][]string{}
		for _, s := range schemas {
			for _, t := range db.Tables[s] {
				byTable[t] = append(byTable[t], s)
			}
		}
		var names []string
		for t, ss := range byTable {
			if len(ss) > 1 {
				names = append(names, t)
			}
		}
		sort.Strings(names)
		rows := make([][]any, 0, len(names))
		for _, t := range names {
			ss := slices.Clone(byTable[t])
			sort.Strings(ss)
			rows = append(rows, []any{t, ss})
		}
		return &FakeRows{Cols: []string{"table_name", "schemas"}, Data: rows}, nil

	case strings.Contains(sql, "table_name = $1"):
		table, _ := args[0].(string)
		schemas, _ := args[1].([]string)
		var rows [][]any
		matched := []string{}
		for _, s := range schemas {
			if slices.Contains(db.Tables[s], table) {
				matched = append(matched, s)
			}
		}
		sort.Strings(matched)
		for _, s := range matched {
			rows = append(rows, []any{s})
		}
		return &FakeRows{Cols: []string{"table_schema"}, Data: rows}, nil

	case strings.Contains(sql, "table_schema = $1"):
		schema, _ := args[0].(string)
		names := slices.Clone(db.Tables[schema])
		sort.Strings(names)
		rows := make([][]any, 0, len(names))
		for _, t := range names {
			rows = append(rows, []any{t})
		}
		return &FakeRows{Cols: []string{"table_name"}, Data: rows}, nil
	}
	return nil, fmt.Errorf("testutil: unrecognized catalog query: %s", sql)
}

// UndefinedTable builds the error PostgreSQL raises for a missing relation.
func UndefinedTable(name string) error {
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     pgerrcode.UndefinedTable,
		Message:  fmt.Sprintf("relation %q does not exist", name),
	}
}

type fakeConn struct {
	db       *FakeDB
	released bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	return c.db.exec(sql, nil)
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.db.query(sql, args, nil)
}

func (c *fakeConn) BeginReadOnly(_ context.Context) (store.Tx, error) {
	if err := c.db.record("BEGIN READ ONLY"); err != nil {
		return nil, err
	}
	return &fakeTx{conn: c}, nil
}

func (c *fakeConn) Release() {
	if c.released {
		panic("testutil: connection released twice")
	}
	c.released = true
	c.db.mu.Lock()
	c.db.released++
	c.db.mu.Unlock()
}

type fakeTx struct {
	conn       *fakeConn
	searchPath []string
	done       bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	return t.conn.db.exec(sql, &t.searchPath)
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.db.query(sql, args, t.searchPath)
}

func (t *fakeTx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.conn.db.mu.Lock()
	t.conn.db.commits++
	t.conn.db.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.conn.db.mu.Lock()
	t.conn.db.rollbacks++
	t.conn.db.mu.Unlock()
	return nil
}

// FakeRows implements pgx.Rows over in-memory values.
type FakeRows struct {
	Cols    []string
	Data    [][]any
	RowsErr error

	idx    int
	closed bool
}

var _ pgx.Rows = (*FakeRows)(nil)

func (r *FakeRows) Close() { r.closed = true }

func (r *FakeRows) Err() error {
	if r.idx >= len(r.Data) {
		return r.RowsErr
	}
	return nil
}

func (r *FakeRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("SELECT " + strconv.Itoa(len(r.Data)))
}

func (r *FakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.Cols))
	for i, c := range r.Cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *FakeRows) Next() bool {
	if r.closed || r.idx >= len(r.Data) {
		return false
	}
	r.idx++
	return true
}

func (r *FakeRows) Scan(dest ...any) error {
	row := r.Data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("testutil: scan %d values into %d destinations", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			s, ok := row[i].(string)
			if !ok {
				return fmt.Errorf("testutil: column %d is %T, not string", i, row[i])
			}
			*p = s
		case *[]string:
			s, ok := row[i].([]string)
			if !ok {
				return fmt.Errorf("testutil: column %d is %T, not []string", i, row[i])
			}
			*p = s
		case *any:
			*p = row[i]
		default:
			return fmt.Errorf("testutil: unsupported scan destination %T", d)
		}
	}
	return nil
}

func (r *FakeRows) Values() ([]any, error) {
	return slices.Clone(r.Data[r.idx-1]), nil
}

func (r *FakeRows) RawValues() [][]byte { return nil }

func (r *FakeRows) Conn() *pgx.Conn { return nil }
