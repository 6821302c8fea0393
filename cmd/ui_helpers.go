// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"sqlgate/server/internal/config"
	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/store"

	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"-", "\\", "|", "/"}

// startInlineSpinner draws frames followed by text on a single line until
// the returned function is called, which clears the line.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// reportConfigError prints configuration failures the way operators need
// them: every missing variable on its own line.
func reportConfigError(err error) {
	var ce *apperrors.Configuration
	if errors.As(err, &ce) {
		pterm.Error.Println("Configuration is incomplete. Missing:")
		items := make([]pterm.BulletListItem, len(ce.Missing))
		for i, m := range ce.Missing {
			items[i] = pterm.BulletListItem{Level: 1, Text: m}
		}
		_ = pterm.DefaultBulletList.WithItems(items).Render()
		if ce.Hint != "" {
			pterm.Info.Println(ce.Hint)
		}
		return
	}
	pterm.Error.Println(logging.PresentError("configuration", err))
}

// openDatabase resolves the database settings, opens a pool and pings it.
func openDatabase(ctx context.Context, timeout time.Duration) (*store.PgxPool, config.Database, error) {
	src, err := config.DefaultSource(envFile)
	if err != nil {
		return nil, config.Database{}, err
	}
	db, err := config.DatabaseFrom(src)
	if err != nil {
		reportConfigError(err)
		return nil, db, err
	}
	pool, err := connect(ctx, db.URL, timeout)
	return pool, db, err
}

// connect opens a pool for url and verifies it with a ping.
func connect(ctx context.Context, url string, timeout time.Duration) (*store.PgxPool, error) {
	pool, err := store.Open(ctx, url)
	if err != nil {
		return nil, errors.New(logging.Mask(err.Error()))
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %s", logging.Mask(err.Error()))
	}
	return pool, nil
}

// withConn runs fn on one pooled connection.
func withConn(ctx context.Context, pool store.Pool, fn func(store.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %s", logging.Mask(err.Error()))
	}
	defer conn.Release()
	return fn(conn)
}

// renderRows prints rows as a pterm table with the result's column order.
func renderRows(rows []store.Row) error {
	if len(rows) == 0 {
		pterm.Info.Println("(0 rows)")
		return nil
	}
	data := pterm.TableData{rows[0].Columns}
	for _, r := range rows {
		line := make([]string, len(r.Columns))
		for i := range r.Columns {
			if i < len(r.Values) {
				line[i] = store.FormatValue(r.Values[i])
			}
		}
		data = append(data, line)
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Printf("(%d rows)\n", len(rows))
	return nil
}
