// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sqlgate/server/internal/api"
	"sqlgate/server/internal/catalog"
	"sqlgate/server/internal/config"
	"sqlgate/server/internal/gatekeeper"
	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP query server",
	Long: `serve starts the HTTP server with the following endpoints:

  POST /user/query    role 'user', Authorization: Bearer $USER_API_KEY
  POST /admin/query   role 'admin', Authorization: Bearer $ADMIN_API_KEY
  GET  /healthz       database reachability

Configuration comes from the environment (optionally a .env file), the
config.json in the sqlgate config directory and the OS keychain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			reportConfigError(err)
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		logger := logging.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return serve(cmd.Context(), cfg, logger)
	},
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := connect(ctx, cfg.DatabaseURL, 10*time.Second)
	if err != nil {
		logger.Error("database unavailable", "error", err, "dsn_source", cfg.DSNSource)
		return err
	}
	defer pool.Close()
	logger.Info("database connected", "dsn_source", cfg.DSNSource)

	lintAmbiguities(ctx, pool, logger)

	handler := api.NewRouter(ctx, gatekeeper.New(pool, logger), api.Options{
		Keys:         cfg.Keys,
		RateLimit:    cfg.RateLimit,
		CORSOrigins:  cfg.CORSOrigins,
		QueryTimeout: cfg.QueryTimeout,
		Logger:       logger,
		Pinger:       pool,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr, "query_timeout", cfg.QueryTimeout)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// lintAmbiguities warns about table names defined in more than one schema,
// which admins must always qualify.
func lintAmbiguities(ctx context.Context, pool store.Pool, logger *slog.Logger) {
	var found map[string][]string
	err := withConn(ctx, pool, func(conn store.Conn) error {
		var err error
		found, err = catalog.NewInspector(conn).Ambiguities(ctx, policy.AllSchemas())
		return err
	})
	if err != nil {
		logger.Warn("ambiguity check skipped", "error", logging.Mask(err.Error()))
		return
	}
	for table, schemas := range found {
		logger.Warn("table name is ambiguous for admin queries; unqualified references will be rejected",
			"table", table, "schemas", schemas)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides LISTEN_ADDR)")
}
