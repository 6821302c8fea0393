// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"sqlgate/server/internal/catalog"
	"sqlgate/server/internal/config"
	"sqlgate/server/internal/dsn"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// checkCmd validates the full server configuration and the database without
// starting the server.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and database access",
	Long: `check loads the same configuration serve would, connects to the database,
and reports table names that exist in more than one authorized schema.
Admin queries must qualify such names explicitly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			reportConfigError(err)
			return err
		}
		ctx := cmd.Context()

		stop := startInlineSpinner(os.Stdout, "verifying connection", spinnerFrames, 100*time.Millisecond)
		pool, err := connect(ctx, cfg.DatabaseURL, 10*time.Second)
		stop()
		if err != nil {
			pterm.Error.Println("Connection failed. Please check your database credentials and network connection.")
			return err
		}
		defer pool.Close()
		pterm.Success.Println("Database connection verified")

		var ambiguous map[string][]string
		err = withConn(ctx, pool, func(conn store.Conn) error {
			var err error
			ambiguous, err = catalog.NewInspector(conn).Ambiguities(ctx, policy.AllSchemas())
			return err
		})
		if err != nil {
			pterm.Warning.Printf("Could not inspect the catalog: %v\n", err)
		} else if len(ambiguous) == 0 {
			pterm.Success.Println("No ambiguous table names across authorized schemas")
		} else {
			pterm.Warning.Println("These tables exist in several schemas; admin queries must qualify them:")
			names := make([]string, 0, len(ambiguous))
			for t := range ambiguous {
				names = append(names, t)
			}
			sort.Strings(names)
			items := make([]pterm.BulletListItem, len(names))
			for i, t := range names {
				items[i] = pterm.BulletListItem{Level: 1, Text: fmt.Sprintf("%s (%s)", t, strings.Join(ambiguous[t], ", "))}
			}
			_ = pterm.DefaultBulletList.WithItems(items).Render()
		}

		summary := fmt.Sprintf("Listen:        %s\nDatabase:      %s\nDSN source:    %s\nQuery timeout: %s\nRate limit:    %.2f rps, burst %d",
			cfg.ListenAddr, dsn.Redact(cfg.DatabaseURL), cfg.DSNSource, cfg.QueryTimeout,
			cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("sqlgate configuration")).
			WithPadding(1).
			Println(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
