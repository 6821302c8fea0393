// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"sqlgate/server/internal/config"
	"sqlgate/server/internal/dsn"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// dbinfoCmd represents the dbinfo command for displaying database connection information.
// It shows the resolved connection string with the password masked.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show current database connection string",
	Long: `The dbinfo command displays the database connection string (DSN) serve would
use, with the password masked, and where it came from: DATABASE_URL, the
DB_* variables, or the OS keychain.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := config.DefaultSource(envFile)
		if err != nil {
			return err
		}
		db, err := config.DatabaseFrom(src)
		if err != nil {
			reportConfigError(err)
			return nil
		}

		pterm.Printf("Using DSN from %s\n", db.Source)
		pterm.Println()
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(dsn.Redact(db.URL))
		pterm.Println()
		pterm.Println("To update the saved connection, run: sqlgate connect")
		pterm.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}
