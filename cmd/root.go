// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for sqlgate. It implements
// the server (serve), operator checks (check, tables, dbinfo), credential
// setup (connect) and an ad-hoc query client (query) using the Cobra CLI
// framework.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	envFile     string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sqlgate",
	Short: "Role-scoped read-only SQL gateway for PostgreSQL",
	Long: `sqlgate exposes a PostgreSQL database over HTTP to two roles. The user role
may only read the 'company' schema; the admin role may read 'company' and
'finance'. Only SELECT statements are executed, always inside a read-only
transaction whose search path is limited to the role's schemas.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("sqlgate %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application. SIGINT and SIGTERM cancel the command
// context, which serve uses for graceful shutdown.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file when it exists")
}
