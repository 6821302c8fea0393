// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"sqlgate/server/internal/client"
	"sqlgate/server/internal/config"
	apperrors "sqlgate/server/internal/errors"
	"sqlgate/server/internal/gatekeeper"
	"sqlgate/server/internal/httperrors"
	"sqlgate/server/internal/logging"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	queryRole    string
	queryServer  string
	queryLocal   bool
	queryJSON    bool
	queryTimeout time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] SQL",
	Short: "Run a SELECT statement as a role",
	Long: `query sends a statement to a running sqlgate server with the role's API key
(USER_API_KEY / ADMIN_API_KEY, or the keychain). With --local it skips the
server and applies the same rules directly against the configured database.`,
	Example: `  sqlgate query "SELECT * FROM company.employees"
  sqlgate query --role admin "SELECT * FROM salaries"
  sqlgate query --local --role admin --json "SELECT count(*) FROM finance.budgets"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := policy.ParseRole(queryRole)
		if err != nil {
			return err
		}
		sql := strings.Join(args, " ")

		var rows []store.Row
		if queryLocal {
			rows, err = queryLocally(cmd, role, sql)
		} else {
			rows, err = queryServerRows(cmd, role, sql)
		}
		if err != nil {
			return err
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		return renderRows(rows)
	},
}

func queryServerRows(cmd *cobra.Command, role policy.Role, sql string) ([]store.Row, error) {
	src, err := config.DefaultSource(envFile)
	if err != nil {
		return nil, err
	}
	key, err := config.APIKey(src, role)
	if err != nil {
		reportConfigError(err)
		return nil, err
	}

	resp, err := client.New(queryServer, Version, queryTimeout).Query(cmd.Context(), role, key, sql)
	if err != nil {
		var apiErr *client.Error
		if errors.As(err, &apiErr) {
			printAPIError(apiErr)
			return nil, err
		}
		return nil, httperrors.FormatNetworkError(err, "querying "+httperrors.ExtractHostFromURL(queryServer))
	}
	return resp.Results, nil
}

func queryLocally(cmd *cobra.Command, role policy.Role, sql string) ([]store.Row, error) {
	ctx := cmd.Context()
	pool, _, err := openDatabase(ctx, 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	if queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queryTimeout)
		defer cancel()
	}
	rows, err := gatekeeper.New(pool, logging.Discard()).Execute(ctx, role, sql)
	if err != nil {
		printGateError(err)
		return nil, err
	}
	return rows, nil
}

func printAPIError(e *client.Error) {
	b := e.Body
	switch {
	case e.StatusCode == http.StatusForbidden:
		pterm.Error.Printf("%s. Check %s_API_KEY.\n", b.Message, strings.ToUpper(queryRole))
	case b.Kind == string(apperrors.TableNotFound):
		printMissing(b.Message, b.Table, b.Available)
	default:
		msg := b.Message
		if msg == "" {
			msg = e.Error()
		}
		if b.RequestID != "" {
			msg += fmt.Sprintf(" (request_id %s)", b.RequestID)
		}
		pterm.Error.Println(msg)
	}
}

func printGateError(err error) {
	var mt *apperrors.MissingTable
	var at *apperrors.AmbiguousTable
	var e *apperrors.E
	switch {
	case errors.As(err, &mt):
		printMissing(mt.Message, mt.Table, mt.Available)
	case errors.As(err, &at):
		pterm.Error.Println(at.Message())
	case errors.As(err, &e):
		pterm.Error.Println(e.Message)
	default:
		pterm.Error.Println(logging.PresentError("query", err))
	}
}

func printMissing(message, table string, available map[string][]string) {
	pterm.Error.Println(message)
	if table != "" {
		pterm.Printf("  table: %s\n", table)
	}
	for schema, tables := range available {
		pterm.Printf("  %s: %s\n", schema, strings.Join(tables, ", "))
	}
}

func init() {
	rootCmd.AddCommand(queryCmd)
	server := os.Getenv("SQLGATE_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	queryCmd.Flags().StringVar(&queryRole, "role", string(policy.User), "Role to query as (user|admin)")
	queryCmd.Flags().StringVar(&queryServer, "server", server, "Base URL of the sqlgate server (default from SQLGATE_SERVER)")
	queryCmd.Flags().BoolVar(&queryLocal, "local", false, "Run against the configured database instead of a server")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print rows as JSON")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", client.DefaultTimeout, "Request timeout")
}
