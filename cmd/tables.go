// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"
	"time"

	"sqlgate/server/internal/catalog"
	"sqlgate/server/internal/policy"
	"sqlgate/server/internal/store"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var tablesRole string

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables a role can query",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := policy.ParseRole(tablesRole)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		pool, _, err := openDatabase(ctx, 10*time.Second)
		if err != nil {
			return err
		}
		defer pool.Close()

		var snapshot map[string][]string
		err = withConn(ctx, pool, func(conn store.Conn) error {
			var err error
			snapshot, err = catalog.NewInspector(conn).Snapshot(ctx, role.Schemas())
			return err
		})
		if err != nil {
			return err
		}

		data := pterm.TableData{{"Schema", "Tables"}}
		for _, schema := range role.Schemas() {
			tables := snapshot[schema]
			list := strings.Join(tables, ", ")
			if len(tables) == 0 {
				list = "(none)"
			}
			data = append(data, []string{schema, list})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().StringVar(&tablesRole, "role", string(policy.Admin), "Role whose schemas to list (user|admin)")
}
