// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sqlgate/server/internal/config"
	"sqlgate/server/internal/xdg"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configCmd edits the non-secret defaults in config.json. Environment
// variables still win over anything stored here.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the saved server defaults",
	Long: `The config command stores non-secret server defaults in config.json under the
XDG config directory. Only the flags you pass are changed. Without flags it
prints the current file.

Secrets never go into this file; use 'sqlgate connect' for those.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := xdg.ConfigFile()
		if err != nil {
			return err
		}
		current, err := config.ReadFile(path)
		if err != nil {
			return err
		}

		if cmd.Flags().NFlag() == 0 {
			b, err := json.MarshalIndent(current, "", "  ")
			if err != nil {
				return err
			}
			pterm.Println(string(b))
			return nil
		}

		updated, err := mergeFileFlags(current, cmd.Flags())
		if err != nil {
			return err
		}
		saved, err := config.SaveFile(updated)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Saved %s\n", saved)
		return nil
	},
}

// mergeFileFlags overlays the flags that were set on f. Unset flags keep the
// stored value.
func mergeFileFlags(f config.File, fs *pflag.FlagSet) (config.File, error) {
	if fs.Changed("listen") {
		f.ListenAddr, _ = fs.GetString("listen")
	}
	if fs.Changed("log-level") {
		v, _ := fs.GetString("log-level")
		switch v = strings.ToLower(v); v {
		case "trace", "debug", "info", "warn", "error":
			f.LogLevel = v
		default:
			return f, fmt.Errorf("invalid --log-level %q: want trace, debug, info, warn or error", v)
		}
	}
	if fs.Changed("log-format") {
		v, _ := fs.GetString("log-format")
		switch v = strings.ToLower(v); v {
		case "text", "json":
			f.LogFormat = v
		default:
			return f, fmt.Errorf("invalid --log-format %q: want text or json", v)
		}
	}
	if fs.Changed("query-timeout") {
		v, _ := fs.GetString("query-timeout")
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return f, fmt.Errorf("invalid --query-timeout %q: want a duration such as 30s", v)
		}
		f.QueryTimeout = v
	}
	if fs.Changed("rate-limit") {
		v, _ := fs.GetFloat64("rate-limit")
		if v < 0 {
			return f, fmt.Errorf("invalid --rate-limit %v", v)
		}
		f.RateLimit = &v
	}
	if fs.Changed("rate-burst") {
		v, _ := fs.GetInt("rate-burst")
		if v < 1 {
			return f, fmt.Errorf("invalid --rate-burst %d", v)
		}
		f.RateBurst = &v
	}
	if fs.Changed("cors-origins") {
		f.CORSOrigins, _ = fs.GetStringSlice("cors-origins")
	}
	return f, nil
}

func init() {
	addFileFlags(configCmd.Flags())
	rootCmd.AddCommand(configCmd)
}

func addFileFlags(fs *pflag.FlagSet) {
	fs.String("listen", "", "listen address, e.g. :8080")
	fs.String("log-level", "", "trace, debug, info, warn or error")
	fs.String("log-format", "", "text or json")
	fs.String("query-timeout", "", "per-query timeout, e.g. 30s (0 disables)")
	fs.Float64("rate-limit", 0, "requests per second per client (0 disables)")
	fs.Int("rate-burst", 0, "rate limiter burst size")
	fs.StringSlice("cors-origins", nil, "allowed CORS origins, comma separated")
}
