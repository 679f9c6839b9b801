package commands

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/config"
	"github.com/slotbook/slotbook-cli/internal/output"
)

var showConfigCrumb = crumb("show", "slotbook config show", "View config")

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Show and edit slotbook settings.

Later layers win:
  defaults < /etc/slotbook/config.json < ~/.config/slotbook/config.json
           < <git-root>/.slotbook/config.json < .slotbook/config.json
           < profile < SLOTBOOK_* env < flags`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Print every non-empty setting with the layer it came from.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(show, newConfigInitCmd(), newConfigSetCmd(), newConfigUnsetCmd(), newConfigProfilesCmd())
	return cmd
}

// configEntry is one row of config show.
type configEntry struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// effectiveValues renders the settings as strings; unset optional values
// are left out.
func effectiveValues(cfg *config.Config) map[string]string {
	v := map[string]string{
		"base_url":      cfg.BaseURL,
		"api_prefix":    cfg.APIPrefix,
		"business_id":   cfg.BusinessID,
		"timezone":      cfg.Timezone,
		"locale":        cfg.Locale,
		"currency":      cfg.Currency,
		"format":        cfg.Format,
		"state_dir":     cfg.StateDir,
		"rate_limit":    strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64),
		"rate_burst":    strconv.Itoa(cfg.RateBurst),
		"timeout":       cfg.Timeout.String(),
		"replay_policy": cfg.ReplayPolicy,
		"profile":       cfg.ActiveProfile,
	}
	if cfg.Hints != nil {
		v["hints"] = strconv.FormatBool(*cfg.Hints)
	}
	if cfg.Stats != nil {
		v["stats"] = strconv.FormatBool(*cfg.Stats)
	}
	if cfg.Verbose != nil {
		v["verbose"] = strconv.Itoa(*cfg.Verbose)
	}
	return v
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())

	entries := map[string]configEntry{}
	for key, value := range effectiveValues(app.Config) {
		if value != "" {
			source := cmp.Or(app.Config.Sources[key], string(config.SourceDefault))
			entries[key] = configEntry{Value: value, Source: source}
		}
	}

	return app.OK(entries,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			crumb("set", "slotbook config set <key> <value>", "Set config value"),
			crumb("business", "slotbook business use <id>", "Select the default business"),
		),
	)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize local config file",
		Long:  "Create an empty .slotbook/config.json in the current directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			path := config.LocalConfigPath()

			if _, err := os.Stat(path); err == nil {
				return app.OK(map[string]any{"exists": true, "path": path},
					output.WithSummary("Config file already exists: "+path))
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
				return fmt.Errorf("creating config file: %w", err)
			}

			return app.OK(map[string]any{"created": true, "path": path},
				output.WithSummary("Created: "+path),
				output.WithBreadcrumbs(crumb("set", "slotbook config set business_id <id>", "Set the business for this directory")),
			)
		},
	}
}

// scopeFlag adds --global to cmd and resolves the file it selects.
func scopeFlag(cmd *cobra.Command, usage string) func() (path, scope string) {
	global := cmd.Flags().BoolP("global", "g", false, usage)
	return func() (string, string) {
		if *global {
			return config.GlobalConfigPath(), "global"
		}
		return config.LocalConfigPath(), "local"
	}
}

func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Write a value to the local config file, or the global one with --global.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
		Example: `  slotbook config set timezone Europe/Lisbon --global
  slotbook config set business_id 3
  slotbook config set rate_limit 5`,
		Args: cobra.ExactArgs(2),
	}
	target := scopeFlag(cmd, "Set in global config")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		app := appctx.FromContext(cmd.Context())
		key := args[0]
		path, scope := target()

		value, err := config.SetValue(path, key, args[1])
		if err != nil {
			return output.ErrUsage(err.Error())
		}
		return app.OK(map[string]any{"key": key, "value": value, "scope": scope, "path": path},
			output.WithSummary(fmt.Sprintf("Set %s = %v (%s)", key, value, scope)),
			output.WithBreadcrumbs(showConfigCrumb),
		)
	}
	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long:  "Remove a key from the local config file, or the global one with --global.",
		Args:  cobra.ExactArgs(1),
	}
	target := scopeFlag(cmd, "Unset from global config")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		app := appctx.FromContext(cmd.Context())
		key := args[0]
		path, scope := target()

		removed, err := config.UnsetValue(path, key)
		switch {
		case err != nil:
			return fmt.Errorf("writing config: %w", err)
		case !removed:
			return app.OK(map[string]any{"key": key, "status": "not_set"},
				output.WithSummary(fmt.Sprintf("Key not set: %s (%s)", key, scope)))
		}
		return app.OK(map[string]any{"key": key, "scope": scope, "status": "unset"},
			output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)),
			output.WithBreadcrumbs(showConfigCrumb),
		)
	}
	return cmd
}

// ProfileInfo is one row of config profiles.
type ProfileInfo struct {
	Name       string `json:"name"`
	BaseURL    string `json:"base_url"`
	BusinessID string `json:"business_id,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	Active     bool   `json:"active,omitempty"`
	Default    bool   `json:"default,omitempty"`
}

func newConfigProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List named profiles",
		Long:  "List the profiles defined in config. Select one with --profile or config set default_profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			cfg := app.Config

			profiles := make([]ProfileInfo, 0, len(cfg.Profiles))
			for _, name := range slices.Sorted(maps.Keys(cfg.Profiles)) {
				p := cfg.Profiles[name]
				profiles = append(profiles, ProfileInfo{
					Name:       name,
					BaseURL:    p.BaseURL,
					BusinessID: p.BusinessID,
					Timezone:   p.Timezone,
					Active:     name == cfg.ActiveProfile,
					Default:    name == cfg.DefaultProfile,
				})
			}

			summary := fmt.Sprintf("%d profiles", len(profiles))
			if cfg.ActiveProfile != "" {
				summary += ", using " + cfg.ActiveProfile
			}
			return app.OK(profiles,
				output.WithSummary(summary),
				output.WithBreadcrumbs(crumb("default", "slotbook config set default_profile <name> --global", "Pick the default profile")),
			)
		},
	}
}
