// Package cli wires the root command.
package cli

import (
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/commands"
	"github.com/slotbook/slotbook-cli/internal/config"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/version"
)

// skipSetup lists commands that run without config or a session.
var skipSetup = map[string]bool{
	"help":                          true,
	"version":                       true,
	"completion":                    true,
	"bash":                          true,
	"zsh":                           true,
	"fish":                          true,
	"powershell":                    true,
	cobra.ShellCompRequestCmd:       true,
	cobra.ShellCompNoDescRequestCmd: true,
}

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "slotbook",
		Short:         "Command-line interface for the booking platform",
		Long:          "slotbook manages appointments, staff, services and businesses on the booking platform.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          commands.RunQuickStart, // Run quick-start when no args
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSetup[cmd.Name()] {
				return nil
			}

			overrides := config.FlagOverrides{
				Business: flags.Business,
				Profile:  flags.Profile,
				StateDir: flags.StateDir,
				Timezone: flags.Timezone,
			}
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			if err := resolveProfile(cfg, overrides); err != nil {
				return err
			}

			app, err := appctx.NewApp(cfg, flags)
			if err != nil {
				return err
			}
			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	cmd.PersistentFlags().BoolVar(&flags.Count, "count", false, "Output only count")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter data through a jq expression")

	// Context flags
	cmd.PersistentFlags().StringVarP(&flags.Business, "business", "b", "", "Business ID")
	cmd.PersistentFlags().StringVarP(&flags.Profile, "profile", "P", "", "Named profile from config")
	cmd.PersistentFlags().StringVar(&flags.Timezone, "timezone", "", "IANA time zone for dates (e.g., Europe/Lisbon)")
	cmd.PersistentFlags().StringVar(&flags.StateDir, "state-dir", "", "Directory for session state")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for operations, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()
	addCommands(cmd)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()
	if err == nil {
		return
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app := appctx.FromContext(executedCmd.Context()); app != nil {
		_ = app.Err(err)
		os.Exit(apiErr.ExitCode())
	}

	// Setup failed before the app existed.
	writer := output.New(output.Options{
		Format: fallbackFormat(cmd),
		Writer: os.Stdout,
	})
	_ = writer.Err(err)
	os.Exit(apiErr.ExitCode())
}

func addCommands(cmd *cobra.Command) {
	cmd.AddCommand(
		commands.NewAuthCmd(),
		commands.NewMeCmd(),
		commands.NewAppointmentsCmd(),
		commands.NewStaffCmd(),
		commands.NewServicesCmd(),
		commands.NewBusinessCmd(),
		commands.NewDashboardCmd(),
		commands.NewAPICmd(),
		commands.NewConfigCmd(),
		commands.NewDoctorCmd(),
		commands.NewQuickStartCmd(),
		commands.NewCommandsCmd(),
		commands.NewCompletionCmd(),
		commands.NewVersionCmd(),
	)
}

// resolveProfile applies the selected profile, then re-applies env and
// flags so they keep precedence over profile values.
func resolveProfile(cfg *config.Config, overrides config.FlagOverrides) error {
	name := overrides.Profile
	if name == "" {
		name = os.Getenv("SLOTBOOK_PROFILE")
	}
	explicit := name != ""
	if name == "" {
		name = cfg.DefaultProfile
	}
	if name == "" {
		return nil
	}

	if err := cfg.ApplyProfile(name); err != nil {
		if !explicit {
			return output.ErrUsageHint(err.Error(), "Fix default_profile: slotbook config profiles")
		}
		return output.ErrUsageHint(err.Error(), "List profiles: slotbook config profiles")
	}
	config.LoadFromEnv(cfg)
	config.ApplyOverrides(cfg, overrides)
	return nil
}

// fallbackFormat reads the output flags directly when no app is available.
func fallbackFormat(cmd *cobra.Command) output.Format {
	pf := cmd.PersistentFlags()
	get := func(name string) bool {
		v, _ := pf.GetBool(name)
		return v
	}
	switch {
	case get("quiet"):
		return output.FormatQuiet
	case get("ids-only"):
		return output.FormatIDs
	case get("count"):
		return output.FormatCount
	case get("styled"):
		return output.FormatStyled
	case get("md"):
		return output.FormatMarkdown
	case get("json"):
		return output.FormatJSON
	}
	return output.FormatAuto
}

var shorthandPattern = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
var requiredFlagPattern = regexp.MustCompile(`required flag\(s\) "([\w-]+)" not set`)

// transformCobraError turns cobra's parse errors into usage errors.
func transformCobraError(err error) error {
	var e *output.Error
	if errors.As(err, &e) {
		return err
	}
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}
	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}
	if m := shorthandPattern.FindStringSubmatch(msg); m != nil {
		return output.ErrUsage("Unknown option: " + m[1])
	}
	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: slotbook commands")
	}
	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}
	if strings.Contains(msg, "arg(s), received 0") || (strings.Contains(msg, "requires at least") && strings.Contains(msg, "arg(s)")) {
		return output.ErrUsage("ID required")
	}
	if strings.Contains(msg, "arg(s), received") {
		return output.ErrUsage(msg)
	}
	if m := requiredFlagPattern.FindStringSubmatch(msg); m != nil {
		return output.ErrUsage("--" + m[1] + " required")
	}
	return err
}
