package commands

import (
	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/version"
)

// VersionInfo is the version command's data.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{Version: version.Version, Commit: version.Commit, Date: version.Date}
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				_, err := cmd.OutOrStdout().Write([]byte(version.Full() + "\n"))
				return err
			}
			return app.OK(info, output.WithSummary(version.Full()))
		},
	}
}
