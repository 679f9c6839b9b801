package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/version"
)

// QuickStartResponse is the JSON structure for the quick-start command.
type QuickStartResponse struct {
	Version  string       `json:"version"`
	Auth     AuthInfo     `json:"auth"`
	Context  ContextInfo  `json:"context"`
	Commands CommandsInfo `json:"commands"`
}

// AuthInfo describes the authentication status.
type AuthInfo struct {
	Status string `json:"status"`
	User   string `json:"user,omitempty"`
	Origin string `json:"origin"`
}

// ContextInfo describes the current context.
type ContextInfo struct {
	BusinessID string `json:"business_id,omitempty"`
	Timezone   string `json:"timezone"`
	Profile    string `json:"profile,omitempty"`
}

// CommandsInfo lists suggested commands.
type CommandsInfo struct {
	QuickStart []string `json:"quick_start"`
	Common     []string `json:"common"`
}

// NewQuickStartCmd creates the quick-start command.
func NewQuickStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "quick-start",
		Short:  "Show quick start guide",
		Long:   "Display a quick start guide with session status and suggested commands.",
		Hidden: true, // run as the default command
		RunE:   RunQuickStart,
	}
}

// RunQuickStart reports the session and suggests next commands. It makes
// no network calls.
func RunQuickStart(cmd *cobra.Command, args []string) error {
	app := appctx.FromContext(cmd.Context())

	auth := AuthInfo{Status: "unauthenticated", Origin: app.Config.Origin()}
	if app.Auth.HasSession() {
		auth.Status = "authenticated"
		auth.User = app.Auth.Jar().Email()
	}

	resp := QuickStartResponse{
		Version: version.Version,
		Auth:    auth,
		Context: ContextInfo{
			BusinessID: app.Config.BusinessID,
			Timezone:   app.Location.String(),
			Profile:    app.Config.ActiveProfile,
		},
		Commands: CommandsInfo{
			QuickStart: []string{"slotbook dashboard", "slotbook appointments --date today", "slotbook business list"},
			Common: []string{
				`slotbook appointments create --service <id> --at "tomorrow 10:00" --customer "<name>"`,
				"slotbook appointments confirm <id>",
				`slotbook appointments reschedule <id> --to "friday 14:00"`,
			},
		},
	}

	var summary string
	var crumbs []output.Breadcrumb
	switch {
	case auth.Status == "unauthenticated":
		summary = fmt.Sprintf("slotbook v%s - not logged in to %s", version.Version, auth.Origin)
		crumbs = append(crumbs, loginBreadcrumb,
			crumb("register", "slotbook auth register --email <address>", "Create an account"))
	case app.Config.BusinessID == "":
		summary = fmt.Sprintf("slotbook v%s - logged in as %s, no business selected", version.Version, orDefault(auth.User, "unknown"))
		crumbs = append(crumbs,
			crumb("businesses", "slotbook business list", "Find your business"),
			crumb("setup", "slotbook business setup", "Set up a new business"))
	default:
		summary = fmt.Sprintf("slotbook v%s - logged in as %s @ business %s", version.Version, orDefault(auth.User, "unknown"), app.Config.BusinessID)
		crumbs = append(crumbs,
			crumb("dashboard", "slotbook dashboard", "Today at a glance"),
			crumb("appointments", "slotbook appointments --date today", "Today's appointments"))
	}

	return app.OK(resp, output.WithSummary(summary), output.WithBreadcrumbs(crumbs...))
}
