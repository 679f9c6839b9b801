package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/config"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/version"
)

// Check statuses.
const (
	statusPass = "pass"
	statusFail = "fail"
	statusWarn = "warn"
	statusSkip = "skip"
)

// Check is one diagnostic line.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func passed(name, msg string) Check { return Check{Name: name, Status: statusPass, Message: msg} }

func failed(name, msg, hint string) Check {
	return Check{Name: name, Status: statusFail, Message: msg, Hint: hint}
}

func skipped(name, reason string) Check {
	return Check{Name: name, Status: statusSkip, Message: "Skipped (" + reason + ")"}
}

// DoctorResult is the doctor command's data.
type DoctorResult struct {
	Checks  []Check `json:"checks"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Warned  int     `json:"warned"`
	Skipped int     `json:"skipped"`
}

// Summary reads "All 5 checks passed" when nothing failed or warned, and
// lists the non-zero counts otherwise.
func (r *DoctorResult) Summary() string {
	if r.Failed+r.Warned == 0 && r.Passed > 0 {
		s := fmt.Sprintf("All %d checks passed", r.Passed)
		if r.Skipped > 0 {
			s += fmt.Sprintf(", %d skipped", r.Skipped)
		}
		return s
	}
	var parts []string
	for _, c := range []struct {
		n     int
		label string
	}{
		{r.Passed, "passed"},
		{r.Failed, "failed"},
		{r.Warned, pluralize(r.Warned, "warning", "warnings")},
		{r.Skipped, "skipped"},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	return strings.Join(parts, ", ")
}

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check CLI health and diagnose issues",
		Long: `Check the config files, the stored session and whether the API and the
selected business are reachable. An expired access cookie is refreshed
along the way.`,
		Example: `  slotbook doctor
  slotbook doctor --verbose
  slotbook doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			result := summarizeChecks(runDoctorChecks(cmd.Context(), app, verbose))

			if app.Output.EffectiveFormat() == output.FormatStyled {
				renderDoctorStyled(cmd.OutOrStdout(), app.Output.Options(), result)
				return nil
			}

			opts := []output.ResponseOption{output.WithSummary(result.Summary())}
			if crumbs := buildDoctorBreadcrumbs(result.Checks); len(crumbs) > 0 {
				opts = append(opts, output.WithBreadcrumbs(crumbs...))
			}
			return app.OK(result, opts...)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show build, storage and latency details")

	return cmd
}

// runDoctorChecks runs local checks first; the network checks are skipped
// once an earlier result makes them pointless.
func runDoctorChecks(ctx context.Context, app *appctx.App, verbose bool) []Check {
	checks := []Check{checkVersion(verbose)}
	if verbose {
		checks = append(checks, passed("Runtime", fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)))
	}
	checks = append(checks, checkConfigFiles(verbose)...)
	checks = append(checks, checkTimezone(app))

	session := checkSession(app, verbose)
	checks = append(checks, session)
	if session.Status == statusFail {
		return append(checks, skipped("API Connectivity", "not logged in"), skipped("Business Access", "not logged in"))
	}

	api := checkAPIConnectivity(ctx, app, verbose)
	checks = append(checks, api)

	switch {
	case app.Config.BusinessID == "":
		c := skipped("Business Access", "no business selected")
		c.Hint = "Run: slotbook business use <id>"
		return append(checks, c)
	case api.Status != statusPass:
		return append(checks, skipped("Business Access", "API not available"))
	}
	return append(checks, checkBusinessAccess(ctx, app, verbose))
}

func checkVersion(verbose bool) Check {
	c := passed("CLI Version", version.Version)
	if version.IsDev() {
		c = Check{Name: c.Name, Status: statusWarn, Message: "Development build", Hint: "Install a released build for bug reports"}
	}
	if verbose && version.Commit != "none" {
		c.Message += fmt.Sprintf(" (%s, %s)", version.Commit, version.Date)
	}
	return c
}

// checkConfigFiles reports the global file always and the local file only
// when present.
func checkConfigFiles(verbose bool) []Check {
	var checks []Check
	if c, ok := checkConfigFile("Global Config", config.GlobalConfigPath(), verbose); ok {
		checks = append(checks, c)
	} else {
		checks = append(checks, passed("Global Config", "Not present (using defaults)"))
	}
	if c, ok := checkConfigFile("Local Config", config.LocalConfigPath(), verbose); ok {
		checks = append(checks, c)
	}
	return checks
}

// checkConfigFile returns ok=false when the file does not exist.
func checkConfigFile(name, path string, verbose bool) (Check, bool) {
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path comes from config lookup
	if errors.Is(err, fs.ErrNotExist) {
		return Check{}, false
	}
	if err != nil {
		return failed(name, "Cannot read: "+path, fmt.Sprintf("Check file permissions: %v", err)), true
	}
	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		return failed(name, "Invalid JSON: "+path, fmt.Sprintf("JSON error: %v", err)), true
	}
	if verbose {
		return passed(name, fmt.Sprintf("%s (%d keys)", path, len(keys))), true
	}
	return passed(name, path), true
}

func checkTimezone(app *appctx.App) Check {
	if app.Location == time.Local {
		return passed("Timezone", "Local ("+app.Now().Format("MST")+")")
	}
	return passed("Timezone", app.Location.String())
}

// checkSession inspects the stored cookies without touching the network.
// Access expiring within five minutes warns; it will refresh on next use.
func checkSession(app *appctx.App, verbose bool) Check {
	const name = "Session"
	now := app.Now()
	st := app.Auth.Status(now)
	if !st.LoggedIn {
		return failed(name, "Not logged in to "+st.Origin, loginHint)
	}

	var c Check
	switch {
	case st.AccessExpired && !st.HasRefresh:
		c = failed(name, "Access expired and no refresh cookie", loginHint)
	case st.AccessExpired:
		c = passed(name, "Access expired, will refresh on next request")
	case st.AccessExpiresAt != nil && st.AccessExpiresAt.Sub(now) < 5*time.Minute:
		left := st.AccessExpiresAt.Sub(now).Round(time.Second)
		c = Check{Name: name, Status: statusWarn, Message: "Access expires in " + left.String(), Hint: "It will refresh on the next request"}
	default:
		c = passed(name, "Logged in as "+orDefault(st.Email, "unknown"))
	}
	if verbose {
		where := "system keyring"
		if st.Storage != "keyring" {
			where = config.GlobalConfigDir()
		}
		c.Message += " (stored in " + where + ")"
	}
	return c
}

// checkAPIConnectivity verifies the session through the gateway, so an
// expired access cookie is refreshed here.
func checkAPIConnectivity(ctx context.Context, app *appctx.App, verbose bool) Check {
	const name = "API Connectivity"
	origin := app.Config.Origin()
	start := time.Now()
	if err := app.Auth.Verify(ctx); err != nil {
		return failed(name, "Cannot verify session with "+origin, fmt.Sprintf("Error: %v", err))
	}
	c := passed(name, origin+" reachable")
	if verbose {
		c.Message += fmt.Sprintf(" (%dms)", time.Since(start).Milliseconds())
	}
	return c
}

func checkBusinessAccess(ctx context.Context, app *appctx.App, verbose bool) Check {
	const name = "Business Access"
	id, err := app.BusinessID()
	if err != nil {
		return failed(name, "Invalid business configuration", err.Error())
	}
	start := time.Now()
	biz, err := app.Booking.Businesses().Get(ctx, id)
	if err != nil {
		return failed(name, fmt.Sprintf("Cannot access business %d", id), fmt.Sprintf("Error: %v", err))
	}
	c := passed(name, fmt.Sprintf("%s (#%d)", biz.Name, biz.ID))
	if verbose {
		c.Message += fmt.Sprintf(", %dms", time.Since(start).Milliseconds())
	}
	return c
}

func summarizeChecks(checks []Check) *DoctorResult {
	r := &DoctorResult{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case statusPass:
			r.Passed++
		case statusFail:
			r.Failed++
		case statusWarn:
			r.Warned++
		case statusSkip:
			r.Skipped++
		}
	}
	return r
}

// doctorFixes maps a failing check to the command that helps fix it.
var doctorFixes = map[string]output.Breadcrumb{
	"Session":          loginBreadcrumb,
	"API Connectivity": {Action: "status", Cmd: "slotbook auth status", Description: "Check session status"},
	"Business Access":  {Action: "config", Cmd: "slotbook config show", Description: "Review configuration"},
	"Global Config":    {Action: "config", Cmd: "slotbook config show", Description: "Review configuration"},
	"Local Config":     {Action: "config", Cmd: "slotbook config show", Description: "Review configuration"},
}

// buildDoctorBreadcrumbs suggests one fix per distinct command, in check
// order.
func buildDoctorBreadcrumbs(checks []Check) []output.Breadcrumb {
	seen := map[string]bool{}
	var crumbs []output.Breadcrumb
	for _, c := range checks {
		fix, ok := doctorFixes[c.Name]
		if c.Status != statusFail || !ok || seen[fix.Cmd] {
			continue
		}
		seen[fix.Cmd] = true
		crumbs = append(crumbs, fix)
	}
	return crumbs
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// renderDoctorStyled prints the checklist with a status icon per line and
// hints under failures and warnings.
func renderDoctorStyled(w io.Writer, opts output.Options, result *DoctorResult) {
	opts.Writer = w
	r := output.NewRenderer(opts, false)

	bold := lipgloss.NewStyle().Bold(true)
	marks := map[string]struct {
		icon  string
		style lipgloss.Style
	}{
		statusPass: {"✓", r.Success},
		statusFail: {"✗", r.Error},
		statusWarn: {"!", r.Warning},
		statusSkip: {"○", r.Muted},
	}

	fmt.Fprintf(w, "\n%s\n\n", r.Summary.Render("slotbook doctor"))
	for _, c := range result.Checks {
		m := marks[c.Status]
		fmt.Fprintf(w, "  %s %s %s\n", m.style.Render(m.icon), bold.Render(c.Name), m.style.Render(c.Message))
		if c.Hint != "" && (c.Status == statusFail || c.Status == statusWarn) {
			fmt.Fprintf(w, "      %s\n", r.Hint.Render("↳ "+c.Hint))
		}
	}
	fmt.Fprintf(w, "\n  %s\n\n", result.Summary())
}
