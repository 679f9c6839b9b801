package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/dateparse"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/tui"
)

// parseID parses a positive numeric ID argument.
func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, output.ErrUsage(fmt.Sprintf("Invalid %s ID: %s", kind, arg))
	}
	return id, nil
}

// resolveService turns a --service value into an ID. Empty means none.
func resolveService(ctx context.Context, app *appctx.App, business int64, input string) (int64, error) {
	if input == "" {
		return 0, nil
	}
	id, _, err := app.Names.ResolveService(ctx, business, strings.TrimPrefix(input, "#"))
	return id, err
}

// resolveStaff turns a --staff value into an ID. Empty means none.
func resolveStaff(ctx context.Context, app *appctx.App, business int64, input string) (int64, error) {
	if input == "" {
		return 0, nil
	}
	id, _, err := app.Names.ResolveStaff(ctx, business, strings.TrimPrefix(input, "#"))
	return id, err
}

// parseIDs parses a comma-separated list of IDs.
func parseIDs(kind, arg string) ([]int64, error) {
	var ids []int64
	for part := range strings.SplitSeq(arg, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		id, err := parseID(kind, part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// requireLogin fails fast when no session cookie is stored, so commands do
// not issue a request that can only come back 401.
func requireLogin(app *appctx.App) error {
	if !app.Auth.HasSession() {
		return output.ErrAuth("Not logged in")
	}
	return nil
}

// confirm asks before a destructive action. --force skips the prompt;
// without a terminal the action is refused.
func confirm(app *appctx.App, force bool, message string) error {
	if force {
		return nil
	}
	if !app.IsInteractive() {
		return output.ErrUsageHint(message+" needs confirmation", "Pass --force to skip the prompt")
	}
	ok, err := tui.ConfirmDangerous(message)
	if err != nil {
		if tui.IsAborted(err) {
			return output.ErrUsage("Canceled")
		}
		return err
	}
	if !ok {
		return output.ErrUsage("Canceled")
	}
	return nil
}

// parseWhen reads a start time. Accepted forms:
//   - RFC 3339 ("2026-03-02T14:30:00+01:00")
//   - "2026-03-02T14:30" or "2026-03-02 14:30"
//   - "<day> HH:MM" where <day> is any dateparse day ("tomorrow 9:30",
//     "next friday 14:00", "+2 16:15")
//
// Times without an offset are in now's location.
func parseWhen(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, input, now.Location()); err == nil {
			return t, nil
		}
	}

	idx := strings.LastIndexByte(input, ' ')
	if idx < 0 {
		return time.Time{}, whenError(input)
	}
	dayPart, clockPart := input[:idx], input[idx+1:]
	clock, err := time.Parse("15:04", clockPart)
	if err != nil {
		return time.Time{}, whenError(input)
	}
	day, err := dateparse.ParseDay(dayPart, now)
	if err != nil {
		return time.Time{}, whenError(input)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location()), nil
}

func whenError(input string) error {
	return output.ErrUsageHint("Unrecognized time: "+input,
		`Use "2026-03-02 14:30", "tomorrow 9:30" or "next friday 14:00"`)
}

// changedString returns &v when the flag was set on the command line.
func changedString(cmd *cobra.Command, name, v string) *string {
	if cmd.Flags().Changed(name) {
		return &v
	}
	return nil
}

// sessionSummary names who is logged in for summaries.
func sessionSummary(app *appctx.App) string {
	if email := app.Auth.Jar().Email(); email != "" {
		return email
	}
	return app.Config.Origin()
}

// loginBreadcrumb is offered wherever a command needs a session.
var loginBreadcrumb = crumb("login", "slotbook auth login", "Log in")

const loginHint = "Run: slotbook auth login"

func crumb(action, cmd, description string) output.Breadcrumb {
	return output.Breadcrumb{Action: action, Cmd: cmd, Description: description}
}
