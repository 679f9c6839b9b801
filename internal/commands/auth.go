// Package commands implements the CLI commands.
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/auth"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Log in, manage the stored session, and create or recover accounts.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthRefreshCmd(),
		newAuthVerifyCmd(),
		newAuthRegisterCmd(),
		newAuthActivateCmd(),
		newAuthResetPasswordCmd(),
		NewMeCmd(),
	)

	return cmd
}

// readSecret reads one line from r, for --password-stdin.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// resolvePassword picks the password from stdin, the flag, or a prompt.
func resolvePassword(cmd *cobra.Command, app *appctx.App, flag string, fromStdin bool, title string) (string, error) {
	switch {
	case fromStdin:
		pw, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		if pw == "" {
			return "", output.ErrUsage("No password on stdin")
		}
		return pw, nil
	case flag != "":
		return flag, nil
	case app.IsInteractive():
		return tui.Password(title)
	}
	return "", output.ErrUsageHint("A password is required", "Pass --password-stdin or run in a terminal")
}

func newAuthLoginCmd() *cobra.Command {
	var email, password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Long: `Log in to the booking API. Session cookies are stored in the system
keyring (or a file when no keyring is available) and refreshed
automatically when they expire.`,
		Example: `  slotbook auth login
  slotbook auth login --email me@example.com --password-stdin < pw.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if email == "" && password == "" && !passwordStdin && app.IsInteractive() {
				var err error
				email, password, err = tui.Credentials("Log in to "+app.Config.Origin(), app.Auth.Jar().Email())
				if err != nil {
					if tui.IsAborted(err) {
						return output.ErrUsage("Canceled")
					}
					return err
				}
			}
			if email == "" {
				return output.ErrUsageHint("An email is required", "Pass --email <address>")
			}
			pw, err := resolvePassword(cmd, app, password, passwordStdin, "Password")
			if err != nil {
				return err
			}

			if err := app.Auth.Login(cmd.Context(), email, pw); err != nil {
				return err
			}

			user, err := app.Auth.Me(cmd.Context())
			if err != nil {
				// Logged in regardless; the profile is informational.
				app.Logger.Debug("fetching profile after login failed", "error", err)
				user = &models.User{Email: email}
			}

			summary := "Logged in as " + displayName(user)
			var crumbs []output.Breadcrumb
			if user.IsBusinessOwner {
				crumbs = append(crumbs,
					crumb("businesses", "slotbook business list", "Your businesses"),
					crumb("setup", "slotbook business setup", "Set up a new business"),
				)
			}
			crumbs = append(crumbs, crumb("appointments", "slotbook appointments --date today", "Today's appointments"))

			return app.OK(user,
				output.WithSummary(summary),
				output.WithEntity("user"),
				output.WithBreadcrumbs(crumbs...),
			)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove stored cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			who := sessionSummary(app)
			if err := app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}

			return app.OK(map[string]string{"status": "logged_out", "origin": app.Config.Origin()},
				output.WithSummary("Logged out of "+who),
				output.WithBreadcrumbs(loginBreadcrumb),
			)
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Long:  "Show whether a session is stored for the configured API and when its access cookie expires. Makes no network calls.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			now := app.Now()
			st := app.Auth.Status(now)

			var summary string
			var crumbs []output.Breadcrumb
			switch {
			case !st.LoggedIn:
				summary = "Not logged in to " + st.Origin
				crumbs = append(crumbs, loginBreadcrumb)
			case st.AccessExpiresAt != nil && !st.AccessExpired:
				summary = fmt.Sprintf("Logged in as %s (access expires in %s)",
					orDefault(st.Email, "unknown"), st.AccessExpiresAt.Sub(now).Round(time.Second))
			case st.HasRefresh:
				summary = fmt.Sprintf("Logged in as %s (access expired, refreshes on next request)", orDefault(st.Email, "unknown"))
				crumbs = append(crumbs, crumb("refresh", "slotbook auth refresh", "Refresh now"))
			default:
				summary = "Session expired for " + st.Origin
				crumbs = append(crumbs, loginBreadcrumb)
			}

			return app.OK(st, output.WithSummary(summary), output.WithBreadcrumbs(crumbs...))
		},
	}
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access cookie now",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireLogin(app); err != nil {
				return err
			}

			// Same single-flight path the gateway uses on a 401.
			if err := refreshHoldingGate(cmd.Context(), app); err != nil {
				if output.IsUnauthorized(err) {
					app.State.SetAuthenticated(false)
				}
				return err
			}
			app.State.SetAuthenticated(true)

			st := app.Auth.Status(app.Now())
			return app.OK(st, output.WithSummary("Session refreshed for "+orDefault(st.Email, st.Origin)))
		},
	}
}

func newAuthVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the session with the API",
		Long:  "Verify the stored session with the API. An expired access cookie is refreshed first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := app.Auth.Verify(cmd.Context()); err != nil {
				return err
			}
			return app.OK(map[string]any{"valid": true, "origin": app.Config.Origin()},
				output.WithSummary("Session is valid for "+sessionSummary(app)))
		},
	}
}

func newAuthRegisterCmd() *cobra.Command {
	var p auth.RegisterParams
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. The API emails an activation link; run 'slotbook auth activate' with its uid and token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if p.Email == "" {
				return output.ErrUsageHint("An email is required", "Pass --email <address>")
			}
			pw, err := resolvePassword(cmd, app, p.Password, passwordStdin, "Choose a password")
			if err != nil {
				return err
			}
			p.Password = pw

			user, err := app.Auth.Register(cmd.Context(), p)
			if err != nil {
				return err
			}

			return app.OK(user,
				output.WithSummary("Registered "+user.Email+"; check your email to activate the account"),
				output.WithEntity("user"),
				output.WithBreadcrumbs(crumb("activate", "slotbook auth activate <uid> <token>", "Activate with the emailed link")),
			)
		},
	}

	cmd.Flags().StringVarP(&p.Email, "email", "e", "", "Account email (required)")
	cmd.Flags().StringVar(&p.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&p.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&p.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&p.Password, "password", "", "Password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&p.IsBusinessOwner, "owner", false, "Register as a business owner")

	return cmd
}

func newAuthActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <uid> <token>",
		Short: "Activate a registered account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := app.Auth.Activate(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return app.OK(map[string]string{"status": "activated"},
				output.WithSummary("Account activated"),
				output.WithBreadcrumbs(loginBreadcrumb),
			)
		},
	}
}

func newAuthResetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a password reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if email == "" {
				email = app.Auth.Jar().Email()
			}
			if email == "" {
				return output.ErrUsageHint("An email is required", "Pass --email <address>")
			}
			if err := app.Auth.ResetPassword(cmd.Context(), email); err != nil {
				return err
			}
			return app.OK(map[string]string{"status": "sent", "email": email},
				output.WithSummary("Reset link sent to "+email),
				output.WithBreadcrumbs(crumb("confirm", "slotbook auth reset-password confirm <uid> <token>", "Set a new password")),
			)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (defaults to the logged-in account)")

	cmd.AddCommand(newAuthResetPasswordConfirmCmd())
	return cmd
}

func newAuthResetPasswordConfirmCmd() *cobra.Command {
	var password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "confirm <uid> <token>",
		Short: "Set a new password from a reset link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			pw, err := resolvePassword(cmd, app, password, passwordStdin, "New password")
			if err != nil {
				return err
			}
			if err := app.Auth.ResetPasswordConfirm(cmd.Context(), args[0], args[1], pw); err != nil {
				return err
			}
			return app.OK(map[string]string{"status": "password_changed"},
				output.WithSummary("Password changed"),
				output.WithBreadcrumbs(loginBreadcrumb),
			)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "New password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the new password from stdin")
	return cmd
}

// NewMeCmd creates the me command.
func NewMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireLogin(app); err != nil {
				return err
			}
			user, err := app.Auth.Me(cmd.Context())
			if err != nil {
				return err
			}

			var crumbs []output.Breadcrumb
			if user.IsBusinessOwner {
				crumbs = append(crumbs, crumb("businesses", "slotbook business list", "Your businesses"))
			}
			crumbs = append(crumbs, crumb("auth", "slotbook auth status", "Session status"))

			return app.OK(user,
				output.WithSummary(displayName(user)+" <"+user.Email+">"),
				output.WithEntity("user"),
				output.WithBreadcrumbs(crumbs...),
			)
		},
	}
}

func displayName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// refreshHoldingGate refreshes with the gateway's coordinator held, so 401s
// from concurrent requests wait for this refresh instead of starting one.
func refreshHoldingGate(ctx context.Context, app *appctx.App) error {
	coord := app.Gateway.Coordinator()
	if err := coord.Acquire(ctx); err != nil {
		return err
	}
	defer coord.Release()
	return app.Auth.Refresh(ctx)
}
