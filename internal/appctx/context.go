// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/auth"
	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/config"
	"github.com/slotbook/slotbook-cli/internal/names"
	"github.com/slotbook/slotbook-cli/internal/observability"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/presenter"
	"github.com/slotbook/slotbook-cli/internal/session"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Location *time.Location

	// Session plumbing
	Store   *auth.Store
	State   *session.State
	Auth    *auth.Manager
	Client  *api.Client
	Gateway *api.Gateway
	Booking *booking.Client
	Names   *names.Resolver

	Output *output.Writer

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	stderr io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	Quiet   bool
	MD      bool // Literal Markdown syntax output
	Styled  bool // Force ANSI styled output (even when piped)
	IDsOnly bool
	Count   bool
	JQ      string

	// Context flags
	Business string
	Profile  string
	Timezone string
	StateDir string

	// Behavior flags
	Verbose int // 0=off, 1=operations+refreshes, 2=every request
	Stats   bool
}

// NewApp wires config, credentials, the session gateway and output for one
// CLI invocation.
func NewApp(cfg *config.Config, flags GlobalFlags) (*App, error) {
	level := verbosity(cfg, flags)
	logger := slog.New(slog.DiscardHandler)
	if level > 0 {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := api.ParseReplayPolicy(cfg.ReplayPolicy)
	if err != nil {
		return nil, err
	}

	// Collector always runs to gather stats; hooks control output verbosity
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(level, collector, observability.NewTraceWriter())

	store := auth.NewStore(cfg.StateDir)
	if err := store.MigrateToKeyring(); err != nil {
		logger.Warn("leaving session in plaintext file", "error", err)
	}
	jar, err := auth.NewCookieJar(store, cfg.Origin(), logger)
	if err != nil {
		return nil, output.ErrUsageHint(err.Error(), "Check base_url: slotbook config show")
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	client := api.NewClient(api.Options{
		BaseURL: cfg.BaseURL,
		Prefix:  cfg.APIPrefix,
		Jar:     jar,
		Timeout: cfg.Timeout,
		Limiter: limiter,
		Logger:  logger,
		Hooks:   hooks,
	})

	state := session.NewState()
	mgr := auth.NewManager(auth.Options{
		Client:   client,
		Jar:      jar,
		State:    state,
		StateDir: cfg.StateDir,
		Logger:   logger,
	})
	gw := api.NewGateway(client, mgr, state,
		api.WithReplayPolicy(policy),
		api.WithGatewayHooks(hooks),
		api.WithGatewayLogger(logger),
	)
	mgr.UseGateway(gw)

	// Optimistic until the server says otherwise.
	state.SetAuthenticated(mgr.HasSession())

	bk := booking.NewClient(gw)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Location:  loc,
		Store:     store,
		State:     state,
		Auth:      mgr,
		Client:    client,
		Gateway:   gw,
		Booking:   bk,
		Names:     names.NewResolver(names.FromBooking(bk)),
		Collector: collector,
		Hooks:     hooks,
		Flags:     flags,
		Output: output.New(output.Options{
			Format:   outputFormat(cfg, flags),
			Writer:   os.Stdout,
			JQ:       flags.JQ,
			Locale:   locale(cfg),
			Location: loc,
			Currency: cfg.Currency,
		}),
		stderr: os.Stderr,
	}, nil
}

// outputFormat resolves flags over the configured format (specific modes first).
func outputFormat(cfg *config.Config, flags GlobalFlags) output.Format {
	switch {
	case flags.IDsOnly:
		return output.FormatIDs
	case flags.Count:
		return output.FormatCount
	case flags.Quiet:
		return output.FormatQuiet
	case flags.JSON:
		return output.FormatJSON
	case flags.Styled:
		return output.FormatStyled
	case flags.MD:
		return output.FormatMarkdown
	}
	return output.ParseFormat(cfg.Format)
}

// verbosity combines -v flags, the verbose config key and SLOTBOOK_DEBUG.
// The highest wins.
func verbosity(cfg *config.Config, flags GlobalFlags) int {
	level := flags.Verbose
	if cfg.Verbose != nil && *cfg.Verbose > level {
		level = *cfg.Verbose
	}
	if debugEnv := os.Getenv("SLOTBOOK_DEBUG"); debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if debugEnv == "true" {
			level = observability.TraceRequests
		}
	}
	return min(level, observability.TraceRequests)
}

func locale(cfg *config.Config) presenter.Locale {
	if cfg.Locale != "" {
		return presenter.NewLocale(cfg.Locale)
	}
	return presenter.DetectLocale()
}

// BusinessID returns the business in scope, or a usage error naming how to
// pick one.
func (a *App) BusinessID() (int64, error) {
	raw := a.Config.BusinessID
	if raw == "" {
		return 0, output.ErrUsageHint("No business selected",
			"Pass --business <id> or run: slotbook business use <id>")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, output.ErrUsage("Invalid business ID: " + raw)
	}
	return id, nil
}

// Now returns the current time in the configured time zone.
func (a *App) Now() time.Time {
	return time.Now().In(a.Location)
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.statsEnabled() {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary().Stats()))
	}
	if !a.hintsEnabled() {
		opts = append(opts, func(r *output.Response) { r.Breadcrumbs = nil })
	}
	return a.Output.OK(data, opts...)
}

// hintsEnabled is false only when hints is set to false in config.
func (a *App) hintsEnabled() bool {
	return a.Config == nil || a.Config.Hints == nil || *a.Config.Hints
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	// Machine-consumable modes keep stderr clean.
	if a.statsEnabled() && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		a.printStatsToStderr(&stats)
	}
	return nil
}

func (a *App) statsEnabled() bool {
	if a.Collector == nil {
		return false
	}
	if a.Flags.Stats {
		return true
	}
	return a.Config != nil && a.Config.Stats != nil && *a.Config.Stats
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
// Checks both flags and config-driven format settings.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// printStatsToStderr outputs a compact stats line to stderr.
func (a *App) printStatsToStderr(stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}

	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	parts = appendCount(parts, stats.TotalRequests, "request", "requests")
	parts = appendCount(parts, stats.Refreshes, "refresh", "refreshes")
	parts = appendCount(parts, stats.Replays, "replay", "replays")

	if stats.FailedOps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FailedOps))
	}

	fmt.Fprintf(a.stderr, "\nStats: %s\n", strings.Join(parts, " | "))
}

func appendCount(parts []string, n int, one, many string) []string {
	switch {
	case n == 1:
		return append(parts, "1 "+one)
	case n > 1:
		return append(parts, fmt.Sprintf("%d %s", n, many))
	}
	return parts
}

// IsInteractive returns true if the terminal supports interactive prompts.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return false
	}

	for _, f := range []*os.File{os.Stdin, os.Stdout} {
		fi, err := f.Stat()
		if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
			return false
		}
	}
	return true
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
