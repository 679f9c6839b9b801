package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/dateparse"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/session"
)

// appointmentsListFlags holds the flags for the appointments list command.
type appointmentsListFlags struct {
	staff    string
	service  string
	status   StatusValue
	search   string
	date     string
	order    string
	page     int
	limit    int
	all      bool
}

func (f *appointmentsListFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.staff, "staff", "", "Filter by staff member (ID, name or email)")
	cmd.Flags().StringVar(&f.service, "service", "", "Filter by service (ID or name)")
	cmd.Flags().VarP(&f.status, "status", "s", "Filter by status (comma-separated: pending, confirmed, completed, cancelled, no_show)")
	cmd.Flags().StringVar(&f.search, "search", "", "Match customer name or email")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", `Date or range ("today", "next week", "2026-03-02..2026-03-08")`)
	cmd.Flags().StringVar(&f.order, "order", "start_time", "Sort by start_time or -start_time")
	cmd.Flags().IntVar(&f.page, "page", 0, "Fetch a single page")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum appointments to fetch (default 500)")
	cmd.Flags().BoolVar(&f.all, "all", false, "Fetch every matching appointment up to --limit")
}

// filter builds the API filter; the returned range is zero without --date.
func (f *appointmentsListFlags) filter(ctx context.Context, app *appctx.App) (booking.AppointmentFilter, dateparse.Range, error) {
	biz, err := app.BusinessID()
	if err != nil {
		return booking.AppointmentFilter{}, dateparse.Range{}, err
	}
	staff, err := resolveStaff(ctx, app, biz, f.staff)
	if err != nil {
		return booking.AppointmentFilter{}, dateparse.Range{}, err
	}
	service, err := resolveService(ctx, app, biz, f.service)
	if err != nil {
		return booking.AppointmentFilter{}, dateparse.Range{}, err
	}
	filter := booking.AppointmentFilter{
		Business: biz,
		Staff:    staff,
		Service:  service,
		Statuses: f.status.Statuses(),
		Search:   f.search,
		Ordering: f.order,
		Page:     f.page,
	}
	var r dateparse.Range
	if f.date != "" {
		r, err = dateparse.ParseRange(f.date, app.Now())
		if err != nil {
			return booking.AppointmentFilter{}, dateparse.Range{}, output.ErrUsageHint(
				"Unrecognized date: "+f.date,
				`Use "today", "tomorrow", "this week", "next week", "+3", or "2026-03-02..2026-03-08"`)
		}
		filter.From, filter.To = r.Start, r.End
	}
	return filter, r, filter.Validate()
}

// NewAppointmentsCmd creates the appointments command group.
func NewAppointmentsCmd() *cobra.Command {
	var flags appointmentsListFlags

	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appointment", "appt"},
		Short:   "Manage appointments",
		Long:    "List, book, reschedule and move appointments through their lifecycle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppointmentsList(cmd, &flags)
		},
	}
	flags.register(cmd)

	cmd.AddCommand(
		newAppointmentsListCmd(),
		newAppointmentsShowCmd(),
		newAppointmentsCreateCmd(),
		newAppointmentsRescheduleCmd(),
		newAppointmentsStatusCmd("confirm", models.StatusConfirmed, "Confirm a pending appointment"),
		newAppointmentsStatusCmd("cancel", models.StatusCancelled, "Cancel an appointment"),
		newAppointmentsStatusCmd("complete", models.StatusCompleted, "Mark an appointment completed"),
		newAppointmentsStatusCmd("no-show", models.StatusNoShow, "Mark a customer as a no-show"),
		newAppointmentsDeleteCmd(),
		newAppointmentsWatchCmd(),
	)

	return cmd
}

func newAppointmentsListCmd() *cobra.Command {
	var flags appointmentsListFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List appointments",
		Example: `  slotbook appointments list --date today
  slotbook appointments list --date "next week" --status pending,confirmed
  slotbook appointments list --search smith --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppointmentsList(cmd, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runAppointmentsList(cmd *cobra.Command, flags *appointmentsListFlags) error {
	app := appctx.FromContext(cmd.Context())
	if err := requireLogin(app); err != nil {
		return err
	}

	filter, r, err := flags.filter(cmd.Context(), app)
	if err != nil {
		return err
	}

	var items []models.Appointment
	var total int
	truncated := false
	if flags.all || flags.page == 0 {
		items, truncated, err = app.Booking.Appointments().ListAll(cmd.Context(), filter, flags.limit)
		total = len(items)
	} else {
		var page *models.Page[models.Appointment]
		page, err = app.Booking.Appointments().List(cmd.Context(), filter)
		if page != nil {
			items, total = page.Results, page.Count
			truncated = page.NextURL() != ""
		}
	}
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("%d appointments", len(items))
	if len(items) == 1 {
		summary = "1 appointment"
	}
	if !r.Start.IsZero() {
		summary += " for " + r.String()
	}
	if truncated {
		summary += fmt.Sprintf(" (of %d; more available)", max(total, len(items)))
	}

	opts := []output.ResponseOption{
		output.WithSummary(summary),
		output.WithEntity("appointment"),
		output.WithContext("business_id", filter.Business),
		output.WithBreadcrumbs(
			crumb("show", "slotbook appointments show <id>", "Show an appointment"),
			crumb("create", "slotbook appointments create --service <id> --at <time> --customer <name>", "Book an appointment"),
		),
	}
	if !r.Start.IsZero() {
		opts = append(opts, output.WithContext("range", r.String()))
	}
	if truncated {
		opts = append(opts, output.WithMeta("truncated", true))
	}
	return app.OK(items, opts...)
}

func newAppointmentsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("appointment", args[0])
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}

			a, err := app.Booking.Appointments().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return app.OK(a,
				output.WithSummary(appointmentSummary(a, app.Location)),
				output.WithEntity("appointment"),
				output.WithBreadcrumbs(appointmentBreadcrumbs(a)...),
			)
		},
	}
}

func newAppointmentsCreateCmd() *cobra.Command {
	var in booking.NewAppointment
	var at, service, staff string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book an appointment",
		Example: `  slotbook appointments create --service 3 --at "tomorrow 14:30" --customer "Ada Lovelace"
  slotbook appointments create --service Haircut --staff "Sam" --at "2026-03-02 09:00" --customer Ada --email ada@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireLogin(app); err != nil {
				return err
			}

			biz, err := app.BusinessID()
			if err != nil {
				return err
			}
			in.Business = biz
			if in.Service, err = resolveService(cmd.Context(), app, biz, service); err != nil {
				return err
			}
			if in.Staff, err = resolveStaff(cmd.Context(), app, biz, staff); err != nil {
				return err
			}
			if at != "" {
				if in.StartTime, err = parseWhen(at, app.Now()); err != nil {
					return err
				}
			}

			a, err := app.Booking.Appointments().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return app.OK(a,
				output.WithSummary("Booked "+appointmentSummary(a, app.Location)),
				output.WithEntity("appointment"),
				output.WithBreadcrumbs(appointmentBreadcrumbs(a)...),
			)
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "Service ID or name (required)")
	cmd.Flags().StringVar(&staff, "staff", "", "Staff ID, name or email (any available when omitted)")
	cmd.Flags().StringVar(&at, "at", "", `Start time ("2026-03-02 14:30", "tomorrow 9:30") (required)`)
	cmd.Flags().StringVar(&in.CustomerName, "customer", "", "Customer name (required)")
	cmd.Flags().StringVar(&in.CustomerEmail, "email", "", "Customer email")
	cmd.Flags().StringVar(&in.CustomerPhone, "phone", "", "Customer phone")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Notes for the staff member")
	cmd.Flags().StringVar(&in.IdempotencyKey, "idempotency-key", "", "Reuse a key to make retries safe (generated when omitted)")

	return cmd
}

func newAppointmentsRescheduleCmd() *cobra.Command {
	var to, staff string

	cmd := &cobra.Command{
		Use:     "reschedule <id>",
		Aliases: []string{"move"},
		Short:   "Move an appointment to a new time",
		Args:    cobra.ExactArgs(1),
		Example: `  slotbook appointments reschedule 42 --to "friday 10:00"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("appointment", args[0])
			if err != nil {
				return err
			}
			if to == "" {
				return output.ErrUsageHint("A new start time is required", `Pass --to "tomorrow 14:30"`)
			}
			start, err := parseWhen(to, app.Now())
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}

			var staffID int64
			if staff != "" {
				biz, err := app.BusinessID()
				if err != nil {
					return err
				}
				if staffID, err = resolveStaff(cmd.Context(), app, biz, staff); err != nil {
					return err
				}
			}

			a, err := app.Booking.Appointments().Reschedule(cmd.Context(), id, start, staffID)
			if err != nil {
				return err
			}
			return app.OK(a,
				output.WithSummary("Rescheduled "+appointmentSummary(a, app.Location)),
				output.WithEntity("appointment"),
				output.WithBreadcrumbs(appointmentBreadcrumbs(a)...),
			)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "New start time (required)")
	cmd.Flags().StringVar(&staff, "staff", "", "Reassign to another staff member (ID, name or email)")
	return cmd
}

// newAppointmentsStatusCmd builds one lifecycle command (confirm, cancel, ...).
func newAppointmentsStatusCmd(use, status, short string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Long:  short + ". Several IDs may be given, separated by spaces or commas.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			ids, err := parseIDs("appointment", strings.Join(args, ","))
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}
			if status == models.StatusCancelled {
				if err := confirm(app, force, fmt.Sprintf("Cancel %s?", pluralIDs("appointment", ids))); err != nil {
					return err
				}
			}

			var updated []models.Appointment
			var failed []string
			var firstErr error
			for _, id := range ids {
				a, err := app.Booking.Appointments().SetStatus(cmd.Context(), id, status)
				if err != nil {
					if output.IsUnauthorized(err) {
						return err
					}
					app.Logger.Debug("status change failed", "id", id, "status", status, "error", err)
					failed = append(failed, strconv.FormatInt(id, 10))
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				updated = append(updated, *a)
			}

			if len(updated) == 0 && firstErr != nil {
				return firstErr
			}

			label := strings.ReplaceAll(status, "_", "-")
			summary := fmt.Sprintf("Marked %d %s", len(updated), label)
			if len(updated) == 1 {
				summary = "Marked " + label + ": " + appointmentSummary(&updated[0], app.Location)
			}
			if len(failed) > 0 {
				summary += " (failed: " + strings.Join(failed, ", ") + ")"
			}
			opts := []output.ResponseOption{output.WithSummary(summary), output.WithEntity("appointment")}
			if len(failed) > 0 {
				opts = append(opts, output.WithMeta("failed", failed))
			}
			if len(updated) == 1 {
				return app.OK(updated[0], opts...)
			}
			return app.OK(updated, opts...)
		},
	}
	if status == models.StatusCancelled {
		cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	}
	return cmd
}

func newAppointmentsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an appointment",
		Long:    "Delete an appointment permanently. Prefer cancel to keep the history.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("appointment", args[0])
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}
			if err := confirm(app, force, fmt.Sprintf("Delete appointment %d?", id)); err != nil {
				return err
			}
			if err := app.Booking.Appointments().Delete(cmd.Context(), id); err != nil {
				return err
			}
			return app.OK(map[string]any{"id": id, "deleted": true},
				output.WithSummary(fmt.Sprintf("Deleted appointment %d", id)))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newAppointmentsWatchCmd() *cobra.Command {
	var flags appointmentsListFlags
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow appointments as they change",
		Long: `Poll appointments and print each batch of new, changed or removed
appointments. Stops with an auth error when the session ends, including a
logout from another terminal.`,
		Example: `  slotbook appointments watch --date today --interval 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if interval < time.Second {
				return output.ErrUsage("--interval must be at least 1s")
			}
			if err := requireLogin(app); err != nil {
				return err
			}
			return runAppointmentsWatch(cmd, app, &flags, interval)
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Time between polls")
	return cmd
}

func runAppointmentsWatch(cmd *cobra.Command, app *appctx.App, flags *appointmentsListFlags, interval time.Duration) error {
	ctx := cmd.Context()

	watcher, err := session.NewWatcher(app.Auth.Marker(), app.State, app.Config.Origin(), app.Logger)
	if err != nil {
		app.Logger.Debug("session watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
		go func() { _ = watcher.Run(ctx) }()
	}

	ended := make(chan struct{})
	var once sync.Once
	unsubscribe := app.State.Subscribe(func(authenticated bool) {
		if !authenticated {
			once.Do(func() { close(ended) })
		}
	})
	defer unsubscribe()

	seen := map[int64]models.Appointment{}
	first := true
	poll := func() error {
		// A rolling phrase like "today" moves with the clock.
		filter, _, err := flags.filter(ctx, app)
		if err != nil {
			return err
		}
		items, _, err := app.Booking.Appointments().ListAll(ctx, filter, flags.limit)
		if err != nil {
			return err
		}
		changes := diffAppointments(seen, items)
		if len(changes) == 0 && !first {
			return nil
		}
		summary := fmt.Sprintf("%d changes at %s", len(changes), app.Now().Format("15:04:05"))
		if first {
			summary = fmt.Sprintf("Watching %d appointments", len(items))
			first = false
		}
		return app.OK(changes, output.WithSummary(summary), output.WithEntity("appointment"))
	}

	if err := poll(); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			return output.ErrAuth("Session ended")
		case <-ticker.C:
			if err := poll(); err != nil {
				if output.IsUnauthorized(err) {
					return output.ErrAuth("Session ended")
				}
				return err
			}
		}
	}
}

// AppointmentChange is one entry of a watch batch.
type AppointmentChange struct {
	Change      string             `json:"change"` // added, updated, removed
	Appointment models.Appointment `json:"appointment"`
}

// diffAppointments compares a fresh listing with seen and updates seen in
// place. Removed appointments are reported with their last known state.
func diffAppointments(seen map[int64]models.Appointment, current []models.Appointment) []AppointmentChange {
	var changes []AppointmentChange
	present := make(map[int64]bool, len(current))
	for _, a := range current {
		present[a.ID] = true
		prev, ok := seen[a.ID]
		switch {
		case !ok:
			changes = append(changes, AppointmentChange{Change: "added", Appointment: a})
		case prev.Status != a.Status || !prev.StartTime.Equal(a.StartTime) || staffID(prev) != staffID(a):
			changes = append(changes, AppointmentChange{Change: "updated", Appointment: a})
		}
		seen[a.ID] = a
	}
	for id, a := range seen {
		if !present[id] {
			changes = append(changes, AppointmentChange{Change: "removed", Appointment: a})
			delete(seen, id)
		}
	}
	return changes
}

func staffID(a models.Appointment) int64 {
	if a.Staff == nil {
		return 0
	}
	return a.Staff.ID
}

// appointmentSummary is "#42 Haircut with Ada, Mon 2 Mar 14:30 (confirmed)".
func appointmentSummary(a *models.Appointment, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d", a.ID)
	if a.Service != nil && a.Service.Name != "" {
		b.WriteString(" " + a.Service.Name)
	}
	if name := a.Customer.Name(); name != "" {
		b.WriteString(" for " + name)
	}
	if !a.StartTime.IsZero() {
		b.WriteString(", " + a.StartTime.In(loc).Format("Mon 2 Jan 15:04"))
	}
	if a.Status != "" {
		b.WriteString(" (" + a.Status + ")")
	}
	return b.String()
}

func appointmentBreadcrumbs(a *models.Appointment) []output.Breadcrumb {
	var crumbs []output.Breadcrumb
	for _, next := range booking.NextStatuses(a.Status) {
		verb := strings.ReplaceAll(next, "_", "-")
		switch next {
		case models.StatusConfirmed:
			verb = "confirm"
		case models.StatusCancelled:
			verb = "cancel"
		case models.StatusCompleted:
			verb = "complete"
		}
		crumbs = append(crumbs, crumb(verb, fmt.Sprintf("slotbook appointments %s %d", verb, a.ID), "Mark " + strings.ReplaceAll(next, "_", "-")))
	}
	if len(booking.NextStatuses(a.Status)) > 0 {
		crumbs = append(crumbs, crumb("reschedule", fmt.Sprintf("slotbook appointments reschedule %d --to <time>", a.ID), "Move to another time"))
	}
	return crumbs
}

func pluralIDs(kind string, ids []int64) string {
	if len(ids) == 1 {
		return fmt.Sprintf("%s %d", kind, ids[0])
	}
	return fmt.Sprintf("%d %ss", len(ids), kind)
}
