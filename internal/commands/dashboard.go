package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/dateparse"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// Dashboard is a day at a glance for one business.
type Dashboard struct {
	Business     *models.Business     `json:"business"`
	Date         string               `json:"date"`
	ByStatus     map[string]int       `json:"by_status"`
	Next         *models.Appointment  `json:"next,omitempty"`
	Appointments []models.Appointment `json:"appointments"`
	ActiveStaff  int                  `json:"active_staff"`
	Staff        []models.Staff       `json:"staff"`
	Services     []models.Service     `json:"services"`
}

// NewDashboardCmd creates the dashboard command.
func NewDashboardCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"today"},
		Short:   "Show the day at a glance",
		Long:    "Show a business, its appointments for the day, staff and services. The four are fetched concurrently.",
		Example: `  slotbook dashboard
  slotbook dashboard --date tomorrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireLogin(app); err != nil {
				return err
			}
			biz, err := app.BusinessID()
			if err != nil {
				return err
			}
			now := app.Now()
			r, err := dateparse.ParseRange(date, now)
			if err != nil {
				return output.ErrUsage("Unrecognized date: " + date)
			}

			d, err := loadDashboard(cmd, app, biz, r)
			if err != nil {
				return err
			}
			for i := range d.Appointments {
				a := &d.Appointments[i]
				if a.StartTime.After(now) && (a.Status == models.StatusPending || a.Status == models.StatusConfirmed) {
					d.Next = a
					break
				}
			}

			return app.OK(d,
				output.WithSummary(dashboardSummary(d)),
				output.WithBreadcrumbs(
					crumb("appointments", "slotbook appointments --date " + r.String(), "List these appointments"),
					crumb("watch", "slotbook appointments watch --date today", "Follow changes"),
				),
			)
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "today", "Day or range to show")
	return cmd
}

func loadDashboard(cmd *cobra.Command, app *appctx.App, biz int64, r dateparse.Range) (*Dashboard, error) {
	d := &Dashboard{Date: r.String(), ByStatus: map[string]int{}}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		b, err := app.Booking.Businesses().Get(ctx, biz)
		d.Business = b
		return err
	})
	g.Go(func() error {
		items, _, err := app.Booking.Appointments().ListAll(ctx, booking.AppointmentFilter{
			Business: biz,
			From:     r.Start,
			To:       r.End,
			Ordering: "start_time",
		}, 0)
		d.Appointments = items
		return err
	})
	g.Go(func() error {
		staff, err := app.Booking.Staff().List(ctx, biz)
		d.Staff = staff
		return err
	})
	g.Go(func() error {
		services, err := app.Booking.Businesses().ListServices(ctx, biz)
		d.Services = services
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, a := range d.Appointments {
		d.ByStatus[a.Status]++
	}
	for _, s := range d.Staff {
		if s.IsActive {
			d.ActiveStaff++
		}
	}
	return d, nil
}

func dashboardSummary(d *Dashboard) string {
	var b strings.Builder
	if d.Business != nil {
		b.WriteString(d.Business.Name + ", ")
	}
	fmt.Fprintf(&b, "%s: %d appointments", d.Date, len(d.Appointments))
	var parts []string
	for _, s := range models.Statuses {
		if n := d.ByStatus[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ReplaceAll(s, "_", "-")))
		}
	}
	if len(parts) > 0 {
		b.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	fmt.Fprintf(&b, ", %d staff active, %d services", d.ActiveStaff, len(d.Services))
	return b.String()
}
