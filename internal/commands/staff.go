package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// NewStaffCmd creates the staff command group.
func NewStaffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff members",
		Long:  "List, add, update and remove the people customers can book.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaffList(cmd)
		},
	}

	cmd.AddCommand(
		newStaffListCmd(),
		newStaffShowCmd(),
		newStaffAddCmd(),
		newStaffUpdateCmd(),
		newStaffRemoveCmd(),
	)
	return cmd
}

func newStaffListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List staff members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaffList(cmd)
		},
	}
}

func runStaffList(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	if err := requireLogin(app); err != nil {
		return err
	}
	biz, err := app.BusinessID()
	if err != nil {
		return err
	}

	staff, err := app.Booking.Staff().List(cmd.Context(), biz)
	if err != nil {
		return err
	}

	return app.OK(staff,
		output.WithSummary(fmt.Sprintf("%d staff members", len(staff))),
		output.WithEntity("staff"),
		output.WithContext("business_id", biz),
		output.WithBreadcrumbs(
			crumb("add", "slotbook staff add --first-name <name>", "Add a staff member"),
			crumb("appointments", "slotbook appointments --staff <id> --date today", "Today's appointments for one person"),
		),
	)
}

func newStaffShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("staff", args[0])
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}
			st, err := app.Booking.Staff().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return app.OK(st,
				output.WithSummary(staffSummary(st)),
				output.WithEntity("staff"),
				output.WithBreadcrumbs(
					crumb("appointments", fmt.Sprintf("slotbook appointments --staff %d --date today", st.ID), "Today's appointments"),
					crumb("update", fmt.Sprintf("slotbook staff update %d --role <role>", st.ID), "Update details"),
				),
			)
		},
	}
}

func newStaffAddCmd() *cobra.Command {
	var in booking.NewStaff
	var services string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a staff member",
		Example: `  slotbook staff add --first-name Ada --last-name Lovelace --role stylist --services 3,4`,
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
			if services != "" {
				if in.Services, err = parseIDs("service", services); err != nil {
					return err
				}
			}

			st, err := app.Booking.Staff().Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return app.OK(st,
				output.WithSummary("Added "+staffSummary(st)),
				output.WithEntity("staff"),
			)
		},
	}
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name (required)")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone")
	cmd.Flags().StringVar(&in.Role, "role", "", "Role, e.g. stylist")
	cmd.Flags().StringVar(&in.Bio, "bio", "", "Short bio")
	cmd.Flags().StringVar(&services, "services", "", "Comma-separated service IDs this person offers")
	return cmd
}

func newStaffUpdateCmd() *cobra.Command {
	var firstName, lastName, email, phone, role, bio, services string
	var active bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a staff member",
		Long:  "Update a staff member. Only the flags given are changed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("staff", args[0])
			if err != nil {
				return err
			}

			u := booking.StaffUpdate{
				FirstName: changedString(cmd, "first-name", firstName),
				LastName:  changedString(cmd, "last-name", lastName),
				Email:     changedString(cmd, "email", email),
				Phone:     changedString(cmd, "phone", phone),
				Role:      changedString(cmd, "role", role),
				Bio:       changedString(cmd, "bio", bio),
			}
			if cmd.Flags().Changed("active") {
				u.IsActive = &active
			}
			if cmd.Flags().Changed("services") {
				ids, err := parseIDs("service", services)
				if err != nil {
					return err
				}
				if ids == nil {
					ids = []int64{}
				}
				u.Services = &ids
			}
			if u.Empty() {
				return output.ErrUsageHint("Nothing to update", "Pass at least one of --first-name, --last-name, --email, --phone, --role, --bio, --active, --services")
			}
			if err := requireLogin(app); err != nil {
				return err
			}

			st, err := app.Booking.Staff().Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			return app.OK(st, output.WithSummary("Updated "+staffSummary(st)), output.WithEntity("staff"))
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone")
	cmd.Flags().StringVar(&role, "role", "", "Role")
	cmd.Flags().StringVar(&bio, "bio", "", "Short bio")
	cmd.Flags().BoolVar(&active, "active", true, "Whether the person can be booked")
	cmd.Flags().StringVar(&services, "services", "", "Replace the offered services (comma-separated IDs, empty for none)")
	return cmd
}

func newStaffRemoveCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a staff member",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("staff", args[0])
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}
			if err := confirm(app, force, fmt.Sprintf("Remove staff member %d?", id)); err != nil {
				return err
			}
			if err := app.Booking.Staff().Delete(cmd.Context(), id); err != nil {
				return err
			}
			return app.OK(map[string]any{"id": id, "deleted": true},
				output.WithSummary(fmt.Sprintf("Removed staff member %d", id)))
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func staffSummary(st *models.Staff) string {
	name := strings.TrimSpace(st.FirstName + " " + st.LastName)
	s := fmt.Sprintf("#%d %s", st.ID, name)
	if st.Role != "" {
		s += " (" + st.Role + ")"
	}
	if !st.IsActive {
		s += " [inactive]"
	}
	return s
}
