package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// NewServicesCmd creates the services command group.
func NewServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"service"},
		Short:   "Manage the services a business offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServicesList(cmd)
		},
	}

	cmd.AddCommand(newServicesListCmd(), newServicesAddCmd())
	return cmd
}

func newServicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServicesList(cmd)
		},
	}
}

func runServicesList(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	if err := requireLogin(app); err != nil {
		return err
	}
	biz, err := app.BusinessID()
	if err != nil {
		return err
	}

	services, err := app.Booking.Businesses().ListServices(cmd.Context(), biz)
	if err != nil {
		return err
	}
	return app.OK(services,
		output.WithSummary(fmt.Sprintf("%d services", len(services))),
		output.WithEntity("service"),
		output.WithContext("business_id", biz),
		output.WithBreadcrumbs(crumb("add", "slotbook services add --name <name> --duration <minutes> --price <amount>", "Add a service")),
	)
}

func newServicesAddCmd() *cobra.Command {
	var in booking.NewService

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a service",
		Example: `  slotbook services add --name Haircut --duration 30 --price 25.00`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireLogin(app); err != nil {
				return err
			}
			biz, err := app.BusinessID()
			if err != nil {
				return err
			}

			svc, err := app.Booking.Businesses().CreateService(cmd.Context(), biz, in)
			if err != nil {
				return err
			}
			return app.OK(svc,
				output.WithSummary(fmt.Sprintf("Added #%d %s (%d min, %s)", svc.ID, svc.Name, svc.Duration, svc.Price)),
				output.WithEntity("service"),
				output.WithBreadcrumbs(crumb("assign", fmt.Sprintf("slotbook staff update <id> --services %d", svc.ID), "Let a staff member offer it")),
			)
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Service name (required)")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().IntVar(&in.Duration, "duration", 0, "Length in minutes (required)")
	cmd.Flags().StringVar(&in.Price, "price", "", "Price as a decimal, e.g. 25.00 (required)")
	return cmd
}
