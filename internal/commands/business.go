package commands

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/config"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/tui"
)

// NewBusinessCmd creates the business command group.
func NewBusinessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "business",
		Aliases: []string{"businesses", "biz"},
		Short:   "Manage your businesses",
		Long:    "List and configure the businesses you own, and choose the one other commands act on.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBusinessList(cmd)
		},
	}

	cmd.AddCommand(
		newBusinessListCmd(),
		newBusinessShowCmd(),
		newBusinessUseCmd(),
		newBusinessUpdateCmd(),
		newBusinessHoursCmd(),
		newBusinessSetupCmd(),
	)
	return cmd
}

func newBusinessListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your businesses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBusinessList(cmd)
		},
	}
}

func runBusinessList(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	if err := requireLogin(app); err != nil {
		return err
	}
	items, err := app.Booking.Businesses().ListMine(cmd.Context())
	if err != nil {
		return err
	}

	var crumbs []output.Breadcrumb
	switch {
	case len(items) == 0:
		crumbs = append(crumbs, crumb("setup", "slotbook business setup", "Set up your first business"))
	case app.Config.BusinessID == "":
		crumbs = append(crumbs, crumb("use", fmt.Sprintf("slotbook business use %d", items[0].ID), "Make it the default business"))
	}

	return app.OK(items,
		output.WithSummary(fmt.Sprintf("%d businesses", len(items))),
		output.WithEntity("business"),
		output.WithContext("current", app.Config.BusinessID),
		output.WithBreadcrumbs(crumbs...),
	)
}

// BusinessDetail is a business with its opening hours.
type BusinessDetail struct {
	*models.Business
	Hours []models.WorkingHours `json:"hours"`
}

func newBusinessShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a business and its opening hours",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := businessArg(app, args)
			if err != nil {
				return err
			}
			if err := requireLogin(app); err != nil {
				return err
			}

			b, err := app.Booking.Businesses().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			hours, err := app.Booking.Businesses().WorkingHours(cmd.Context(), id)
			if err != nil {
				return err
			}

			return app.OK(BusinessDetail{Business: b, Hours: hours},
				output.WithSummary(fmt.Sprintf("#%d %s (%s)", b.ID, b.Name, b.Category)),
				output.WithEntity("business"),
				output.WithBreadcrumbs(
					crumb("staff", fmt.Sprintf("slotbook staff --business %d", b.ID), "Staff members"),
					crumb("services", fmt.Sprintf("slotbook services --business %d", b.ID), "Services"),
					crumb("today", fmt.Sprintf("slotbook appointments --business %d --date today", b.ID), "Today's appointments"),
				),
			)
		},
	}
}

// businessArg reads an optional ID argument, falling back to business_id.
func businessArg(app *appctx.App, args []string) (int64, error) {
	if len(args) == 1 {
		return parseID("business", args[0])
	}
	return app.BusinessID()
}

func newBusinessUseCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "use <id|name>",
		Short: "Set the default business",
		Long:  "Save business_id to the global config, or to .slotbook/config.json with --local.",
		Example: `  slotbook business use 3
  slotbook business use "Fade Factory" --local`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := parseID("business", args[0])
			if err != nil {
				if !app.Auth.HasSession() {
					return err
				}
				if id, _, err = app.Names.ResolveBusiness(cmd.Context(), args[0]); err != nil {
					return err
				}
			}

			result := map[string]any{"business_id": id}
			summary := fmt.Sprintf("Now using business %d", id)
			if app.Auth.HasSession() {
				b, err := app.Booking.Businesses().Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				result["name"] = b.Name
				summary = fmt.Sprintf("Now using #%d %s", b.ID, b.Name)
			}

			path := config.GlobalConfigPath()
			scope := "global"
			if local {
				path, scope = config.LocalConfigPath(), "local"
			}
			if _, err := config.SetValue(path, "business_id", strconv.FormatInt(id, 10)); err != nil {
				return fmt.Errorf("saving business_id: %w", err)
			}
			result["scope"] = scope
			result["path"] = path

			return app.OK(result,
				output.WithSummary(summary),
				output.WithBreadcrumbs(crumb("today", "slotbook appointments --date today", "Today's appointments")),
			)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Save to .slotbook/config.json in this directory")
	return cmd
}

func newBusinessUpdateCmd() *cobra.Command {
	var f struct {
		name, category, description, phone, email, website, address, city, postal, country, timezone, currency string
	}

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update business details",
		Long:  "Update a business. Only the flags given are changed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := businessArg(app, args)
			if err != nil {
				return err
			}
			u := booking.BusinessUpdate{
				Name:        changedString(cmd, "name", f.name),
				Category:    changedString(cmd, "category", f.category),
				Description: changedString(cmd, "description", f.description),
				Phone:       changedString(cmd, "phone", f.phone),
				Email:       changedString(cmd, "email", f.email),
				Website:     changedString(cmd, "website", f.website),
				Address:     changedString(cmd, "address", f.address),
				City:        changedString(cmd, "city", f.city),
				PostalCode:  changedString(cmd, "postal-code", f.postal),
				Country:     changedString(cmd, "country", f.country),
				Timezone:    changedString(cmd, "time-zone", f.timezone),
				Currency:    changedString(cmd, "currency", f.currency),
			}
			if u.Category != nil && !contains(booking.Categories, *u.Category) {
				return output.ErrUsageHint("Unknown category: "+*u.Category, "Use one of: "+strings.Join(booking.Categories, ", "))
			}
			if err := requireLogin(app); err != nil {
				return err
			}

			b, err := app.Booking.Businesses().Update(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			return app.OK(b, output.WithSummary(fmt.Sprintf("Updated #%d %s", b.ID, b.Name)), output.WithEntity("business"))
		},
	}

	cmd.Flags().StringVar(&f.name, "name", "", "Name")
	cmd.Flags().StringVar(&f.category, "category", "", "Category ("+strings.Join(booking.Categories, ", ")+")")
	cmd.Flags().StringVar(&f.description, "description", "", "Description")
	cmd.Flags().StringVar(&f.phone, "phone", "", "Phone")
	cmd.Flags().StringVar(&f.email, "email", "", "Contact email")
	cmd.Flags().StringVar(&f.website, "website", "", "Website")
	cmd.Flags().StringVar(&f.address, "address", "", "Street address")
	cmd.Flags().StringVar(&f.city, "city", "", "City")
	cmd.Flags().StringVar(&f.postal, "postal-code", "", "Postal code")
	cmd.Flags().StringVar(&f.country, "country", "", "Country")
	cmd.Flags().StringVar(&f.timezone, "time-zone", "", "IANA time zone of the business")
	cmd.Flags().StringVar(&f.currency, "currency", "", "ISO 4217 currency code")
	return cmd
}

// weekdayIndex maps names and three-letter abbreviations to Monday-based indexes.
func weekdayIndex(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, day := range tui.Weekdays {
		full := strings.ToLower(day)
		if name == full || name == full[:3] {
			return i, true
		}
	}
	return 0, false
}

func newBusinessHoursCmd() *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:   "hours [id]",
		Short: "Show or change opening hours",
		Example: `  slotbook business hours
  slotbook business hours --set sat=10:00-14:00 --set sun=closed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			id, err := businessArg(app, args)
			if err != nil {
				return err
			}

			changes := make(map[int]models.WorkingHours, len(set))
			for _, s := range set {
				day, window, ok := strings.Cut(s, "=")
				idx, known := weekdayIndex(day)
				if !ok || !known {
					return output.ErrUsageHint("Invalid --set value: "+s, `Use "<day>=09:00-17:00" or "<day>=closed", e.g. mon=09:00-17:00`)
				}
				h, err := tui.ParseHours(idx, window)
				if err != nil {
					return output.ErrUsageHint("Invalid hours for "+tui.Weekdays[idx]+": "+window, err.Error())
				}
				changes[idx] = h
			}
			if err := requireLogin(app); err != nil {
				return err
			}

			hours, err := app.Booking.Businesses().WorkingHours(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				return app.OK(hours,
					output.WithSummary(hoursSummary(hours)),
					output.WithContext("business_id", id))
			}

			hours = mergeHours(hours, changes)
			saved, err := app.Booking.Businesses().SetWorkingHours(cmd.Context(), id, hours)
			if err != nil {
				return err
			}
			return app.OK(saved,
				output.WithSummary("Updated hours: "+hoursSummary(saved)),
				output.WithContext("business_id", id))
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "Change one day, e.g. mon=09:00-17:00 or sun=closed (repeatable)")
	return cmd
}

// mergeHours returns a full week with changes applied over current.
func mergeHours(current []models.WorkingHours, changes map[int]models.WorkingHours) []models.WorkingHours {
	week := make([]models.WorkingHours, 7)
	for d := range week {
		week[d] = models.WorkingHours{Weekday: d, Closed: true}
	}
	for _, h := range current {
		if h.Weekday >= 0 && h.Weekday < 7 {
			week[h.Weekday] = h
		}
	}
	for d, h := range changes {
		week[d] = h
	}
	return week
}

func hoursSummary(hours []models.WorkingHours) string {
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		if h.Weekday < 0 || h.Weekday >= len(tui.Weekdays) {
			continue
		}
		parts = append(parts, tui.Weekdays[h.Weekday][:3]+" "+tui.FormatHours(h))
	}
	return strings.Join(parts, ", ")
}

// setupFile is the YAML form of the onboarding wizard, for non-interactive setup.
type setupFile struct {
	Business struct {
		Name        string `yaml:"name"`
		Category    string `yaml:"category"`
		Description string `yaml:"description"`
		Phone       string `yaml:"phone"`
		Email       string `yaml:"email"`
		Website     string `yaml:"website"`
		Address     string `yaml:"address"`
		City        string `yaml:"city"`
		PostalCode  string `yaml:"postal_code"`
		Country     string `yaml:"country"`
		Timezone    string `yaml:"timezone"`
		Currency    string `yaml:"currency"`
	} `yaml:"business"`
	// Hours maps a weekday to "09:00-17:00" or "closed". Missing days keep
	// the default Monday to Friday 09:00-17:00.
	Hours    map[string]string `yaml:"hours"`
	Services []struct {
		Name        string `yaml:"name"`
		Duration    int    `yaml:"duration"`
		Price       string `yaml:"price"`
		Description string `yaml:"description"`
	} `yaml:"services"`
	Staff []struct {
		FirstName string   `yaml:"first_name"`
		LastName  string   `yaml:"last_name"`
		Email     string   `yaml:"email"`
		Role      string   `yaml:"role"`
		Services  []string `yaml:"services"`
	} `yaml:"staff"`
}

// loadSetupFile fills a wizard's draft from a YAML file.
func loadSetupFile(path string, w *booking.Wizard) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is given by the user
	if err != nil {
		return output.ErrUsage("Cannot read setup file: " + err.Error())
	}
	var f setupFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return output.ErrUsageHint("Invalid setup file: "+path, err.Error())
	}

	b := f.Business
	w.Draft.Business = models.Business{
		Name: b.Name, Category: b.Category, Description: b.Description,
		Phone: b.Phone, Email: b.Email, Website: b.Website,
		Address: b.Address, City: b.City, PostalCode: b.PostalCode, Country: b.Country,
		Timezone: b.Timezone, Currency: b.Currency,
	}
	for day, window := range f.Hours {
		idx, ok := weekdayIndex(day)
		if !ok {
			return output.ErrUsage("Unknown weekday in setup file: " + day)
		}
		h, err := tui.ParseHours(idx, window)
		if err != nil {
			return output.ErrUsageHint("Invalid hours for "+day+": "+window, err.Error())
		}
		w.Draft.Hours[idx] = h
	}
	for _, s := range f.Services {
		w.Draft.Services = append(w.Draft.Services, booking.NewService{
			Name: s.Name, Duration: s.Duration, Price: s.Price, Description: s.Description,
		})
	}
	for _, s := range f.Staff {
		w.Draft.Staff = append(w.Draft.Staff, booking.StaffDraft{
			FirstName: s.FirstName, LastName: s.LastName, Email: s.Email, Role: s.Role, ServiceNames: s.Services,
		})
	}

	// Walk to review so every step is validated in order.
	for w.Step() != booking.StepReview {
		if err := w.Next(); err != nil {
			return err
		}
	}
	return nil
}

func newBusinessSetupCmd() *cobra.Command {
	var file string
	var use bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Set up a new business",
		Long: `Create a business with its opening hours, services and staff.

In a terminal this runs an interactive wizard: Details, Location, Hours,
Services, Staff, then a review step where any earlier step can be edited.
With --file the same data is read from YAML.`,
		Example: `  slotbook business setup
  slotbook business setup --file shop.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireLogin(app); err != nil {
				return err
			}

			w := booking.NewWizard()
			interactive := app.IsInteractive()
			switch {
			case file != "":
				if err := loadSetupFile(file, w); err != nil {
					return err
				}
			case interactive:
				submit, err := tui.NewOnboarding(w, nil, cmd.ErrOrStderr()).Run()
				if err != nil {
					return err
				}
				if !submit {
					return output.ErrUsage("Setup canceled")
				}
			default:
				return output.ErrUsageHint("Setup needs a terminal", "Pass --file <setup.yaml> to set up non-interactively")
			}

			var res *booking.SubmitResult
			submit := func() error {
				var err error
				res, err = w.Submit(cmd.Context(), app.Booking)
				return err
			}
			var err error
			if interactive {
				err = tui.NewSpinner("Creating "+w.Draft.Business.Name, nil).
					WithOutput(cmd.ErrOrStderr()).
					RunSimple("Created "+w.Draft.Business.Name, submit)
			} else {
				err = submit()
			}
			if err != nil {
				return err
			}

			summary := fmt.Sprintf("Created #%d %s with %d services and %d staff",
				res.Business.ID, res.Business.Name, len(res.Services), len(res.Staff))
			opts := []output.ResponseOption{output.WithEntity("business")}
			if failErr := res.Err(); failErr != nil {
				summary += fmt.Sprintf(" (%d items failed)", len(res.Failures))
				opts = append(opts, output.WithMeta("errors", strings.Split(failErr.Error(), "\n")))
			}

			if use {
				if _, err := config.SetValue(config.GlobalConfigPath(), "business_id", strconv.FormatInt(res.Business.ID, 10)); err != nil {
					return fmt.Errorf("saving business_id: %w", err)
				}
				summary += "; now the default business"
			} else {
				opts = append(opts, output.WithBreadcrumbs(crumb("use", fmt.Sprintf("slotbook business use %d", res.Business.ID), "Make it the default business")))
			}

			return app.OK(res, append(opts, output.WithSummary(summary))...)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the business from a YAML file instead of prompting")
	cmd.Flags().BoolVar(&use, "use", false, "Make the new business the default")
	return cmd
}
