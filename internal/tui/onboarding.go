package tui

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// Weekdays names the working-hours rows; index 0 is Monday.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Navigation choices offered at the bottom of each step.
const (
	navNext   = "next"
	navBack   = "back"
	navCancel = "cancel"
	navSubmit = "submit"
	navEdit   = "edit:"
)

// Onboarding drives a booking.Wizard with one huh form per step.
type Onboarding struct {
	wizard *booking.Wizard
	styles *Styles
	out    io.Writer

	// run shows a form; tests replace it to fill fields without a terminal.
	run func(*huh.Form) error
}

// NewOnboarding creates a runner writing step headers and errors to out.
func NewOnboarding(w *booking.Wizard, styles *Styles, out io.Writer) *Onboarding {
	if styles == nil {
		styles = NewStylesWithTheme(ResolveTheme())
	}
	return &Onboarding{
		wizard: w,
		styles: styles,
		out:    out,
		run:    func(f *huh.Form) error { return f.Run() },
	}
}

// Run walks the wizard until the user submits from the review step. It
// reports false when the user cancels.
func (o *Onboarding) Run() (bool, error) {
	for {
		p := o.wizard.Progress()
		fmt.Fprintln(o.out, o.styles.RenderProgress(p.Index, p.Total, p.Step, 30))

		step := o.wizard.Step()
		if step == booking.StepReview {
			done, submit, err := o.review()
			if err != nil || done {
				return submit, err
			}
			continue
		}

		nav := navNext
		st := newStepState(&o.wizard.Draft)
		form := o.stepForm(step, st, &nav)
		if err := o.run(form); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, err
		}
		if err := st.apply(step, &o.wizard.Draft); err != nil {
			o.printError(err)
			continue
		}

		switch nav {
		case navCancel:
			return false, nil
		case navBack:
			o.wizard.Back()
		default:
			if err := o.wizard.Next(); err != nil {
				o.printError(err)
			}
		}
	}
}

func (o *Onboarding) review() (done, submit bool, err error) {
	fmt.Fprintln(o.out, o.styles.Box.Render(ReviewSummary(&o.wizard.Draft)))

	if err := o.wizard.Validate(booking.StepReview); err != nil {
		o.printError(err)
	}

	choice := navSubmit
	opts := []huh.Option[string]{huh.NewOption("Create the business", navSubmit)}
	for _, s := range booking.Steps[:booking.StepReview] {
		opts = append(opts, huh.NewOption("Edit "+strings.ToLower(s.String()), navEdit+strconv.Itoa(int(s))))
	}
	opts = append(opts, huh.NewOption("Cancel", navCancel))

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().Title("Ready?").Options(opts...).Value(&choice),
	))
	if err := o.run(form); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return true, false, nil
		}
		return true, false, err
	}

	switch {
	case choice == navCancel:
		return true, false, nil
	case strings.HasPrefix(choice, navEdit):
		n, _ := strconv.Atoi(strings.TrimPrefix(choice, navEdit))
		if err := o.wizard.Goto(booking.Step(n)); err != nil {
			o.printError(err)
		}
		return false, false, nil
	}
	if err := o.wizard.Validate(booking.StepReview); err != nil {
		return false, false, nil
	}
	return true, true, nil
}

func (o *Onboarding) printError(err error) {
	e := output.AsError(err)
	msg := e.Message
	if e.Hint != "" {
		msg += "\n  " + e.Hint
	}
	fmt.Fprintln(o.out, o.styles.Error.Render("✗ "+msg))
}

// stepState holds text buffers for steps whose fields are not plain strings.
type stepState struct {
	hours    []string
	services string
	staff    string
}

func newStepState(d *booking.Draft) *stepState {
	st := &stepState{
		hours:    make([]string, len(Weekdays)),
		services: FormatServiceLines(d.Services),
		staff:    FormatStaffLines(d.Staff),
	}
	for _, h := range d.Hours {
		if h.Weekday >= 0 && h.Weekday < len(st.hours) {
			st.hours[h.Weekday] = FormatHours(h)
		}
	}
	return st
}

func (st *stepState) apply(step booking.Step, d *booking.Draft) error {
	switch step {
	case booking.StepHours:
		hours := make([]models.WorkingHours, 0, len(st.hours))
		for day, raw := range st.hours {
			h, err := ParseHours(day, raw)
			if err != nil {
				return output.ErrUsage(Weekdays[day] + ": " + err.Error())
			}
			hours = append(hours, h)
		}
		d.Hours = hours
	case booking.StepServices:
		services, err := ParseServiceLines(st.services)
		if err != nil {
			return output.ErrUsage(err.Error())
		}
		d.Services = services
	case booking.StepStaff:
		staff, err := ParseStaffLines(st.staff)
		if err != nil {
			return output.ErrUsage(err.Error())
		}
		d.Staff = staff
	}
	return nil
}

func (o *Onboarding) stepForm(step booking.Step, st *stepState, nav *string) *huh.Form {
	d := &o.wizard.Draft
	var fields []huh.Field

	switch step {
	case booking.StepDetails:
		categories := make([]huh.Option[string], len(booking.Categories))
		for i, c := range booking.Categories {
			categories[i] = huh.NewOption(strings.ReplaceAll(c, "_", " "), c)
		}
		fields = append(fields,
			huh.NewInput().Title("Business name").Value(&d.Business.Name).Validate(required),
			huh.NewSelect[string]().Title("Category").Options(categories...).Value(&d.Business.Category),
			huh.NewText().Title("Description").Value(&d.Business.Description),
			huh.NewInput().Title("Phone").Value(&d.Business.Phone),
			huh.NewInput().Title("Email").Value(&d.Business.Email),
			huh.NewInput().Title("Website").Value(&d.Business.Website),
		)
	case booking.StepLocation:
		fields = append(fields,
			huh.NewInput().Title("Street address").Value(&d.Business.Address).Validate(required),
			huh.NewInput().Title("City").Value(&d.Business.City).Validate(required),
			huh.NewInput().Title("Postal code").Value(&d.Business.PostalCode),
			huh.NewInput().Title("Country").Value(&d.Business.Country).Validate(required),
			huh.NewInput().Title("Time zone").Placeholder("Europe/Berlin").Value(&d.Business.Timezone),
			huh.NewInput().Title("Currency").Placeholder("EUR").Value(&d.Business.Currency),
		)
	case booking.StepHours:
		for day, name := range Weekdays {
			fields = append(fields, huh.NewInput().
				Title(name).
				Placeholder("09:00-17:00 or closed").
				Value(&st.hours[day]).
				Validate(func(s string) error {
					_, err := ParseHours(day, s)
					return err
				}))
		}
	case booking.StepServices:
		fields = append(fields, huh.NewText().
			Title("Services").
			Description("One per line: name | minutes | price | description").
			Lines(6).
			Value(&st.services).
			Validate(func(s string) error {
				_, err := ParseServiceLines(s)
				return err
			}))
	case booking.StepStaff:
		fields = append(fields, huh.NewText().
			Title("Staff").
			Description("One per line: first last | email | role | service, service").
			Lines(6).
			Value(&st.staff).
			Validate(func(s string) error {
				_, err := ParseStaffLines(s)
				return err
			}))
	}

	navOpts := []huh.Option[string]{huh.NewOption("Continue", navNext)}
	if step > booking.StepDetails {
		navOpts = append(navOpts, huh.NewOption("Back", navBack))
	}
	navOpts = append(navOpts, huh.NewOption("Cancel", navCancel))
	fields = append(fields, huh.NewSelect[string]().Options(navOpts...).Value(nav))

	return huh.NewForm(huh.NewGroup(fields...).Title(step.String()))
}

// FormatHours renders one day as "09:00-17:00" or "closed".
func FormatHours(h models.WorkingHours) string {
	if h.Closed {
		return "closed"
	}
	return h.Opens + "-" + h.Closes
}

// ParseHours reads "HH:MM-HH:MM" or "closed" (empty means closed).
func ParseHours(weekday int, raw string) (models.WorkingHours, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "closed" {
		return models.WorkingHours{Weekday: weekday, Closed: true}, nil
	}
	opens, closes, ok := strings.Cut(raw, "-")
	if !ok {
		return models.WorkingHours{}, errors.New(`use "09:00-17:00" or "closed"`)
	}
	h := models.WorkingHours{Weekday: weekday, Opens: strings.TrimSpace(opens), Closes: strings.TrimSpace(closes)}
	if err := booking.ValidateWorkingHours([]models.WorkingHours{h}); err != nil {
		return models.WorkingHours{}, errors.New(output.AsError(err).Hint)
	}
	return h, nil
}

// splitLine splits a "a | b | c" line into n trimmed fields, padding with
// empty strings.
func splitLine(line string, n int) []string {
	parts := strings.SplitN(line, "|", n)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

func nonEmptyLines(text string) []string {
	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseServiceLines reads "name | minutes | price | description" lines.
func ParseServiceLines(text string) ([]booking.NewService, error) {
	var out []booking.NewService
	for i, line := range nonEmptyLines(text) {
		f := splitLine(line, 4)
		mins, err := strconv.Atoi(f[1])
		if err != nil || mins <= 0 {
			return nil, fmt.Errorf("line %d: duration must be a number of minutes", i+1)
		}
		if _, err := strconv.ParseFloat(f[2], 64); err != nil {
			return nil, fmt.Errorf("line %d: price must be a number", i+1)
		}
		out = append(out, booking.NewService{Name: f[0], Duration: mins, Price: f[2], Description: f[3]})
	}
	return out, nil
}

// FormatServiceLines is the inverse of ParseServiceLines.
func FormatServiceLines(services []booking.NewService) string {
	lines := make([]string, len(services))
	for i, s := range services {
		line := fmt.Sprintf("%s | %d | %s", s.Name, s.Duration, s.Price)
		if s.Description != "" {
			line += " | " + s.Description
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// ParseStaffLines reads "first last | email | role | service, service" lines.
func ParseStaffLines(text string) ([]booking.StaffDraft, error) {
	var out []booking.StaffDraft
	for i, line := range nonEmptyLines(text) {
		f := splitLine(line, 4)
		first, last, _ := strings.Cut(f[0], " ")
		if first == "" {
			return nil, fmt.Errorf("line %d: name is required", i+1)
		}
		if f[1] != "" && !strings.Contains(f[1], "@") {
			return nil, fmt.Errorf("line %d: invalid email %q", i+1, f[1])
		}
		sd := booking.StaffDraft{FirstName: first, LastName: strings.TrimSpace(last), Email: f[1], Role: f[2]}
		for name := range strings.SplitSeq(f[3], ",") {
			if name = strings.TrimSpace(name); name != "" {
				sd.ServiceNames = append(sd.ServiceNames, name)
			}
		}
		out = append(out, sd)
	}
	return out, nil
}

// FormatStaffLines is the inverse of ParseStaffLines.
func FormatStaffLines(staff []booking.StaffDraft) string {
	lines := make([]string, len(staff))
	for i, s := range staff {
		name := strings.TrimSpace(s.FirstName + " " + s.LastName)
		lines[i] = fmt.Sprintf("%s | %s | %s | %s", name, s.Email, s.Role, strings.Join(s.ServiceNames, ", "))
	}
	return strings.Join(lines, "\n")
}

// ReviewSummary renders the draft for the review step.
func ReviewSummary(d *booking.Draft) string {
	var b strings.Builder
	biz := d.Business
	fmt.Fprintf(&b, "%s (%s)\n", biz.Name, strings.ReplaceAll(biz.Category, "_", " "))
	loc := strings.Join(nonEmpty(biz.Address, biz.PostalCode+" "+biz.City, biz.Country), ", ")
	if loc != "" {
		fmt.Fprintf(&b, "%s\n", loc)
	}

	b.WriteString("\nHours\n")
	for _, h := range d.Hours {
		if h.Weekday >= 0 && h.Weekday < len(Weekdays) {
			fmt.Fprintf(&b, "  %-10s %s\n", Weekdays[h.Weekday], FormatHours(h))
		}
	}

	fmt.Fprintf(&b, "\nServices (%d)\n", len(d.Services))
	for _, s := range d.Services {
		fmt.Fprintf(&b, "  %s, %d min, %s\n", s.Name, s.Duration, s.Price)
	}

	fmt.Fprintf(&b, "\nStaff (%d)\n", len(d.Staff))
	for _, s := range d.Staff {
		line := strings.TrimSpace(s.FirstName + " " + s.LastName)
		if len(s.ServiceNames) > 0 {
			line += ": " + strings.Join(s.ServiceNames, ", ")
		}
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
