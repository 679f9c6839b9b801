package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// Step is one page of the business onboarding wizard.
type Step int

const (
	StepDetails Step = iota
	StepLocation
	StepHours
	StepServices
	StepStaff
	StepReview
)

// Steps lists the wizard pages in order.
var Steps = []Step{StepDetails, StepLocation, StepHours, StepServices, StepStaff, StepReview}

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "Details"
	case StepLocation:
		return "Location"
	case StepHours:
		return "Hours"
	case StepServices:
		return "Services"
	case StepStaff:
		return "Staff"
	case StepReview:
		return "Review"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// StaffDraft is a staff member entered during onboarding. Services are
// referenced by name because they do not have IDs until submitted.
type StaffDraft struct {
	FirstName    string
	LastName     string
	Email        string
	Role         string
	ServiceNames []string
}

// Draft is everything the wizard collects.
type Draft struct {
	Business models.Business
	Hours    []models.WorkingHours
	Services []NewService
	Staff    []StaffDraft
}

// DefaultHours is Monday to Friday 09:00-17:00, closed on weekends.
func DefaultHours() []models.WorkingHours {
	hours := make([]models.WorkingHours, 7)
	for d := range hours {
		hours[d] = models.WorkingHours{Weekday: d, Opens: "09:00", Closes: "17:00", Closed: d >= 5}
	}
	return hours
}

// Wizard is the onboarding state machine. Next only advances past a step
// whose data validates; Goto may only revisit steps already reached.
type Wizard struct {
	Draft Draft

	step    Step
	reached Step
}

// NewWizard starts at Details with default opening hours.
func NewWizard() *Wizard {
	return &Wizard{Draft: Draft{Hours: DefaultHours()}}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	return w.step
}

// Next validates the current step and moves to the following one.
func (w *Wizard) Next() error {
	if w.step == StepReview {
		return output.ErrUsage("Already at the review step; submit to finish")
	}
	if err := w.Validate(w.step); err != nil {
		return err
	}
	w.step++
	w.reached = max(w.reached, w.step)
	return nil
}

// Back moves to the previous step. It reports false on the first step.
func (w *Wizard) Back() bool {
	if w.step == StepDetails {
		return false
	}
	w.step--
	return true
}

// Goto jumps to a step already reached.
func (w *Wizard) Goto(s Step) error {
	if s < StepDetails || s > StepReview {
		return output.ErrUsage(fmt.Sprintf("Unknown step %d", int(s)))
	}
	if s > w.reached {
		return output.ErrUsageHint("Cannot skip ahead to "+s.String(), "Complete "+w.step.String()+" first")
	}
	w.step = s
	return nil
}

// Progress describes how far through the wizard the user is.
type Progress struct {
	Step    string `json:"step"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
}

// Progress returns the position of the current step.
func (w *Wizard) Progress() Progress {
	idx := int(w.step) + 1
	return Progress{
		Step:    w.step.String(),
		Index:   idx,
		Total:   len(Steps),
		Percent: idx * 100 / len(Steps),
	}
}

// Validate checks the data collected by one step.
func (w *Wizard) Validate(s Step) error {
	fields := map[string][]string{}
	add := func(key, msg string) { fields[key] = append(fields[key], msg) }
	d := &w.Draft

	switch s {
	case StepDetails:
		if strings.TrimSpace(d.Business.Name) == "" {
			add("name", "This field is required.")
		}
		if !slices.Contains(Categories, d.Business.Category) {
			add("category", "Choose one of: "+strings.Join(Categories, ", ")+".")
		}
		if d.Business.Email != "" && !strings.Contains(d.Business.Email, "@") {
			add("email", "Enter a valid email address.")
		}
	case StepLocation:
		if strings.TrimSpace(d.Business.Address) == "" {
			add("address", "This field is required.")
		}
		if strings.TrimSpace(d.Business.City) == "" {
			add("city", "This field is required.")
		}
		if strings.TrimSpace(d.Business.Country) == "" {
			add("country", "This field is required.")
		}
		if tz := d.Business.Timezone; tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				add("timezone", "Unknown time zone.")
			}
		}
	case StepHours:
		if err := ValidateWorkingHours(d.Hours); err != nil {
			return err
		}
		if !slices.ContainsFunc(d.Hours, func(h models.WorkingHours) bool { return !h.Closed }) {
			add("hours", "Open at least one day a week.")
		}
	case StepServices:
		if len(d.Services) == 0 {
			add("services", "Add at least one service.")
		}
		seen := map[string]bool{}
		for i, svc := range d.Services {
			key := fmt.Sprintf("services.%d", i)
			if err := svc.Validate(); err != nil {
				for f, msgs := range output.AsError(err).Fields {
					fields[key+"."+f] = msgs
				}
			}
			name := strings.ToLower(strings.TrimSpace(svc.Name))
			if name != "" && seen[name] {
				add(key+".name", "Duplicate service name.")
			}
			seen[name] = true
		}
	case StepStaff:
		for i, st := range d.Staff {
			key := fmt.Sprintf("staff.%d", i)
			if strings.TrimSpace(st.FirstName) == "" {
				add(key+".first_name", "This field is required.")
			}
			for _, n := range st.ServiceNames {
				if w.serviceIndex(n) < 0 {
					add(key+".services", "Unknown service "+n+".")
				}
			}
		}
	case StepReview:
		for _, prev := range Steps[:StepReview] {
			if err := w.Validate(prev); err != nil {
				e := output.AsError(err)
				e.Message = prev.String() + ": " + e.Message
				return e
			}
		}
	}

	if len(fields) > 0 {
		return output.ErrValidation(fields)
	}
	return nil
}

func (w *Wizard) serviceIndex(name string) int {
	return slices.IndexFunc(w.Draft.Services, func(s NewService) bool {
		return strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name))
	})
}

// StepFailure is one item that could not be created during Submit.
type StepFailure struct {
	Step Step   `json:"-"`
	Item string `json:"item"`
	Err  error  `json:"-"`
}

// SubmitResult reports what Submit created.
type SubmitResult struct {
	Business *models.Business     `json:"business"`
	Hours    []models.WorkingHours `json:"hours"`
	Services []models.Service     `json:"services"`
	Staff    []models.Staff       `json:"staff"`
	Failures []StepFailure        `json:"failures,omitempty"`
}

// Err joins every failure, or returns nil when everything was created.
func (r *SubmitResult) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s %s: %w", f.Step, f.Item, f.Err))
	}
	return errors.Join(errs...)
}

// Submit creates the business, then its hours, services and staff in that
// order. Only a failure to create the business aborts; later failures are
// collected in the result so the user can fix them afterwards.
func (w *Wizard) Submit(ctx context.Context, c *Client) (*SubmitResult, error) {
	if err := w.Validate(StepReview); err != nil {
		return nil, err
	}
	d := w.Draft
	res := &SubmitResult{}
	fail := func(step Step, item string, err error) {
		res.Failures = append(res.Failures, StepFailure{Step: step, Item: item, Err: err})
	}

	biz, err := c.Businesses().Create(ctx, d.Business)
	if err != nil {
		return nil, err
	}
	res.Business = biz

	if hours, err := c.Businesses().SetWorkingHours(ctx, biz.ID, d.Hours); err != nil {
		fail(StepHours, "working hours", err)
	} else {
		res.Hours = hours
	}

	serviceIDs := make(map[string]int64, len(d.Services))
	for _, in := range d.Services {
		svc, err := c.Businesses().CreateService(ctx, biz.ID, in)
		if err != nil {
			fail(StepServices, in.Name, err)
			continue
		}
		serviceIDs[strings.ToLower(strings.TrimSpace(in.Name))] = svc.ID
		res.Services = append(res.Services, *svc)
	}

	for _, sd := range d.Staff {
		in := NewStaff{
			Business:  biz.ID,
			FirstName: sd.FirstName,
			LastName:  sd.LastName,
			Email:     sd.Email,
			Role:      sd.Role,
		}
		for _, n := range sd.ServiceNames {
			if id, ok := serviceIDs[strings.ToLower(strings.TrimSpace(n))]; ok {
				in.Services = append(in.Services, id)
			}
		}
		st, err := c.Staff().Create(ctx, in)
		if err != nil {
			fail(StepStaff, strings.TrimSpace(sd.FirstName+" "+sd.LastName), err)
			continue
		}
		res.Staff = append(res.Staff, *st)
	}

	return res, nil
}
