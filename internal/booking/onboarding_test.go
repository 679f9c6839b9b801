package booking

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

func filledWizard() *Wizard {
	w := NewWizard()
	w.Draft.Business = models.Business{
		Name:     "Fade Lab",
		Category: "barbershop",
		Address:  "Rua Augusta 1",
		City:     "Lisbon",
		Country:  "PT",
		Timezone: "Europe/Lisbon",
	}
	w.Draft.Services = []NewService{
		{Name: "Haircut", Duration: 30, Price: "25.00"},
		{Name: "Beard trim", Duration: 15, Price: "10.00"},
	}
	w.Draft.Staff = []StaffDraft{
		{FirstName: "Ada", LastName: "Lovelace", Role: "barber", ServiceNames: []string{"haircut", "Beard trim"}},
	}
	return w
}

func TestWizardNextValidatesCurrentStep(t *testing.T) {
	w := NewWizard()
	assert.Equal(t, StepDetails, w.Step())

	err := w.Next()
	require.Error(t, err)
	fields := output.AsError(err).Fields
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "category")
	assert.Equal(t, StepDetails, w.Step())

	w.Draft.Business.Name = "Fade Lab"
	w.Draft.Business.Category = "barbershop"
	require.NoError(t, w.Next())
	assert.Equal(t, StepLocation, w.Step())

	err = w.Next()
	require.Error(t, err)
	assert.Contains(t, output.AsError(err).Fields, "city")
}

func TestWizardNavigation(t *testing.T) {
	w := filledWizard()
	assert.False(t, w.Back())

	require.NoError(t, w.Next()) // Location
	require.NoError(t, w.Next()) // Hours

	assert.Error(t, w.Goto(StepStaff), "cannot skip ahead")
	require.NoError(t, w.Goto(StepDetails))
	assert.Equal(t, StepDetails, w.Step())
	require.NoError(t, w.Goto(StepHours), "reached steps stay reachable")

	assert.True(t, w.Back())
	assert.Equal(t, StepLocation, w.Step())
	assert.Error(t, w.Goto(Step(9)))

	p := w.Progress()
	assert.Equal(t, Progress{Step: "Location", Index: 2, Total: 6, Percent: 33}, p)
}

func TestWizardRunsToReview(t *testing.T) {
	w := filledWizard()
	for w.Step() != StepReview {
		require.NoError(t, w.Next(), w.Step().String())
	}
	assert.Equal(t, 100, w.Progress().Percent)
	assert.Error(t, w.Next())
}

func TestWizardStepValidation(t *testing.T) {
	w := filledWizard()

	w.Draft.Hours = []models.WorkingHours{{Weekday: 0, Closed: true}}
	assert.Contains(t, output.AsError(w.Validate(StepHours)).Fields, "hours")

	w.Draft.Services = append(w.Draft.Services, NewService{Name: "haircut", Duration: 10, Price: "5"})
	fields := output.AsError(w.Validate(StepServices)).Fields
	assert.Contains(t, fields["services.2.name"], "Duplicate service name.")

	w.Draft.Services = nil
	assert.Contains(t, output.AsError(w.Validate(StepServices)).Fields, "services")

	w.Draft.Staff = []StaffDraft{{ServiceNames: []string{"Massage"}}}
	fields = output.AsError(w.Validate(StepStaff)).Fields
	assert.Contains(t, fields, "staff.0.first_name")
	assert.Contains(t, fields, "staff.0.services")

	err := w.Validate(StepReview)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hours:")
}

func TestWizardSubmitCreatesEverything(t *testing.T) {
	f := newFixture(t)
	w := filledWizard()

	res, err := w.Submit(context.Background(), f.client)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	require.NotNil(t, res.Business)
	assert.Equal(t, "Fade Lab", res.Business.Name)
	assert.Len(t, f.fake.WorkingHours(res.Business.ID), 7)
	require.Len(t, res.Services, 2)
	require.Len(t, res.Staff, 1)
	assert.ElementsMatch(t, []int64{res.Services[0].ID, res.Services[1].ID}, res.Staff[0].Services)
	assert.Equal(t, res.Business.ID, res.Staff[0].Business)
}

func TestWizardSubmitReportsPartialFailures(t *testing.T) {
	f := newFixture(t)
	w := filledWizard()
	w.Draft.Staff = append(w.Draft.Staff, StaffDraft{FirstName: "Alan"})

	// Staff creation fails after the business and services exist.
	f.fake.Protected(http.MethodPost, testutil.Prefix+"/staff/", func(wr http.ResponseWriter, _ *http.Request) {
		testutil.WriteJSON(wr, http.StatusBadRequest, map[string]any{"role": []string{"Invalid role."}})
	})

	res, err := w.Submit(context.Background(), f.client)
	require.NoError(t, err)
	require.NotNil(t, res.Business)
	assert.Len(t, res.Services, 2)
	assert.Empty(t, res.Staff)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, StepStaff, res.Failures[0].Step)
	assert.Equal(t, "Ada Lovelace", res.Failures[0].Item)
	assert.ErrorContains(t, res.Err(), "Staff Alan")
}

func TestWizardSubmitRequiresValidDraft(t *testing.T) {
	f := newFixture(t)
	w := NewWizard()

	_, err := w.Submit(context.Background(), f.client)
	require.Error(t, err)
	assert.Equal(t, output.CodeValidation, output.AsError(err).Code)
}
