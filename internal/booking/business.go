package booking

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// Categories lists the business categories the API accepts.
var Categories = []string{"barbershop", "beauty_salon", "spa", "fitness", "health", "education", "other"}

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// BusinessService manages businesses owned by the signed-in user, with
// their working hours and services.
type BusinessService struct {
	gw *api.Gateway
}

func businessOp(op string, id int64, mutation bool) api.OperationInfo {
	return api.OperationInfo{Service: "Businesses", Operation: op, ResourceType: "business", IsMutation: mutation, ResourceID: id}
}

// ListMine returns the businesses the user owns.
func (s *BusinessService) ListMine(ctx context.Context) ([]models.Business, error) {
	var items []models.Business
	err := s.gw.Run(ctx, businessOp("ListMine", 0, false), func(ctx context.Context) error {
		var err error
		items, _, err = listAll[models.Business](ctx, s.gw, "/businesses/", nil, 0)
		return err
	})
	return items, err
}

// Get returns one business.
func (s *BusinessService) Get(ctx context.Context, id int64) (*models.Business, error) {
	var b *models.Business
	err := s.gw.Run(ctx, businessOp("Get", id, false), func(ctx context.Context) error {
		var err error
		b, err = fetch[models.Business](ctx, s.gw, &api.Request{Method: http.MethodGet, Path: idPath("/businesses/%s/", id)})
		return err
	})
	return b, err
}

// Create registers a business.
func (s *BusinessService) Create(ctx context.Context, in models.Business) (*models.Business, error) {
	var b *models.Business
	err := s.gw.Run(ctx, businessOp("Create", 0, true), func(ctx context.Context) error {
		var err error
		b, err = fetch[models.Business](ctx, s.gw, &api.Request{Method: http.MethodPost, Path: "/businesses/", Body: in})
		return err
	})
	return b, err
}

// BusinessUpdate is a partial update; nil fields are left unchanged.
type BusinessUpdate struct {
	Name        *string `json:"name,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Website     *string `json:"website,omitempty"`
	Address     *string `json:"address,omitempty"`
	City        *string `json:"city,omitempty"`
	PostalCode  *string `json:"postal_code,omitempty"`
	Country     *string `json:"country,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
	Currency    *string `json:"currency,omitempty"`
}

// Update patches a business.
func (s *BusinessService) Update(ctx context.Context, id int64, u BusinessUpdate) (*models.Business, error) {
	if u == (BusinessUpdate{}) {
		return nil, output.ErrUsage("Nothing to update")
	}
	var b *models.Business
	err := s.gw.Run(ctx, businessOp("Update", id, true), func(ctx context.Context) error {
		var err error
		b, err = fetch[models.Business](ctx, s.gw, &api.Request{Method: http.MethodPatch, Path: idPath("/businesses/%s/", id), Body: u})
		return err
	})
	return b, err
}

// WorkingHours returns the opening hours of a business.
func (s *BusinessService) WorkingHours(ctx context.Context, id int64) ([]models.WorkingHours, error) {
	var hours []models.WorkingHours
	err := s.gw.Run(ctx, businessOp("WorkingHours", id, false), func(ctx context.Context) error {
		h, err := fetch[[]models.WorkingHours](ctx, s.gw, &api.Request{Method: http.MethodGet, Path: idPath("/businesses/%s/working-hours/", id)})
		if err == nil {
			hours = *h
		}
		return err
	})
	return hours, err
}

// ValidateWorkingHours checks weekdays are unique and in range and that
// open days close after they open.
func ValidateWorkingHours(hours []models.WorkingHours) error {
	fields := map[string][]string{}
	seen := map[int]bool{}
	add := func(key, msg string) { fields[key] = append(fields[key], msg) }
	for i, h := range hours {
		key := fmt.Sprintf("hours.%d", i)
		if h.Weekday < 0 || h.Weekday > 6 {
			add(key, "Weekday must be 0 (Monday) to 6 (Sunday).")
			continue
		}
		if seen[h.Weekday] {
			add(key, "Duplicate weekday.")
		}
		seen[h.Weekday] = true
		if h.Closed {
			continue
		}
		if !clockPattern.MatchString(h.Opens) || !clockPattern.MatchString(h.Closes) {
			add(key, "Times must be HH:MM.")
			continue
		}
		if h.Closes <= h.Opens {
			add(key, "Closing time must be after opening time.")
		}
	}
	if len(fields) > 0 {
		return output.ErrValidation(fields)
	}
	return nil
}

// SetWorkingHours replaces the opening hours of a business.
func (s *BusinessService) SetWorkingHours(ctx context.Context, id int64, hours []models.WorkingHours) ([]models.WorkingHours, error) {
	if err := ValidateWorkingHours(hours); err != nil {
		return nil, err
	}
	var out []models.WorkingHours
	err := s.gw.Run(ctx, businessOp("SetWorkingHours", id, true), func(ctx context.Context) error {
		h, err := fetch[[]models.WorkingHours](ctx, s.gw, &api.Request{
			Method: http.MethodPut,
			Path:   idPath("/businesses/%s/working-hours/", id),
			Body:   hours,
		})
		if err == nil {
			out = *h
		}
		return err
	})
	return out, err
}

// ListServices returns every service a business offers.
func (s *BusinessService) ListServices(ctx context.Context, id int64) ([]models.Service, error) {
	var items []models.Service
	err := s.gw.Run(ctx, businessOp("ListServices", id, false), func(ctx context.Context) error {
		var err error
		items, _, err = listAll[models.Service](ctx, s.gw, idPath("/businesses/%s/services/", id), nil, 0)
		return err
	})
	return items, err
}

// NewService is the payload for adding a service.
type NewService struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Duration    int    `json:"duration"`
	Price       string `json:"price"`
}

// Validate checks the fields the API requires.
func (n NewService) Validate() error {
	fields := map[string][]string{}
	if strings.TrimSpace(n.Name) == "" {
		fields["name"] = []string{"This field is required."}
	}
	if n.Duration <= 0 {
		fields["duration"] = []string{"Ensure this value is greater than 0."}
	}
	if n.Price == "" {
		fields["price"] = []string{"This field is required."}
	}
	if len(fields) > 0 {
		return output.ErrValidation(fields)
	}
	return nil
}

// CreateService adds a service to a business.
func (s *BusinessService) CreateService(ctx context.Context, id int64, in NewService) (*models.Service, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var svc *models.Service
	err := s.gw.Run(ctx, businessOp("CreateService", id, true), func(ctx context.Context) error {
		var err error
		svc, err = fetch[models.Service](ctx, s.gw, &api.Request{
			Method: http.MethodPost,
			Path:   idPath("/businesses/%s/services/", id),
			Body:   in,
		})
		return err
	})
	return svc, err
}
