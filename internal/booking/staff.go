package booking

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// StaffService manages the bookable staff of a business.
type StaffService struct {
	gw *api.Gateway
}

func staffOp(op string, id int64, mutation bool) api.OperationInfo {
	return api.OperationInfo{Service: "Staff", Operation: op, ResourceType: "staff", IsMutation: mutation, ResourceID: id}
}

// List returns every staff member of business (all businesses when 0).
func (s *StaffService) List(ctx context.Context, business int64) ([]models.Staff, error) {
	q := url.Values{}
	if business != 0 {
		q.Set("business", strconv.FormatInt(business, 10))
	}
	var items []models.Staff
	err := s.gw.Run(ctx, staffOp("List", 0, false), func(ctx context.Context) error {
		var err error
		items, _, err = listAll[models.Staff](ctx, s.gw, "/staff/", q, 0)
		return err
	})
	return items, err
}

// Get returns one staff member.
func (s *StaffService) Get(ctx context.Context, id int64) (*models.Staff, error) {
	var st *models.Staff
	err := s.gw.Run(ctx, staffOp("Get", id, false), func(ctx context.Context) error {
		var err error
		st, err = fetch[models.Staff](ctx, s.gw, &api.Request{Method: http.MethodGet, Path: idPath("/staff/%s/", id)})
		return err
	})
	return st, err
}

// NewStaff is the payload for adding a staff member.
type NewStaff struct {
	Business  int64   `json:"business"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Role      string  `json:"role,omitempty"`
	Bio       string  `json:"bio,omitempty"`
	Services  []int64 `json:"services,omitempty"`
}

// Validate checks the fields the API requires.
func (n NewStaff) Validate() error {
	fields := map[string][]string{}
	if strings.TrimSpace(n.FirstName) == "" {
		fields["first_name"] = []string{"This field is required."}
	}
	if n.Business == 0 {
		fields["business"] = []string{"This field is required."}
	}
	if len(fields) > 0 {
		return output.ErrValidation(fields)
	}
	return nil
}

// Create adds a staff member.
func (s *StaffService) Create(ctx context.Context, in NewStaff) (*models.Staff, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var st *models.Staff
	err := s.gw.Run(ctx, staffOp("Create", 0, true), func(ctx context.Context) error {
		var err error
		st, err = fetch[models.Staff](ctx, s.gw, &api.Request{Method: http.MethodPost, Path: "/staff/", Body: in})
		return err
	})
	return st, err
}

// StaffUpdate is a partial update; nil fields are left unchanged.
type StaffUpdate struct {
	FirstName *string  `json:"first_name,omitempty"`
	LastName  *string  `json:"last_name,omitempty"`
	Email     *string  `json:"email,omitempty"`
	Phone     *string  `json:"phone,omitempty"`
	Role      *string  `json:"role,omitempty"`
	Bio       *string  `json:"bio,omitempty"`
	IsActive  *bool    `json:"is_active,omitempty"`
	Services  *[]int64 `json:"services,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u StaffUpdate) Empty() bool {
	return u == StaffUpdate{}
}

// Update patches a staff member.
func (s *StaffService) Update(ctx context.Context, id int64, u StaffUpdate) (*models.Staff, error) {
	if u.Empty() {
		return nil, output.ErrUsage("Nothing to update")
	}
	var st *models.Staff
	err := s.gw.Run(ctx, staffOp("Update", id, true), func(ctx context.Context) error {
		var err error
		st, err = fetch[models.Staff](ctx, s.gw, &api.Request{Method: http.MethodPatch, Path: idPath("/staff/%s/", id), Body: u})
		return err
	})
	return st, err
}

// Delete removes a staff member.
func (s *StaffService) Delete(ctx context.Context, id int64) error {
	return s.gw.Run(ctx, staffOp("Delete", id, true), func(ctx context.Context) error {
		_, err := s.gw.Do(ctx, &api.Request{Method: http.MethodDelete, Path: idPath("/staff/%s/", id)})
		return err
	})
}
