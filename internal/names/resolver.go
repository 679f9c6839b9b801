// Package names resolves business, service and staff names to IDs.
// Matching runs in priority order:
// 1. Numeric ID passthrough
// 2. Exact match (case-sensitive)
// 3. Case-insensitive match
// 4. Partial match (contains)
package names

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// Source lists the records names are matched against.
type Source interface {
	Businesses(ctx context.Context) ([]models.Business, error)
	Services(ctx context.Context, business int64) ([]models.Service, error)
	Staff(ctx context.Context, business int64) ([]models.Staff, error)
}

// FromBooking adapts a booking client to Source.
func FromBooking(c *booking.Client) Source {
	return bookingSource{c}
}

type bookingSource struct{ c *booking.Client }

func (s bookingSource) Businesses(ctx context.Context) ([]models.Business, error) {
	return s.c.Businesses().ListMine(ctx)
}

func (s bookingSource) Services(ctx context.Context, business int64) ([]models.Service, error) {
	return s.c.Businesses().ListServices(ctx, business)
}

func (s bookingSource) Staff(ctx context.Context, business int64) ([]models.Staff, error) {
	return s.c.Staff().List(ctx, business)
}

// Resolver resolves names with a per-invocation cache.
type Resolver struct {
	src Source

	mu         sync.Mutex
	businesses []models.Business
	services   map[int64][]models.Service
	staff      map[int64][]models.Staff
}

// NewResolver creates a resolver backed by src.
func NewResolver(src Source) *Resolver {
	return &Resolver{
		src:      src,
		services: make(map[int64][]models.Service),
		staff:    make(map[int64][]models.Staff),
	}
}

// candidate is a named record.
type candidate struct {
	ID   int64
	Name string
}

// ResolveBusiness resolves a business name or ID among the caller's
// businesses. Returns the ID and the name for display (empty for a bare ID).
func (r *Resolver) ResolveBusiness(ctx context.Context, input string) (int64, string, error) {
	if id, ok := numericID(input); ok {
		return id, "", nil
	}
	items, err := r.getBusinesses(ctx)
	if err != nil {
		return 0, "", err
	}
	cands := make([]candidate, len(items))
	for i, b := range items {
		cands[i] = candidate{b.ID, b.Name}
	}
	return pick("business", "Business", input, cands)
}

// ResolveService resolves a service name or ID within a business.
func (r *Resolver) ResolveService(ctx context.Context, business int64, input string) (int64, string, error) {
	if id, ok := numericID(input); ok {
		return id, "", nil
	}
	items, err := r.getServices(ctx, business)
	if err != nil {
		return 0, "", err
	}
	cands := make([]candidate, len(items))
	for i, s := range items {
		cands[i] = candidate{s.ID, s.Name}
	}
	return pick("service", "Service", input, cands)
}

// ResolveStaff resolves a staff member by ID, email, full name or part of
// a name within a business.
func (r *Resolver) ResolveStaff(ctx context.Context, business int64, input string) (int64, string, error) {
	if id, ok := numericID(input); ok {
		return id, "", nil
	}
	items, err := r.getStaff(ctx, business)
	if err != nil {
		return 0, "", err
	}
	cands := make([]candidate, len(items))
	for i, s := range items {
		name := strings.TrimSpace(s.FirstName + " " + s.LastName)
		if strings.EqualFold(s.Email, input) {
			return s.ID, name, nil
		}
		cands[i] = candidate{s.ID, name}
	}
	return pick("staff member", "Staff member", input, cands)
}

// ClearCache drops cached lists, e.g. after creating a record.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.businesses = nil
	r.services = make(map[int64][]models.Service)
	r.staff = make(map[int64][]models.Staff)
}

func (r *Resolver) getBusinesses(ctx context.Context) ([]models.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.businesses != nil {
		return r.businesses, nil
	}
	items, err := r.src.Businesses(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Business{}
	}
	r.businesses = items
	return items, nil
}

func (r *Resolver) getServices(ctx context.Context, business int64) ([]models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if items, ok := r.services[business]; ok {
		return items, nil
	}
	items, err := r.src.Services(ctx, business)
	if err != nil {
		return nil, err
	}
	r.services[business] = items
	return items, nil
}

func (r *Resolver) getStaff(ctx context.Context, business int64) ([]models.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if items, ok := r.staff[business]; ok {
		return items, nil
	}
	items, err := r.src.Staff(ctx, business)
	if err != nil {
		return nil, err
	}
	r.staff[business] = items
	return items, nil
}

func numericID(input string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	return id, err == nil && id > 0
}

// pick turns a resolve result into an ID or a not-found/ambiguous error.
func pick(kind, title, input string, cands []candidate) (int64, string, error) {
	match, matches := resolve(input, cands)
	if match != nil {
		return match.ID, match.Name, nil
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return 0, "", output.ErrAmbiguous(kind, names)
	}
	if suggestions := suggest(input, cands); len(suggestions) > 0 {
		return 0, "", output.ErrNotFoundHint(title, input, "Did you mean: "+strings.Join(suggestions, ", "))
	}
	return 0, "", output.ErrNotFound(title, input)
}

// resolve returns the single match, or every candidate at the first
// phase that matched more than one.
func resolve(input string, items []candidate) (*candidate, []candidate) {
	inputLower := strings.ToLower(strings.TrimSpace(input))
	if inputLower == "" {
		return nil, nil
	}

	for i := range items {
		if items[i].Name == input {
			return &items[i], nil
		}
	}

	var caseMatches []candidate
	for _, c := range items {
		if strings.ToLower(c.Name) == inputLower {
			caseMatches = append(caseMatches, c)
		}
	}
	if len(caseMatches) == 1 {
		return &caseMatches[0], nil
	}
	if len(caseMatches) > 1 {
		return nil, caseMatches
	}

	var partialMatches []candidate
	for _, c := range items {
		if strings.Contains(strings.ToLower(c.Name), inputLower) {
			partialMatches = append(partialMatches, c)
		}
	}
	if len(partialMatches) == 1 {
		return &partialMatches[0], nil
	}
	return nil, partialMatches
}

// suggest returns up to 3 names sharing a prefix or a word with input.
func suggest(input string, items []candidate) []string {
	inputLower := strings.ToLower(input)
	var suggestions []string

	for _, c := range items {
		nameLower := strings.ToLower(c.Name)

		commonLen := 0
		for i := 0; i < len(inputLower) && i < len(nameLower); i++ {
			if inputLower[i] != nameLower[i] {
				break
			}
			commonLen++
		}

		if commonLen >= 2 || containsWord(nameLower, inputLower) {
			suggestions = append(suggestions, c.Name)
			if len(suggestions) >= 3 {
				break
			}
		}
	}
	return suggestions
}

// containsWord checks if haystack contains any word from needle.
func containsWord(haystack, needle string) bool {
	for _, word := range strings.Fields(needle) {
		if len(word) >= 2 && strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}
