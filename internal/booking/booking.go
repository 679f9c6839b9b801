// Package booking wraps the booking API resources (appointments, staff,
// businesses and services) on top of the authenticated gateway.
package booking

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/models"
)

// DefaultListLimit caps ListAll when the caller passes no limit.
const DefaultListLimit = 500

// maxPages stops runaway pagination when the API keeps returning next links.
const maxPages = 100

// Client groups the resource services.
type Client struct {
	gw *api.Gateway
}

// NewClient creates a booking client over gw.
func NewClient(gw *api.Gateway) *Client {
	return &Client{gw: gw}
}

// Appointments returns the appointment service.
func (c *Client) Appointments() *AppointmentsService {
	return &AppointmentsService{gw: c.gw}
}

// Staff returns the staff service.
func (c *Client) Staff() *StaffService {
	return &StaffService{gw: c.gw}
}

// Businesses returns the business service.
func (c *Client) Businesses() *BusinessService {
	return &BusinessService{gw: c.gw}
}

// Gateway returns the underlying gateway.
func (c *Client) Gateway() *api.Gateway {
	return c.gw
}

func fetch[T any](ctx context.Context, gw *api.Gateway, req *api.Request) (*T, error) {
	resp, err := gw.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var v T
	if err := resp.UnmarshalData(&v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", req.Path, err)
	}
	return &v, nil
}

// listAll follows next links until limit items are collected. It reports
// whether more items were available.
func listAll[T any](ctx context.Context, gw *api.Gateway, path string, query url.Values, limit int) ([]T, bool, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var out []T
	req := &api.Request{Method: "GET", Path: path, Query: query}
	for range maxPages {
		page, err := fetch[models.Page[T]](ctx, gw, req)
		if err != nil {
			return nil, false, err
		}
		out = append(out, page.Results...)
		if len(out) >= limit {
			return out[:limit], len(out) > limit || page.NextURL() != "", nil
		}
		next := page.NextURL()
		if next == "" {
			return out, false, nil
		}
		// The next link carries the full query.
		req = &api.Request{Method: "GET", Path: next}
	}
	return out, true, nil
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, strconv.FormatInt(id, 10))
}
