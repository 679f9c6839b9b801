// Package models provides canonical type definitions for booking API entities.
package models

import "time"

// Person is a compact reference to a customer or staff member embedded in
// other resources.
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Name returns "First Last", falling back to the email.
func (p Person) Name() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.Email
}

// User is the authenticated account (/users/me/).
type User struct {
	ID              int64  `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone,omitempty"`
	IsBusinessOwner bool   `json:"is_business_owner"`
}

// Business is a bookable venue owned by a user.
type Business struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Website     string `json:"website,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Currency    string `json:"currency,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// WorkingHours is one weekday's opening window. Weekday 0 is Monday.
type WorkingHours struct {
	Weekday int    `json:"weekday"`
	Opens   string `json:"opens,omitempty"`  // "09:00"
	Closes  string `json:"closes,omitempty"` // "17:30"
	Closed  bool   `json:"closed"`
}

// Service is something a business sells by the slot.
type Service struct {
	ID          int64  `json:"id"`
	Business    int64  `json:"business,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Duration    int    `json:"duration"` // minutes
	Price       string `json:"price"`    // decimal string
	IsActive    bool   `json:"is_active"`
}

// Staff is a member of a business who can be booked.
type Staff struct {
	ID        int64   `json:"id"`
	Business  int64   `json:"business,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Role      string  `json:"role"`
	Bio       string  `json:"bio,omitempty"`
	Services  []int64 `json:"services,omitempty"`
	IsActive  bool    `json:"is_active"`
}

// ServiceRef is the service summary embedded in an appointment.
type ServiceRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration,omitempty"`
	Price    string `json:"price,omitempty"`
}

// Appointment is a booked slot.
type Appointment struct {
	ID        int64       `json:"id"`
	Business  int64       `json:"business"`
	Customer  Person      `json:"customer"`
	Staff     *Person     `json:"staff"`
	Service   *ServiceRef `json:"service"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Status    string      `json:"status"`
	Price     string      `json:"price,omitempty"`
	Notes     string      `json:"notes,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
	UpdatedAt string      `json:"updated_at,omitempty"`
}

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

// Statuses lists every appointment status in lifecycle order.
var Statuses = []string{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

// Page is a DRF paginated list.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NextURL returns the next page link or "".
func (p Page[T]) NextURL() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}
