// Package testutil provides an in-process fake of the booking API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/slotbook/slotbook-cli/internal/models"
)

// Prefix is the API prefix the fake serves under.
const Prefix = "/api"

// Cookie names set by the fake.
const (
	AccessCookie  = "access"
	RefreshCookie = "refresh"
)

// AccessTTL is the lifetime encoded in issued access tokens.
const AccessTTL = 5 * time.Minute

type fakeUser struct {
	models.User
	password string
	active   bool
}

// FakeAPI is a cookie-authenticated booking API on an httptest server.
//
// Only the most recently issued access token is valid. Expire invalidates it
// so the next protected request gets a 401 and the client has to refresh.
type FakeAPI struct {
	Server *httptest.Server
	Router chi.Router

	mu      sync.Mutex
	hits    map[string]int
	secret  []byte
	seq     int
	access  string
	refresh string

	refreshDelay time.Duration
	refreshFail  bool
	refreshGate  chan struct{}

	users        map[string]*fakeUser
	businesses   map[int64]*models.Business
	hours        map[int64][]models.WorkingHours
	services     map[int64]*models.Service
	staff        map[int64]*models.Staff
	appointments map[int64]*models.Appointment
	idempotency  map[string]int64
	nextID       int64
}

// NewFakeAPI starts a fake server that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		hits:         make(map[string]int),
		secret:       []byte("fake-signing-key"),
		users:        make(map[string]*fakeUser),
		businesses:   make(map[int64]*models.Business),
		hours:        make(map[int64][]models.WorkingHours),
		services:     make(map[int64]*models.Service),
		staff:        make(map[int64]*models.Staff),
		appointments: make(map[int64]*models.Appointment),
		idempotency:  make(map[string]int64),
	}

	r := chi.NewRouter()
	r.Use(f.count)
	r.Route(Prefix, func(r chi.Router) {
		r.Post("/jwt/create/", f.handleLogin)
		r.Post("/jwt/refresh/", f.handleRefresh)
		r.Post("/jwt/verify/", f.handleVerify)
		r.Post("/jwt/logout/", f.handleLogout)

		r.Post("/users/", f.handleRegister)
		r.Post("/users/activation/", f.handleActivate)
		r.Post("/users/reset_password/", f.handleResetPassword)
		r.Post("/users/reset_password_confirm/", f.handleResetPasswordConfirm)

		r.Group(func(r chi.Router) {
			r.Use(f.requireAuth)
			r.Get("/users/me/", f.handleMe)

			r.Get("/businesses/", f.handleListBusinesses)
			r.Post("/businesses/", f.handleCreateBusiness)
			r.Get("/businesses/{id}/", f.handleGetBusiness)
			r.Patch("/businesses/{id}/", f.handleUpdateBusiness)
			r.Get("/businesses/{id}/working-hours/", f.handleGetHours)
			r.Put("/businesses/{id}/working-hours/", f.handleSetHours)
			r.Get("/businesses/{id}/services/", f.handleListServices)
			r.Post("/businesses/{id}/services/", f.handleCreateService)

			r.Get("/staff/", f.handleListStaff)
			r.Post("/staff/", f.handleCreateStaff)
			r.Get("/staff/{id}/", f.handleGetStaff)
			r.Patch("/staff/{id}/", f.handleUpdateStaff)
			r.Delete("/staff/{id}/", f.handleDeleteStaff)

			r.Get("/appointments/", f.handleListAppointments)
			r.Post("/appointments/", f.handleCreateAppointment)
			r.Get("/appointments/{id}/", f.handleGetAppointment)
			r.Patch("/appointments/{id}/", f.handleUpdateAppointment)
			r.Delete("/appointments/{id}/", f.handleDeleteAppointment)
		})
	})

	f.Router = r
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server origin.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// Hits returns how many requests reached method and path (path includes Prefix).
func (f *FakeAPI) Hits(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

// RefreshCalls returns how many refresh requests were served.
func (f *FakeAPI) RefreshCalls() int {
	return f.Hits(http.MethodPost, Prefix+"/jwt/refresh/")
}

// Protected registers an extra route behind cookie auth.
func (f *FakeAPI) Protected(method, path string, h http.HandlerFunc) {
	f.Router.With(f.requireAuth).MethodFunc(method, path, h)
}

// AddUser registers an active account.
func (f *FakeAPI) AddUser(email, password string, owner bool) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &fakeUser{
		User:     models.User{ID: f.nextID, Email: email, FirstName: "Test", LastName: "User", IsBusinessOwner: owner},
		password: password,
		active:   true,
	}
	f.users[email] = u
	return u.User
}

// Login issues tokens as if the user had signed in, returning the cookies.
func (f *FakeAPI) Login(email string) []*http.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	access := f.issueLocked(email)
	f.refresh = "refresh-" + strconv.Itoa(f.seq)
	return []*http.Cookie{
		{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true},
		{Name: RefreshCookie, Value: f.refresh, Path: "/", HttpOnly: true},
	}
}

// Expire invalidates the current access token.
func (f *FakeAPI) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = ""
}

// RevokeRefresh invalidates the refresh token so refreshes fail.
func (f *FakeAPI) RevokeRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = ""
}

// SetRefreshDelay delays every refresh response.
func (f *FakeAPI) SetRefreshDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshDelay = d
}

// SetRefreshFail makes refreshes answer 401.
func (f *FakeAPI) SetRefreshFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshFail = fail
}

// HoldRefresh blocks refresh responses until the returned func is called.
func (f *FakeAPI) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.refreshGate = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *FakeAPI) issueLocked(email string) string {
	f.seq++
	claims := jwt.RegisteredClaims{
		Subject:   email,
		ID:        strconv.Itoa(f.seq),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		panic(err)
	}
	f.access = token
	return token
}

func (f *FakeAPI) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.Method+" "+r.URL.Path]++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Authorized reports whether r carries the current access token.
func (f *FakeAPI) Authorized(r *http.Request) bool {
	c, err := r.Cookie(AccessCookie)
	f.mu.Lock()
	defer f.mu.Unlock()
	return err == nil && f.access != "" && c.Value == f.access
}

// Unauthorized writes the API's 401 body.
func Unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
	})
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func (f *FakeAPI) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Authorized(r) {
			Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) currentUser(r *http.Request) *fakeUser {
	c, err := r.Cookie(AccessCookie)
	if err != nil {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(c.Value, claims, func(*jwt.Token) (any, error) { return f.secret, nil }); err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[claims.Subject]
}

func (f *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	u, ok := f.users[body.Email]
	if !ok || u.password != body.Password || !u.active {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "No active account found with the given credentials"})
		return
	}
	f.mu.Unlock()

	for _, c := range f.Login(body.Email) {
		http.SetCookie(w, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *FakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay, gate := f.refreshDelay, f.refreshGate
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if gate != nil {
		<-gate
	}

	c, err := r.Cookie(RefreshCookie)
	f.mu.Lock()
	ok := err == nil && !f.refreshFail && f.refresh != "" && c.Value == f.refresh
	if !ok {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	claims := &jwt.RegisteredClaims{}
	subject := ""
	if old, err := r.Cookie(AccessCookie); err == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(old.Value, claims); err == nil {
			subject = claims.Subject
		}
	}
	access := f.issueLocked(subject)
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *FakeAPI) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !f.Authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *FakeAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.access, f.refresh = "", ""
	f.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email           string `json:"email"`
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
		Phone           string `json:"phone"`
		Password        string `json:"password"`
		RePassword      string `json:"re_password"`
		IsBusinessOwner bool   `json:"is_business_owner"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Password != body.RePassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"non_field_errors": []string{"The two password fields didn't match."}})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.Email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]any{"email": []string{"user with this email already exists."}})
		return
	}
	f.nextID++
	u := &fakeUser{
		User: models.User{
			ID: f.nextID, Email: body.Email, FirstName: body.FirstName, LastName: body.LastName,
			Phone: body.Phone, IsBusinessOwner: body.IsBusinessOwner,
		},
		password: body.Password,
	}
	f.users[body.Email] = u
	writeJSON(w, http.StatusCreated, u.User)
}

// ActivationToken returns the uid/token pair emailed to a user.
func ActivationToken(id int64) (uid, token string) {
	return "uid-" + strconv.FormatInt(id, 10), "tok-" + strconv.FormatInt(id, 10)
}

func (f *FakeAPI) userByUID(uid string) *fakeUser {
	for _, u := range f.users {
		if got, _ := ActivationToken(u.ID); got == uid {
			return u
		}
	}
	return nil
}

func (f *FakeAPI) handleActivate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UID   string `json:"uid"`
		Token string `json:"token"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.userByUID(body.UID)
	if u == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"uid": []string{"Invalid user id or user doesn't exist."}})
		return
	}
	if _, tok := ActivationToken(u.ID); tok != body.Token {
		writeJSON(w, http.StatusBadRequest, map[string]any{"token": []string{"Invalid token for given user."}})
		return
	}
	if u.active {
		writeJSON(w, http.StatusForbidden, map[string]any{"detail": "Stale token for given user."})
		return
	}
	u.active = true
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) handleResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UID           string `json:"uid"`
		Token         string `json:"token"`
		NewPassword   string `json:"new_password"`
		ReNewPassword string `json:"re_new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.NewPassword != body.ReNewPassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"non_field_errors": []string{"The two password fields didn't match."}})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.userByUID(body.UID)
	if u == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"uid": []string{"Invalid user id or user doesn't exist."}})
		return
	}
	if _, tok := ActivationToken(u.ID); tok != body.Token {
		writeJSON(w, http.StatusBadRequest, map[string]any{"token": []string{"Invalid token for given user."}})
		return
	}
	u.password = body.NewPassword
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	u := f.currentUser(r)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, u.User)
}

// SeedBusiness stores a business and returns it with its ID.
func (f *FakeAPI) SeedBusiness(b models.Business) models.Business {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	f.businesses[b.ID] = &b
	return b
}

// SeedService stores a service.
func (f *FakeAPI) SeedService(s models.Service) models.Service {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	f.services[s.ID] = &s
	return s
}

// SeedStaff stores a staff member.
func (f *FakeAPI) SeedStaff(s models.Staff) models.Staff {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	f.staff[s.ID] = &s
	return s
}

// SeedAppointment stores an appointment.
func (f *FakeAPI) SeedAppointment(a models.Appointment) models.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	if a.Status == "" {
		a.Status = models.StatusPending
	}
	f.appointments[a.ID] = &a
	return a
}

// Appointment returns a stored appointment.
func (f *FakeAPI) Appointment(id int64) (models.Appointment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return models.Appointment{}, false
	}
	return *a, true
}

// WorkingHours returns the stored hours of a business.
func (f *FakeAPI) WorkingHours(businessID int64) []models.WorkingHours {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.WorkingHours(nil), f.hours[businessID]...)
}

func (f *FakeAPI) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	items := make([]models.Business, 0, len(f.businesses))
	for _, b := range f.businesses {
		items = append(items, *b)
	}
	f.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writePage(w, r, items)
}

func (f *FakeAPI) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var b models.Business
	if !decode(w, r, &b) {
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(b.Name) == "" {
		fields["name"] = []string{"This field may not be blank."}
	}
	if b.Category == "" {
		fields["category"] = []string{"This field is required."}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	writeJSON(w, http.StatusCreated, f.SeedBusiness(b))
}

func (f *FakeAPI) businessFor(w http.ResponseWriter, r *http.Request) (*models.Business, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	b, ok := f.businesses[id]
	f.mu.Unlock()
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return nil, false
	}
	return b, true
}

func (f *FakeAPI) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	if b, ok := f.businessFor(w, r); ok {
		f.mu.Lock()
		out := *b
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	}
}

func (f *FakeAPI) handleUpdateBusiness(w http.ResponseWriter, r *http.Request) {
	b, ok := f.businessFor(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := json.NewDecoder(r.Body).Decode(b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error"})
		return
	}
	writeJSON(w, http.StatusOK, *b)
}

func (f *FakeAPI) handleGetHours(w http.ResponseWriter, r *http.Request) {
	if b, ok := f.businessFor(w, r); ok {
		writeJSON(w, http.StatusOK, f.WorkingHours(b.ID))
	}
}

func (f *FakeAPI) handleSetHours(w http.ResponseWriter, r *http.Request) {
	b, ok := f.businessFor(w, r)
	if !ok {
		return
	}
	var hours []models.WorkingHours
	if !decode(w, r, &hours) {
		return
	}
	for i, h := range hours {
		if h.Weekday < 0 || h.Weekday > 6 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"weekday": []string{fmt.Sprintf("Entry %d: invalid weekday.", i)}})
			return
		}
	}
	f.mu.Lock()
	f.hours[b.ID] = hours
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, hours)
}

func (f *FakeAPI) handleListServices(w http.ResponseWriter, r *http.Request) {
	b, ok := f.businessFor(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	var items []models.Service
	for _, s := range f.services {
		if s.Business == b.ID {
			items = append(items, *s)
		}
	}
	f.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writePage(w, r, items)
}

func (f *FakeAPI) handleCreateService(w http.ResponseWriter, r *http.Request) {
	b, ok := f.businessFor(w, r)
	if !ok {
		return
	}
	var s models.Service
	if !decode(w, r, &s) {
		return
	}
	if s.Duration <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"duration": []string{"Ensure this value is greater than 0."}})
		return
	}
	s.Business = b.ID
	s.IsActive = true
	writeJSON(w, http.StatusCreated, f.SeedService(s))
}

func (f *FakeAPI) handleListStaff(w http.ResponseWriter, r *http.Request) {
	business, _ := strconv.ParseInt(r.URL.Query().Get("business"), 10, 64)
	f.mu.Lock()
	var items []models.Staff
	for _, s := range f.staff {
		if business == 0 || s.Business == business {
			items = append(items, *s)
		}
	}
	f.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	writePage(w, r, items)
}

func (f *FakeAPI) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var s models.Staff
	if !decode(w, r, &s) {
		return
	}
	if s.FirstName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"first_name": []string{"This field is required."}})
		return
	}
	s.IsActive = true
	writeJSON(w, http.StatusCreated, f.SeedStaff(s))
}

func (f *FakeAPI) staffFor(w http.ResponseWriter, r *http.Request) (*models.Staff, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	s, ok := f.staff[id]
	f.mu.Unlock()
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return nil, false
	}
	return s, true
}

func (f *FakeAPI) handleGetStaff(w http.ResponseWriter, r *http.Request) {
	if s, ok := f.staffFor(w, r); ok {
		f.mu.Lock()
		out := *s
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	}
}

func (f *FakeAPI) handleUpdateStaff(w http.ResponseWriter, r *http.Request) {
	s, ok := f.staffFor(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := json.NewDecoder(r.Body).Decode(s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error"})
		return
	}
	writeJSON(w, http.StatusOK, *s)
}

func (f *FakeAPI) handleDeleteStaff(w http.ResponseWriter, r *http.Request) {
	s, ok := f.staffFor(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	delete(f.staff, s.ID)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAPI) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	business, _ := strconv.ParseInt(q.Get("business"), 10, 64)
	staffID, _ := strconv.ParseInt(q.Get("staff"), 10, 64)
	serviceID, _ := strconv.ParseInt(q.Get("service"), 10, 64)
	statuses := map[string]bool{}
	for _, s := range strings.Split(q.Get("status"), ",") {
		if s != "" {
			statuses[s] = true
		}
	}
	search := strings.ToLower(q.Get("search"))
	from, hasFrom := parseBound(q.Get("date_from"))
	to, hasTo := parseBound(q.Get("date_to"))

	f.mu.Lock()
	var items []models.Appointment
	for _, a := range f.appointments {
		switch {
		case business != 0 && a.Business != business:
			continue
		case staffID != 0 && (a.Staff == nil || a.Staff.ID != staffID):
			continue
		case serviceID != 0 && (a.Service == nil || a.Service.ID != serviceID):
			continue
		case len(statuses) > 0 && !statuses[a.Status]:
			continue
		case hasFrom && a.StartTime.Before(from):
			continue
		case hasTo && !a.StartTime.Before(to):
			continue
		case search != "" && !strings.Contains(strings.ToLower(a.Customer.Name()+" "+a.Customer.Email), search):
			continue
		}
		items = append(items, *a)
	}
	f.mu.Unlock()

	desc := q.Get("ordering") == "-start_time"
	sort.Slice(items, func(i, j int) bool {
		if items[i].StartTime.Equal(items[j].StartTime) {
			return items[i].ID < items[j].ID
		}
		if desc {
			return items[i].StartTime.After(items[j].StartTime)
		}
		return items[i].StartTime.Before(items[j].StartTime)
	})
	writePage(w, r, items)
}

func parseBound(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

type appointmentInput struct {
	Business      int64     `json:"business"`
	Service       int64     `json:"service"`
	Staff         int64     `json:"staff"`
	StartTime     time.Time `json:"start_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	Notes         string    `json:"notes"`
}

// conflictLocked reports whether staffID is already booked over [start, end).
func (f *FakeAPI) conflictLocked(skip, staffID int64, start, end time.Time) bool {
	if staffID == 0 {
		return false
	}
	for _, a := range f.appointments {
		if a.ID == skip || a.Staff == nil || a.Staff.ID != staffID || a.Status == models.StatusCancelled {
			continue
		}
		if start.Before(a.EndTime) && a.StartTime.Before(end) {
			return true
		}
	}
	return false
}

func (f *FakeAPI) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var in appointmentInput
	if !decode(w, r, &in) {
		return
	}
	key := r.Header.Get("Idempotency-Key")

	f.mu.Lock()
	defer f.mu.Unlock()
	if key != "" {
		if id, ok := f.idempotency[key]; ok {
			writeJSON(w, http.StatusCreated, *f.appointments[id])
			return
		}
	}
	svc, ok := f.services[in.Service]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"service": []string{"Invalid pk - object does not exist."}})
		return
	}
	if in.StartTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"start_time": []string{"This field is required."}})
		return
	}
	end := in.StartTime.Add(time.Duration(svc.Duration) * time.Minute)
	if f.conflictLocked(0, in.Staff, in.StartTime, end) {
		writeJSON(w, http.StatusConflict, map[string]any{"detail": "This time slot is already booked."})
		return
	}

	first, last, _ := strings.Cut(in.CustomerName, " ")
	a := &models.Appointment{
		Business:  in.Business,
		Customer:  models.Person{FirstName: first, LastName: last, Email: in.CustomerEmail, Phone: in.CustomerPhone},
		Service:   &models.ServiceRef{ID: svc.ID, Name: svc.Name, Duration: svc.Duration, Price: svc.Price},
		StartTime: in.StartTime,
		EndTime:   end,
		Status:    models.StatusPending,
		Price:     svc.Price,
		Notes:     in.Notes,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if st, ok := f.staff[in.Staff]; ok {
		a.Staff = &models.Person{ID: st.ID, FirstName: st.FirstName, LastName: st.LastName}
	}
	f.nextID++
	a.ID = f.nextID
	f.appointments[a.ID] = a
	if key != "" {
		f.idempotency[key] = a.ID
	}
	writeJSON(w, http.StatusCreated, *a)
}

func (f *FakeAPI) appointmentFor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	f.mu.Lock()
	_, ok := f.appointments[id]
	f.mu.Unlock()
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func (f *FakeAPI) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	if id, ok := f.appointmentFor(w, r); ok {
		a, _ := f.Appointment(id)
		writeJSON(w, http.StatusOK, a)
	}
}

func (f *FakeAPI) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := f.appointmentFor(w, r)
	if !ok {
		return
	}
	var patch struct {
		Status    *string    `json:"status"`
		StartTime *time.Time `json:"start_time"`
		Staff     *int64     `json:"staff"`
		Notes     *string    `json:"notes"`
	}
	if !decode(w, r, &patch) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.appointments[id]
	if patch.StartTime != nil || patch.Staff != nil {
		start, staffID := a.StartTime, int64(0)
		if a.Staff != nil {
			staffID = a.Staff.ID
		}
		if patch.StartTime != nil {
			start = *patch.StartTime
		}
		if patch.Staff != nil {
			staffID = *patch.Staff
		}
		end := start.Add(a.EndTime.Sub(a.StartTime))
		if f.conflictLocked(a.ID, staffID, start, end) {
			writeJSON(w, http.StatusConflict, map[string]any{"detail": "This time slot is already booked."})
			return
		}
		a.StartTime, a.EndTime = start, end
		if st, ok := f.staff[staffID]; ok {
			a.Staff = &models.Person{ID: st.ID, FirstName: st.FirstName, LastName: st.LastName}
		}
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	if patch.Notes != nil {
		a.Notes = *patch.Notes
	}
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, *a)
}

func (f *FakeAPI) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := f.appointmentFor(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	delete(f.appointments, id)
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// writePage paginates items DRF-style using page and page_size.
func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("page_size"))
	if size < 1 {
		size = 20
	}

	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := min(start+size, len(items))

	results := items[start:end]
	if results == nil {
		results = []T{}
	}
	resp := models.Page[T]{Count: len(items), Results: results}

	link := func(p int) *string {
		u := *r.URL
		values := u.Query()
		values.Set("page", strconv.Itoa(p))
		u.RawQuery = values.Encode()
		s := "http://" + r.Host + u.RequestURI()
		return &s
	}
	if end < len(items) {
		resp.Next = link(page + 1)
	}
	if page > 1 {
		resp.Previous = link(page - 1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "JSON parse error - " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
