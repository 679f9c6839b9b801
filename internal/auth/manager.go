// Package auth manages the cookie session: login, refresh, verification and
// logout, with the cookies persisted per API origin.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/models"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/session"
)

// Cookie names set by the API.
const (
	AccessCookie  = "access"
	RefreshCookie = "refresh"
)

// LockFileName is the cross-process refresh lock in the state directory.
const LockFileName = "refresh.lock"

// Options configures a Manager.
type Options struct {
	// Client is the base fetcher. Refresh always goes through it.
	Client *api.Client
	Jar    *CookieJar
	State  *session.State

	// StateDir holds the refresh lock and the session marker.
	StateDir    string
	LockTimeout time.Duration

	Logger *slog.Logger
}

// Manager owns the session lifecycle for one API origin.
type Manager struct {
	client *api.Client
	authed api.Fetcher
	jar    *CookieJar
	state  *session.State
	lock   *session.ProcessLock
	marker *session.Marker
	logger *slog.Logger
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	state := opts.State
	if state == nil {
		state = session.NewState()
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = session.DefaultLockTimeout
	}
	return &Manager{
		client: opts.Client,
		jar:    opts.Jar,
		state:  state,
		lock:   session.NewProcessLock(filepath.Join(opts.StateDir, LockFileName), timeout),
		marker: session.NewMarker(opts.StateDir),
		logger: logger,
	}
}

// UseGateway routes authenticated calls (Verify, Me) through f.
func (m *Manager) UseGateway(f api.Fetcher) {
	m.authed = f
}

// Jar returns the session cookie jar.
func (m *Manager) Jar() *CookieJar {
	return m.jar
}

// Marker returns the session event marker.
func (m *Manager) Marker() *session.Marker {
	return m.marker
}

func (m *Manager) fetcher() api.Fetcher {
	if m.authed != nil {
		return m.authed
	}
	return m.client
}

// HasSession reports whether any session cookie is stored.
func (m *Manager) HasSession() bool {
	_, access := m.jar.Get(AccessCookie)
	_, refresh := m.jar.Get(RefreshCookie)
	return access || refresh
}

// Login exchanges credentials for session cookies.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	_, err := m.client.Post(ctx, "/jwt/create/", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		if output.IsUnauthorized(err) {
			e := output.AsError(err)
			return &output.Error{
				Code:       output.CodeAuth,
				Message:    e.Message,
				Hint:       "Check the email and password, and that the account is activated",
				HTTPStatus: e.HTTPStatus,
				Cause:      err,
			}
		}
		return err
	}

	if err := m.jar.SetEmail(email); err != nil {
		return output.ErrAPI(0, "failed to store session: "+err.Error())
	}
	m.record(session.EventLogin)
	m.state.SetAuthenticated(true)
	return nil
}

// Refresh renews the access cookie. It implements api.Refresher.
//
// The refresh holds a file lock shared with other processes using the same
// state directory. Once the lock is held the stored session is reloaded; if
// the access cookie changed in the meantime another process already
// refreshed and no request is made.
func (m *Manager) Refresh(ctx context.Context) error {
	before, _ := m.jar.Get(AccessCookie)

	unlock, held, err := m.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.jar.Reload(); err != nil {
		m.logger.Debug("reloading session before refresh failed", "error", err)
	}
	if held {
		if after, ok := m.jar.Get(AccessCookie); ok && after.Value != before.Value {
			m.logger.Debug("session refreshed by another process")
			return nil
		}
	}

	if _, ok := m.jar.Get(RefreshCookie); !ok {
		return output.ErrAuth("No refresh token stored")
	}

	if _, err := m.client.Post(ctx, "/jwt/refresh/", nil); err != nil {
		return err
	}
	m.record(session.EventRefresh)
	return nil
}

// Verify checks the session with the API and updates the session flag.
// It goes through the gateway, so an expired access cookie is refreshed.
func (m *Manager) Verify(ctx context.Context) error {
	if !m.HasSession() {
		m.state.SetAuthenticated(false)
		return output.ErrAuth("Not logged in")
	}
	_, err := m.fetcher().Do(ctx, &api.Request{Method: "POST", Path: "/jwt/verify/"})
	switch {
	case err == nil:
		m.state.SetAuthenticated(true)
	case output.IsUnauthorized(err):
		m.state.SetAuthenticated(false)
	}
	return err
}

// Logout ends the session. The server call is best-effort; local cookies
// are always cleared.
func (m *Manager) Logout(ctx context.Context) error {
	if m.HasSession() {
		if _, err := m.client.Post(ctx, "/jwt/logout/", nil); err != nil {
			m.logger.Debug("server logout failed", "error", err)
		}
	}
	err := m.jar.Clear()
	m.record(session.EventLogout)
	m.state.SetAuthenticated(false)
	return err
}

func (m *Manager) record(event session.Event) {
	if err := m.marker.Record(event, m.jar.Origin()); err != nil {
		m.logger.Debug("writing session marker failed", "event", event, "error", err)
	}
}

// RegisterParams is the sign-up payload.
type RegisterParams struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password"`
	RePassword      string `json:"re_password"`
	IsBusinessOwner bool   `json:"is_business_owner"`
}

// Register creates an account. The account must be activated before login.
func (m *Manager) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	if p.RePassword == "" {
		p.RePassword = p.Password
	}
	resp, err := m.client.Post(ctx, "/users/", p)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := resp.UnmarshalData(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Activate confirms an account with the uid and token from the activation email.
func (m *Manager) Activate(ctx context.Context, uid, token string) error {
	_, err := m.client.Post(ctx, "/users/activation/", map[string]string{"uid": uid, "token": token})
	return err
}

// ResetPassword asks the API to email a reset link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	_, err := m.client.Post(ctx, "/users/reset_password/", map[string]string{"email": email})
	return err
}

// ResetPasswordConfirm sets a new password using the emailed uid and token.
func (m *Manager) ResetPasswordConfirm(ctx context.Context, uid, token, password string) error {
	_, err := m.client.Post(ctx, "/users/reset_password_confirm/", map[string]string{
		"uid":             uid,
		"token":           token,
		"new_password":    password,
		"re_new_password": password,
	})
	return err
}

// Me returns the signed-in account.
func (m *Manager) Me(ctx context.Context) (*models.User, error) {
	resp, err := m.fetcher().Do(ctx, &api.Request{Method: "GET", Path: "/users/me/"})
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := resp.UnmarshalData(&u); err != nil {
		return nil, err
	}
	m.state.SetAuthenticated(true)
	return &u, nil
}

// Status describes the stored session without contacting the API.
type Status struct {
	Origin          string     `json:"origin"`
	Email           string     `json:"email,omitempty"`
	LoggedIn        bool       `json:"logged_in"`
	AccessExpiresAt *time.Time `json:"access_expires_at,omitempty"`
	AccessExpired   bool       `json:"access_expired"`
	HasRefresh      bool       `json:"has_refresh"`
	Storage         string     `json:"storage"`
}

// Status reads the stored session. The access cookie's expiry comes from
// its JWT exp claim; the signature is not checked.
func (m *Manager) Status(now time.Time) Status {
	st := Status{
		Origin:   m.jar.Origin(),
		Email:    m.jar.Email(),
		LoggedIn: m.HasSession(),
		Storage:  "file",
	}
	if m.jar.store.UsingKeyring() {
		st.Storage = "keyring"
	}
	_, st.HasRefresh = m.jar.Get(RefreshCookie)

	access, ok := m.jar.Get(AccessCookie)
	if !ok {
		st.AccessExpired = true
		return st
	}
	if exp, err := AccessExpiry(access.Value); err == nil {
		st.AccessExpiresAt = &exp
		st.AccessExpired = !exp.After(now)
	}
	return st
}

// AccessExpiry returns the exp claim of an access token.
func AccessExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
