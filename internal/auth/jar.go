package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"
)

// CookieJar is an http.CookieJar that persists the session cookies of one
// API origin to a Store after every response that sets cookies.
type CookieJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	store   *Store
	origin  string
	u       *url.URL
	cookies map[string]StoredCookie
	email   string
	logger  *slog.Logger
	now     func() time.Time
}

// NewCookieJar loads any stored session for origin.
func NewCookieJar(store *Store, origin string, logger *slog.Logger) (*CookieJar, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	j := &CookieJar{store: store, origin: origin, u: u, logger: logger, now: time.Now}
	if err := j.Reload(); err != nil {
		return nil, err
	}
	return j, nil
}

// Origin returns the origin the jar persists for.
func (j *CookieJar) Origin() string {
	return j.origin
}

// Cookies implements http.CookieJar.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// SetCookies implements http.CookieJar. Cookies for the jar's origin are
// written through to the store; a failed write is logged, not returned.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	j.jar.SetCookies(u, cookies)
	if u.Host != j.u.Host {
		j.mu.Unlock()
		return
	}
	now := j.now()
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.cookies, c.Name)
			continue
		}
		sc := StoredCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[c.Name] = sc
	}
	err := j.saveLocked()
	j.mu.Unlock()

	if err != nil {
		j.logger.Warn("failed to persist session cookies", "origin", j.origin, "error", err)
	}
}

// Get returns the live value of the named cookie.
func (j *CookieJar) Get(name string) (StoredCookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok || c.Expired(j.now()) {
		return StoredCookie{}, false
	}
	return c, true
}

// Email returns the account the session belongs to, if recorded.
func (j *CookieJar) Email() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.email
}

// SetEmail records the account owning the session and persists it.
func (j *CookieJar) SetEmail(email string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.email = email
	return j.saveLocked()
}

// Reload discards in-memory cookies and reads the stored session again.
// Another process may have refreshed the session since the jar was loaded.
func (j *CookieJar) Reload() error {
	creds, err := j.store.Load(j.origin)
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return fmt.Errorf("loading session: %w", err)
	}

	inner, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = inner
	j.cookies = make(map[string]StoredCookie)
	j.email = ""
	if creds == nil {
		return nil
	}

	now := j.now()
	live := make([]*http.Cookie, 0, len(creds.Cookies))
	for _, c := range creds.Cookies {
		if c.Expired(now) {
			continue
		}
		j.cookies[c.Name] = c
		live = append(live, c.httpCookie())
	}
	j.jar.SetCookies(j.u, live)
	j.email = creds.Email
	return nil
}

// Clear drops every cookie and deletes the stored session.
func (j *CookieJar) Clear() error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = inner
	j.cookies = make(map[string]StoredCookie)
	j.email = ""
	j.mu.Unlock()
	return j.store.Delete(j.origin)
}

func (j *CookieJar) saveLocked() error {
	if len(j.cookies) == 0 && j.email == "" {
		return j.store.Delete(j.origin)
	}
	creds := &Credentials{Email: j.email, UpdatedAt: j.now().UTC()}
	for _, c := range j.cookies {
		creds.Cookies = append(creds.Cookies, c)
	}
	sort.Slice(creds.Cookies, func(a, b int) bool { return creds.Cookies[a].Name < creds.Cookies[b].Name })
	return j.store.Save(j.origin, creds)
}
