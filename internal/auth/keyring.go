package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zalando/go-keyring"
)

// ErrNoCredentials is returned when nothing is stored for an origin.
var ErrNoCredentials = errors.New("no stored session")

// StoredCookie is the persisted form of a session cookie.
type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// Expired reports whether the cookie carries an expiry before now.
func (c StoredCookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c StoredCookie) httpCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

// Credentials holds the session cookies for one API origin.
type Credentials struct {
	Cookies   []StoredCookie `json:"cookies"`
	Email     string         `json:"email,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Cookie returns the named cookie.
func (c *Credentials) Cookie(name string) (StoredCookie, bool) {
	if c == nil {
		return StoredCookie{}, false
	}
	for _, ck := range c.Cookies {
		if ck.Name == name {
			return ck, true
		}
	}
	return StoredCookie{}, false
}

// Store persists Credentials per API origin. It uses the OS keychain when
// one answers and falls back to a 0600 JSON file keyed by origin.
type Store struct {
	useKeyring  bool
	fallbackDir string
}

// NewStore probes the keychain once. SLOTBOOK_NO_KEYRING forces the file
// backend.
func NewStore(fallbackDir string) *Store {
	s := &Store{fallbackDir: fallbackDir}
	if os.Getenv("SLOTBOOK_NO_KEYRING") != "" {
		return s
	}
	const probe = keyPrefix + "probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, session stored in plaintext at %s\n", s.filePath())
		return s
	}
	_ = keyring.Delete(keyringService, probe)
	s.useKeyring = true
	return s
}

const (
	keyringService = "slotbook"
	keyPrefix      = "slotbook::"
)

// UsingKeyring reports which backend is active.
func (s *Store) UsingKeyring() bool { return s.useKeyring }

func (s *Store) Load(origin string) (*Credentials, error) {
	if !s.useKeyring {
		all, err := s.readFile()
		if err != nil {
			return nil, err
		}
		if creds, ok := all[origin]; ok {
			return creds, nil
		}
		return nil, ErrNoCredentials
	}

	raw, err := keyring.Get(keyringService, keyPrefix+origin)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil, ErrNoCredentials
	case err != nil:
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return &creds, nil
}

func (s *Store) Save(origin string, creds *Credentials) error {
	if !s.useKeyring {
		return s.editFile(func(all map[string]*Credentials) bool {
			all[origin] = creds
			return true
		})
	}
	return s.putKeyring(origin, creds)
}

// Delete removes the session for origin; a missing entry is not an error.
func (s *Store) Delete(origin string) error {
	if !s.useKeyring {
		return s.editFile(func(all map[string]*Credentials) bool {
			_, ok := all[origin]
			delete(all, origin)
			return ok
		})
	}
	if err := keyring.Delete(keyringService, keyPrefix+origin); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// MigrateToKeyring moves sessions from the plaintext file into the keychain
// and removes the file. A no-op on the file backend.
func (s *Store) MigrateToKeyring() error {
	if !s.useKeyring {
		return nil
	}
	all, err := s.readFile()
	if err != nil || len(all) == 0 {
		return nil //nolint:nilerr // unreadable or absent file leaves nothing to move
	}
	for origin, creds := range all {
		if err := s.putKeyring(origin, creds); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", origin, err)
		}
	}
	_ = os.Remove(s.filePath())
	return nil
}

func (s *Store) putKeyring(origin string, creds *Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyPrefix+origin, string(data))
}

func (s *Store) filePath() string {
	return filepath.Join(s.fallbackDir, "credentials.json")
}

func (s *Store) readFile() (map[string]*Credentials, error) {
	all := map[string]*Credentials{}
	data, err := os.ReadFile(s.filePath())
	if errors.Is(err, fs.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string]*Credentials{}
	}
	return all, nil
}

// editFile applies fn to the stored map and rewrites the file when fn
// reports a change.
func (s *Store) editFile(fn func(map[string]*Credentials) bool) error {
	all, err := s.readFile()
	if err != nil {
		return err
	}
	if !fn(all) {
		return nil
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.fallbackDir, s.filePath(), data)
}

// writeFileAtomic writes data to a 0600 temp file in dir and renames it
// over dest.
func writeFileAtomic(dir, dest string, data []byte) (err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "credentials-*.json.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Chmod(0o600)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), dest); err != nil && runtime.GOOS == "windows" {
		// Windows refuses to rename over an existing file.
		_ = os.Remove(dest)
		err = os.Rename(tmp.Name(), dest)
	}
	return err
}
