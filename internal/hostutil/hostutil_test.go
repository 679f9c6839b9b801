package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	for in, want := range map[string]string{
		"":                         "",
		"  api.slotbook.io  ":      "https://api.slotbook.io",
		"https://api.slotbook.io/": "https://api.slotbook.io",
		"staging.slotbook.io:8443": "https://staging.slotbook.io:8443",
		"localhost:8000":           "http://localhost:8000",
		"127.0.0.1:8000":           "http://127.0.0.1:8000",
		"[::1]:8000":               "http://[::1]:8000",
		"http://localhost:8000":    "http://localhost:8000",
		"localhost.example.com":    "https://localhost.example.com",
	} {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestIsLocalhost(t *testing.T) {
	loopback := []string{"localhost", "localhost:3000", "dev.localhost:8000", "127.0.0.1", "127.0.0.1:8000", "[::1]", "[::1]:3000"}
	remote := []string{"", "::1", "127.0.0.2", "api.slotbook.io", "localhost.example.com"}

	for _, h := range loopback {
		assert.True(t, IsLocalhost(h), h)
	}
	for _, h := range remote {
		assert.False(t, IsLocalhost(h), h)
	}
}

func TestRequireSecureURL(t *testing.T) {
	for _, ok := range []string{"", "https://api.slotbook.io", "http://localhost:8000", "http://[::1]:3000"} {
		assert.NoError(t, RequireSecureURL(ok), ok)
	}
	for _, bad := range []string{"http://api.slotbook.io", "http://10.0.0.5:8000"} {
		err := RequireSecureURL(bad)
		if assert.Error(t, err, bad) {
			assert.Contains(t, err.Error(), "insecure http://")
		}
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name, base, prefix, path, want string
	}{
		{"with prefix", "https://x.io", "/api", "/appointments/", "https://x.io/api/appointments/"},
		{"no leading slash", "https://x.io/", "api", "staff/", "https://x.io/api/staff/"},
		{"no prefix", "https://x.io", "", "/jwt/refresh/", "https://x.io/jwt/refresh/"},
		{"already prefixed", "https://x.io", "/api", "/api/staff/", "https://x.io/api/staff/"},
		{"absolute next link", "https://x.io", "/api", "https://x.io/api/staff/?page=2", "https://x.io/api/staff/?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinPath(tt.base, tt.prefix, tt.path))
		})
	}
}
