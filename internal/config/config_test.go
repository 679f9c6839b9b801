package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.slotbook.app", cfg.BaseURL)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.NotNil(t, cfg.Sources)
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, configPath, map[string]any{
		"base_url":      "http://test.example.com",
		"business_id":   12345,
		"timezone":      "Europe/Berlin",
		"currency":      "EUR",
		"format":        "json",
		"state_dir":     "/tmp/state",
		"rate_limit":    2.5,
		"rate_burst":    3,
		"timeout":       "45s",
		"replay_policy": "if-authenticated",
		"hints":         false,
		"verbose":       1,
	})

	cfg := Default()
	loadFromFile(cfg, configPath, SourceGlobal)

	assert.Equal(t, "http://test.example.com", cfg.BaseURL)
	assert.Equal(t, "12345", cfg.BusinessID)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "/tmp/state", cfg.StateDir)
	assert.InDelta(t, 2.5, cfg.RateLimit, 0.001)
	assert.Equal(t, 3, cfg.RateBurst)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, "if-authenticated", cfg.ReplayPolicy)
	require.NotNil(t, cfg.Hints)
	assert.False(t, *cfg.Hints)
	require.NotNil(t, cfg.Verbose)
	assert.Equal(t, 1, *cfg.Verbose)

	assert.Equal(t, "global", cfg.Sources["base_url"])
	assert.Equal(t, "global", cfg.Sources["business_id"])
}

func TestLoadFromFileTimeoutSeconds(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, configPath, map[string]any{"timeout": 12})

	cfg := Default()
	loadFromFile(cfg, configPath, SourceGlobal)
	assert.Equal(t, 12*time.Second, cfg.Timeout)
}

func TestLoadFromFileSkipsInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte("not valid json"), 0644))

	cfg := Default()
	loadFromFile(cfg, configPath, SourceGlobal)

	assert.Equal(t, "https://api.slotbook.app", cfg.BaseURL)
}

func TestLoadFromFileSkipsMissingFile(t *testing.T) {
	cfg := Default()
	loadFromFile(cfg, "/nonexistent/path/config.json", SourceGlobal)
	assert.Equal(t, "https://api.slotbook.app", cfg.BaseURL)
}

func TestLoadFromFileRejectsBadValues(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, configPath, map[string]any{
		"rate_burst": 0.5,
		"verbose":    7,
		"timeout":    "soon",
	})

	cfg := Default()
	loadFromFile(cfg, configPath, SourceGlobal)

	assert.Equal(t, 5, cfg.RateBurst)
	assert.Nil(t, cfg.Verbose)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLocalConfigCannotSetAuthorityKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ".slotbook", "config.json")
	writeJSON(t, configPath, map[string]any{
		"base_url":    "https://evil.example.com",
		"api_prefix":  "/steal",
		"business_id": "7",
		"profiles": map[string]any{
			"x": map[string]any{"base_url": "https://evil.example.com"},
		},
	})

	for _, src := range []Source{SourceLocal, SourceRepo} {
		cfg := Default()
		loadFromFile(cfg, configPath, src)

		assert.Equal(t, "https://api.slotbook.app", cfg.BaseURL, src)
		assert.Equal(t, "/api", cfg.APIPrefix, src)
		assert.Empty(t, cfg.Profiles, src)
		assert.Equal(t, "7", cfg.BusinessID, src)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SLOTBOOK_BASE_URL", "http://env.example.com")
	t.Setenv("SLOTBOOK_BUSINESS_ID", "env-business")
	t.Setenv("SLOTBOOK_TIMEZONE", "UTC")
	t.Setenv("SLOTBOOK_RATE_LIMIT", "0")
	t.Setenv("SLOTBOOK_TIMEOUT", "5s")
	t.Setenv("SLOTBOOK_STATS", "1")
	t.Setenv("SLOTBOOK_HINTS", "maybe")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "http://env.example.com", cfg.BaseURL)
	assert.Equal(t, "env-business", cfg.BusinessID)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	require.NotNil(t, cfg.Stats)
	assert.True(t, *cfg.Stats)
	assert.Nil(t, cfg.Hints, "unrecognized bool is ignored")
	assert.Equal(t, "env", cfg.Sources["business_id"])
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.BusinessID = "original"

	ApplyOverrides(cfg, FlagOverrides{Business: "flag-business", Format: "json"})

	assert.Equal(t, "flag-business", cfg.BusinessID)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "flag", cfg.Sources["business_id"])
}

func TestApplyOverridesSkipsEmpty(t *testing.T) {
	cfg := Default()
	cfg.BusinessID = "original"
	cfg.Sources["business_id"] = "global"

	ApplyOverrides(cfg, FlagOverrides{})

	assert.Equal(t, "original", cfg.BusinessID)
	assert.Equal(t, "global", cfg.Sources["business_id"])
}

func TestFullLayeringPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	globalConfig := filepath.Join(tmpDir, "global.json")
	localConfig := filepath.Join(tmpDir, "local.json")

	writeJSON(t, globalConfig, map[string]any{
		"business_id": "global",
		"timezone":    "Europe/Berlin",
		"currency":    "EUR",
	})
	writeJSON(t, localConfig, map[string]any{
		"timezone": "Europe/Paris",
		"currency": "GBP",
	})
	t.Setenv("SLOTBOOK_CURRENCY", "USD")

	cfg := Default()
	loadFromFile(cfg, globalConfig, SourceGlobal)
	loadFromFile(cfg, localConfig, SourceLocal)
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, FlagOverrides{Business: "flag"})

	assert.Equal(t, "flag", cfg.BusinessID)
	assert.Equal(t, "Europe/Paris", cfg.Timezone)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, "local", cfg.Sources["timezone"])
}

func TestLoadLayersGlobalAndLocal(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)

	writeJSON(t, filepath.Join(tmpDir, "xdg", DirName, "config.json"), map[string]any{
		"base_url":    "https://staging.slotbook.app",
		"business_id": "1",
	})
	work := filepath.Join(tmpDir, "work")
	writeJSON(t, filepath.Join(work, "."+DirName, "config.json"), map[string]any{"business_id": "2"})
	t.Chdir(work)

	cfg, err := Load(FlagOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "https://staging.slotbook.app", cfg.BaseURL)
	assert.Equal(t, "2", cfg.BusinessID)
	assert.Equal(t, "local", cfg.Sources["business_id"])
}

func TestApplyProfile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, configPath, map[string]any{
		"default_profile": "staging",
		"profiles": map[string]any{
			"staging": map[string]any{
				"base_url":    "https://staging.slotbook.app",
				"business_id": 9,
				"timezone":    "UTC",
			},
			"broken": map[string]any{"business_id": 1},
		},
	})

	cfg := Default()
	loadFromFile(cfg, configPath, SourceGlobal)

	assert.Equal(t, "staging", cfg.DefaultProfile)
	require.Contains(t, cfg.Profiles, "staging")
	assert.NotContains(t, cfg.Profiles, "broken", "profiles without base_url are skipped")

	require.NoError(t, cfg.ApplyProfile("staging"))
	assert.Equal(t, "staging", cfg.ActiveProfile)
	assert.Equal(t, "https://staging.slotbook.app", cfg.BaseURL)
	assert.Equal(t, "9", cfg.BusinessID)
	assert.Equal(t, "profile", cfg.Sources["base_url"])

	assert.Error(t, cfg.ApplyProfile("missing"))
	assert.Error(t, Default().ApplyProfile("staging"))
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "America/New_York"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	cfg.Timezone = "Mars/Olympus"
	_, err = cfg.Location()
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/", "https://example.com"},
		{"https://example.com", "https://example.com"},
		{"http://localhost:8000/", "http://localhost:8000"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeBaseURL(tt.input))
	}
}

func TestGlobalConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/slotbook", GlobalConfigDir())

	t.Setenv("XDG_CONFIG_HOME", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".config", "slotbook"), GlobalConfigDir())
}

func TestIsInsideDir(t *testing.T) {
	assert.True(t, isInsideDir("/home/a/b", "/home/a"))
	assert.True(t, isInsideDir("/home/a", "/home/a"))
	assert.False(t, isInsideDir("/home/ab", "/home/a"))
}
