package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		key, raw string
		want     any
		wantErr  bool
	}{
		{"hints", "yes", true, false},
		{"stats", "0", false, false},
		{"hints", "sometimes", nil, true},
		{"verbose", "2", 2, false},
		{"verbose", "3", nil, true},
		{"rate_limit", "1.5", 1.5, false},
		{"rate_limit", "-1", nil, true},
		{"rate_burst", "0", nil, true},
		{"timeout", "1m", "1m0s", false},
		{"timeout", "-1s", nil, true},
		{"timezone", "UTC", "UTC", false},
		{"timezone", "Nowhere/City", nil, true},
		{"format", "markdown", "markdown", false},
		{"format", "xml", nil, true},
		{"replay_policy", "if-authenticated", "if-authenticated", false},
		{"replay_policy", "never", nil, true},
		{"business_id", "42", "42", false},
		{"cache_dir", "/tmp", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.raw, func(t *testing.T) {
			got, err := ParseValue(tt.key, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetAndUnsetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	v, err := SetValue(path, "business_id", "7")
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	_, err = SetValue(path, "stats", "true")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7", data["business_id"])
	assert.Equal(t, true, data["stats"])

	removed, err := UnsetValue(path, "business_id")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = UnsetValue(path, "business_id")
	require.NoError(t, err)
	assert.False(t, removed)

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)
	assert.Empty(t, cfg.BusinessID)
	require.NotNil(t, cfg.Stats)
	assert.True(t, *cfg.Stats)
}

func TestSetDefaultProfileMustExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{
		"profiles": map[string]any{"prod": map[string]any{"base_url": "https://x"}},
	})

	_, err := SetValue(path, "default_profile", "dev")
	assert.ErrorContains(t, err, `profile "dev" not found`)

	_, err = SetValue(path, "default_profile", "prod")
	assert.NoError(t, err)
}

func TestReadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	_, err := ReadFile(path)
	assert.Error(t, err)
}
