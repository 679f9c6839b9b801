package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTheme(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, ThemeFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadThemeFromFile(t *testing.T) {
	path := writeTheme(t, t.TempDir(), `
primary: "#ff0000"
error:
  light: "#aa0000"
  dark: "#ff5555"
muted:
  dark: "#333"
`)

	theme, err := LoadThemeFromFile(path)
	require.NoError(t, err)

	defaults := DefaultTheme()
	assert.Equal(t, "#ff0000", theme.Primary.Light)
	assert.Equal(t, "#ff0000", theme.Primary.Dark)
	assert.Equal(t, "#aa0000", theme.Error.Light)
	assert.Equal(t, "#ff5555", theme.Error.Dark)
	assert.Equal(t, defaults.Muted.Light, theme.Muted.Light, "missing side keeps default")
	assert.Equal(t, "#333", theme.Muted.Dark)
	assert.Equal(t, defaults.Success, theme.Success)
}

func TestLoadThemeFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", `accent: "#ff0000"`, "unknown color"},
		{"bad hex", `primary: "red"`, "invalid color"},
		{"bad pair", "primary:\n  dark: \"#12345\"", "invalid color"},
		{"not yaml", "primary: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTheme(t, filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")), tt.content)
			_, err := LoadThemeFromFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadThemeFromFile("/nonexistent/theme.yaml")
	assert.Error(t, err)
}

func TestIsValidHexColor(t *testing.T) {
	for _, ok := range []string{"#fff", "#FFFFFF", "#0b7a75"} {
		assert.True(t, isValidHexColor(ok), ok)
	}
	for _, bad := range []string{"", "fff", "#ffff", "#ggg", "#1234567"} {
		assert.False(t, isValidHexColor(bad), bad)
	}
}

func TestNoColorTheme(t *testing.T) {
	theme := NoColorTheme()

	assert.Empty(t, theme.Primary.Light)
	assert.Empty(t, theme.Primary.Dark)
	assert.Empty(t, theme.Error.Dark)
	assert.Empty(t, theme.Border.Dark)
}

func unsetenvForTest(t *testing.T, key string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	os.Unsetenv(key)
	if existed {
		t.Cleanup(func() { os.Setenv(key, prev) })
	}
}

func TestResolveTheme(t *testing.T) {
	t.Run("NO_COLOR returns empty theme", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.Empty(t, ResolveTheme().Primary.Dark)
	})

	t.Run("SLOTBOOK_THEME loads custom file", func(t *testing.T) {
		unsetenvForTest(t, "NO_COLOR")
		t.Setenv("SLOTBOOK_THEME", writeTheme(t, t.TempDir(), `primary: "#ff0000"`))

		assert.Equal(t, "#ff0000", ResolveTheme().Primary.Dark)
	})

	t.Run("user theme in config dir", func(t *testing.T) {
		unsetenvForTest(t, "NO_COLOR")
		unsetenvForTest(t, "SLOTBOOK_THEME")
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		writeTheme(t, filepath.Join(xdg, "slotbook"), `primary: "#00ff00"`)

		assert.Equal(t, "#00ff00", ResolveTheme().Primary.Dark)
	})

	t.Run("invalid SLOTBOOK_THEME falls back to default", func(t *testing.T) {
		unsetenvForTest(t, "NO_COLOR")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("SLOTBOOK_THEME", "/nonexistent/theme.yaml")

		assert.Equal(t, DefaultTheme(), ResolveTheme())
	})
}

func TestRenderProgress(t *testing.T) {
	s := NewStylesWithTheme(NoColorTheme())

	out := s.RenderProgress(2, 6, "Location", 12)
	assert.Contains(t, out, "Step 2 of 6")
	assert.Contains(t, out, "Location")
	assert.Equal(t, 4, strings.Count(out, "█"))
	assert.Equal(t, 8, strings.Count(out, "░"))

	assert.Empty(t, s.RenderProgress(1, 0, "x", 10))
}

func TestRenderStatus(t *testing.T) {
	s := NewStylesWithTheme(NoColorTheme())
	assert.Contains(t, s.RenderStatus(true, "Created"), "✓ Created")
	assert.Contains(t, s.RenderStatus(false, "Failed"), "✗ Failed")
}
