package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/slotbook/slotbook-cli/internal/config"
)

// ThemeFileName is the user theme inside the global config directory.
const ThemeFileName = "theme.yaml"

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR env var set → returns NoColorTheme
//  2. SLOTBOOK_THEME env var → path to a theme.yaml file
//  3. User theme from ~/.config/slotbook/theme.yaml
//  4. Default slotbook theme
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}

	if path := os.Getenv("SLOTBOOK_THEME"); path != "" {
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}

	if theme, err := LoadThemeFromFile(filepath.Join(config.GlobalConfigDir(), ThemeFileName)); err == nil {
		return theme
	}

	return DefaultTheme()
}

// NoColorTheme returns a theme with empty colors.
// Lipgloss treats empty strings as "no color", resulting in plain text output.
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{Light: "", Dark: ""}
	return Theme{
		Primary:   empty,
		Secondary: empty,
		Success:   empty,
		Warning:   empty,
		Error:     empty,
		Muted:     empty,
		Border:    empty,
	}
}

// themeFile is the on-disk theme. Each color is either a single hex value
// used for both backgrounds or a {light, dark} pair.
type themeFile map[string]themeColor

type themeColor struct {
	Light string `yaml:"light"`
	Dark  string `yaml:"dark"`
}

// UnmarshalYAML accepts "#rrggbb" or {light: ..., dark: ...}.
func (c *themeColor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Light, c.Dark = node.Value, node.Value
		return nil
	}
	type plain themeColor
	return node.Decode((*plain)(c))
}

// LoadThemeFromFile parses a theme.yaml file. Unknown keys and invalid colors
// are rejected so a typo does not silently fall back to defaults.
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return Theme{}, err
	}

	var file themeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Theme{}, fmt.Errorf("parse %s: %w", path, err)
	}

	theme := DefaultTheme()
	slots := map[string]*lipgloss.AdaptiveColor{
		"primary":   &theme.Primary,
		"secondary": &theme.Secondary,
		"success":   &theme.Success,
		"warning":   &theme.Warning,
		"error":     &theme.Error,
		"muted":     &theme.Muted,
		"border":    &theme.Border,
	}
	for key, color := range file {
		slot, ok := slots[strings.ToLower(key)]
		if !ok {
			return Theme{}, fmt.Errorf("%s: unknown color %q", path, key)
		}
		for _, v := range []string{color.Light, color.Dark} {
			if v != "" && !isValidHexColor(v) {
				return Theme{}, fmt.Errorf("%s: %s: invalid color %q", path, key, v)
			}
		}
		slot.Light = getOrDefault(color.Light, slot.Light)
		slot.Dark = getOrDefault(color.Dark, slot.Dark)
	}
	return theme, nil
}

// isValidHexColor checks if a string is a valid hex color (#RGB or #RRGGBB).
func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range hex {
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'f'
		isUpper := c >= 'A' && c <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}

func getOrDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
