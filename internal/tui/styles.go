// Package tui provides terminal prompts, styles and the interactive
// onboarding wizard.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
}

// DefaultTheme returns the default slotbook theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.AdaptiveColor{Light: "#0b7a75", Dark: "#5fd3bc"},
		Secondary: lipgloss.AdaptiveColor{Light: "#5f6368", Dark: "#9aa0a6"},
		Success:   lipgloss.AdaptiveColor{Light: "#1e8e3e", Dark: "#81c995"},
		Warning:   lipgloss.AdaptiveColor{Light: "#f9ab00", Dark: "#fdd663"},
		Error:     lipgloss.AdaptiveColor{Light: "#d93025", Dark: "#f28b82"},
		Muted:     lipgloss.AdaptiveColor{Light: "#80868b", Dark: "#6e7681"},
		Border:    lipgloss.AdaptiveColor{Light: "#dadce0", Dark: "#3c4043"},
	}
}

// Styles are the lipgloss styles derived from one Theme.
type Styles struct {
	Muted, Bold, Error    lipgloss.Style
	Box, Bar              lipgloss.Style
	StatusOK, StatusError lipgloss.Style
}

func NewStylesWithTheme(theme Theme) *Styles {
	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return &Styles{
		Muted:       fg(theme.Muted),
		Bold:        lipgloss.NewStyle().Bold(true),
		Error:       fg(theme.Error),
		Box:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(theme.Border).Padding(1, 2),
		Bar:         fg(theme.Primary),
		StatusOK:    fg(theme.Success).Bold(true),
		StatusError: fg(theme.Error).Bold(true),
	}
}

// RenderStatus renders a status message with appropriate styling.
func (s *Styles) RenderStatus(ok bool, message string) string {
	if ok {
		return s.StatusOK.Render("✓ " + message)
	}
	return s.StatusError.Render("✗ " + message)
}

// RenderProgress renders "Step 2 of 6 · Location" above a bar of width cells.
func (s *Styles) RenderProgress(index, total int, label string, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	filled := min(index*width/total, width)
	bar := s.Bar.Render(strings.Repeat("█", filled)) + s.Muted.Render(strings.Repeat("░", width-filled))
	head := s.Muted.Render(fmt.Sprintf("Step %d of %d · ", index, total)) + s.Bold.Render(label)
	return head + "\n" + bar
}
