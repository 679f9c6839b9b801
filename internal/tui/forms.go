package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}

func validEmail(s string) error {
	if _, _, ok := strings.Cut(strings.TrimSpace(s), "@"); !ok {
		return errors.New("enter a valid email address")
	}
	return nil
}

func passwordField(title string, value *string) *huh.Input {
	return huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(value).
		Validate(required)
}

// Password prompts for a masked, non-empty secret.
func Password(title string) (string, error) {
	var secret string
	err := passwordField(title, &secret).Run()
	return secret, err
}

// Credentials prompts for the login email and password on one screen.
// email pre-fills the address field.
func Credentials(title, email string) (string, string, error) {
	var password string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Email").Placeholder("you@example.com").Value(&email).Validate(validEmail),
		passwordField("Password", &password),
	).Title(title)).Run()
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(email), password, nil
}

// ConfirmDangerous asks before deleting a booking resource. Declining
// returns false with a nil error.
func ConfirmDangerous(message string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(message).
		Description("This cannot be undone.").
		Affirmative("Delete").
		Negative("Keep").
		Value(&ok).
		Run()
	return ok && err == nil, err
}

// IsAborted reports whether the user quit a prompt or spinner.
func IsAborted(err error) bool {
	return errors.Is(err, huh.ErrUserAborted) || errors.Is(err, ErrCanceled)
}
