package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/slotbook/slotbook-cli/internal/booking"
	"github.com/slotbook/slotbook-cli/internal/models"
)

// StatusValue is a repeatable, comma-separated appointment status flag.
type StatusValue struct {
	statuses []string
}

var _ pflag.Value = (*StatusValue)(nil)

func (v *StatusValue) String() string {
	return strings.Join(v.statuses, ",")
}

// Set appends each status, rejecting unknown ones. no-show is accepted
// for no_show.
func (v *StatusValue) Set(raw string) error {
	for part := range strings.SplitSeq(raw, ",") {
		s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), "-", "_")
		if s == "" {
			continue
		}
		if !booking.ValidStatus(s) {
			return fmt.Errorf("unknown status %q (use %s)", part, strings.Join(models.Statuses, ", "))
		}
		if !contains(v.statuses, s) {
			v.statuses = append(v.statuses, s)
		}
	}
	return nil
}

func (v *StatusValue) Type() string {
	return "statuses"
}

// Statuses returns the collected statuses.
func (v *StatusValue) Statuses() []string {
	return v.statuses
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
