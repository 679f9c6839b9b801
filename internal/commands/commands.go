package commands

import (
	"github.com/spf13/cobra"

	"github.com/slotbook/slotbook-cli/internal/appctx"
	"github.com/slotbook/slotbook-cli/internal/output"
)

// CommandInfo describes one top-level command in the catalog.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups catalog entries under a heading.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// catalog fixes the grouping and order; descriptions and actions come from
// the registered command tree so they cannot drift.
var catalog = []struct {
	key, title string
	names      []string
}{
	{"bookings", "Bookings", []string{"appointments", "dashboard"}},
	{"business", "Business", []string{"business", "staff", "services"}},
	{"auth", "Auth & Config", []string{"auth", "me", "config", "quick-start", "doctor"}},
	{"additional", "Additional Commands", []string{"commands", "completion", "api", "help", "version"}},
}

// CatalogCommandNames lists every command named in the catalog.
func CatalogCommandNames() []string {
	var names []string
	for _, group := range catalog {
		names = append(names, group.names...)
	}
	return names
}

func buildCatalog(root *cobra.Command) []CommandCategory {
	registered := map[string]*cobra.Command{}
	for _, c := range root.Commands() {
		registered[c.Name()] = c
	}

	out := make([]CommandCategory, 0, len(catalog))
	for _, group := range catalog {
		cat := CommandCategory{Name: group.title}
		for _, name := range group.names {
			info := CommandInfo{Name: name, Category: group.key}
			if c, ok := registered[name]; ok {
				info.Description = c.Short
				for _, sub := range c.Commands() {
					if sub.IsAvailableCommand() {
						info.Actions = append(info.Actions, sub.Name())
					}
				}
			}
			cat.Commands = append(cat.Commands, info)
		}
		out = append(out, cat)
	}
	return out
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all slotbook commands grouped by what they manage.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			return app.OK(buildCatalog(cmd.Root()),
				output.WithSummary("All available slotbook commands"),
				output.WithBreadcrumbs(crumb("help", "slotbook --help", "View help")),
			)
		},
	}
}
