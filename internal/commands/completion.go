package commands

import (
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// completionShells maps each supported shell to its cobra generator.
var completionShells = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash":       func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":        func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish":       func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error { return root.GenPowerShellCompletionWithDesc(w) },
}

// NewCompletionCmd creates the completion command. Each shell is also a
// subcommand so `slotbook completion zsh --help` works.
func NewCompletionCmd() *cobra.Command {
	shells := slices.Sorted(func(yield func(string) bool) {
		for s := range completionShells {
			if !yield(s) {
				return
			}
		}
	})

	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for bash, zsh, fish or powershell.

  source <(slotbook completion bash)
  slotbook completion zsh > "${fpath[1]}/_slotbook"
  slotbook completion fish > ~/.config/fish/completions/slotbook.fish
  slotbook completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionShells[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}

	for _, shell := range shells {
		cmd.AddCommand(&cobra.Command{
			Use:                   shell,
			Short:                 "Generate the " + shell + " completion script",
			DisableFlagsInUseLine: true,
			Args:                  cobra.NoArgs,
			RunE: func(sub *cobra.Command, _ []string) error {
				return completionShells[shell](sub.Root(), sub.OutOrStdout())
			},
		})
	}
	return cmd
}
