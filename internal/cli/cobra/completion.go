package cobra

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/fs"
)

func newCompletionCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts.
By default, prints the script to stdout.
Use --output to write directly to a file.

Arguments:
  shell    target shell: bash, zsh or fish

Installation:

  bash (with bash-completion package):
    clipsift completion bash > ~/.local/share/bash-completion/completions/clipsift

  zsh (with fpath):
    clipsift completion zsh > ~/.zsh/completions/_clipsift
    # ensure ~/.zsh/completions is in fpath before compinit

  fish:
    clipsift completion fish > ~/.config/fish/completions/clipsift.fish

After installation, restart your shell.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return genCompletion(cmd.Root(), args[0], cmd.OutOrStdout())
			}

			var buf bytes.Buffer
			if err := genCompletion(cmd.Root(), args[0], &buf); err != nil {
				return err
			}
			if err := fs.WriteFileAtomic(fs.NewRealFS(), output, buf.Bytes(), 0o644); err != nil {
				return errors.WrapWithDetails(errors.EInternal, fmt.Sprintf("failed to write %s", output), err,
					map[string]string{"path": output})
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "write completion script to file instead of stdout")

	return cmd
}

func genCompletion(root *cobra.Command, shell string, w io.Writer) error {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(w, true)
	case "zsh":
		err = root.GenZshCompletion(w)
	case "fish":
		err = root.GenFishCompletion(w, true)
	default:
		return errors.New(errors.EUsage, fmt.Sprintf("unsupported shell: %s (supported: bash, zsh, fish)", shell))
	}
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to generate completion script", err)
	}
	return nil
}
