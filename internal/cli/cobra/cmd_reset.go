package cobra

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newResetCmd() *cobra.Command {
	var opts commands.ResetOpts

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all state of the namespace",
		Long: `Wipe the namespace: clip state, scores, labels, decisions, reports and
the output directory when it lives inside the namespace.
Source clips in the processing directory are never touched.

Requires --yes, or typing 'reset' at an interactive prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.OutOrStdout(), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.Reset(context.Background(), env, opts, cmd.InOrStdin(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "output directory to clear (overrides config)")

	return cmd
}
