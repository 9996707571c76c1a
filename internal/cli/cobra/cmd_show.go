package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newShowCmd() *cobra.Command {
	var opts commands.ShowOpts

	cmd := &cobra.Command{
		Use:   "show <clip>",
		Short: "Show scores, label and decision of one clip",
		Long: `Show details for a single clip: its stage progress, scores, semantic
label, and the decision the current policy makes for it.

Arguments:
  clip    clip id, the path relative to the processing directory`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.UnitID = args[0]
			return withEnv(logWriter(cmd, opts.JSON), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.Show(env, opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON (stable format)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "output directory for the planned destination (overrides config)")

	return cmd
}
