package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newSummaryCmd() *cobra.Command {
	var opts commands.SummaryOpts

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the run summary",
		Long: `Show the summary report of the last run: kept, quarantined and discarded
counts, score distribution, top rejection reasons and a short narrative.
Without a report on disk the summary is computed from current scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(logWriter(cmd, opts.JSON), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.Summary(env, opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON (stable format)")
	cmd.Flags().BoolVar(&opts.Live, "live", false, "recompute from current scores and labels")

	return cmd
}
