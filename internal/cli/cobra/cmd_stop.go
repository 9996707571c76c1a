package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the active run to stop",
		Long: `Ask the active run in the namespace to stop.
Clips already being processed finish; no further clips or stages start.
Progress is kept; 'clipsift run' resumes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.OutOrStdout(), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.Stop(env, cmd.OutOrStdout())
			})
		},
	}
	return cmd
}
