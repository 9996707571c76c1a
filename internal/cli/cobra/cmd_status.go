package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newStatusCmd() *cobra.Command {
	var opts commands.StatusOpts

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show clip status and whether a run is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(logWriter(cmd, opts.JSON), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.Status(env, opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON (stable format)")

	return cmd
}
