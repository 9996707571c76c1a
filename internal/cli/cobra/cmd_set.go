package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Manage metric scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	set := &cobra.Command{
		Use:   "set <clip> <metric> <value>",
		Short: "Record a metric score for a clip",
		Long: `Record a metric score for a clip, as a perception stage would.
Values outside [0,1] are clamped.

Arguments:
  clip      clip id
  metric    metric name, e.g. face, motion, speech
  value     number`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commands.SetScoreOpts{UnitID: args[0], Metric: args[1], Value: args[2]}
			return withEnv(cmd.ErrOrStderr(), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.SetScore(env, opts, cmd.OutOrStdout())
			})
		},
	}
	cmd.AddCommand(set)
	return cmd
}

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage semantic labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var opts commands.SetLabelOpts
	set := &cobra.Command{
		Use:   "set <clip> <category>",
		Short: "Record a semantic label for a clip",
		Long: `Record a semantic label for a clip. Labels set here default to
attribution 'manual' and are kept by later transcribe stages.

Arguments:
  clip        clip id
  category    a configured category, unknown or low_quality`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.UnitID = args[0]
			opts.Category = args[1]
			return withEnv(cmd.ErrOrStderr(), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.SetLabel(env, opts, cmd.OutOrStdout())
			})
		},
	}
	set.Flags().StringVar(&opts.Transcript, "transcript", "", "transcript text to store with the label")
	set.Flags().StringVar(&opts.Attribution, "attribution", "", "regex, llm, fallback or manual (default manual)")
	cmd.AddCommand(set)
	return cmd
}
