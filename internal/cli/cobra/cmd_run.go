package cobra

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
)

func newRunCmd() *cobra.Command {
	var opts commands.RunOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline over every clip in the processing directory",
		Long: `Run the pipeline over every clip in the processing directory.

Stages run in order: the configured per-clip stages, then decide, plan,
execute and report. A stage every clip already completed is skipped, so
running again after a stop or a failure resumes where it left off.

Interrupt (Ctrl-C) or 'clipsift stop' lets in-flight clips finish and
launches nothing new.

Notes:
  - only one run per namespace at a time
  - after 'score set' or 'label set', use --redecide to rebuild decisions`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withEnv(logWriter(cmd, opts.JSON), cmd.ErrOrStderr(), func(env *commands.Env) error {
				return commands.Run(ctx, env, opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&opts.ProcessingDir, "processing-dir", "", "directory scanned for clips (overrides config)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "directory clips are copied under (overrides config)")
	cmd.Flags().BoolVar(&opts.Redecide, "redecide", false, "rerun decide, plan, execute and report even if done")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the run result as JSON")

	return cmd
}
