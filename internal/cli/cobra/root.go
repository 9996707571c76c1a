// Package cobra provides the Cobra-based CLI command tree for clipsift.
package cobra

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/clipsift/internal/commands"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
	"github.com/NielsdaWheelz/clipsift/internal/logging"
	"github.com/NielsdaWheelz/clipsift/internal/version"
)

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts commands.GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() commands.GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for clipsift.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clipsift",
		Short: "Resumable scoring and triage pipeline for short video clips",
		Long: `clipsift - resumable scoring and triage pipeline for short video clips

clipsift scores every clip under a processing directory with external
perception commands, labels it semantically, decides keep, quarantine or
discard with a weighted policy, and copies each clip into an output folder.
Progress is persisted per clip and per stage, so an interrupted run resumes
where it stopped.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch globalOpts.Color {
			case logging.ColorAuto, logging.ColorAlways, logging.ColorNever:
				return nil
			}
			return errors.New(errors.EUsage, "--color must be auto, always or never")
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&globalOpts.Namespace, "namespace", "n", "", "namespace to operate on (env CLIPSIFT_NAMESPACE)")
	pf.StringVar(&globalOpts.DataDir, "data-dir", "", "data directory (env CLIPSIFT_DATA_DIR)")
	pf.StringVarP(&globalOpts.ConfigPath, "config", "c", "", "pipeline config file (env CLIPSIFT_CONFIG)")
	pf.StringVar(&globalOpts.Color, "color", logging.ColorAuto, "colorize log output: auto, always or never")
	pf.BoolVar(&globalOpts.Verbose, "verbose", false, "show debug logs and detailed error context")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(),
		newStopCmd(),
		newStatusCmd(),
		newShowCmd(),
		newSummaryCmd(),
		newResetCmd(),
		newScoreCmd(),
		newLabelCmd(),
		newCompletionCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

// withEnv resolves the command environment, runs fn and releases the env.
// logOut receives info-level logs; JSON commands pass stderr so stdout
// stays machine-readable.
func withEnv(logOut, stderr io.Writer, fn func(env *commands.Env) error) error {
	env, err := commands.ResolveOSEnv(globalOpts, logOut, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()
	return fn(env)
}

// logWriter picks the log destination for a command.
func logWriter(cmd *cobra.Command, jsonOutput bool) io.Writer {
	if jsonOutput {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}
