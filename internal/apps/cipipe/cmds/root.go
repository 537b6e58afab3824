package cipipe

import (
	"github.com/0xa1bed0/cipipe/internal/logs"
	"github.com/0xa1bed0/cipipe/internal/runtime"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbosity   int
	configPath  string
	projectPath string
	envFile     string
}

func Execute(rt *runtime.Runtime) error {
	return newRootCmd().ExecuteContext(rt.Ctx())
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "cipipe",
		Short: "Build, test and document a project inside its Docker image",
		Long: `cipipe runs a container CI pipeline against the local Docker daemon.

The build stage builds the project's image, reusing the layers of the previous
build, and pushes it. The test stage then runs the test suite and the docs
build inside that image, in parallel.`,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logs.SetDebugVerbosity(opts.verbosity)
			return nil
		},
		// we will handle that
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", "increase verbosity level")
	flags.StringVar(&opts.configPath, "config", "", "pipeline config file (default <project>/.cipipe.yml)")
	flags.StringVar(&opts.projectPath, "project", "", "project directory (default current directory)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file with secrets (default <project>/.env)")

	rootCmd.AddCommand(newBuildCmd(opts))
	rootCmd.AddCommand(newTestCmd(opts))
	rootCmd.AddCommand(newDocsCmd(opts))
	rootCmd.AddCommand(newPipelineCmd(opts))
	rootCmd.AddCommand(newPlanCmd(opts))
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newCacheCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
