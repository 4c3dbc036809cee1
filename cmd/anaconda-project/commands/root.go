package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	projectDir string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anaconda-project",
		Short: "Tool for managing reproducible data science projects",
		Long: `anaconda-project manages a declarative project configuration file
(project.yml) describing the conda environments, downloaded data files,
running services, environment variables, and commands a project needs.

Every mutation is transactional: the edit is staged in memory, its
real-world effect is attempted, and the file is only saved when the
attempt succeeds. A failed attempt leaves the file exactly as it was.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&projectDir, "directory", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newAddDownloadCommand())
	rootCmd.AddCommand(newRemoveDownloadCommand())
	rootCmd.AddCommand(newAddEnvironmentCommand())
	rootCmd.AddCommand(newRemoveEnvironmentCommand())
	rootCmd.AddCommand(newAddPackagesCommand())
	rootCmd.AddCommand(newRemovePackagesCommand())
	rootCmd.AddCommand(newAddVariableCommand())
	rootCmd.AddCommand(newRemoveVariableCommand())
	rootCmd.AddCommand(newAddCommandCommand())
	rootCmd.AddCommand(newRemoveCommandCommand())
	rootCmd.AddCommand(newAddServiceCommand())
	rootCmd.AddCommand(newRemoveServiceCommand())
	rootCmd.AddCommand(newPrepareCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
