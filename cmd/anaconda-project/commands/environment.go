package commands

import (
	"github.com/spf13/cobra"
)

func newAddEnvironmentCommand() *cobra.Command {
	var (
		packages []string
		channels []string
	)

	cmd := &cobra.Command{
		Use:   "add-environment NAME",
		Short: "Add a conda environment to the project",
		Long: `Declare a new conda environment with the given packages and channels.

The environment is created on disk immediately; the project file is
only updated if creation succeeds.`,
		Example: `  anaconda-project add-environment training --packages python=3.11 --packages pytorch`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.AddEnvironment(cmd.Context(), proj, args[0], packages, channels))
		},
	}

	cmd.Flags().StringArrayVar(&packages, "packages", nil, "package spec to include (repeatable)")
	cmd.Flags().StringArrayVar(&channels, "channels", nil, "conda channel to use (repeatable)")

	return cmd
}

func newRemoveEnvironmentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-environment NAME",
		Short: "Remove a conda environment from the project",
		Long: `Remove a declared environment and delete its directory on disk.

The default environment cannot be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.RemoveEnvironment(proj, args[0]))
		},
	}
}
