package commands

import (
	"github.com/spf13/cobra"
)

func newAddPackagesCommand() *cobra.Command {
	var (
		envName  string
		channels []string
	)

	cmd := &cobra.Command{
		Use:   "add-packages PACKAGE...",
		Short: "Add packages to an environment",
		Long: `Add package specs to a declared environment, or to the global
dependency section shared by all environments when no environment is
given.

The packages are installed immediately; the project file is only
updated if installation succeeds.`,
		Example: `  anaconda-project add-packages numpy pandas
  anaconda-project add-packages --env training pytorch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.AddPackages(cmd.Context(), proj, envName, args, channels))
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "environment to modify (defaults to the global section)")
	cmd.Flags().StringArrayVar(&channels, "channels", nil, "conda channel to use (repeatable)")

	return cmd
}

func newRemovePackagesCommand() *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "remove-packages PACKAGE...",
		Short: "Remove packages from an environment",
		Long: `Remove package specs from a declared environment, or from every
environment when no environment is given.

The packages are uninstalled from the real environments first; an
uninstall failure is logged but never blocks the project file edit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.RemovePackages(cmd.Context(), proj, envName, args))
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "environment to modify (defaults to all environments)")

	return cmd
}
