package commands

import (
	"github.com/spf13/cobra"
)

func newAddServiceCommand() *cobra.Command {
	var variable string

	cmd := &cobra.Command{
		Use:   "add-service TYPE",
		Short: "Add a service requirement to the project",
		Long: `Add a requirement that a service of the given type be running, with
its address published through an environment variable.

The service is started immediately; the project file is only updated
if it comes up. Adding the same service twice is a no-op.`,
		Example: `  anaconda-project add-service redis`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.AddService(cmd.Context(), proj, args[0], variable))
		},
	}

	cmd.Flags().StringVar(&variable, "variable", "", "environment variable for the address (defaults per service type)")

	return cmd
}

func newRemoveServiceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-service NAME",
		Short: "Remove a service requirement from the project",
		Long: `Remove a service by its environment variable or, when unambiguous, by
its service type. Any running instance is stopped; a failure to stop
it never blocks the removal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.RemoveService(cmd.Context(), proj, args[0]))
		},
	}
}
