package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAddVariableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-variable NAME[=VALUE]...",
		Short: "Add required environment variables to the project",
		Long: `Declare environment variables the project needs. A bare NAME adds a
placeholder; NAME=VALUE also records the value in the host-local state
file (never in the shared project file).

Variables have no real-world effect to validate, so this edit always
saves.`,
		Example: `  anaconda-project add-variable AMQP_URL
  anaconda-project add-variable DB_PASSWORD=hunter2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := make(map[string]string, len(args))
			for _, arg := range args {
				name, value, _ := strings.Cut(arg, "=")
				if name == "" {
					return fmt.Errorf("invalid variable %q", arg)
				}
				vars[name] = value
			}

			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.AddVariables(proj, vars))
		},
	}

	return cmd
}

func newRemoveVariableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-variable NAME...",
		Short: "Remove environment variables from the project",
		Long: `Remove variable declarations from the project file and their recorded
values from the host-local state file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.RemoveVariables(proj, args))
		},
	}
}
