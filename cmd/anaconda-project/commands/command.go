package commands

import (
	"strings"

	"github.com/Dima2021/anaconda-project/pkg/project"
	"github.com/spf13/cobra"
)

func newAddCommandCommand() *cobra.Command {
	var commandType string

	cmd := &cobra.Command{
		Use:   "add-command NAME COMMAND",
		Short: "Add a named command to the project",
		Long: `Add a way to run the project: a shell command line, a notebook file,
or a bokeh app directory, stored under NAME.

The edit commits only if the resulting project file validates; for
example a name cannot mix a notebook with a shell command.`,
		Example: `  anaconda-project add-command --type shell default "python analyze.py"
  anaconda-project add-command --type notebook explore explore.ipynb`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.AddCommand(proj, commandType, args[0], args[1]))
		},
	}

	cmd.Flags().StringVar(&commandType, "type", "shell",
		"command type: "+strings.Join(project.CommandTypes, ", "))

	return cmd
}

func newRemoveCommandCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-command NAME",
		Short: "Remove a named command from the project",
		Long: `Remove the command stored under NAME. Auto-generated commands belong
to the system and cannot be removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.RemoveCommand(proj, args[0]))
		},
	}
}
