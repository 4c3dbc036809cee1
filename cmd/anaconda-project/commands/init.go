package commands

import (
	"fmt"

	"github.com/Dima2021/anaconda-project/pkg/ops"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var (
		name        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new project",
		Long: `Initialize a project in the given directory, creating a project.yml.

The file is only written when the resulting project has no validation
problems.`,
		Example: `  # Initialize a project in the current directory
  anaconda-project init

  # Initialize a named project elsewhere
  anaconda-project init --directory ~/analysis --name analysis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj, status := d.ops.Create(projectDir, ops.CreateOptions{
				MakeDirectory: true,
				Name:          name,
				Description:   description,
			})
			if err := reportStatus(status); err != nil {
				return err
			}
			fmt.Printf("Project: %s\n", proj.Name())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (defaults to the directory name)")
	cmd.Flags().StringVar(&description, "description", "", "project description")

	return cmd
}
