package commands

import (
	"fmt"
	"os"

	"github.com/Dima2021/anaconda-project/pkg/prepare"
	"github.com/Dima2021/anaconda-project/pkg/provision"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
	"github.com/spf13/cobra"
)

func newPrepareCommand() *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Set up the project requirements to run",
		Long: `Attempt to satisfy every requirement of the project: create or update
the conda environment, fetch downloads, start services, and resolve
variables.

On success, shell export lines for the resolved variables are printed
to stdout.`,
		Example: `  # Prepare and apply the resulting variables to the current shell
  eval "$(anaconda-project prepare)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			if len(proj.Problems()) > 0 {
				for _, problem := range proj.Problems() {
					fmt.Fprintln(os.Stderr, problem)
				}
				return fmt.Errorf("unable to load the project")
			}

			result := d.preparer.Prepare(cmd.Context(), proj, prepare.Options{
				EnvironmentName: envName,
			})
			for _, status := range result.Statuses() {
				fmt.Fprintf(os.Stderr, "%s %s\n", statusMark(status), status.Description)
				for _, errLine := range status.Errors {
					fmt.Fprintf(os.Stderr, "    %s\n", errLine)
				}
			}
			if !result.AllSucceeded() {
				return fmt.Errorf("unable to prepare the project")
			}

			for _, status := range result.Statuses() {
				if status.Requirement == nil || status.Value == "" {
					continue
				}
				if status.Requirement.Kind() == requirements.KindCondaEnv {
					// Activate the environment for eval'd output.
					fmt.Printf("export %s=%q\n", requirements.CondaEnvVariable, status.Value)
					fmt.Printf("export PATH=%q\n", provision.SetCondaEnvInPath(os.Getenv("PATH"), status.Value))
					continue
				}
				fmt.Printf("export %s=%q\n", status.Requirement.EnvVar(), status.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "conda environment to prepare (defaults to the default environment)")

	return cmd
}

func statusMark(status *requirements.Status) string {
	if status.Success {
		return "✓"
	}
	return "✗"
}
