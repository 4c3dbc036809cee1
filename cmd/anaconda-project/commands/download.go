package commands

import (
	"github.com/spf13/cobra"
)

func newAddDownloadCommand() *cobra.Command {
	var filename string

	cmd := &cobra.Command{
		Use:   "add-download ENV_VAR URL",
		Short: "Add a downloaded file to the project",
		Long: `Add a requirement that URL be downloaded into the project directory,
with the local path published through ENV_VAR.

The download is fetched immediately; the project file is only updated
if the fetch succeeds.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.AddDownload(cmd.Context(), proj, args[0], args[1], filename))
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "local path for the downloaded file (defaults to the URL's filename)")

	return cmd
}

func newRemoveDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-download ENV_VAR",
		Short: "Remove a downloaded file from the project",
		Long: `Remove the download requirement for ENV_VAR, deleting the downloaded
file from the project directory if present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			return reportStatus(d.ops.RemoveDownload(cmd.Context(), proj, args[0]))
		},
	}
}
