package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the project files for changes",
		Long: `Watch project.yml and the host-local state file, reloading the project
and reporting new validation problems whenever either changes on disk.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := newDeps(cmd.Context())
			defer d.close()

			proj := d.loadProject()
			watcher, err := proj.Watch(cmd.Context(), d.logger)
			if err != nil {
				return fmt.Errorf("unable to watch %s: %w", projectDir, err)
			}
			defer watcher.Close()

			fmt.Fprintf(os.Stderr, "Watching %s (interrupt to stop)\n", projectDir)
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case event := <-watcher.Events():
					fmt.Printf("reloaded after change to %s\n", event.Path)
					for _, problem := range event.Problems {
						fmt.Printf("  problem: %s\n", problem)
					}
				}
			}
		},
	}
}
