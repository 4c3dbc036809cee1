package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Dima2021/anaconda-project/pkg/localstate"
	"github.com/Dima2021/anaconda-project/pkg/ops"
	"github.com/Dima2021/anaconda-project/pkg/prepare"
	"github.com/Dima2021/anaconda-project/pkg/project"
	"github.com/Dima2021/anaconda-project/pkg/provision"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
	"github.com/Dima2021/anaconda-project/pkg/stores"
	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// deps bundles the collaborators a command needs. The history store
// is nil when it could not be opened; history is advisory.
type deps struct {
	logger   *telemetry.Logger
	registry *requirements.Registry
	preparer *prepare.Preparer
	ops      *ops.Ops
	history  *stores.HistoryStore
}

// newDeps builds the collaborator stack for the current project
// directory.
func newDeps(ctx context.Context) *deps {
	cfg := telemetry.DefaultLoggingConfig()
	if verbose {
		cfg.Level = "debug"
	}
	logger, err := telemetry.NewLogger(cfg)
	if err != nil {
		logger = telemetry.Nop()
	}

	history := openHistory(ctx, logger)

	registry := requirements.NewRegistry()
	preparer := prepare.NewPreparer(prepare.Config{
		Conda:      provision.NewCondaCLI(logger),
		Downloader: provision.NewHTTPDownloader(logger),
		Services:   provision.NewRedisManager(logger),
		History:    history,
		Logger:     logger,
	})

	return &deps{
		logger:   logger,
		registry: registry,
		preparer: preparer,
		ops: ops.New(ops.Config{
			Preparer: preparer,
			Conda:    provision.NewCondaCLI(logger),
			Registry: registry,
			Logger:   logger,
		}),
		history: history,
	}
}

// openHistory opens the run-history database under the project's
// .anaconda directory. Failures are logged and leave history disabled.
func openHistory(ctx context.Context, logger *telemetry.Logger) *stores.HistoryStore {
	dir := filepath.Join(projectDir, localstate.Dirname)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.WithError(err).Debug("history disabled")
		return nil
	}
	store, err := stores.NewHistoryStore(stores.Config{
		Path: filepath.Join(dir, "history.db"),
	})
	if err != nil {
		logger.WithError(err).Debug("history disabled")
		return nil
	}
	if err := store.Init(ctx); err != nil {
		logger.WithError(err).Debug("history disabled")
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		logger.WithError(err).Debug("history disabled")
		return nil
	}
	return store
}

// close releases resources held by the command's collaborators.
func (d *deps) close() {
	if d.history != nil {
		_ = d.history.Close()
	}
}

// loadProject loads the project in the configured directory.
func (d *deps) loadProject() *project.Project {
	return project.Load(projectDir, d.registry)
}

// reportStatus prints an operation outcome and converts a failure to
// an error for cobra.
func reportStatus(status *requirements.Status) error {
	if status.Success {
		fmt.Println(status.Description)
		return nil
	}
	for _, errLine := range status.Errors {
		fmt.Fprintln(os.Stderr, errLine)
	}
	return fmt.Errorf("%s", status.Description)
}
