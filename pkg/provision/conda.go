package provision

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// CondaCLI is a CondaManager backed by the conda executable on PATH.
type CondaCLI struct {
	// Command is the conda executable name or path. Defaults to
	// "conda".
	Command string

	logger *telemetry.Logger
}

// NewCondaCLI creates a conda manager that shells out to conda.
func NewCondaCLI(logger *telemetry.Logger) *CondaCLI {
	return &CondaCLI{
		Command: "conda",
		logger:  logger.NewComponentLogger("conda"),
	}
}

// CreateEnvironment implements CondaManager.
func (c *CondaCLI) CreateEnvironment(ctx context.Context, prefix string, packages, channels []string) error {
	if len(packages) == 0 {
		return &Error{Op: "conda create", Detail: "must specify a list of one or more packages to install into new environment"}
	}
	if _, err := os.Stat(prefix); err == nil {
		return &Error{Op: "conda create", Detail: "conda environment [" + prefix + "] already exists"}
	}

	args := []string{"create", "--yes", "--quiet", "--prefix", prefix}
	for _, channel := range channels {
		args = append(args, "--channel", channel)
	}
	args = append(args, packages...)
	return c.run(ctx, args)
}

// InstallPackages implements CondaManager.
func (c *CondaCLI) InstallPackages(ctx context.Context, prefix string, packages, channels []string) error {
	if len(packages) == 0 {
		return &Error{Op: "conda install", Detail: "must specify a list of one or more packages to install into existing environment"}
	}

	args := []string{"install", "--yes", "--quiet", "--prefix", prefix}
	for _, channel := range channels {
		args = append(args, "--channel", channel)
	}
	args = append(args, packages...)
	return c.run(ctx, args)
}

// RemovePackages implements CondaManager.
func (c *CondaCLI) RemovePackages(ctx context.Context, prefix string, packages []string) error {
	if len(packages) == 0 {
		return &Error{Op: "conda remove", Detail: "must specify a list of one or more packages to remove"}
	}

	args := []string{"remove", "--yes", "--quiet", "--prefix", prefix}
	args = append(args, packages...)
	return c.run(ctx, args)
}

// InstalledPackages implements CondaManager. Rather than invoking
// conda, it scans the conda-meta directory, which records one JSON
// file per installed package named "<name>-<version>-<build>.json".
func (c *CondaCLI) InstalledPackages(prefix string) (map[string]Package, error) {
	metaDir := filepath.Join(prefix, "conda-meta")
	entries, err := os.ReadDir(metaDir)
	if os.IsNotExist(err) {
		return map[string]Package{}, nil
	}
	if err != nil {
		return nil, &Error{Op: "conda-meta scan", Detail: "cannot read " + metaDir, Err: err}
	}

	installed := make(map[string]Package)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		full := strings.TrimSuffix(name, ".json")
		// name-version-build; package names may themselves contain dashes
		pieces := splitRight(full, '-', 2)
		if len(pieces) == 3 {
			installed[pieces[0]] = Package{
				Name:    pieces[0],
				Version: pieces[1],
				Build:   pieces[2],
			}
		}
	}
	return installed, nil
}

// run invokes conda with the given arguments, capturing stderr for
// error reporting.
func (c *CondaCLI) run(ctx context.Context, args []string) error {
	command := c.Command
	if command == "" {
		command = "conda"
	}

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	c.logger.Debugf("running %s %s", command, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return &Error{
			Op:     command + " " + args[0],
			Detail: detail,
			Err:    err,
		}
	}

	// conda writes warnings to stderr even on success
	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		if line != "" {
			c.logger.Warnf("conda: %s", line)
		}
	}
	return nil
}

// splitRight splits s at the rightmost n occurrences of sep, like
// Python's str.rsplit.
func splitRight(s string, sep byte, n int) []string {
	var parts []string
	for i := 0; i < n; i++ {
		idx := strings.LastIndexByte(s, sep)
		if idx < 0 {
			break
		}
		parts = append([]string{s[idx+1:]}, parts...)
		s = s[:idx]
	}
	return append([]string{s}, parts...)
}

// PackageSpecName extracts the package name from a conda package spec
// like "numpy", "numpy=1.11" or "numpy==1.11.2=py35_0".
func PackageSpecName(spec string) string {
	if idx := strings.IndexAny(spec, "=<>! "); idx >= 0 {
		return spec[:idx]
	}
	return spec
}
