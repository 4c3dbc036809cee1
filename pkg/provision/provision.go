// Package provision contains the collaborators that realize
// requirements against the real world: conda environment management,
// file downloads, and local services. The transactional layer in
// pkg/ops never talks to these directly; pkg/prepare drives them and
// converts their errors into statuses.
package provision

import (
	"context"
	"fmt"
)

// Error is a provisioner failure. It is converted to a failed status
// at the prepare boundary; it never crosses the ops boundary as an
// error value.
type Error struct {
	// Op is the operation that failed (e.g. "conda create").
	Op string

	// Detail is the human-readable failure detail.
	Detail string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Package describes one installed package in a conda environment.
type Package struct {
	// Name is the package name.
	Name string

	// Version is the installed version.
	Version string

	// Build is the conda build string.
	Build string
}

// CondaManager creates and modifies conda environments.
type CondaManager interface {
	// CreateEnvironment creates a new environment at prefix with the
	// given package specs and channels. It fails if the prefix already
	// exists or no packages are given.
	CreateEnvironment(ctx context.Context, prefix string, packages, channels []string) error

	// InstallPackages installs package specs into an existing
	// environment at prefix.
	InstallPackages(ctx context.Context, prefix string, packages, channels []string) error

	// RemovePackages uninstalls packages from the environment at
	// prefix.
	RemovePackages(ctx context.Context, prefix string, packages []string) error

	// InstalledPackages scans the environment at prefix and returns
	// installed packages by name. A missing prefix yields an empty
	// map, not an error.
	InstalledPackages(prefix string) (map[string]Package, error)
}

// Downloader fetches remote artifacts to local files.
type Downloader interface {
	// Fetch downloads url to dest, creating parent directories as
	// needed. The caller is responsible for the "already present"
	// short circuit.
	Fetch(ctx context.Context, url, dest string) error
}

// ServiceSpec identifies a service instance to run for a project.
type ServiceSpec struct {
	// Type is the registered service type name (e.g. "redis").
	Type string

	// Variable is the environment variable the address is published
	// through.
	Variable string

	// Directory is the project directory the service runs for.
	Directory string
}

// ServiceInstance describes a running (or started) service.
type ServiceInstance struct {
	// Type is the service type name.
	Type string

	// Address is the client-facing address (e.g. "redis://localhost:6379").
	Address string

	// PID is the OS process ID, or 0 when unknown.
	PID int
}

// ServiceManager starts and stops local service instances.
type ServiceManager interface {
	// EnsureRunning starts an instance for the spec, or confirms an
	// existing one. "Already running" is success.
	EnsureRunning(ctx context.Context, spec ServiceSpec) (*ServiceInstance, error)

	// Stop tears down a previously started instance. Best effort; the
	// caller swallows failures.
	Stop(ctx context.Context, inst *ServiceInstance) error
}
