// Package requirements defines the requirement model: the closed set
// of things a project declares it needs in order to run, and the
// status values produced when the system attempts to satisfy them.
//
// Requirements are a read-only projection derived from the project
// document. They are recomputed whenever the document is staged or
// reloaded and must never be mutated independently of it.
package requirements

import (
	"fmt"
	"path/filepath"
)

// Kind identifies a requirement variant. The set is closed by design;
// dispatch happens via type switch, not open-ended extension.
type Kind string

const (
	// KindEnvVar is a plain environment variable that must resolve to
	// a non-empty value.
	KindEnvVar Kind = "env_var"

	// KindCondaEnv is a conda environment that must exist with the
	// declared dependencies.
	KindCondaEnv Kind = "conda_env"

	// KindDownload is a URL that must be fetched to a local file.
	KindDownload Kind = "download"

	// KindService is a service of a named type that must be running.
	KindService Kind = "service"
)

// Validate checks if the kind is one of the known variants.
func (k Kind) Validate() error {
	switch k {
	case KindEnvVar, KindCondaEnv, KindDownload, KindService:
		return nil
	default:
		return fmt.Errorf("invalid requirement kind: %s", k)
	}
}

// Requirement is a declared need that must hold for the project to
// run. Every variant is identified by the environment variable it
// publishes its value through.
type Requirement interface {
	// EnvVar is the environment variable identifying this requirement.
	EnvVar() string

	// Kind is the requirement variant.
	Kind() Kind

	// Title is a short human-readable description.
	Title() string
}

// EnvVarRequirement requires an environment variable to resolve to a
// non-empty value, via a project-file default, local state, or the
// process environment, in that precedence order.
type EnvVarRequirement struct {
	// Variable is the environment variable name.
	Variable string

	// Default is the default value declared in the project file, or
	// "" when the declaration carries no default.
	Default string
}

// EnvVar implements Requirement.
func (r *EnvVarRequirement) EnvVar() string { return r.Variable }

// Kind implements Requirement.
func (r *EnvVarRequirement) Kind() Kind { return KindEnvVar }

// Title implements Requirement.
func (r *EnvVarRequirement) Title() string {
	return fmt.Sprintf("Environment variable %s", r.Variable)
}

// CondaEnvVariable is the environment variable through which the
// active conda environment prefix is published.
const CondaEnvVariable = "CONDA_DEFAULT_ENV"

// CondaEnvRequirement requires a conda environment (the default one,
// or the one selected at prepare time) to exist with the dependencies
// the project declares for it.
type CondaEnvRequirement struct{}

// EnvVar implements Requirement.
func (r *CondaEnvRequirement) EnvVar() string { return CondaEnvVariable }

// Kind implements Requirement.
func (r *CondaEnvRequirement) Kind() Kind { return KindCondaEnv }

// Title implements Requirement.
func (r *CondaEnvRequirement) Title() string {
	return "A conda environment inside the project directory"
}

// DownloadRequirement requires a URL to have been fetched to a local
// file inside the project directory.
type DownloadRequirement struct {
	// Variable is the environment variable holding the local path.
	Variable string

	// URL is the location to fetch.
	URL string

	// Filename is the project-relative destination path.
	Filename string
}

// EnvVar implements Requirement.
func (r *DownloadRequirement) EnvVar() string { return r.Variable }

// LocalPath returns the absolute destination path inside the project
// directory.
func (r *DownloadRequirement) LocalPath(directory string) string {
	return filepath.Join(directory, filepath.FromSlash(r.Filename))
}

// Kind implements Requirement.
func (r *DownloadRequirement) Kind() Kind { return KindDownload }

// Title implements Requirement.
func (r *DownloadRequirement) Title() string {
	return fmt.Sprintf("A downloaded file which is referenced by %s", r.Variable)
}

// ServiceRequirement requires a running instance of the named service
// type, with its address published through the variable.
type ServiceRequirement struct {
	// Variable is the environment variable holding the address.
	Variable string

	// ServiceType is the registered service type name.
	ServiceType string
}

// EnvVar implements Requirement.
func (r *ServiceRequirement) EnvVar() string { return r.Variable }

// Kind implements Requirement.
func (r *ServiceRequirement) Kind() Kind { return KindService }

// Title implements Requirement.
func (r *ServiceRequirement) Title() string {
	return fmt.Sprintf("A running %s service, located by %s", r.ServiceType, r.Variable)
}
