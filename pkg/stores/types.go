package stores

import "time"

// PrepareRun is one recorded invocation of the preparer.
type PrepareRun struct {
	// ID is the unique run identifier.
	ID string `json:"id"`

	// Directory is the project directory the run operated on.
	Directory string `json:"directory"`

	// EnvironmentName is the conda environment the run targeted, or
	// "" for the default.
	EnvironmentName string `json:"environment_name,omitempty"`

	// Success indicates whether every attempted requirement succeeded.
	Success bool `json:"success"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run completed.
	CompletedAt time.Time `json:"completed_at"`
}

// RequirementResult is the recorded outcome for one requirement
// within a prepare run.
type RequirementResult struct {
	// RunID is the prepare run this result belongs to.
	RunID string `json:"run_id"`

	// EnvVar is the requirement's environment variable.
	EnvVar string `json:"env_var"`

	// Kind is the requirement variant name.
	Kind string `json:"kind"`

	// Success indicates whether the requirement was satisfied.
	Success bool `json:"success"`

	// AlreadyExisted indicates the requirement was satisfied before
	// the run touched anything.
	AlreadyExisted bool `json:"already_existed"`

	// Description is the human-readable outcome.
	Description string `json:"description"`

	// Errors is the newline-joined error detail, empty on success.
	Errors string `json:"errors,omitempty"`
}
