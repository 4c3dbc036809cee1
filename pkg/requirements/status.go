package requirements

// Status is the outcome of a mutating or preparing operation. It is
// produced fresh per operation and never mutated after return; callers
// branch on Success, never on identity.
type Status struct {
	// Success indicates whether the operation took effect.
	Success bool

	// Description is a one-line human-readable summary.
	Description string

	// Errors holds structured error strings, populated when Success
	// is false.
	Errors []string

	// Logs holds informational output gathered during the operation.
	Logs []string

	// Requirement is the requirement this status pertains to, when the
	// operation concerned exactly one requirement.
	Requirement Requirement

	// AlreadyExisted indicates the requirement's current value already
	// satisfied it, so nothing had to be provisioned.
	AlreadyExisted bool

	// Value is the resolved value published through the requirement's
	// environment variable (a path, an address), when applicable.
	Value string
}

// Succeeded creates a successful status.
func Succeeded(description string) *Status {
	return &Status{Success: true, Description: description}
}

// Failed creates a failed status with optional error detail.
func Failed(description string, errs ...string) *Status {
	return &Status{Success: false, Description: description, Errors: errs}
}

// ForRequirement attaches the requirement this status pertains to and
// returns the status for chaining.
func (s *Status) ForRequirement(req Requirement) *Status {
	s.Requirement = req
	return s
}

// WithLogs appends log lines and returns the status for chaining.
func (s *Status) WithLogs(lines ...string) *Status {
	s.Logs = append(s.Logs, lines...)
	return s
}
