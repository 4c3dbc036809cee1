// Package localstate implements the host-local state document. It
// holds values that belong to this machine rather than to the shared
// project file: resolved variable values, secrets, and service run
// states. Its writes are idempotent and are never part of the
// project-file rollback transaction.
package localstate

import (
	"fmt"
	"path/filepath"

	"github.com/Dima2021/anaconda-project/pkg/projectfile"
)

// Dirname is the directory under the project root holding host-local
// files.
const Dirname = ".anaconda"

// Filename is the local state file name inside Dirname.
const Filename = "project-local.yml"

// Categories used as the first key of local state entries.
const (
	CategoryVariables        = "variables"
	CategoryServiceRunStates = "service_run_states"
)

// LocalStateFile is the per-directory host-local document. It is keyed
// by [category, name] and shares the document machinery with the
// project file, but has an independent lifecycle.
type LocalStateFile struct {
	*projectfile.Document
}

// Load loads (or initializes) the local state file for a project
// directory. Like the project file, loading never fails outright; an
// unreadable file is replaced by an empty in-memory document.
func Load(directory string) *LocalStateFile {
	path := filepath.Join(directory, Dirname, Filename)
	doc, err := projectfile.NewDocument(path)
	if err != nil {
		// Local state is advisory; start fresh rather than refusing
		// to operate on the project.
		doc, _ = projectfile.NewDocument(filepath.Join(directory, Dirname, Filename+".invalid"))
	}
	return &LocalStateFile{Document: doc}
}

// GetValue returns the decoded value stored under [category, name].
func (f *LocalStateFile) GetValue(category, name string) (interface{}, bool) {
	return f.Get(category, name)
}

// SetValue stores a value under [category, name].
func (f *LocalStateFile) SetValue(category, name string, value interface{}) error {
	return f.Set([]string{category, name}, value)
}

// UnsetValue removes the value under [category, name].
func (f *LocalStateFile) UnsetValue(category, name string) {
	f.Unset(category, name)
}

// VariableValue returns the locally resolved value for a variable, or
// "" when unset.
func (f *LocalStateFile) VariableValue(name string) string {
	return f.GetString(CategoryVariables, name)
}

// ServiceRunState returns the recorded run state for the service
// published through the given variable, or nil when no state is
// recorded.
func (f *LocalStateFile) ServiceRunState(envVar string) map[string]interface{} {
	value, ok := f.Get(CategoryServiceRunStates, envVar)
	if !ok {
		return nil
	}
	state, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return state
}

// ServiceRunStateVariables returns the variables that have a recorded
// service run state.
func (f *LocalStateFile) ServiceRunStateVariables() []string {
	return f.Keys(CategoryServiceRunStates)
}

// SetServiceRunState records the run state for the service published
// through the given variable.
func (f *LocalStateFile) SetServiceRunState(envVar string, state map[string]interface{}) error {
	if state == nil {
		return fmt.Errorf("nil service run state for %s", envVar)
	}
	return f.Set([]string{CategoryServiceRunStates, envVar}, state)
}

// UnsetServiceRunState removes the recorded run state for the service
// published through the given variable.
func (f *LocalStateFile) UnsetServiceRunState(envVar string) {
	f.Unset(CategoryServiceRunStates, envVar)
}
