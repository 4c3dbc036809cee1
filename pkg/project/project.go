// Package project loads a project directory into a Project: the two
// backing documents (project.yml and host-local state) plus everything
// derived from them — validation problems, the requirement projection,
// conda environments, and commands.
//
// The derived pieces are recomputed from document content whenever the
// document is staged or reloaded; they are a read-only view and are
// never edited directly.
package project

import (
	"path/filepath"
	"sort"

	"github.com/Dima2021/anaconda-project/pkg/localstate"
	"github.com/Dima2021/anaconda-project/pkg/projectfile"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
)

// Environment is a conda environment declared (or implied) by the
// project: the "default" environment always exists.
type Environment struct {
	// Name is the environment name, unique within the project.
	Name string

	// Dependencies is the ordered list of package specs, global
	// dependencies first. Entries are unique by exact string; no
	// semantic de-duplication happens across version variants.
	Dependencies []string

	// Channels is the ordered list of conda channels.
	Channels []string
}

// DefaultEnvironmentName is the name of the implicit environment.
const DefaultEnvironmentName = "default"

// Prefix returns the on-disk location of this environment inside the
// project directory.
func (e *Environment) Prefix(projectDir string) string {
	return filepath.Join(projectDir, "envs", e.Name)
}

// Command is a named way to run the project.
type Command struct {
	// Name is the command name.
	Name string

	// Attributes maps command type (shell, windows, notebook,
	// bokeh_app) to its command line or target file.
	Attributes map[string]string

	// AutoGenerated marks commands synthesized by the system rather
	// than written by the user; they cannot be removed.
	AutoGenerated bool
}

// CommandTypes are the supported command attribute names.
var CommandTypes = []string{"bokeh_app", "notebook", "shell", "windows"}

// IsCommandType reports whether name is a supported command type.
func IsCommandType(name string) bool {
	for _, t := range CommandTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Project is a loaded project directory.
type Project struct {
	directory   string
	projectFile *projectfile.ProjectFile
	localState  *localstate.LocalStateFile
	registry    *requirements.Registry

	problems     []string
	reqs         []requirements.Requirement
	environments map[string]*Environment
	envOrder     []string
	commands     map[string]*Command
}

// Load loads the project in the given directory. Loading never fails;
// anything wrong with the directory or its files is reported through
// Problems.
func Load(directory string, registry *requirements.Registry) *Project {
	if registry == nil {
		registry = requirements.NewRegistry()
	}
	p := &Project{
		directory:   directory,
		projectFile: projectfile.Load(directory),
		localState:  localstate.Load(directory),
		registry:    registry,
	}
	p.UseChanges()
	return p
}

// Directory returns the project directory path.
func (p *Project) Directory() string {
	return p.directory
}

// ProjectFile returns the project.yml document.
func (p *Project) ProjectFile() *projectfile.ProjectFile {
	return p.projectFile
}

// LocalState returns the host-local state document.
func (p *Project) LocalState() *localstate.LocalStateFile {
	return p.localState
}

// Registry returns the service type registry in use.
func (p *Project) Registry() *requirements.Registry {
	return p.registry
}

// Problems returns the current validation problems. A non-empty list
// means the project file must not be saved.
func (p *Project) Problems() []string {
	return p.problems
}

// Name returns the project name, defaulting to the directory name.
func (p *Project) Name() string {
	if name := p.projectFile.GetString("name"); name != "" {
		return name
	}
	return filepath.Base(p.directory)
}

// Requirements returns the current requirement projection.
func (p *Project) Requirements() []requirements.Requirement {
	return p.reqs
}

// FindRequirements filters the requirement projection by environment
// variable name and/or kind. An empty envVar or kind matches
// everything; no match yields an empty slice, never a failure.
func (p *Project) FindRequirements(envVar string, kind requirements.Kind) []requirements.Requirement {
	var found []requirements.Requirement
	for _, req := range p.reqs {
		if envVar != "" && req.EnvVar() != envVar {
			continue
		}
		if kind != "" && req.Kind() != kind {
			continue
		}
		found = append(found, req)
	}
	return found
}

// Environments returns the declared conda environments, including the
// implicit default.
func (p *Project) Environments() map[string]*Environment {
	return p.environments
}

// EnvironmentNames returns environment names with "default" first and
// the rest in document order.
func (p *Project) EnvironmentNames() []string {
	return p.envOrder
}

// Environment looks up an environment by name. An empty name selects
// the default environment.
func (p *Project) Environment(name string) (*Environment, bool) {
	if name == "" {
		name = DefaultEnvironmentName
	}
	env, ok := p.environments[name]
	return env, ok
}

// Commands returns the named commands.
func (p *Project) Commands() map[string]*Command {
	return p.commands
}

// CommandNames returns command names in sorted order.
func (p *Project) CommandNames() []string {
	names := make([]string, 0, len(p.commands))
	for name := range p.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UseChanges re-derives problems, requirements, environments, and
// commands from the current in-memory document content. It must be
// called after staging edits and after reloads; it is idempotent.
func (p *Project) UseChanges() {
	p.inspect()
}

// Reload discards in-memory edits on both documents, restoring the
// last-saved state, and re-derives the projection.
func (p *Project) Reload() {
	_ = p.projectFile.Reload()
	_ = p.localState.Reload()
	p.UseChanges()
}
