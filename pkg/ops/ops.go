// Package ops implements the transactional mutation surface for a
// project. Every operation follows the same template: check for
// pre-existing validation problems, stage the edit in memory, attempt
// to realize it through a narrowly-whitelisted prepare, then save the
// document on success or reload it on failure. The persisted document
// and the real environment never diverge: a falsy status means the
// file on disk is byte-for-byte what it was before the call.
//
// Operations report outcomes through *requirements.Status; no error
// value crosses this boundary.
package ops

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Dima2021/anaconda-project/pkg/localstate"
	"github.com/Dima2021/anaconda-project/pkg/prepare"
	"github.com/Dima2021/anaconda-project/pkg/project"
	"github.com/Dima2021/anaconda-project/pkg/projectfile"
	"github.com/Dima2021/anaconda-project/pkg/provision"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// Config wires the operation layer's collaborators.
type Config struct {
	// Preparer attempts to satisfy requirements after an edit is
	// staged.
	Preparer *prepare.Preparer

	// Conda performs the advisory real-world package removals that
	// precede dependency edits.
	Conda provision.CondaManager

	// Registry supplies the known service types.
	Registry *requirements.Registry

	// Logger is the parent logger; nil means silent.
	Logger *telemetry.Logger
}

// Ops is the transactional mutation surface.
type Ops struct {
	preparer *prepare.Preparer
	conda    provision.CondaManager
	registry *requirements.Registry
	logger   *telemetry.Logger
}

// New creates the operation layer.
func New(cfg Config) *Ops {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Nop()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = requirements.NewRegistry()
	}
	return &Ops{
		preparer: cfg.Preparer,
		conda:    cfg.Conda,
		registry: registry,
		logger:   logger.NewComponentLogger("ops"),
	}
}

// CreateOptions configures project creation.
type CreateOptions struct {
	// MakeDirectory creates the project directory when it is missing.
	MakeDirectory bool

	// Name sets the project name; "" leaves it to default to the
	// directory name.
	Name string

	// Icon sets the project icon path.
	Icon string

	// Description sets the project description.
	Description string
}

// Create initializes a project in the given directory, writing a
// project file only when the result has no problems. The returned
// project is usable either way; a falsy status leaves nothing on disk.
func (o *Ops) Create(directory string, opts CreateOptions) (*project.Project, *requirements.Status) {
	if opts.MakeDirectory {
		if _, err := os.Stat(directory); os.IsNotExist(err) {
			if err := os.MkdirAll(directory, 0o755); err != nil {
				proj := project.Load(directory, o.registry)
				return proj, requirements.Failed(
					fmt.Sprintf("Unable to create directory '%s'.", directory), err.Error())
			}
		}
	}

	proj := project.Load(directory, o.registry)
	doc := proj.ProjectFile().Document
	if opts.Name != "" {
		_ = doc.Set([]string{"name"}, opts.Name)
	}
	if opts.Icon != "" {
		_ = doc.Set([]string{"icon"}, opts.Icon)
	}
	if opts.Description != "" {
		_ = doc.Set([]string{"description"}, opts.Description)
	}
	proj.UseChanges()

	if len(proj.Problems()) > 0 {
		return proj, requirements.Failed("Unable to create the project.", proj.Problems()...)
	}
	if err := doc.Save(); err != nil {
		return proj, requirements.Failed(
			fmt.Sprintf("Unable to save %s.", doc.Path()), err.Error())
	}
	return proj, requirements.Succeeded(fmt.Sprintf("Project created in '%s'.", directory))
}

// SetProperties updates the project's top-level properties. Nil fields
// are left unchanged. There is no real-world effect to validate, so no
// prepare runs; the edit commits when the staged document is
// problem-free and rolls back otherwise.
func (o *Ops) SetProperties(proj *project.Project, name, icon, description *string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	doc := proj.ProjectFile().Document
	if name != nil {
		_ = doc.Set([]string{"name"}, *name)
	}
	if icon != nil {
		_ = doc.Set([]string{"icon"}, *icon)
	}
	if description != nil {
		_ = doc.Set([]string{"description"}, *description)
	}
	proj.UseChanges()

	if len(proj.Problems()) > 0 {
		errs := proj.Problems()
		proj.Reload()
		return requirements.Failed("Failed to set project properties.", errs...)
	}
	return o.saveOrRollback(proj, "Project properties updated.")
}

// AddDownload adds (or replaces) a download requirement and commits
// only if the URL can actually be fetched. An empty filename lets the
// local path derive from the URL.
func (o *Ops) AddDownload(ctx context.Context, proj *project.Project, envVar, url, filename string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	doc := proj.ProjectFile().Document
	if filename == "" {
		// A mapping-form entry keeps its stored filename; only the
		// url key changes.
		path := []string{"downloads", envVar}
		if doc.IsMapping("downloads", envVar) {
			path = append(path, "url")
		}
		if err := doc.Set(path, url); err != nil {
			return requirements.Failed("Unable to add the download.", err.Error())
		}
	} else {
		// Replace rather than merge so a previous scalar entry does
		// not block the mapping form.
		doc.Unset("downloads", envVar)
		if err := doc.Set([]string{"downloads", envVar, "url"}, url); err != nil {
			proj.Reload()
			return requirements.Failed("Unable to add the download.", err.Error())
		}
		_ = doc.Set([]string{"downloads", envVar, "filename"}, filename)
	}

	return o.commitRequirementIfItWorks(ctx, proj,
		prepare.Selector{EnvVar: envVar, Kind: requirements.KindDownload}, "")
}

// RemoveDownload removes a download requirement, deleting the
// downloaded file or directory first when it exists. A deletion
// failure rolls the staged edit back.
func (o *Ops) RemoveDownload(ctx context.Context, proj *project.Project, envVar string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	found := proj.FindRequirements(envVar, requirements.KindDownload)
	if len(found) == 0 {
		return requirements.Failed(fmt.Sprintf("Download requirement: %s not found.", envVar))
	}
	req := found[0].(*requirements.DownloadRequirement)

	doc := proj.ProjectFile().Document
	doc.Unset("downloads", envVar)
	proj.UseChanges()

	localPath := req.LocalPath(proj.Directory())
	if _, err := os.Stat(localPath); err == nil {
		if err := os.RemoveAll(localPath); err != nil {
			proj.Reload()
			return requirements.Failed(
				fmt.Sprintf("Failed to remove %s.", localPath), err.Error())
		}
	}

	return o.saveOrRollback(proj, fmt.Sprintf("Removed %s from the project file.", envVar))
}

// AddEnvironment declares a new conda environment (or extends an
// existing one) and commits only if the environment can actually be
// realized with the requested packages.
func (o *Ops) AddEnvironment(ctx context.Context, proj *project.Project, name string, packages, channels []string) *requirements.Status {
	return o.updateEnvironment(ctx, proj, name, packages, channels, true)
}

// AddPackages adds package specs (and channels) to an environment,
// which must already be declared. An empty name targets the global
// dependency section shared by every environment.
func (o *Ops) AddPackages(ctx context.Context, proj *project.Project, envName string, packages, channels []string) *requirements.Status {
	return o.updateEnvironment(ctx, proj, envName, packages, channels, false)
}

// updateEnvironment stages the dependency/channel additions and runs
// the narrow conda-environment commit. New entries append to the
// ordered lists; existing entries keep their position and are never
// duplicated.
func (o *Ops) updateEnvironment(ctx context.Context, proj *project.Project, name string, packages, channels []string, create bool) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	if name != "" && !create {
		if _, ok := proj.Environment(name); !ok {
			return requirements.Failed(fmt.Sprintf("Environment %s doesn't exist.", name))
		}
	}

	var prefix []string
	if name != "" && name != project.DefaultEnvironmentName {
		prefix = []string{"environments", name}
	}

	doc := proj.ProjectFile().Document
	if name != "" && name != project.DefaultEnvironmentName && !doc.Has("environments", name) {
		if err := doc.Set([]string{"environments", name}, map[string]interface{}{}); err != nil {
			proj.Reload()
			return requirements.Failed("Unable to add the environment.", err.Error())
		}
	}

	depsPath := append(append([]string{}, prefix...), "dependencies")
	channelsPath := append(append([]string{}, prefix...), "channels")
	if err := appendNew(doc, depsPath, packages); err != nil {
		proj.Reload()
		return requirements.Failed("Unable to add the packages.", err.Error())
	}
	if err := appendNew(doc, channelsPath, channels); err != nil {
		proj.Reload()
		return requirements.Failed("Unable to add the channels.", err.Error())
	}

	return o.commitRequirementIfItWorks(ctx, proj,
		prepare.Selector{Kind: requirements.KindCondaEnv}, name)
}

// RemovePackages removes package specs from an environment, or from
// the global section and every environment when envName is empty. The
// packages are uninstalled from the real environments first, with
// failures logged and discarded: a stale document entry heals on the
// next full prepare, while a stale installed package would not.
func (o *Ops) RemovePackages(ctx context.Context, proj *project.Project, envName string, packages []string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}
	if len(packages) == 0 {
		return requirements.Failed("Must specify a list of one or more packages to remove.")
	}

	var affected []*project.Environment
	if envName == "" {
		for _, name := range proj.EnvironmentNames() {
			env, _ := proj.Environment(name)
			affected = append(affected, env)
		}
	} else {
		env, ok := proj.Environment(envName)
		if !ok {
			return requirements.Failed(fmt.Sprintf("Environment %s doesn't exist.", envName))
		}
		affected = []*project.Environment{env}
	}

	// Reality first. Errors here are advisory; a missing or partial
	// environment must not block the document edit.
	if o.conda != nil {
		for _, env := range affected {
			envPrefix := env.Prefix(proj.Directory())
			if _, err := os.Stat(envPrefix); err != nil {
				continue
			}
			if err := o.conda.RemovePackages(ctx, envPrefix, packages); err != nil {
				o.logger.WithProject(proj.Directory()).WithError(err).
					Warnf("failed to uninstall packages from %s", env.Name)
			}
		}
	}

	removed := make(map[string]bool, len(packages))
	for _, pkg := range packages {
		removed[provision.PackageSpecName(pkg)] = true
	}
	keep := func(spec string) bool {
		return !removed[provision.PackageSpecName(spec)]
	}

	doc := proj.ProjectFile().Document
	if envName == "" {
		doc.FilterList([]string{"dependencies"}, keep)
		for _, name := range doc.Keys("environments") {
			doc.FilterList([]string{"environments", name, "dependencies"}, keep)
		}
	} else {
		// Only the named environment's own list. The global section is
		// shared by every environment and is edited only on a global
		// removal.
		doc.FilterList([]string{"environments", envName, "dependencies"}, keep)
	}

	return o.commitRequirementIfItWorks(ctx, proj,
		prepare.Selector{Kind: requirements.KindCondaEnv}, envName)
}

// RemoveEnvironment removes a declared environment from the document
// and its directory from disk. The default environment can never be
// removed. The on-disk directory goes first: a deletion failure aborts
// before any document edit, so nothing needs rolling back.
func (o *Ops) RemoveEnvironment(proj *project.Project, name string) *requirements.Status {
	if name == project.DefaultEnvironmentName {
		return requirements.Failed("Cannot remove the default environment.")
	}
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	env, ok := proj.Environment(name)
	if !ok {
		return requirements.Failed(fmt.Sprintf("Environment %s doesn't exist.", name))
	}

	envPrefix := env.Prefix(proj.Directory())
	if _, err := os.Stat(envPrefix); err == nil {
		if err := os.RemoveAll(envPrefix); err != nil {
			return requirements.Failed(
				fmt.Sprintf("Failed to remove environment files in %s.", envPrefix), err.Error())
		}
	}

	doc := proj.ProjectFile().Document
	doc.Unset("environments", name)
	proj.UseChanges()

	return o.saveOrRollback(proj, fmt.Sprintf("Removed environment %s from the project file.", name))
}

// AddVariables declares variables in the project file and records any
// provided values in local state. A variable placeholder has no
// real-world effect to validate, so this is the one mutation without
// the attempt/rollback transaction: both documents save
// unconditionally.
func (o *Ops) AddVariables(proj *project.Project, vars map[string]string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	doc := proj.ProjectFile().Document
	for name, value := range vars {
		if !doc.Has("variables", name) {
			if err := doc.Set([]string{"variables", name}, nil); err != nil {
				proj.Reload()
				return requirements.Failed("Unable to add the variables.", err.Error())
			}
		}
		if value != "" {
			_ = proj.LocalState().SetValue(localstate.CategoryVariables, name, value)
		}
	}
	proj.UseChanges()

	if err := doc.Save(); err != nil {
		proj.Reload()
		return requirements.Failed(
			fmt.Sprintf("Unable to save %s.", doc.Path()), err.Error())
	}
	if err := proj.LocalState().Save(); err != nil {
		return requirements.Failed(
			fmt.Sprintf("Unable to save %s.", proj.LocalState().Path()), err.Error())
	}
	return requirements.Succeeded("Variables added to the project file.")
}

// RemoveVariables removes variable declarations and their locally
// recorded values. Like AddVariables, no prepare runs.
func (o *Ops) RemoveVariables(proj *project.Project, names []string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	doc := proj.ProjectFile().Document
	for _, name := range names {
		doc.Unset("variables", name)
		proj.LocalState().UnsetValue(localstate.CategoryVariables, name)
	}
	proj.UseChanges()

	if err := doc.Save(); err != nil {
		proj.Reload()
		return requirements.Failed(
			fmt.Sprintf("Unable to save %s.", doc.Path()), err.Error())
	}
	if err := proj.LocalState().Save(); err != nil {
		return requirements.Failed(
			fmt.Sprintf("Unable to save %s.", proj.LocalState().Path()), err.Error())
	}
	return requirements.Succeeded("Variables removed from the project file.")
}

// AddCommand adds (or merges) a command attribute under the given
// name. Commands have no preparation step; the staged edit commits
// when the re-derived problem list stays empty and rolls back
// otherwise, which catches conflicting command types.
func (o *Ops) AddCommand(proj *project.Project, commandType, name, command string) *requirements.Status {
	if !project.IsCommandType(commandType) {
		return requirements.Failed(fmt.Sprintf(
			"Invalid command type %s, choose from %s.", commandType, strings.Join(project.CommandTypes, ", ")))
	}
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	doc := proj.ProjectFile().Document
	if err := doc.Set([]string{"commands", name, commandType}, command); err != nil {
		return requirements.Failed("Unable to add the command.", err.Error())
	}
	proj.UseChanges()

	if len(proj.Problems()) > 0 {
		errs := proj.Problems()
		proj.Reload()
		return requirements.Failed(
			fmt.Sprintf("Unable to add command '%s'.", name), errs...)
	}
	return o.saveOrRollback(proj, fmt.Sprintf("Command '%s' added to the project file.", name))
}

// RemoveCommand removes a named command. Auto-generated commands
// belong to the system and can never be removed.
func (o *Ops) RemoveCommand(proj *project.Project, name string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	cmd, ok := proj.Commands()[name]
	if !ok {
		return requirements.Failed(fmt.Sprintf("Command: '%s' not found in project file.", name))
	}
	if cmd.AutoGenerated {
		return requirements.Failed(fmt.Sprintf("Cannot remove auto-generated command: '%s'.", name))
	}

	doc := proj.ProjectFile().Document
	doc.Unset("commands", name)
	proj.UseChanges()

	return o.saveOrRollback(proj, fmt.Sprintf("Removed command '%s' from the project file.", name))
}

// AddService adds a service requirement and commits only if an
// instance can actually be brought up. Adding the same service type
// under the same variable twice is a no-op success. A different
// service type, or any non-service requirement, already publishing
// through the variable is a conflict.
func (o *Ops) AddService(ctx context.Context, proj *project.Project, serviceType, variable string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	known, ok := o.registry.FindServiceType(serviceType)
	if !ok {
		var names []string
		for _, st := range o.registry.ServiceTypes() {
			names = append(names, st.Name)
		}
		return requirements.Failed(fmt.Sprintf(
			"Unknown service type '%s', we know about: %s", serviceType, strings.Join(names, ", ")))
	}
	if variable == "" {
		variable = known.DefaultVariable
	}

	for _, req := range proj.FindRequirements(variable, "") {
		service, isService := req.(*requirements.ServiceRequirement)
		if !isService {
			return requirements.Failed(fmt.Sprintf(
				"Variable %s is already in use.", variable))
		}
		if service.ServiceType == serviceType {
			status := requirements.Succeeded(fmt.Sprintf(
				"Service %s already exists in the project file.", variable))
			status.AlreadyExisted = true
			return status
		}
		return requirements.Failed(fmt.Sprintf(
			"Variable %s is already a %s service.", variable, service.ServiceType))
	}

	doc := proj.ProjectFile().Document
	if err := doc.Set([]string{"services", variable}, serviceType); err != nil {
		return requirements.Failed("Unable to add the service.", err.Error())
	}

	return o.commitRequirementIfItWorks(ctx, proj,
		prepare.Selector{EnvVar: variable, Kind: requirements.KindService}, "")
}

// RemoveService removes a service requirement, identified by its
// variable name or, when unambiguous, by its service type. Teardown
// of any running instance happens after the edit is staged and runs
// regardless of the commit outcome; it is advisory.
func (o *Ops) RemoveService(ctx context.Context, proj *project.Project, variableOrType string) *requirements.Status {
	if failed := o.problemsStatus(proj, ""); failed != nil {
		return failed
	}

	variable, status := o.resolveService(proj, variableOrType)
	if status != nil {
		return status
	}

	doc := proj.ProjectFile().Document
	doc.Unset("services", variable)
	proj.UseChanges()

	if o.preparer != nil {
		o.preparer.Unprepare(ctx, proj,
			[]prepare.Selector{{EnvVar: variable, Kind: requirements.KindService}})
	}

	return o.saveOrRollback(proj, fmt.Sprintf("Removed service '%s' from the project file.", variable))
}

// resolveService maps a variable name or service type to the variable
// of exactly one declared service, or returns a failed status.
func (o *Ops) resolveService(proj *project.Project, variableOrType string) (string, *requirements.Status) {
	for _, req := range proj.FindRequirements(variableOrType, requirements.KindService) {
		return req.EnvVar(), nil
	}

	var matches []string
	for _, req := range proj.FindRequirements("", requirements.KindService) {
		if req.(*requirements.ServiceRequirement).ServiceType == variableOrType {
			matches = append(matches, req.EnvVar())
		}
	}
	switch len(matches) {
	case 0:
		return "", requirements.Failed(fmt.Sprintf("Service '%s' not found in the project file.", variableOrType))
	case 1:
		return matches[0], nil
	default:
		return "", requirements.Failed(fmt.Sprintf(
			"Conflicting results, found %d matches, use list-services to identify which service you want to remove.", len(matches)))
	}
}

// problemsStatus returns a failed status carrying the project's
// current validation problems, or nil when the project is clean.
func (o *Ops) problemsStatus(proj *project.Project, description string) *requirements.Status {
	if len(proj.Problems()) == 0 {
		return nil
	}
	if description == "" {
		description = "Unable to load the project."
	}
	return requirements.Failed(description, proj.Problems()...)
}

// commitRequirementIfItWorks re-derives the projection from the staged
// edit, runs a prepare restricted to the edit's own requirement, then
// saves on success and reloads on failure. Unrelated unmet
// requirements elsewhere in the project never block the commit.
func (o *Ops) commitRequirementIfItWorks(ctx context.Context, proj *project.Project, sel prepare.Selector, envName string) *requirements.Status {
	proj.UseChanges()

	result := o.preparer.Prepare(ctx, proj, prepare.Options{
		Whitelist:       []prepare.Selector{sel},
		EnvironmentName: envName,
	})

	status := result.StatusFor(sel)
	if status == nil {
		proj.Reload()
		return requirements.Failed("Unable to find the requirement to attempt.")
	}
	if !status.Success {
		proj.Reload()
		return status
	}

	doc := proj.ProjectFile().Document
	if err := doc.Save(); err != nil {
		proj.Reload()
		return requirements.Failed(
			fmt.Sprintf("Unable to save %s.", doc.Path()), err.Error())
	}
	return status
}

// saveOrRollback persists the project file, reloading the staged edit
// away when the write fails.
func (o *Ops) saveOrRollback(proj *project.Project, description string) *requirements.Status {
	doc := proj.ProjectFile().Document
	if err := doc.Save(); err != nil {
		proj.Reload()
		return requirements.Failed(
			fmt.Sprintf("Unable to save %s.", doc.Path()), err.Error())
	}
	return requirements.Succeeded(description)
}

// appendNew appends the values missing from the list at path,
// preserving existing entries and their order. Entries are unique by
// exact string; differing version specifiers stay distinct.
func appendNew(doc *projectfile.Document, path []string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	existing := make(map[string]bool)
	for _, item := range doc.StringList(path...) {
		existing[item] = true
	}
	var missing []string
	for _, value := range values {
		if !existing[value] {
			missing = append(missing, value)
			existing[value] = true
		}
	}
	return doc.AppendToList(path, missing...)
}
