// Package prepare attempts to satisfy project requirements against
// the real environment: creating conda environments, downloading
// files, starting services, and resolving variables. It never touches
// the project file; deciding whether to persist or discard a staged
// edit based on a prepare outcome is the job of pkg/ops.
package prepare

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Dima2021/anaconda-project/pkg/project"
	"github.com/Dima2021/anaconda-project/pkg/provision"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
	"github.com/Dima2021/anaconda-project/pkg/stores"
	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

// Selector picks requirements for a whitelist. A zero field matches
// everything, so Selector{EnvVar: "X"} matches any requirement for X
// and Selector{Kind: requirements.KindCondaEnv} matches the conda
// environment requirement.
type Selector struct {
	// EnvVar matches the requirement's environment variable.
	EnvVar string

	// Kind matches the requirement variant.
	Kind requirements.Kind
}

// Matches reports whether the requirement satisfies the selector.
func (s Selector) Matches(req requirements.Requirement) bool {
	if s.EnvVar != "" && req.EnvVar() != s.EnvVar {
		return false
	}
	if s.Kind != "" && req.Kind() != s.Kind {
		return false
	}
	return true
}

// Options configures one prepare call.
type Options struct {
	// Whitelist restricts the call to matching requirements. Nil or
	// empty means all requirements (full mode).
	Whitelist []Selector

	// EnvironmentName selects the conda environment context, "" for
	// default.
	EnvironmentName string
}

// Result maps attempted requirements to their statuses.
type Result struct {
	statuses []*requirements.Status
}

// Statuses returns all statuses in attempt order.
func (r *Result) Statuses() []*requirements.Status {
	return r.statuses
}

// StatusFor returns the status of the first attempted requirement the
// selector matches, or nil when the whitelist never matched anything.
func (r *Result) StatusFor(sel Selector) *requirements.Status {
	for _, st := range r.statuses {
		if st.Requirement != nil && sel.Matches(st.Requirement) {
			return st
		}
	}
	return nil
}

// AllSucceeded reports whether every attempted requirement succeeded.
func (r *Result) AllSucceeded() bool {
	for _, st := range r.statuses {
		if !st.Success {
			return false
		}
	}
	return true
}

// Config wires the preparer's collaborators.
type Config struct {
	// Conda manages conda environments.
	Conda provision.CondaManager

	// Downloader fetches download requirements.
	Downloader provision.Downloader

	// Services starts and stops service instances.
	Services provision.ServiceManager

	// History optionally records prepare runs; nil disables recording.
	History *stores.HistoryStore

	// Logger is the parent logger; nil means silent.
	Logger *telemetry.Logger
}

// Preparer attempts to satisfy requirements.
type Preparer struct {
	conda      provision.CondaManager
	downloader provision.Downloader
	services   provision.ServiceManager
	history    *stores.HistoryStore
	logger     *telemetry.Logger
}

// NewPreparer creates a preparer from the given collaborators.
func NewPreparer(cfg Config) *Preparer {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Nop()
	}
	return &Preparer{
		conda:      cfg.Conda,
		downloader: cfg.Downloader,
		services:   cfg.Services,
		history:    cfg.History,
		logger:     logger.NewComponentLogger("prepare"),
	}
}

// Prepare attempts to satisfy every whitelisted requirement (or all
// requirements when the whitelist is empty) and returns a status per
// attempted requirement. Conda environment requirements are attempted
// before downloads and services, which may execute inside that
// environment.
func (p *Preparer) Prepare(ctx context.Context, proj *project.Project, opts Options) *Result {
	startedAt := time.Now()

	var attempted []requirements.Requirement
	for _, req := range proj.Requirements() {
		if matchesWhitelist(req, opts.Whitelist) {
			attempted = append(attempted, req)
		}
	}

	// Dependency ordering by variant: the conda environment comes up
	// before anything that runs inside it.
	sort.SliceStable(attempted, func(i, j int) bool {
		return variantOrder(attempted[i].Kind()) < variantOrder(attempted[j].Kind())
	})

	result := &Result{}
	for _, req := range attempted {
		status := p.satisfy(ctx, proj, req, opts.EnvironmentName)
		if status.Success {
			p.logger.WithRequirement(req.EnvVar()).Debugf("satisfied: %s", status.Description)
		} else {
			p.logger.WithRequirement(req.EnvVar()).Infof("not satisfied: %s", status.Description)
		}
		result.statuses = append(result.statuses, status)
	}

	p.recordRun(ctx, proj, opts, result, startedAt)
	return result
}

// Unprepare tears down previously-provisioned resources matching the
// whitelist. It walks the recorded service run states rather than the
// requirement projection, so teardown still works for a requirement
// that was just removed from the document. Teardown is advisory:
// failures are logged and swallowed, never surfaced.
func (p *Preparer) Unprepare(ctx context.Context, proj *project.Project, whitelist []Selector) *requirements.Status {
	for _, variable := range proj.LocalState().ServiceRunStateVariables() {
		state := proj.LocalState().ServiceRunState(variable)
		if state == nil {
			continue
		}
		serviceType, _ := state["type"].(string)
		req := &requirements.ServiceRequirement{Variable: variable, ServiceType: serviceType}
		if len(whitelist) > 0 && !matchesWhitelist(req, whitelist) {
			continue
		}
		p.stopService(ctx, proj, req, state)
	}
	return requirements.Succeeded("Tore down project resources.")
}

// stopService stops the recorded instance for a service requirement
// and clears its run state. All failures are swallowed.
func (p *Preparer) stopService(ctx context.Context, proj *project.Project, req *requirements.ServiceRequirement, state map[string]interface{}) {
	logger := p.logger.WithRequirement(req.Variable)

	inst := &provision.ServiceInstance{Type: req.ServiceType}
	if address, ok := state["address"].(string); ok {
		inst.Address = address
	}
	if pid, ok := state["pid"].(int); ok {
		inst.PID = pid
	}
	if p.services != nil {
		if err := p.services.Stop(ctx, inst); err != nil {
			logger.WithError(err).Warnf("failed to stop %s service", req.ServiceType)
		}
	}

	proj.LocalState().UnsetServiceRunState(req.Variable)
	if err := proj.LocalState().Save(); err != nil {
		logger.WithError(err).Warn("failed to save local state after teardown")
	}
}

// satisfy dispatches to the variant-specific attempt.
func (p *Preparer) satisfy(ctx context.Context, proj *project.Project, req requirements.Requirement, envName string) *requirements.Status {
	switch r := req.(type) {
	case *requirements.CondaEnvRequirement:
		return p.satisfyCondaEnv(ctx, proj, r, envName)
	case *requirements.DownloadRequirement:
		return p.satisfyDownload(ctx, proj, r)
	case *requirements.ServiceRequirement:
		return p.satisfyService(ctx, proj, r)
	case *requirements.EnvVarRequirement:
		return p.satisfyEnvVar(proj, r)
	default:
		return requirements.Failed(fmt.Sprintf("Unknown requirement kind %s.", req.Kind())).ForRequirement(req)
	}
}

// satisfyCondaEnv diffs the declared dependency set against the
// installed set and creates or updates the environment accordingly.
func (p *Preparer) satisfyCondaEnv(ctx context.Context, proj *project.Project, req *requirements.CondaEnvRequirement, envName string) *requirements.Status {
	env, ok := proj.Environment(envName)
	if !ok {
		return requirements.Failed(
			fmt.Sprintf("Environment %s doesn't exist.", envName)).ForRequirement(req)
	}

	prefix := env.Prefix(proj.Directory())
	installed, err := p.conda.InstalledPackages(prefix)
	if err != nil {
		return requirements.Failed(
			fmt.Sprintf("Unable to inspect environment %s.", env.Name), err.Error()).ForRequirement(req)
	}

	var missing []string
	for _, spec := range env.Dependencies {
		if _, present := installed[provision.PackageSpecName(spec)]; !present {
			missing = append(missing, spec)
		}
	}

	_, statErr := os.Stat(prefix)
	exists := statErr == nil

	if !exists {
		if err := p.conda.CreateEnvironment(ctx, prefix, env.Dependencies, env.Channels); err != nil {
			return requirements.Failed(
				fmt.Sprintf("Failed to create environment %s.", env.Name), err.Error()).ForRequirement(req)
		}
	} else if len(missing) > 0 {
		if err := p.conda.InstallPackages(ctx, prefix, missing, env.Channels); err != nil {
			return requirements.Failed(
				fmt.Sprintf("Failed to install packages into environment %s.", env.Name), err.Error()).ForRequirement(req)
		}
	}

	// Success requires the environment to now contain at least the
	// declared dependencies.
	installed, err = p.conda.InstalledPackages(prefix)
	if err != nil {
		return requirements.Failed(
			fmt.Sprintf("Unable to inspect environment %s.", env.Name), err.Error()).ForRequirement(req)
	}
	var stillMissing []string
	for _, spec := range env.Dependencies {
		if _, present := installed[provision.PackageSpecName(spec)]; !present {
			stillMissing = append(stillMissing, spec)
		}
	}
	if len(stillMissing) > 0 {
		return requirements.Failed(
			fmt.Sprintf("Environment %s is missing packages.", env.Name), stillMissing...).ForRequirement(req)
	}

	status := requirements.Succeeded(fmt.Sprintf("Using environment %s at %s.", env.Name, prefix))
	status.Requirement = req
	status.AlreadyExisted = exists && len(missing) == 0
	status.Value = prefix
	return status
}

// satisfyDownload fetches the URL unless the file is already present.
func (p *Preparer) satisfyDownload(ctx context.Context, proj *project.Project, req *requirements.DownloadRequirement) *requirements.Status {
	dest := req.LocalPath(proj.Directory())
	if _, err := os.Stat(dest); err == nil {
		status := requirements.Succeeded(fmt.Sprintf("File %s already exists.", dest))
		status.Requirement = req
		status.AlreadyExisted = true
		status.Value = dest
		return status
	}

	if err := p.downloader.Fetch(ctx, req.URL, dest); err != nil {
		return requirements.Failed(
			fmt.Sprintf("Failed to download %s.", req.URL), err.Error()).ForRequirement(req)
	}

	status := requirements.Succeeded(fmt.Sprintf("Downloaded %s to %s.", req.URL, dest))
	status.Requirement = req
	status.Value = dest
	return status
}

// satisfyService confirms a recorded running instance or starts a new
// one, publishing its address through local state.
func (p *Preparer) satisfyService(ctx context.Context, proj *project.Project, req *requirements.ServiceRequirement) *requirements.Status {
	if state := proj.LocalState().ServiceRunState(req.Variable); state != nil {
		if address, ok := state["address"].(string); ok && address != "" {
			status := requirements.Succeeded(
				fmt.Sprintf("Service %s already running at %s.", req.ServiceType, address))
			status.Requirement = req
			status.AlreadyExisted = true
			status.Value = address
			return status
		}
	}

	inst, err := p.services.EnsureRunning(ctx, provision.ServiceSpec{
		Type:      req.ServiceType,
		Variable:  req.Variable,
		Directory: proj.Directory(),
	})
	if err != nil {
		return requirements.Failed(
			fmt.Sprintf("Failed to start %s service.", req.ServiceType), err.Error()).ForRequirement(req)
	}

	// Run state goes to local state, not the project file; these
	// writes are idempotent and outside the rollback transaction.
	runState := map[string]interface{}{
		"type":    inst.Type,
		"address": inst.Address,
	}
	if inst.PID != 0 {
		runState["pid"] = inst.PID
	}
	if err := proj.LocalState().SetServiceRunState(req.Variable, runState); err == nil {
		if err := proj.LocalState().Save(); err != nil {
			p.logger.WithRequirement(req.Variable).WithError(err).Warn("failed to save service run state")
		}
	}

	status := requirements.Succeeded(
		fmt.Sprintf("Started %s service at %s.", req.ServiceType, inst.Address))
	status.Requirement = req
	status.Value = inst.Address
	return status
}

// satisfyEnvVar resolves the variable through the project-file
// default, local state, then the process environment.
func (p *Preparer) satisfyEnvVar(proj *project.Project, req *requirements.EnvVarRequirement) *requirements.Status {
	value := req.Default
	alreadySet := false
	if value == "" {
		if local := proj.LocalState().VariableValue(req.Variable); local != "" {
			value = local
			alreadySet = true
		}
	}
	if value == "" {
		value = os.Getenv(req.Variable)
	}
	if value == "" {
		return requirements.Failed(
			fmt.Sprintf("Environment variable %s is not set.", req.Variable)).ForRequirement(req)
	}

	status := requirements.Succeeded(fmt.Sprintf("Environment variable %s is set.", req.Variable))
	status.Requirement = req
	status.AlreadyExisted = alreadySet
	status.Value = value
	return status
}

// recordRun persists the run outcome when a history store is wired.
// Recording is advisory; failures are logged and discarded.
func (p *Preparer) recordRun(ctx context.Context, proj *project.Project, opts Options, result *Result, startedAt time.Time) {
	if p.history == nil {
		return
	}

	run := &stores.PrepareRun{
		ID:              uuid.NewString(),
		Directory:       proj.Directory(),
		EnvironmentName: opts.EnvironmentName,
		Success:         result.AllSucceeded(),
		StartedAt:       startedAt,
		CompletedAt:     time.Now(),
	}
	results := make([]stores.RequirementResult, 0, len(result.statuses))
	for _, st := range result.statuses {
		if st.Requirement == nil {
			continue
		}
		results = append(results, stores.RequirementResult{
			RunID:          run.ID,
			EnvVar:         st.Requirement.EnvVar(),
			Kind:           string(st.Requirement.Kind()),
			Success:        st.Success,
			AlreadyExisted: st.AlreadyExisted,
			Description:    st.Description,
			Errors:         stores.JoinErrors(st.Errors),
		})
	}
	if err := p.history.RecordRun(ctx, run, results); err != nil {
		p.logger.WithError(err).Warn("failed to record prepare run")
	}
}

// matchesWhitelist reports whether the requirement matches any
// selector; an empty whitelist matches everything.
func matchesWhitelist(req requirements.Requirement, whitelist []Selector) bool {
	if len(whitelist) == 0 {
		return true
	}
	for _, sel := range whitelist {
		if sel.Matches(req) {
			return true
		}
	}
	return false
}

// variantOrder defines the dependency ordering between requirement
// variants.
func variantOrder(kind requirements.Kind) int {
	switch kind {
	case requirements.KindCondaEnv:
		return 0
	case requirements.KindEnvVar:
		return 1
	default:
		// downloads and services may run inside the environment
		return 2
	}
}
