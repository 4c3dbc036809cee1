package prepare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Dima2021/anaconda-project/pkg/project"
	"github.com/Dima2021/anaconda-project/pkg/projectfile"
	"github.com/Dima2021/anaconda-project/pkg/provision"
	"github.com/Dima2021/anaconda-project/pkg/requirements"
)

// fakeConda tracks environments in memory and mirrors them as bare
// directories so existence checks behave.
type fakeConda struct {
	packages  map[string][]string
	createErr error
	creates   int
	installs  int
	removals  [][]string
}

func newFakeConda() *fakeConda {
	return &fakeConda{packages: make(map[string][]string)}
}

func (f *fakeConda) CreateEnvironment(_ context.Context, prefix string, packages, _ []string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return err
	}
	f.packages[prefix] = append([]string{}, packages...)
	return nil
}

func (f *fakeConda) InstallPackages(_ context.Context, prefix string, packages, _ []string) error {
	f.installs++
	f.packages[prefix] = append(f.packages[prefix], packages...)
	return nil
}

func (f *fakeConda) RemovePackages(_ context.Context, prefix string, packages []string) error {
	f.removals = append(f.removals, packages)
	return nil
}

func (f *fakeConda) InstalledPackages(prefix string) (map[string]provision.Package, error) {
	installed := make(map[string]provision.Package)
	for _, spec := range f.packages[prefix] {
		name := provision.PackageSpecName(spec)
		installed[name] = provision.Package{Name: name}
	}
	return installed, nil
}

type fakeDownloader struct {
	err     error
	fetched []string
}

func (f *fakeDownloader) Fetch(_ context.Context, url, dest string) error {
	if f.err != nil {
		return f.err
	}
	f.fetched = append(f.fetched, url)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("data"), 0o644)
}

type fakeServices struct {
	err     error
	started []provision.ServiceSpec
	stopped []*provision.ServiceInstance
}

func (f *fakeServices) EnsureRunning(_ context.Context, spec provision.ServiceSpec) (*provision.ServiceInstance, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, spec)
	return &provision.ServiceInstance{Type: spec.Type, Address: "redis://localhost:6379", PID: 4242}, nil
}

func (f *fakeServices) Stop(_ context.Context, inst *provision.ServiceInstance) error {
	f.stopped = append(f.stopped, inst)
	return f.err
}

type fixture struct {
	conda      *fakeConda
	downloader *fakeDownloader
	services   *fakeServices
	preparer   *Preparer
}

func newFixture() *fixture {
	f := &fixture{
		conda:      newFakeConda(),
		downloader: &fakeDownloader{},
		services:   &fakeServices{},
	}
	f.preparer = NewPreparer(Config{
		Conda:      f.conda,
		Downloader: f.downloader,
		Services:   f.services,
	})
	return f
}

func loadProject(t *testing.T, content string) *project.Project {
	t.Helper()
	dir := t.TempDir()
	if content != "" {
		path := filepath.Join(dir, projectfile.Filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	proj := project.Load(dir, nil)
	if len(proj.Problems()) != 0 {
		t.Fatalf("test project has problems: %v", proj.Problems())
	}
	return proj
}

func TestSelectorMatching(t *testing.T) {
	download := &requirements.DownloadRequirement{Variable: "DATA", URL: "http://x", Filename: "x"}

	if !(Selector{}).Matches(download) {
		t.Error("zero selector should match everything")
	}
	if !(Selector{EnvVar: "DATA"}).Matches(download) {
		t.Error("env var selector should match")
	}
	if (Selector{EnvVar: "OTHER"}).Matches(download) {
		t.Error("wrong env var should not match")
	}
	if !(Selector{Kind: requirements.KindDownload}).Matches(download) {
		t.Error("kind selector should match")
	}
	if (Selector{EnvVar: "DATA", Kind: requirements.KindService}).Matches(download) {
		t.Error("mismatched kind should not match")
	}
}

func TestPrepareCondaEnvFirst(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, `
dependencies:
  - python
downloads:
  DATA_FILE: http://example.com/iris.csv
`)

	result := f.preparer.Prepare(context.Background(), proj, Options{})
	if !result.AllSucceeded() {
		t.Fatalf("prepare failed: %+v", result.Statuses())
	}

	statuses := result.Statuses()
	if statuses[0].Requirement.Kind() != requirements.KindCondaEnv {
		t.Errorf("conda env should be attempted first, got %s", statuses[0].Requirement.Kind())
	}
	if f.conda.creates != 1 {
		t.Errorf("creates = %d, want 1", f.conda.creates)
	}
	if len(f.downloader.fetched) != 1 {
		t.Errorf("fetched = %v", f.downloader.fetched)
	}
}

func TestPrepareWhitelistNarrowing(t *testing.T) {
	f := newFixture()
	// the service would fail, but the whitelist excludes it
	f.services.err = fmt.Errorf("refused")
	proj := loadProject(t, `
downloads:
  DATA_FILE: http://example.com/iris.csv
services:
  REDIS_URL: redis
`)

	result := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{EnvVar: "DATA_FILE", Kind: requirements.KindDownload}},
	})

	if len(result.Statuses()) != 1 {
		t.Fatalf("attempted %d requirements, want 1", len(result.Statuses()))
	}
	if !result.AllSucceeded() {
		t.Error("the whitelisted download should succeed despite the broken service")
	}
	if len(f.services.started) != 0 {
		t.Error("non-whitelisted service was attempted")
	}
	if result.StatusFor(Selector{EnvVar: "REDIS_URL"}) != nil {
		t.Error("StatusFor should be nil for unattempted requirements")
	}
}

func TestPrepareCondaEnvAlreadySatisfied(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, "dependencies:\n  - python\n")

	first := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{Kind: requirements.KindCondaEnv}},
	})
	if !first.AllSucceeded() {
		t.Fatalf("first prepare failed: %+v", first.Statuses())
	}

	second := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{Kind: requirements.KindCondaEnv}},
	})
	status := second.StatusFor(Selector{Kind: requirements.KindCondaEnv})
	if status == nil || !status.Success {
		t.Fatal("second prepare should succeed")
	}
	if !status.AlreadyExisted {
		t.Error("second prepare should report AlreadyExisted")
	}
	if f.conda.creates != 1 {
		t.Errorf("creates = %d, want 1", f.conda.creates)
	}
}

func TestPrepareInstallsMissingPackages(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, "dependencies:\n  - python\n")

	env, _ := proj.Environment("")
	prefix := env.Prefix(proj.Directory())
	// environment exists but has nothing installed
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		t.Fatal(err)
	}

	result := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{Kind: requirements.KindCondaEnv}},
	})
	if !result.AllSucceeded() {
		t.Fatalf("prepare failed: %+v", result.Statuses())
	}
	if f.conda.installs != 1 || f.conda.creates != 0 {
		t.Errorf("installs = %d creates = %d, want install path", f.conda.installs, f.conda.creates)
	}
}

func TestPrepareDownloadAlreadyPresent(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, "downloads:\n  DATA_FILE: http://example.com/iris.csv\n")

	dest := filepath.Join(proj.Directory(), "iris.csv")
	if err := os.WriteFile(dest, []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{Kind: requirements.KindDownload}},
	})
	status := result.StatusFor(Selector{EnvVar: "DATA_FILE"})
	if status == nil || !status.Success || !status.AlreadyExisted {
		t.Fatalf("cached download should be an already-existed success: %+v", status)
	}
	if len(f.downloader.fetched) != 0 {
		t.Error("cached file should not be re-fetched")
	}
}

func TestPrepareServicePublishesRunState(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, "services:\n  REDIS_URL: redis\n")

	result := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{Kind: requirements.KindService}},
	})
	status := result.StatusFor(Selector{EnvVar: "REDIS_URL"})
	if status == nil || !status.Success {
		t.Fatalf("service prepare failed: %+v", status)
	}
	if status.Value != "redis://localhost:6379" {
		t.Errorf("Value = %q", status.Value)
	}

	state := proj.LocalState().ServiceRunState("REDIS_URL")
	if state == nil || state["address"] != "redis://localhost:6379" {
		t.Errorf("run state = %v", state)
	}

	// a second prepare reuses the recorded instance
	again := f.preparer.Prepare(context.Background(), proj, Options{
		Whitelist: []Selector{{Kind: requirements.KindService}},
	})
	status = again.StatusFor(Selector{EnvVar: "REDIS_URL"})
	if status == nil || !status.AlreadyExisted {
		t.Errorf("second prepare should reuse the instance: %+v", status)
	}
	if len(f.services.started) != 1 {
		t.Errorf("started %d times, want 1", len(f.services.started))
	}
}

func TestEnvVarResolutionPrecedence(t *testing.T) {
	f := newFixture()
	sel := Selector{EnvVar: "TOKEN", Kind: requirements.KindEnvVar}

	// unset everywhere: failure
	proj := loadProject(t, "variables:\n  TOKEN:\n")
	result := f.preparer.Prepare(context.Background(), proj, Options{Whitelist: []Selector{sel}})
	if result.AllSucceeded() {
		t.Error("unresolvable variable should fail")
	}

	// process environment is the last resort
	t.Setenv("TOKEN", "from-env")
	status := f.preparer.Prepare(context.Background(), proj, Options{Whitelist: []Selector{sel}}).StatusFor(sel)
	if status == nil || !status.Success || status.Value != "from-env" {
		t.Fatalf("process env fallback: %+v", status)
	}

	// a local state value beats the process environment
	if err := proj.LocalState().SetValue("variables", "TOKEN", "from-local"); err != nil {
		t.Fatal(err)
	}
	status = f.preparer.Prepare(context.Background(), proj, Options{Whitelist: []Selector{sel}}).StatusFor(sel)
	if status == nil || status.Value != "from-local" {
		t.Fatalf("local state value: %+v", status)
	}
	if !status.AlreadyExisted {
		t.Error("locally resolved variable should report AlreadyExisted")
	}

	// a document default beats both
	proj = loadProject(t, "variables:\n  TOKEN: from-default\n")
	if err := proj.LocalState().SetValue("variables", "TOKEN", "from-local"); err != nil {
		t.Fatal(err)
	}
	status = f.preparer.Prepare(context.Background(), proj, Options{Whitelist: []Selector{sel}}).StatusFor(sel)
	if status == nil || status.Value != "from-default" {
		t.Fatalf("document default: %+v", status)
	}
}

func TestUnprepareStopsServicesAndSwallowsErrors(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, "services:\n  REDIS_URL: redis\n")

	f.preparer.Prepare(context.Background(), proj, Options{})
	if proj.LocalState().ServiceRunState("REDIS_URL") == nil {
		t.Fatal("run state missing after prepare")
	}

	// failures during teardown never surface
	f.services.err = fmt.Errorf("already dead")
	status := f.preparer.Unprepare(context.Background(), proj, nil)
	if !status.Success {
		t.Error("teardown failures are advisory; Unprepare should succeed")
	}
	if len(f.services.stopped) != 1 {
		t.Errorf("stopped %d instances, want 1", len(f.services.stopped))
	}
	if proj.LocalState().ServiceRunState("REDIS_URL") != nil {
		t.Error("run state should be cleared")
	}
}

func TestUnprepareWorksAfterRequirementRemoved(t *testing.T) {
	f := newFixture()
	proj := loadProject(t, "services:\n  REDIS_URL: redis\n")

	f.preparer.Prepare(context.Background(), proj, Options{})

	// remove the requirement from the document, as RemoveService does
	proj.ProjectFile().Unset("services", "REDIS_URL")
	proj.UseChanges()

	f.preparer.Unprepare(context.Background(), proj, []Selector{{EnvVar: "REDIS_URL", Kind: requirements.KindService}})
	if len(f.services.stopped) != 1 {
		t.Error("teardown should follow the recorded run state, not the projection")
	}
}

func TestVariantOrderIsStable(t *testing.T) {
	kinds := []requirements.Kind{
		requirements.KindService,
		requirements.KindDownload,
		requirements.KindEnvVar,
		requirements.KindCondaEnv,
	}
	sort.SliceStable(kinds, func(i, j int) bool {
		return variantOrder(kinds[i]) < variantOrder(kinds[j])
	})
	if kinds[0] != requirements.KindCondaEnv || kinds[1] != requirements.KindEnvVar {
		t.Errorf("sorted kinds = %v", kinds)
	}
}
