package provision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dima2021/anaconda-project/pkg/telemetry"
)

func nopLogger() *telemetry.Logger {
	return telemetry.Nop()
}

func TestPackageSpecName(t *testing.T) {
	cases := map[string]string{
		"numpy":                "numpy",
		"numpy=1.11":           "numpy",
		"numpy==1.11.2=py35_0": "numpy",
		"numpy>=1.11":          "numpy",
		"scikit-learn=0.24":    "scikit-learn",
		"python 3.11":          "python",
		"pytorch!=2.0":         "pytorch",
	}
	for spec, want := range cases {
		if got := PackageSpecName(spec); got != want {
			t.Errorf("PackageSpecName(%q) = %q, want %q", spec, got, want)
		}
	}
}

func TestSplitRight(t *testing.T) {
	got := splitRight("scikit-learn-0.24.1-py38_0", '-', 2)
	if len(got) != 3 || got[0] != "scikit-learn" || got[1] != "0.24.1" || got[2] != "py38_0" {
		t.Errorf("splitRight = %v", got)
	}

	got = splitRight("nodash", '-', 2)
	if len(got) != 1 || got[0] != "nodash" {
		t.Errorf("splitRight without separators = %v", got)
	}
}

func TestInstalledPackagesMissingPrefix(t *testing.T) {
	cli := NewCondaCLI(nopLogger())
	installed, err := cli.InstalledPackages(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing prefix should not error: %v", err)
	}
	if len(installed) != 0 {
		t.Errorf("missing prefix should be empty, got %v", installed)
	}
}

func TestInstalledPackagesScansCondaMeta(t *testing.T) {
	prefix := t.TempDir()
	metaDir := filepath.Join(prefix, "conda-meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"numpy-1.26.0-py311_0.json",
		"scikit-learn-0.24.1-py38_0.json",
		"history", // non-json files are ignored
	} {
		if err := os.WriteFile(filepath.Join(metaDir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cli := NewCondaCLI(nopLogger())
	installed, err := cli.InstalledPackages(prefix)
	if err != nil {
		t.Fatalf("InstalledPackages failed: %v", err)
	}
	if len(installed) != 2 {
		t.Fatalf("installed = %v, want two entries", installed)
	}

	numpy := installed["numpy"]
	if numpy.Version != "1.26.0" || numpy.Build != "py311_0" {
		t.Errorf("numpy = %+v", numpy)
	}
	sklearn := installed["scikit-learn"]
	if sklearn.Name != "scikit-learn" || sklearn.Version != "0.24.1" {
		t.Errorf("scikit-learn = %+v", sklearn)
	}
}

func TestCreateEnvironmentArgumentChecks(t *testing.T) {
	cli := NewCondaCLI(nopLogger())
	ctx := context.Background()

	if err := cli.CreateEnvironment(ctx, filepath.Join(t.TempDir(), "env"), nil, nil); err == nil {
		t.Error("empty package list should be rejected")
	}

	existing := t.TempDir()
	if err := cli.CreateEnvironment(ctx, existing, []string{"python"}, nil); err == nil {
		t.Error("existing prefix should be rejected")
	}
}

func TestProvisionError(t *testing.T) {
	inner := os.ErrPermission
	err := &Error{Op: "conda create", Detail: "boom", Err: inner}
	if err.Unwrap() != inner {
		t.Error("Unwrap lost the inner error")
	}
	if err.Error() == "" {
		t.Error("empty error string")
	}

	plain := &Error{Op: "conda remove", Detail: "boom"}
	if plain.Error() != "conda remove: boom" {
		t.Errorf("Error() = %q", plain.Error())
	}
}
