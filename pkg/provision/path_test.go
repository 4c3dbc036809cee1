package provision

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// makeCondaPrefix builds a directory that looks like a conda
// environment: a conda-meta marker plus a bin directory.
func makeCondaPrefix(t *testing.T) string {
	t.Helper()
	prefix := filepath.Join(t.TempDir(), "envs", "default")
	for _, dir := range []string{"conda-meta", "bin"} {
		if err := os.MkdirAll(filepath.Join(prefix, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return prefix
}

func TestSetCondaEnvInPathPrepends(t *testing.T) {
	prefix := makeCondaPrefix(t)
	sep := string(os.PathListSeparator)
	original := "/usr/local/bin" + sep + "/usr/bin"

	got := setCondaEnvInPath(original, prefix, unixBindirs, isCondaBindirUnix)
	want := filepath.Join(prefix, "bin") + sep + original
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSetCondaEnvInPathReplacesOldEnv(t *testing.T) {
	oldPrefix := makeCondaPrefix(t)
	newPrefix := makeCondaPrefix(t)
	sep := string(os.PathListSeparator)

	path := filepath.Join(oldPrefix, "bin") + sep + "/usr/bin"
	got := setCondaEnvInPath(path, newPrefix, unixBindirs, isCondaBindirUnix)

	if strings.Contains(got, oldPrefix) {
		t.Errorf("old environment still on PATH: %q", got)
	}
	if !strings.HasPrefix(got, filepath.Join(newPrefix, "bin")) {
		t.Errorf("new environment not first on PATH: %q", got)
	}
	if !strings.Contains(got, "/usr/bin") {
		t.Errorf("unrelated entries dropped: %q", got)
	}
}

func TestSetCondaEnvInPathEmptyPrefixStrips(t *testing.T) {
	prefix := makeCondaPrefix(t)
	sep := string(os.PathListSeparator)

	path := filepath.Join(prefix, "bin") + sep + "/usr/bin"
	got := setCondaEnvInPath(path, "", unixBindirs, isCondaBindirUnix)
	if got != "/usr/bin" {
		t.Errorf("got %q, want /usr/bin", got)
	}
}

func TestNonCondaBinDirsSurvive(t *testing.T) {
	// a bin directory without conda-meta next to it is not a conda env
	plain := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(plain, 0o755); err != nil {
		t.Fatal(err)
	}

	got := setCondaEnvInPath(plain, "", unixBindirs, isCondaBindirUnix)
	if got != plain {
		t.Errorf("plain bin dir was stripped: %q", got)
	}
}
