package localstate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	state := Load(dir)
	if state == nil {
		t.Fatal("Load returned nil")
	}
	if got := state.VariableValue("ANYTHING"); got != "" {
		t.Errorf("empty state returned %q", got)
	}
}

func TestVariableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	state := Load(dir)

	if err := state.SetValue(CategoryVariables, "DB_PASSWORD", "hunter2"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if got := state.VariableValue("DB_PASSWORD"); got != "hunter2" {
		t.Errorf("VariableValue = %q, want hunter2", got)
	}
	if err := state.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// values survive a fresh load
	reloaded := Load(dir)
	if got := reloaded.VariableValue("DB_PASSWORD"); got != "hunter2" {
		t.Errorf("reloaded VariableValue = %q, want hunter2", got)
	}

	path := filepath.Join(dir, Dirname, Filename)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file not at %s: %v", path, err)
	}

	reloaded.UnsetValue(CategoryVariables, "DB_PASSWORD")
	if got := reloaded.VariableValue("DB_PASSWORD"); got != "" {
		t.Errorf("UnsetValue left %q", got)
	}
}

func TestServiceRunState(t *testing.T) {
	state := Load(t.TempDir())

	if got := state.ServiceRunState("REDIS_URL"); got != nil {
		t.Errorf("absent run state = %v, want nil", got)
	}
	if err := state.SetServiceRunState("REDIS_URL", nil); err == nil {
		t.Error("nil run state should be rejected")
	}

	runState := map[string]interface{}{
		"type":    "redis",
		"address": "redis://localhost:6379",
		"pid":     4242,
	}
	if err := state.SetServiceRunState("REDIS_URL", runState); err != nil {
		t.Fatalf("SetServiceRunState failed: %v", err)
	}

	got := state.ServiceRunState("REDIS_URL")
	if got == nil {
		t.Fatal("run state not recorded")
	}
	if got["address"] != "redis://localhost:6379" {
		t.Errorf("address = %v", got["address"])
	}

	vars := state.ServiceRunStateVariables()
	if len(vars) != 1 || vars[0] != "REDIS_URL" {
		t.Errorf("ServiceRunStateVariables = %v", vars)
	}

	state.UnsetServiceRunState("REDIS_URL")
	if state.ServiceRunState("REDIS_URL") != nil {
		t.Error("run state not removed")
	}
}
