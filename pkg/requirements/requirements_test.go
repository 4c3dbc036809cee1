package requirements

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestKindValidate(t *testing.T) {
	for _, kind := range []Kind{KindEnvVar, KindCondaEnv, KindDownload, KindService} {
		if err := kind.Validate(); err != nil {
			t.Errorf("kind %s should be valid: %v", kind, err)
		}
	}
	if err := Kind("bogus").Validate(); err == nil {
		t.Error("bogus kind should be invalid")
	}
}

func TestRequirementVariants(t *testing.T) {
	var req Requirement

	req = &EnvVarRequirement{Variable: "AMQP_URL", Default: "amqp://localhost"}
	if req.EnvVar() != "AMQP_URL" || req.Kind() != KindEnvVar {
		t.Errorf("env var requirement misreports itself: %s %s", req.EnvVar(), req.Kind())
	}

	req = &CondaEnvRequirement{}
	if req.EnvVar() != CondaEnvVariable || req.Kind() != KindCondaEnv {
		t.Errorf("conda requirement misreports itself: %s %s", req.EnvVar(), req.Kind())
	}

	req = &DownloadRequirement{Variable: "DATA", URL: "http://x/y.csv", Filename: "y.csv"}
	if req.EnvVar() != "DATA" || req.Kind() != KindDownload {
		t.Errorf("download requirement misreports itself: %s %s", req.EnvVar(), req.Kind())
	}

	req = &ServiceRequirement{Variable: "REDIS_URL", ServiceType: "redis"}
	if req.EnvVar() != "REDIS_URL" || req.Kind() != KindService {
		t.Errorf("service requirement misreports itself: %s %s", req.EnvVar(), req.Kind())
	}
	if !strings.Contains(req.Title(), "redis") {
		t.Errorf("service title should mention the type: %q", req.Title())
	}
}

func TestDownloadLocalPath(t *testing.T) {
	req := &DownloadRequirement{Variable: "DATA", URL: "http://x/y.csv", Filename: "data/y.csv"}
	got := req.LocalPath(filepath.Join("home", "proj"))
	want := filepath.Join("home", "proj", "data", "y.csv")
	if got != want {
		t.Errorf("LocalPath = %q, want %q", got, want)
	}
}

func TestStatusHelpers(t *testing.T) {
	ok := Succeeded("all good")
	if !ok.Success || ok.Description != "all good" {
		t.Errorf("Succeeded built %+v", ok)
	}

	bad := Failed("broke", "cause one", "cause two")
	if bad.Success || len(bad.Errors) != 2 {
		t.Errorf("Failed built %+v", bad)
	}

	req := &EnvVarRequirement{Variable: "X"}
	if got := bad.ForRequirement(req); got.Requirement != req {
		t.Error("ForRequirement did not attach the requirement")
	}
	if got := ok.WithLogs("one", "two"); len(got.Logs) != 2 {
		t.Errorf("WithLogs = %v", got.Logs)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	redis, ok := registry.FindServiceType("redis")
	if !ok {
		t.Fatal("redis should be a known service type")
	}
	if redis.DefaultVariable != "REDIS_URL" {
		t.Errorf("redis default variable = %q", redis.DefaultVariable)
	}

	if _, ok := registry.FindServiceType("kafka"); ok {
		t.Error("kafka should be unknown")
	}

	types := registry.ServiceTypes()
	if len(types) == 0 {
		t.Error("registry should list its built-in types")
	}
}
