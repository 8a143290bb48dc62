package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowport.cue")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return path
}

func loadConfig(t *testing.T, src string) *Config {
	t.Helper()
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	cfg, err := loader.Load(writeConfig(t, src))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return cfg
}

func loadConfigErr(t *testing.T, src string) error {
	t.Helper()
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	_, err = loader.Load(writeConfig(t, src))
	if err == nil {
		t.Fatal("Expected load to fail")
	}
	return err
}

func TestLoader_Load_Full(t *testing.T) {
	cfg := loadConfig(t, `
vendor: {
	name:      "asana"
	base_url:  "https://app.asana.com/api/1.0"
	token_env: "ASANA_TOKEN"
	workspace: "ws-1"
	timeout:   "30s"
}
target: {
	base_url:  "https://flow.example.com/api"
	token_env: "FLOW_TOKEN"
}
store: path: "state.db"
selection: {
	include: ["proj-1", "proj-2"]
	exclude: ["proj-2"]
	labels: team: "platform"
}
tuning: {
	max_parallel: 8
	max_retries:  5
	unit_timeout: "90s"
}
overrides: [{
	match:  "task-*"
	rename: "Imported task"
	kind:   "approval"
}]
hooks: {
	file:    "hooks.star"
	timeout: "5s"
}
policy: {
	paths: ["policies/"]
	watch: true
}
review_threshold: 0.6
`)

	if cfg.Vendor.Name != "asana" || cfg.Vendor.Workspace != "ws-1" {
		t.Errorf("Unexpected vendor config: %+v", cfg.Vendor)
	}
	if cfg.Vendor.Timeout != 30*time.Second {
		t.Errorf("Expected parsed vendor timeout, got %v", cfg.Vendor.Timeout)
	}
	if cfg.Target.BaseURL != "https://flow.example.com/api" {
		t.Errorf("Unexpected target config: %+v", cfg.Target)
	}
	if cfg.Store.Path != "state.db" {
		t.Errorf("Expected store path kept, got %q", cfg.Store.Path)
	}
	if len(cfg.Selection.Include) != 2 || cfg.Selection.Exclude[0] != "proj-2" {
		t.Errorf("Unexpected selection: %+v", cfg.Selection)
	}
	if cfg.Selection.Labels["team"] != "platform" {
		t.Errorf("Expected label kept, got %v", cfg.Selection.Labels)
	}
	if cfg.Tuning.MaxParallel != 8 || cfg.Tuning.MaxRetries != 5 || cfg.Tuning.UnitTimeout != 90*time.Second {
		t.Errorf("Unexpected tuning: %+v", cfg.Tuning)
	}
	if len(cfg.Overrides) != 1 || cfg.Overrides[0].Match != "task-*" {
		t.Errorf("Unexpected overrides: %+v", cfg.Overrides)
	}
	if cfg.Hooks.File != "hooks.star" || cfg.Hooks.Timeout != 5*time.Second {
		t.Errorf("Unexpected hooks config: %+v", cfg.Hooks)
	}
	if len(cfg.Policy.Paths) != 1 || !cfg.Policy.Watch {
		t.Errorf("Unexpected policy config: %+v", cfg.Policy)
	}
	if cfg.ReviewThreshold != 0.6 {
		t.Errorf("Expected review threshold 0.6, got %f", cfg.ReviewThreshold)
	}
}

func TestLoader_Load_Defaults(t *testing.T) {
	cfg := loadConfig(t, `vendor: name: "bpmn-files"`)

	if cfg.Store.Path != DefaultStorePath {
		t.Errorf("Expected default store path, got %q", cfg.Store.Path)
	}
	if cfg.Tuning.MaxParallel != DefaultMaxParallel {
		t.Errorf("Expected default parallelism, got %d", cfg.Tuning.MaxParallel)
	}
	if cfg.Tuning.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected default retries, got %d", cfg.Tuning.MaxRetries)
	}
	if cfg.Tuning.UnitTimeout != DefaultUnitTimeout {
		t.Errorf("Expected default unit timeout, got %v", cfg.Tuning.UnitTimeout)
	}
	if cfg.Hooks.Timeout != DefaultHookTimeout {
		t.Errorf("Expected default hook timeout, got %v", cfg.Hooks.Timeout)
	}
	if cfg.ReviewThreshold != DefaultReviewThreshold {
		t.Errorf("Expected default review threshold, got %f", cfg.ReviewThreshold)
	}
}

func TestLoader_Load_MissingFile(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := loader.Load(filepath.Join(t.TempDir(), "absent.cue")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoader_Load_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty vendor name", `vendor: name: ""`},
		{"bad duration", `
vendor: {
	name:    "asana"
	timeout: "thirty seconds"
}`},
		{"parallelism over cap", `
vendor: name: "asana"
tuning: max_parallel: 1000`},
		{"unknown override kind", `
vendor: name: "asana"
overrides: [{match: "x", kind: "gateway"}]`},
		{"threshold out of range", `
vendor: name: "asana"
review_threshold: 1.5`},
		{"not cue at all", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loadConfigErr(t, tt.src)
		})
	}
}

func TestLoader_Load_BadTargetURL(t *testing.T) {
	err := loadConfigErr(t, `
vendor: name: "asana"
target: base_url: "not a url"
`)
	if !strings.Contains(err.Error(), "validation") {
		t.Errorf("Expected struct validation failure, got: %v", err)
	}
}

func TestVendorConfig_ResolveToken(t *testing.T) {
	t.Setenv("FLOWPORT_TEST_TOKEN", "secret")

	v := VendorConfig{TokenEnv: "FLOWPORT_TEST_TOKEN"}
	token, err := v.ResolveToken()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if token != "secret" {
		t.Errorf("Expected token from environment, got %q", token)
	}

	v.TokenEnv = "FLOWPORT_TEST_TOKEN_UNSET"
	if _, err := v.ResolveToken(); err == nil {
		t.Error("Expected error for unset variable")
	}

	v.TokenEnv = ""
	token, err = v.ResolveToken()
	if err != nil || token != "" {
		t.Errorf("Expected empty token without env configured, got %q, %v", token, err)
	}
}
