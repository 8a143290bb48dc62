package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const sampleRego = `# Blocks workflows tagged do-not-migrate
package flowport.policies.tags

import rego.v1

deny contains violation if {
	some tag in input.result.workflow.tags
	tag == "do-not-migrate"
	violation := {
		"message": "workflow is tagged do-not-migrate",
		"severity": "error",
	}
}
`

func TestLoader_LoadFromPaths_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deny-tagged.rego")
	if err := os.WriteFile(path, []byte(sampleRego), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "deny-tagged" {
		t.Errorf("Expected name from filename, got %q", p.Name)
	}
	if p.Description != "Blocks workflows tagged do-not-migrate" {
		t.Errorf("Expected description from leading comment, got %q", p.Description)
	}
	if p.Severity != SeverityError || !p.Enabled {
		t.Errorf("Expected enabled error-severity policy, got %+v", p)
	}
	if p.Source != path {
		t.Errorf("Expected source path recorded, got %q", p.Source)
	}
}

func TestLoader_LoadFromPaths_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.rego"), []byte(sampleRego), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	sub := filepath.Join(dir, "extra")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.rego"), []byte(sampleRego), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	loader := NewLoader(zerolog.Nop())
	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(policies) != 2 {
		t.Errorf("Expected 2 policies from recursive walk, got %d", len(policies))
	}
}

func TestLoader_LoadFromPaths_MissingPath(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
}

func TestExtractDescription(t *testing.T) {
	if got := extractDescription("package p\n# too late"); got != "" {
		t.Errorf("Expected no description after code begins, got %q", got)
	}
	if got := extractDescription("\n# First line\n# Second\npackage p"); got != "First line" {
		t.Errorf("Expected first comment line, got %q", got)
	}
}
