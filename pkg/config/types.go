// Package config loads and validates migration configuration written
// in CUE. A config file names the vendor, the target platform, tuning
// knobs, mapping overrides, and policy sources.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/flowport/flowport/pkg/transform"
)

// Config is a fully parsed migration configuration.
type Config struct {
	// Vendor selects and configures the source system.
	Vendor VendorConfig `json:"vendor" validate:"required"`

	// Target configures the workflow platform to push into.
	Target TargetConfig `json:"target"`

	// Store configures the checkpoint database.
	Store StoreConfig `json:"store"`

	// Selection filters which entities migrate.
	Selection SelectionConfig `json:"selection"`

	// Tuning controls parallelism and retry behavior.
	Tuning TuningConfig `json:"tuning"`

	// Overrides customize individual entity mappings.
	Overrides transform.Overrides `json:"overrides"`

	// Hooks points at a Starlark file with mapping hook functions.
	Hooks HooksConfig `json:"hooks"`

	// Policy configures the Rego policy gate.
	Policy PolicyConfig `json:"policy"`

	// ReviewThreshold is the confidence below which converted elements
	// are flagged for manual review.
	ReviewThreshold float64 `json:"review_threshold" validate:"gte=0,lte=1"`
}

// VendorConfig configures the source system.
type VendorConfig struct {
	// Name is the registered vendor name.
	Name string `json:"name" validate:"required"`

	// BaseURL overrides the vendor API root. For the bpmn-files vendor
	// it is the local directory path.
	BaseURL string `json:"base_url,omitempty"`

	// TokenEnv names the environment variable holding the API token.
	// Tokens never appear in config files.
	TokenEnv string `json:"token_env,omitempty"`

	// Workspace restricts listing, for vendors that scope by workspace.
	Workspace string `json:"workspace,omitempty"`

	// Timeout bounds one API request.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// TargetConfig configures the workflow platform.
type TargetConfig struct {
	// BaseURL is the platform API root. Empty means dry-run only.
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `json:"token_env,omitempty"`

	// Timeout bounds one API request.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// StoreConfig configures checkpointing.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to flowport.db.
	Path string `json:"path,omitempty"`
}

// SelectionConfig filters entities.
type SelectionConfig struct {
	// Include lists entity refs to migrate. Empty means all.
	Include []string `json:"include,omitempty"`

	// Exclude lists entity refs to skip. Exclusion wins.
	Exclude []string `json:"exclude,omitempty"`

	// Labels must all match on the entity stub.
	Labels map[string]string `json:"labels,omitempty"`
}

// TuningConfig controls execution.
type TuningConfig struct {
	// MaxParallel bounds concurrent units.
	MaxParallel int `json:"max_parallel,omitempty" validate:"gte=0,lte=64"`

	// MaxRetries bounds retry attempts per unit.
	MaxRetries int `json:"max_retries,omitempty" validate:"gte=0,lte=10"`

	// UnitTimeout bounds one unit attempt.
	UnitTimeout time.Duration `json:"unit_timeout,omitempty"`
}

// HooksConfig points at Starlark mapping hooks.
type HooksConfig struct {
	// File is the Starlark source path.
	File string `json:"file,omitempty"`

	// Timeout bounds one hook call.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// PolicyConfig configures the policy gate.
type PolicyConfig struct {
	// Paths lists extra .rego files or directories.
	Paths []string `json:"paths,omitempty"`

	// Watch reloads file policies on change.
	Watch bool `json:"watch,omitempty"`

	// Disabled lists built-in policies to turn off.
	Disabled []string `json:"disabled,omitempty"`
}

// ResolveToken reads the vendor token from the configured environment
// variable.
func (v *VendorConfig) ResolveToken() (string, error) {
	return resolveToken(v.TokenEnv)
}

// ResolveToken reads the target token from the configured environment
// variable.
func (t *TargetConfig) ResolveToken() (string, error) {
	return resolveToken(t.TokenEnv)
}

func resolveToken(env string) (string, error) {
	if env == "" {
		return "", nil
	}
	token := os.Getenv(env)
	if token == "" {
		return "", fmt.Errorf("environment variable %s is not set", env)
	}
	return token, nil
}
