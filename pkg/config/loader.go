package config

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"

	"github.com/flowport/flowport/pkg/transform"
)

// Defaults applied when the config file leaves settings out.
const (
	DefaultStorePath       = "flowport.db"
	DefaultMaxParallel     = 4
	DefaultMaxRetries      = 3
	DefaultUnitTimeout     = 2 * time.Minute
	DefaultHookTimeout     = 10 * time.Second
	DefaultReviewThreshold = 0.7
)

// Loader parses CUE configuration files.
type Loader struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
}

// NewLoader creates a config loader with the built-in schema compiled.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(builtinConfigSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}
	return &Loader{
		ctx:       ctx,
		schema:    schema.LookupPath(cue.ParsePath("#Config")),
		validator: validator.New(),
	}, nil
}

// Load parses, schema-checks, and validates one config file.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	val := l.ctx.CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %s", cueErrorDetail(err))
	}

	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config does not match schema: %s", cueErrorDetail(err))
	}

	var raw rawConfig
	if err := unified.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)

	if err := l.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// rawConfig mirrors Config with string durations, the form CUE files
// carry them in.
type rawConfig struct {
	Vendor struct {
		Name      string `json:"name"`
		BaseURL   string `json:"base_url"`
		TokenEnv  string `json:"token_env"`
		Workspace string `json:"workspace"`
		Timeout   string `json:"timeout"`
	} `json:"vendor"`
	Target struct {
		BaseURL  string `json:"base_url"`
		TokenEnv string `json:"token_env"`
		Timeout  string `json:"timeout"`
	} `json:"target"`
	Store struct {
		Path string `json:"path"`
	} `json:"store"`
	Selection struct {
		Include []string          `json:"include"`
		Exclude []string          `json:"exclude"`
		Labels  map[string]string `json:"labels"`
	} `json:"selection"`
	Tuning struct {
		MaxParallel int    `json:"max_parallel"`
		MaxRetries  int    `json:"max_retries"`
		UnitTimeout string `json:"unit_timeout"`
	} `json:"tuning"`
	Overrides []transform.Override `json:"overrides"`
	Hooks     struct {
		File    string `json:"file"`
		Timeout string `json:"timeout"`
	} `json:"hooks"`
	Policy struct {
		Paths    []string `json:"paths"`
		Watch    bool     `json:"watch"`
		Disabled []string `json:"disabled"`
	} `json:"policy"`
	ReviewThreshold *float64 `json:"review_threshold"`
}

func (r *rawConfig) toConfig() (*Config, error) {
	cfg := &Config{
		Vendor: VendorConfig{
			Name:      r.Vendor.Name,
			BaseURL:   r.Vendor.BaseURL,
			TokenEnv:  r.Vendor.TokenEnv,
			Workspace: r.Vendor.Workspace,
		},
		Target: TargetConfig{
			BaseURL:  r.Target.BaseURL,
			TokenEnv: r.Target.TokenEnv,
		},
		Store: StoreConfig{Path: r.Store.Path},
		Selection: SelectionConfig{
			Include: r.Selection.Include,
			Exclude: r.Selection.Exclude,
			Labels:  r.Selection.Labels,
		},
		Tuning: TuningConfig{
			MaxParallel: r.Tuning.MaxParallel,
			MaxRetries:  r.Tuning.MaxRetries,
		},
		Overrides: r.Overrides,
		Hooks:     HooksConfig{File: r.Hooks.File},
		Policy: PolicyConfig{
			Paths:    r.Policy.Paths,
			Watch:    r.Policy.Watch,
			Disabled: r.Policy.Disabled,
		},
	}
	if r.ReviewThreshold != nil {
		cfg.ReviewThreshold = *r.ReviewThreshold
	} else {
		cfg.ReviewThreshold = DefaultReviewThreshold
	}

	var err error
	if cfg.Vendor.Timeout, err = parseDuration(r.Vendor.Timeout); err != nil {
		return nil, fmt.Errorf("vendor.timeout: %w", err)
	}
	if cfg.Target.Timeout, err = parseDuration(r.Target.Timeout); err != nil {
		return nil, fmt.Errorf("target.timeout: %w", err)
	}
	if cfg.Tuning.UnitTimeout, err = parseDuration(r.Tuning.UnitTimeout); err != nil {
		return nil, fmt.Errorf("tuning.unit_timeout: %w", err)
	}
	if cfg.Hooks.Timeout, err = parseDuration(r.Hooks.Timeout); err != nil {
		return nil, fmt.Errorf("hooks.timeout: %w", err)
	}
	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Tuning.MaxParallel == 0 {
		cfg.Tuning.MaxParallel = DefaultMaxParallel
	}
	if cfg.Tuning.MaxRetries == 0 {
		cfg.Tuning.MaxRetries = DefaultMaxRetries
	}
	if cfg.Tuning.UnitTimeout == 0 {
		cfg.Tuning.UnitTimeout = DefaultUnitTimeout
	}
	if cfg.Hooks.Timeout == 0 {
		cfg.Hooks.Timeout = DefaultHookTimeout
	}
}

// cueErrorDetail renders all CUE errors with positions.
func cueErrorDetail(err error) string {
	var out string
	for i, e := range cueerrors.Errors(err) {
		if i > 0 {
			out += "; "
		}
		out += e.Error()
	}
	if out == "" {
		out = err.Error()
	}
	return out
}
