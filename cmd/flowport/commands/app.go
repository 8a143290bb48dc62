package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/flowport/flowport/pkg/checkpoint"
	"github.com/flowport/flowport/pkg/config"
	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/platform"
	"github.com/flowport/flowport/pkg/policy"
	"github.com/flowport/flowport/pkg/rules"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/transform"
	sftptransport "github.com/flowport/flowport/pkg/transports/sftp"
	"github.com/flowport/flowport/pkg/vendors"
	"github.com/flowport/flowport/pkg/vendors/asana"
	"github.com/flowport/flowport/pkg/vendors/bpmnfile"
	"github.com/flowport/flowport/pkg/vendors/camunda"
	"github.com/flowport/flowport/pkg/vendors/typeform"
)

// app holds the wired-up pipeline for one command invocation.
type app struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *checkpoint.Store
	gate  *policy.Engine
	orch  *migrate.Orchestrator
}

// defaultRegistry returns the registry with every built-in vendor.
func defaultRegistry() *vendors.Registry {
	r := vendors.NewRegistry()
	asana.Register(r)
	typeform.Register(r)
	bpmnfile.Register(r)
	camunda.Register(r)
	return r
}

// newApp loads configuration and wires the full pipeline. When
// needTarget is set, a missing target endpoint is an error instead of
// an implicit dry run.
func newApp(ctx context.Context, needTarget bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := newTelemetry()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := checkpoint.Open(ctx, cfg.Store.Path)
	if err != nil {
		tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	a := &app{cfg: cfg, tel: tel, store: store}

	source, err := a.buildSource(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	transformer, err := a.buildTransformer()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	pusher, err := a.buildPusher(needTarget)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	gate, err := a.buildGate(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.gate = gate

	selection := &migrate.Selection{
		Include: cfg.Selection.Include,
		Exclude: cfg.Selection.Exclude,
		Labels:  cfg.Selection.Labels,
	}
	a.orch = migrate.NewOrchestrator(source, transformer, pusher, store, tel,
		migrate.WithGate(gate),
		migrate.WithSelection(selection),
	)
	return a, nil
}

// Close releases the app's resources.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tel != nil {
		_ = a.tel.Shutdown(ctx)
	}
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", configPath, err)
	}
	return cfg, nil
}

func newTelemetry() (*telemetry.Telemetry, error) {
	tcfg := telemetry.DefaultConfig()
	if verbose {
		tcfg.Logging.Level = "debug"
	}
	return telemetry.New(tcfg)
}

func (a *app) buildSource(ctx context.Context) (migrate.Source, error) {
	token, err := a.cfg.Vendor.ResolveToken()
	if err != nil {
		return nil, fmt.Errorf("vendor credentials: %w", err)
	}
	clientCfg := vendors.ClientConfig{
		BaseURL: a.cfg.Vendor.BaseURL,
		Token:   token,
		Timeout: a.cfg.Vendor.Timeout,
	}

	// The bpmn-files vendor accepts an sftp:// base URL for sites that
	// drop exports on an SFTP endpoint instead of exposing an API. The
	// tree is mirrored locally before the source walks it.
	if a.cfg.Vendor.Name == bpmnfile.VendorName && strings.HasPrefix(clientCfg.BaseURL, "sftp://") {
		dir, err := a.fetchRemoteExports(ctx, clientCfg.BaseURL, token)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch remote exports: %w", err)
		}
		clientCfg.BaseURL = dir
	}

	// Workspace scoping only exists for Asana, so it bypasses the
	// registry factory.
	if a.cfg.Vendor.Name == asana.VendorName && a.cfg.Vendor.Workspace != "" {
		return asana.New(clientCfg, a.tel.Logger, asana.WithWorkspace(a.cfg.Vendor.Workspace)), nil
	}
	return defaultRegistry().New(a.cfg.Vendor.Name, clientCfg, a.tel.Logger)
}

// fetchRemoteExports mirrors the .bpmn files under an sftp:// URL into
// a temporary directory and returns its path. A "latest=true" query
// fetches only the newest export instead of the whole directory, for
// drops that accumulate dated files. The vendor token, when set, is
// used as the SSH password; otherwise key authentication with the
// usual default key locations applies.
func (a *app) fetchRemoteExports(ctx context.Context, rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid sftp URL: %w", err)
	}
	user := u.User.Username()
	if user == "" {
		return "", fmt.Errorf("sftp URL must carry a username: %s", rawURL)
	}

	scfg := sftptransport.DefaultConfig(u.Hostname(), user)
	if port := u.Port(); port != "" {
		p, perr := strconv.Atoi(port)
		if perr != nil {
			return "", fmt.Errorf("invalid sftp port %q", port)
		}
		scfg.Port = p
	}
	if token != "" {
		scfg.AuthMethod = sftptransport.AuthMethodPassword
		scfg.Password = token
	}
	if a.cfg.Vendor.Timeout > 0 {
		scfg.ConnectionTimeout = a.cfg.Vendor.Timeout
	}

	fetcher, err := sftptransport.NewFetcher(scfg, a.tel.Logger)
	if err != nil {
		return "", err
	}
	if err := fetcher.Connect(ctx); err != nil {
		return "", err
	}
	defer fetcher.Close()

	localDir, err := os.MkdirTemp("", "flowport-export-")
	if err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if latest, _ := strconv.ParseBool(u.Query().Get("latest")); latest {
		_, err = fetcher.FetchLatest(ctx, u.Path, ".bpmn", localDir)
	} else {
		_, err = fetcher.FetchDir(ctx, u.Path, ".bpmn", localDir)
	}
	if err != nil {
		_ = os.RemoveAll(localDir)
		return "", err
	}
	return localDir, nil
}

func (a *app) buildTransformer() (migrate.Transformer, error) {
	var hooks *transform.HookSet
	if a.cfg.Hooks.File != "" {
		var err error
		hooks, err = transform.LoadHooks(a.cfg.Hooks.File, a.cfg.Hooks.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to load hooks: %w", err)
		}
	}

	switch a.cfg.Vendor.Name {
	case asana.VendorName:
		return transform.NewAsanaTransformer(a.cfg.Overrides, hooks, a.tel.Logger), nil
	case typeform.VendorName:
		return transform.NewTypeformTransformer(a.cfg.Overrides, hooks, a.tel.Logger), nil
	case bpmnfile.VendorName, camunda.VendorName:
		converter := rules.NewConverter(
			rules.WithReviewThreshold(a.cfg.ReviewThreshold),
			rules.WithLogger(a.tel.Logger.Zerolog()),
		)
		return transform.NewBPMNTransformer(converter, a.cfg.Overrides, hooks, a.tel.Logger), nil
	default:
		return nil, fmt.Errorf("no transformer for vendor %s", a.cfg.Vendor.Name)
	}
}

func (a *app) buildPusher(needTarget bool) (migrate.Pusher, error) {
	if a.cfg.Target.BaseURL == "" {
		if needTarget {
			return nil, fmt.Errorf("target.base_url is not configured; use --dry-run to convert without pushing")
		}
		return nil, nil
	}
	token, err := a.cfg.Target.ResolveToken()
	if err != nil {
		return nil, fmt.Errorf("target credentials: %w", err)
	}
	return platform.NewClient(platform.ClientConfig{
		BaseURL: a.cfg.Target.BaseURL,
		Token:   token,
		Timeout: a.cfg.Target.Timeout,
	}, a.tel.Logger), nil
}

func (a *app) buildGate(ctx context.Context) (*policy.Engine, error) {
	engine, err := policy.NewEngine(a.tel.Logger.Zerolog())
	if err != nil {
		return nil, fmt.Errorf("failed to build policy engine: %w", err)
	}
	if len(a.cfg.Policy.Paths) > 0 {
		if err := engine.LoadPolicies(ctx, a.cfg.Policy.Paths); err != nil {
			return nil, err
		}
		if a.cfg.Policy.Watch {
			go func() {
				loader := policy.NewLoader(a.tel.Logger.Zerolog())
				_ = loader.Watch(ctx, a.cfg.Policy.Paths, engine)
			}()
		}
	}
	for _, name := range a.cfg.Policy.Disabled {
		if err := engine.SetEnabled(name, false); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func (a *app) executeOptions(dryRun bool, maxParallel int, failFast bool) migrate.ExecuteOptions {
	opts := migrate.ExecuteOptions{
		DryRun:      dryRun,
		MaxParallel: a.cfg.Tuning.MaxParallel,
		MaxRetries:  a.cfg.Tuning.MaxRetries,
		UnitTimeout: a.cfg.Tuning.UnitTimeout,
		FailFast:    failFast,
	}
	if maxParallel > 0 {
		opts.MaxParallel = maxParallel
	}
	return opts
}
