package migrate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flowport/flowport/pkg/telemetry"
)

const (
	defaultMaxParallel = 4
	defaultMaxRetries  = 3
	defaultUnitTimeout = 2 * time.Minute
	defaultPageLimit   = 100
)

// Orchestrator drives a migration pipeline: list entities into a plan,
// then execute the plan unit by unit with retry, checkpointing, policy
// gating, and progress events.
type Orchestrator struct {
	source      Source
	transformer Transformer
	pusher      Pusher
	gate        Gate
	store       StateStore
	selection   *Selection
	tel         *telemetry.Telemetry

	mu         sync.RWMutex
	unitStatus map[string]UnitStatus
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithGate installs a policy gate. Without one, every unit is allowed.
func WithGate(g Gate) OrchestratorOption {
	return func(o *Orchestrator) { o.gate = g }
}

// WithSelection installs entity selection filters.
func WithSelection(s *Selection) OrchestratorOption {
	return func(o *Orchestrator) { o.selection = s }
}

// NewOrchestrator builds an orchestrator for one vendor pipeline.
func NewOrchestrator(
	source Source,
	transformer Transformer,
	pusher Pusher,
	store StateStore,
	tel *telemetry.Telemetry,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		transformer: transformer,
		pusher:      pusher,
		store:       store,
		tel:         tel,
		unitStatus:  make(map[string]UnitStatus),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Plan lists all migratable entities and produces the run plan. Listing
// saves pagination cursors after every page, so an interrupted plan can
// refetch from the saved position.
func (o *Orchestrator) Plan(ctx context.Context) (*Plan, error) {
	plan := &Plan{
		ID:        uuid.New().String(),
		Vendor:    o.source.Vendor(),
		CreatedAt: time.Now(),
	}

	// An interrupted listing resumes at the saved position; the cursor
	// is reset to "" when the last page is reached below.
	cursor := ""
	if o.store != nil {
		saved, err := o.store.GetCursor(ctx, plan.Vendor, "list")
		if err != nil {
			return nil, fmt.Errorf("failed to load cursor: %w", err)
		}
		cursor = saved
	}
	for {
		page, err := o.source.List(ctx, cursor, defaultPageLimit)
		if err != nil {
			return nil, err
		}
		for _, stub := range page.Stubs {
			if !o.selection.Admits(stub) {
				plan.Excluded = append(plan.Excluded, stub)
				continue
			}
			if o.store != nil {
				if id, err := o.store.LookupMapping(ctx, plan.Vendor, stub.Ref); err == nil && id != "" {
					plan.AlreadyMigrated = append(plan.AlreadyMigrated, stub)
					continue
				}
			}
			plan.Units = append(plan.Units, WorkUnit{
				ID:     uuid.New().String(),
				Stub:   stub,
				Status: UnitStatusPending,
			})
		}
		if o.store != nil {
			if err := o.store.SaveCursor(ctx, plan.Vendor, "list", page.NextCursor); err != nil {
				return nil, fmt.Errorf("failed to save cursor: %w", err)
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return plan, nil
}

// Execute runs a plan to completion and returns the finished run.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan, opts ExecuteOptions) (*Run, error) {
	if plan == nil {
		return nil, NewPermanentError("plan is nil", nil).WithCode(ErrCodeValidation)
	}
	applyDefaults(&opts)

	run := &Run{
		ID:        uuid.New().String(),
		Vendor:    plan.Vendor,
		Status:    RunStatusRunning,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
		Summary:   RunSummary{Total: len(plan.Units), Pending: len(plan.Units)},
	}
	units := make([]*WorkUnit, len(plan.Units))
	for i := range plan.Units {
		u := plan.Units[i]
		u.RunID = run.ID
		units[i] = &u
	}
	return o.executeRun(ctx, run, units, opts)
}

// Resume continues an interrupted run: every non-terminal or failed unit
// is executed again. Units recorded in the entity map are never re-pushed.
func (o *Orchestrator) Resume(ctx context.Context, runID string, opts ExecuteOptions) (*Run, error) {
	applyDefaults(&opts)

	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run.Status == RunStatusSucceeded {
		return run, nil
	}

	all, err := o.store.ListUnits(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	var pending []*WorkUnit
	carried := RunSummary{Total: len(all)}
	for _, u := range all {
		switch u.Status {
		case UnitStatusSucceeded:
			carried.Succeeded++
			continue
		case UnitStatusDenied:
			carried.Denied++
			continue
		}
		u.Status = UnitStatusPending
		u.Error = nil
		pending = append(pending, u)
	}
	carried.Pending = len(pending)

	run.Status = RunStatusRunning
	run.CompletedAt = nil
	run.Summary = carried
	return o.executeRun(ctx, run, pending, opts)
}

// Cancel marks an active run cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, runID string) error {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if !run.Status.IsActive() {
		return NewPermanentError("run is not active", nil).WithCode(ErrCodeValidation)
	}
	run.Status = RunStatusCancelled
	now := time.Now()
	run.CompletedAt = &now
	return o.store.SaveRun(ctx, run)
}

func applyDefaults(opts *ExecuteOptions) {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = defaultUnitTimeout
	}
}

func (o *Orchestrator) executeRun(ctx context.Context, run *Run, units []*WorkUnit, opts ExecuteOptions) (*Run, error) {
	log := o.tel.Logger.NewComponentLogger("orchestrator").WithRunID(run.ID)

	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	for _, u := range units {
		o.setStatus(u.ID, UnitStatusPending)
		if err := o.store.SaveUnit(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to save unit: %w", err)
		}
	}

	o.tel.Metrics.RunStarted()
	defer o.tel.Metrics.RunFinished()
	_ = o.tel.Events.PublishRunStarted(run.ID, run.Vendor, len(units))
	log.Infof("run started: %d units", len(units))

	err := o.executeUnits(ctx, run, units, opts)

	// Units already terminal before a resume keep their counts.
	summary := o.summarize(units)
	summary.Total = run.Summary.Total
	summary.Succeeded += run.Summary.Succeeded
	summary.Denied += run.Summary.Denied
	run.Summary = summary
	now := time.Now()
	run.CompletedAt = &now

	switch {
	case err != nil && ctx.Err() != nil:
		run.Status = RunStatusCancelled
	case summary.Failed > 0 && summary.Succeeded > 0:
		run.Status = RunStatusPartial
	case summary.Failed > 0:
		run.Status = RunStatusFailed
	case summary.Denied > 0 || summary.Skipped > 0:
		run.Status = RunStatusPartial
	default:
		run.Status = RunStatusSucceeded
	}

	if saveErr := o.store.SaveRun(ctx, run); saveErr != nil && err == nil {
		err = fmt.Errorf("failed to save final run state: %w", saveErr)
	}

	if run.Status == RunStatusSucceeded {
		_ = o.tel.Events.PublishRunCompleted(run.ID, string(run.Status), now.Sub(run.StartedAt))
	} else {
		_ = o.tel.Events.PublishRunFailed(run.ID, string(run.Status))
	}
	log.Infof("run finished: %s (%d succeeded, %d failed, %d denied)",
		run.Status, summary.Succeeded, summary.Failed, summary.Denied)

	return run, err
}

// executeUnits fans units out over a bounded worker pool.
func (o *Orchestrator) executeUnits(ctx context.Context, run *Run, units []*WorkUnit, opts ExecuteOptions) error {
	workers := opts.MaxParallel
	if len(units) < workers {
		workers = len(units)
	}
	if workers == 0 {
		return nil
	}

	queue := make(chan *WorkUnit, len(units))
	for _, u := range units {
		queue <- u
	}
	close(queue)

	stop := make(chan struct{})
	var stopOnce sync.Once
	errChan := make(chan error, len(units))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range queue {
				select {
				case <-ctx.Done():
					return
				case <-stop:
					o.markSkipped(ctx, unit, "run stopped early")
					continue
				default:
				}

				if err := o.executeUnit(ctx, run, unit, opts); err != nil {
					errChan <- fmt.Errorf("unit %s failed: %w", unit.Stub.Ref, err)
					if opts.FailFast {
						stopOnce.Do(func() { close(stop) })
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errChan)

	var firstErr error
	for err := range errChan {
		if firstErr == nil {
			firstErr = err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

// executeUnit runs fetch → transform → gate → push for one unit, with
// retry on retryable errors. The unit state is checkpointed after every
// state change.
func (o *Orchestrator) executeUnit(ctx context.Context, run *Run, unit *WorkUnit, opts ExecuteOptions) error {
	log := o.tel.Logger.NewComponentLogger("orchestrator").
		WithRunID(run.ID).WithUnitID(unit.ID).WithEntity(unit.Stub.Ref)

	// Idempotent resume: entities already in the map are done.
	if id, err := o.store.LookupMapping(ctx, run.Vendor, unit.Stub.Ref); err == nil && id != "" {
		unit.TargetID = id
		o.finishUnit(ctx, unit, UnitStatusSkipped, nil)
		log.Debug("entity already migrated, skipping")
		return nil
	}

	now := time.Now()
	unit.StartedAt = &now
	unit.Status = UnitStatusRunning
	o.setStatus(unit.ID, UnitStatusRunning)
	if err := o.store.SaveUnit(ctx, unit); err != nil {
		return err
	}
	_ = o.tel.Events.PublishUnitStarted(run.ID, unit.ID, unit.Stub.Ref)

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		unit.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, opts.UnitTimeout)
		status, err := o.attemptUnit(attemptCtx, run, unit, opts)
		cancel()

		if err == nil {
			o.finishUnit(ctx, unit, status, nil)
			o.tel.Metrics.RecordUnit(run.Vendor, unit.Stub.Kind, string(status))
			if status == UnitStatusSucceeded {
				_ = o.tel.Events.PublishUnitCompleted(run.ID, unit.ID, unit.Stub.Ref, time.Since(now))
			}
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt >= opts.MaxRetries {
			break
		}

		class := classOf(err)
		o.tel.Metrics.RecordRetry(string(class))
		_ = o.tel.Events.PublishUnitRetrying(run.ID, unit.ID, attempt+1, opts.MaxRetries+1, string(class))
		log.WithError(err).Warnf("attempt %d failed, retrying", attempt+1)

		select {
		case <-time.After(backoffDelay(attempt, err)):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = opts.MaxRetries
		}
		if ctx.Err() != nil {
			break
		}
	}

	o.finishUnit(ctx, unit, UnitStatusFailed, lastErr)
	o.tel.Metrics.RecordUnit(run.Vendor, unit.Stub.Kind, string(UnitStatusFailed))
	o.tel.Metrics.RecordError(string(classOf(lastErr)))
	_ = o.tel.Events.PublishUnitFailed(run.ID, unit.ID, unit.Stub.Ref, lastErr.Error())
	log.WithError(lastErr).Error("unit failed")
	return lastErr
}

// attemptUnit is one pipeline pass over a unit.
func (o *Orchestrator) attemptUnit(ctx context.Context, run *Run, unit *WorkUnit, opts ExecuteOptions) (UnitStatus, error) {
	spanCtx, span := o.tel.Tracer.StartSpan(ctx, "migrate.unit",
		attribute.String("vendor", run.Vendor),
		attribute.String("entity", unit.Stub.Ref),
	)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()
	ctx = spanCtx

	fetchStart := time.Now()
	entity, err := o.source.Load(ctx, unit.Stub.Ref)
	o.tel.Metrics.RecordFetch(run.Vendor, time.Since(fetchStart))
	if err != nil {
		return UnitStatusFailed, err
	}

	result, err := o.transformer.Transform(ctx, entity)
	if err != nil {
		return UnitStatusFailed, err
	}
	unit.Confidence = result.Confidence
	o.tel.Metrics.RecordConfidence(result.Confidence)

	if o.gate != nil {
		decisions, gateErr := o.gate.Check(ctx, &GateInput{
			Vendor: run.Vendor,
			Stub:   unit.Stub,
			Result: result,
		})
		if gateErr != nil {
			err = gateErr
			return UnitStatusFailed, err
		}
		for _, d := range decisions {
			if !d.Allowed {
				o.tel.Metrics.RecordPolicyDenial(d.Policy)
				_ = o.tel.Events.PublishPolicyDenied(run.ID, unit.ID, unit.Stub.Ref, d.Policy, d.Reason)
				err = NewPermanentError(
					fmt.Sprintf("policy %s denied migration: %s", d.Policy, d.Reason), nil).
					WithCode(ErrCodePolicyDenied).WithEntity(unit.Stub.Ref)
				unit.Error = asError(err)
				return UnitStatusDenied, nil
			}
		}
	}

	if opts.DryRun {
		return UnitStatusSucceeded, nil
	}

	pushStart := time.Now()
	targetID, err := o.pusher.Push(ctx, result)
	o.tel.Metrics.RecordPush(unit.Stub.Kind, time.Since(pushStart))
	if err != nil {
		return UnitStatusFailed, err
	}
	unit.TargetID = targetID

	if err = o.store.RecordMapping(ctx, run.Vendor, unit.Stub.Ref, targetID); err != nil {
		err = NewTransientError("failed to record entity mapping", err)
		return UnitStatusFailed, err
	}
	return UnitStatusSucceeded, nil
}

func (o *Orchestrator) finishUnit(ctx context.Context, unit *WorkUnit, status UnitStatus, err error) {
	now := time.Now()
	unit.CompletedAt = &now
	unit.Status = status
	if err != nil {
		unit.Error = asError(err)
	}
	o.setStatus(unit.ID, status)
	if saveErr := o.store.SaveUnit(ctx, unit); saveErr != nil {
		o.tel.Logger.WithError(saveErr).WithUnitID(unit.ID).Error("failed to checkpoint unit")
	}
}

func (o *Orchestrator) markSkipped(ctx context.Context, unit *WorkUnit, reason string) {
	unit.Error = NewPermanentError(reason, nil).WithCode(ErrCodeInternal)
	o.finishUnit(ctx, unit, UnitStatusSkipped, nil)
}

func (o *Orchestrator) setStatus(unitID string, status UnitStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unitStatus[unitID] = status
}

func (o *Orchestrator) summarize(units []*WorkUnit) RunSummary {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var s RunSummary
	for _, u := range units {
		switch o.unitStatus[u.ID] {
		case UnitStatusSucceeded:
			s.Succeeded++
		case UnitStatusFailed:
			s.Failed++
		case UnitStatusSkipped:
			s.Skipped++
		case UnitStatusDenied:
			s.Denied++
		default:
			s.Pending++
		}
	}
	return s
}

// backoffDelay computes exponential backoff with jitter. Throttled errors
// start from a longer base delay and honor a server Retry-After hint.
func backoffDelay(attempt int, err error) time.Duration {
	if hint := RetryAfterHint(err); hint > 0 {
		return hint
	}

	baseDelay := 1 * time.Second
	if IsThrottled(err) {
		baseDelay = 5 * time.Second
	} else if IsConflict(err) {
		baseDelay = 2 * time.Second
	}

	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > time.Minute {
		delay = time.Minute
	}

	// Jitter of up to 25%.
	jitter := time.Duration(float64(delay) * 0.25)
	return delay + jitter/2
}

func classOf(err error) ErrorClass {
	switch {
	case IsTransient(err):
		return ErrorClassTransient
	case IsThrottled(err):
		return ErrorClassThrottled
	case IsConflict(err):
		return ErrorClassConflict
	default:
		return ErrorClassPermanent
	}
}

func asError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return NewPermanentError("migration failed", err).WithCode(ErrCodeInternal)
}
