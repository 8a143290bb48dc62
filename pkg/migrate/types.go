package migrate

import (
	"time"

	"github.com/flowport/flowport/pkg/target"
)

// EntityStub identifies a migratable vendor entity before it is loaded.
type EntityStub struct {
	// Ref is the vendor-side identifier.
	Ref string `json:"ref"`

	// Kind is the vendor entity kind (project, form, process).
	Kind string `json:"kind"`

	// Name is the vendor-side display name.
	Name string `json:"name"`

	// Labels carry vendor-side metadata used by selection filters and
	// policies (e.g. archived, team).
	Labels map[string]string `json:"labels,omitempty"`
}

// Page is one page of listed entities plus the cursor for the next page.
type Page struct {
	// Stubs are the entities on this page.
	Stubs []EntityStub `json:"stubs"`

	// NextCursor resumes listing after this page; empty means done.
	NextCursor string `json:"next_cursor,omitempty"`
}

// Entity is a fully loaded vendor entity ready for transformation.
type Entity struct {
	EntityStub

	// Payload is the vendor-typed value (e.g. *asana.Project).
	Payload interface{} `json:"-"`
}

// TransformResult is the outcome of transforming one entity.
type TransformResult struct {
	// Workflow is the migrated workflow.
	Workflow *target.Workflow `json:"workflow"`

	// Confidence is the transformation confidence in [0,1]. Flat field
	// remappings report 1.0; the BPMN rule engine reports its aggregate.
	Confidence float64 `json:"confidence"`

	// Notes are manual-review remarks surfaced in run output.
	Notes []string `json:"notes,omitempty"`
}

// UnitStatus is the lifecycle state of a work unit.
type UnitStatus string

const (
	UnitStatusPending   UnitStatus = "pending"
	UnitStatusRunning   UnitStatus = "running"
	UnitStatusSucceeded UnitStatus = "succeeded"
	UnitStatusFailed    UnitStatus = "failed"
	UnitStatusSkipped   UnitStatus = "skipped"
	UnitStatusDenied    UnitStatus = "denied"
)

// IsTerminal reports whether the status is final.
func (s UnitStatus) IsTerminal() bool {
	switch s {
	case UnitStatusSucceeded, UnitStatusFailed, UnitStatusSkipped, UnitStatusDenied:
		return true
	}
	return false
}

// WorkUnit is one entity migration tracked through the pipeline.
type WorkUnit struct {
	// ID is the unit identifier, unique within a run.
	ID string `json:"id"`

	// RunID is the run this unit belongs to.
	RunID string `json:"run_id"`

	// Stub identifies the vendor entity.
	Stub EntityStub `json:"stub"`

	// Status is the current unit status.
	Status UnitStatus `json:"status"`

	// Attempts counts executions including retries.
	Attempts int `json:"attempts"`

	// TargetID is the target-side workflow ID after a successful push.
	TargetID string `json:"target_id,omitempty"`

	// Confidence is the transformation confidence once transformed.
	Confidence float64 `json:"confidence,omitempty"`

	// Error is the terminal error for failed units.
	Error *Error `json:"error,omitempty"`

	// StartedAt and CompletedAt bracket the last execution.
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Plan is the result of the planning phase: everything a run would do.
type Plan struct {
	// ID is the plan identifier.
	ID string `json:"id"`

	// Vendor is the source vendor name.
	Vendor string `json:"vendor"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// Units are the work units in execution order.
	Units []WorkUnit `json:"units"`

	// Excluded lists entities dropped by selection filters.
	Excluded []EntityStub `json:"excluded,omitempty"`

	// AlreadyMigrated lists entities present in the entity map that a
	// run would skip.
	AlreadyMigrated []EntityStub `json:"already_migrated,omitempty"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsActive reports whether the run may still make progress.
func (s RunStatus) IsActive() bool {
	return s == RunStatusPending || s == RunStatusRunning
}

// Run is one execution of a plan.
type Run struct {
	// ID is the run identifier.
	ID string `json:"id"`

	// Vendor is the source vendor name.
	Vendor string `json:"vendor"`

	// Status is the current run status.
	Status RunStatus `json:"status"`

	// DryRun marks runs that transformed but never pushed.
	DryRun bool `json:"dry_run"`

	// StartedAt and CompletedAt bracket the run.
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Summary counts units by terminal status.
	Summary RunSummary `json:"summary"`
}

// RunSummary counts work units by status.
type RunSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Denied    int `json:"denied"`
	Pending   int `json:"pending"`
}

// ExecuteOptions tune run execution.
type ExecuteOptions struct {
	// DryRun transforms without pushing.
	DryRun bool

	// MaxParallel bounds concurrent unit workers. Zero means the
	// orchestrator default.
	MaxParallel int

	// MaxRetries bounds retries per unit for retryable errors.
	MaxRetries int

	// UnitTimeout bounds one unit execution attempt.
	UnitTimeout time.Duration

	// FailFast stops dispatching new units after the first failure.
	FailFast bool
}

// Selection filters which listed entities become work units.
type Selection struct {
	// Include, when non-empty, allows only these refs.
	Include []string

	// Exclude drops these refs.
	Exclude []string

	// Labels requires listed label values to match.
	Labels map[string]string
}

// Admits reports whether a stub passes the selection.
func (s *Selection) Admits(stub EntityStub) bool {
	if s == nil {
		return true
	}
	for _, ref := range s.Exclude {
		if ref == stub.Ref {
			return false
		}
	}
	if len(s.Include) > 0 {
		found := false
		for _, ref := range s.Include {
			if ref == stub.Ref {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for k, v := range s.Labels {
		if stub.Labels[k] != v {
			return false
		}
	}
	return true
}
