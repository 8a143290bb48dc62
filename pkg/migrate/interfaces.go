package migrate

import "context"

// Source lists and loads migratable entities from a vendor.
type Source interface {
	// Vendor returns the vendor name (asana, typeform, bpmn).
	Vendor() string

	// List returns one page of migratable entities, resuming from
	// cursor. An empty cursor starts from the beginning.
	List(ctx context.Context, cursor string, limit int) (*Page, error)

	// Load fetches the full entity payload for transformation.
	Load(ctx context.Context, ref string) (*Entity, error)
}

// Transformer converts one loaded entity into a target workflow.
type Transformer interface {
	Transform(ctx context.Context, e *Entity) (*TransformResult, error)
}

// Pusher writes a workflow to the target platform, returning the
// target-side ID. Push must be idempotent with respect to ExternalRef.
type Pusher interface {
	Push(ctx context.Context, result *TransformResult) (string, error)
}

// GateInput is what policies evaluate before a unit is pushed.
type GateInput struct {
	// Vendor is the source vendor name.
	Vendor string `json:"vendor"`

	// Stub identifies the entity under migration.
	Stub EntityStub `json:"stub"`

	// Result is the transformation outcome.
	Result *TransformResult `json:"result"`
}

// GateDecision is one policy's verdict.
type GateDecision struct {
	// Policy names the policy that produced the decision.
	Policy string `json:"policy"`

	// Allowed is false when the policy denies the unit.
	Allowed bool `json:"allowed"`

	// Reason explains a denial.
	Reason string `json:"reason,omitempty"`
}

// Gate evaluates migration policies against a transformed unit.
type Gate interface {
	Check(ctx context.Context, input *GateInput) ([]GateDecision, error)
}

// StateStore persists runs, work units, cursors, and the entity map.
// Implemented by pkg/checkpoint.
type StateStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	SaveUnit(ctx context.Context, unit *WorkUnit) error
	ListUnits(ctx context.Context, runID string) ([]*WorkUnit, error)

	SaveCursor(ctx context.Context, vendor, kind, cursor string) error
	GetCursor(ctx context.Context, vendor, kind string) (string, error)

	RecordMapping(ctx context.Context, vendor, ref, targetID string) error
	LookupMapping(ctx context.Context, vendor, ref string) (string, error)
}
