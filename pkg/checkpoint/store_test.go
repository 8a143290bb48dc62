package checkpoint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	mig "github.com/flowport/flowport/pkg/migrate"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) *mig.Run {
	return &mig.Run{
		ID:        id,
		Vendor:    "asana",
		Status:    mig.RunStatusRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Summary:   mig.RunSummary{Total: 3, Pending: 3},
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("Expected error without a path")
	}
}

func TestStore_SaveRun_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := testRun("run-1")
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.ID != "run-1" || got.Vendor != "asana" || got.Status != mig.RunStatusRunning {
		t.Errorf("Unexpected run: %+v", got)
	}
	if got.Summary.Total != 3 || got.Summary.Pending != 3 {
		t.Errorf("Unexpected summary: %+v", got.Summary)
	}
	if got.CompletedAt != nil {
		t.Errorf("Expected no completion time, got %v", got.CompletedAt)
	}
}

func TestStore_SaveRun_Updates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := testRun("run-1")
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	done := time.Now().UTC().Truncate(time.Second)
	run.Status = mig.RunStatusSucceeded
	run.CompletedAt = &done
	run.Summary = mig.RunSummary{Total: 3, Succeeded: 3}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Status != mig.RunStatusSucceeded || got.Summary.Succeeded != 3 {
		t.Errorf("Expected updated run, got %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("Expected completion time persisted")
	}
}

func TestStore_GetRun_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := testRun(id)
		run.StartedAt = time.Now().UTC().Add(time.Duration(i) * time.Hour).Truncate(time.Second)
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("Expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}

	runs, err = s.ListRuns(ctx, 10, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-a" {
		t.Errorf("Expected offset to skip to run-a, got %v", runs)
	}
}

func TestStore_SaveUnit_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	started := time.Now().UTC().Truncate(time.Second)
	unit := &mig.WorkUnit{
		ID:    "unit-1",
		RunID: "run-1",
		Stub: mig.EntityStub{
			Ref: "proj-1", Kind: "project", Name: "Onboarding",
			Labels: map[string]string{"team": "platform"},
		},
		Status:     mig.UnitStatusSucceeded,
		Attempts:   2,
		TargetID:   "wf-9",
		Confidence: 0.95,
		StartedAt:  &started,
	}
	if err := s.SaveUnit(ctx, unit); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	units, err := s.ListUnits(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("Expected 1 unit, got %d", len(units))
	}

	got := units[0]
	if got.Stub.Ref != "proj-1" || got.Stub.Labels["team"] != "platform" {
		t.Errorf("Unexpected stub: %+v", got.Stub)
	}
	if got.Status != mig.UnitStatusSucceeded || got.Attempts != 2 {
		t.Errorf("Unexpected unit state: %+v", got)
	}
	if got.TargetID != "wf-9" || got.Confidence != 0.95 {
		t.Errorf("Unexpected result fields: %+v", got)
	}
	if got.Error != nil {
		t.Errorf("Expected no error payload, got %+v", got.Error)
	}
}

func TestStore_SaveUnit_ErrorRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	unit := &mig.WorkUnit{
		ID:     "unit-1",
		RunID:  "run-1",
		Stub:   mig.EntityStub{Ref: "proj-1"},
		Status: mig.UnitStatusFailed,
		Error: mig.NewPermanentError("push rejected", nil).
			WithVendor("asana").WithCode(mig.ErrCodeVendorFailed),
	}
	if err := s.SaveUnit(ctx, unit); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	units, err := s.ListUnits(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	got := units[0]
	if got.Error == nil {
		t.Fatal("Expected error payload restored")
	}
	if got.Error.Class != mig.ErrorClassPermanent || got.Error.Message != "push rejected" {
		t.Errorf("Unexpected restored error: %+v", got.Error)
	}
	if got.Error.Code != mig.ErrCodeVendorFailed {
		t.Errorf("Expected error code kept, got %q", got.Error.Code)
	}
}

func TestStore_ListUnits_InsertionOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	for _, id := range []string{"unit-c", "unit-a", "unit-b"} {
		unit := &mig.WorkUnit{
			ID: id, RunID: "run-1",
			Stub:   mig.EntityStub{Ref: "ref-" + id},
			Status: mig.UnitStatusPending,
		}
		if err := s.SaveUnit(ctx, unit); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	units, err := s.ListUnits(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("Expected 3 units, got %d", len(units))
	}
	if units[0].ID != "unit-c" || units[1].ID != "unit-a" || units[2].ID != "unit-b" {
		t.Errorf("Expected insertion order preserved, got %s, %s, %s",
			units[0].ID, units[1].ID, units[2].ID)
	}
}

func TestStore_Cursors(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	cursor, err := s.GetCursor(ctx, "asana", "project")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cursor != "" {
		t.Errorf("Expected empty cursor before save, got %q", cursor)
	}

	if err := s.SaveCursor(ctx, "asana", "project", "page-2"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.SaveCursor(ctx, "asana", "project", "page-3"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	cursor, err = s.GetCursor(ctx, "asana", "project")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cursor != "page-3" {
		t.Errorf("Expected latest cursor, got %q", cursor)
	}

	cursor, err = s.GetCursor(ctx, "typeform", "form")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cursor != "" {
		t.Errorf("Expected cursors scoped by vendor and kind, got %q", cursor)
	}
}

func TestStore_Mappings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	target, err := s.LookupMapping(ctx, "asana", "proj-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if target != "" {
		t.Errorf("Expected no mapping before record, got %q", target)
	}

	if err := s.RecordMapping(ctx, "asana", "proj-1", "wf-1"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.RecordMapping(ctx, "asana", "proj-1", "wf-2"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	target, err = s.LookupMapping(ctx, "asana", "proj-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if target != "wf-2" {
		t.Errorf("Expected mapping overwritten, got %q", target)
	}

	target, err = s.LookupMapping(ctx, "typeform", "proj-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if target != "" {
		t.Errorf("Expected mappings scoped by vendor, got %q", target)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.SaveRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer s.Close()

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.ID != "run-1" {
		t.Errorf("Expected run survives reopen, got %+v", got)
	}
}
