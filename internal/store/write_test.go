package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/linewalk/internal/ir"
	"github.com/roach88/linewalk/internal/walk"
)

func walkConfig(start, max int64) walk.Config {
	return walk.Config{StartPosition: walk.Position(start), MaxPosition: walk.Position(max)}
}

func TestNewRun(t *testing.T) {
	result := walk.Begin(walkConfig(1, 3))

	run, err := NewRun("run-1", result, 0)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}

	digest, _ := result.Digest()
	want := Run{
		ID:            "run-1",
		Config:        walkConfig(1, 3),
		ConfigHash:    ir.ConfigDigest(1, 3),
		Reason:        walk.ReasonBoundExceeded,
		EventCount:    6,
		Digest:        digest,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceFormatVersion,
	}
	if diff := cmp.Diff(want, run); diff != "" {
		t.Errorf("NewRun() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRun_KeepsBudget(t *testing.T) {
	eng := walk.New(walk.WithMaxSpan(4))

	run, err := NewRun("run-1", eng.Begin(walkConfig(0, 10)), eng.MaxSpan())
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	if run.MaxSpan != 4 {
		t.Errorf("MaxSpan = %d, want 4", run.MaxSpan)
	}
	if run.RejectionCode != walk.ErrCodeSpanTooLarge {
		t.Errorf("RejectionCode = %q, want %q", run.RejectionCode, walk.ErrCodeSpanTooLarge)
	}

	// A negative budget is stored as no budget
	run, err = NewRun("run-2", walk.Begin(walkConfig(0, 1)), -1)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	if run.MaxSpan != 0 {
		t.Errorf("MaxSpan = %d, want 0", run.MaxSpan)
	}
}

func TestNewRun_Rejected(t *testing.T) {
	run, err := NewRun("run-1", walk.Begin(walkConfig(5, 2)), 0)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	if run.RejectionCode != walk.ErrCodeBoundBeforeStart {
		t.Errorf("RejectionCode = %q, want %q", run.RejectionCode, walk.ErrCodeBoundBeforeStart)
	}
	if run.EventCount != 0 {
		t.Errorf("EventCount = %d, want 0", run.EventCount)
	}
}

func TestWriteRun_AssignsCreatedSeq(t *testing.T) {
	s := createTestStore(t)

	first, _ := storeWalk(t, s, "run-b", walkConfig(1, 1))
	second, _ := storeWalk(t, s, "run-a", walkConfig(2, 2))

	if first.CreatedSeq != 1 || second.CreatedSeq != 2 {
		t.Errorf("CreatedSeq = %d, %d; want 1, 2", first.CreatedSeq, second.CreatedSeq)
	}
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	result := walk.Begin(walkConfig(1, 3))
	run, err := NewRun("run-1", result, 0)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}

	inserted, err := s.WriteRun(ctx, run, result.Events)
	if err != nil || !inserted {
		t.Fatalf("first WriteRun() = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = s.WriteRun(ctx, run, result.Events)
	if err != nil || inserted {
		t.Fatalf("second WriteRun() = %v, %v; want false, nil", inserted, err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events WHERE run_id = 'run-1'").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 6 {
		t.Errorf("event rows = %d, want 6", count)
	}
}

func TestWriteRun_EventCountMismatch(t *testing.T) {
	s := createTestStore(t)
	result := walk.Begin(walkConfig(1, 3))
	run, err := NewRun("run-1", result, 0)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}

	if _, err := s.WriteRun(context.Background(), run, result.Events[:2]); err == nil {
		t.Fatal("expected error for mismatched event count")
	}

	if _, err := s.ReadRun(context.Background(), "run-1"); err == nil {
		t.Error("run should not be stored after a failed write")
	}
}

func TestWriteRun_RollsBackOnEventFailure(t *testing.T) {
	s := createTestStore(t)
	result := walk.Begin(walkConfig(1, 1))
	run, err := NewRun("run-1", result, 0)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}

	// Duplicate seq violates the events primary key.
	events := []walk.Event{result.Events[0], result.Events[0]}
	if _, err := s.WriteRun(context.Background(), run, events); err == nil {
		t.Fatal("expected primary key violation")
	}

	runs, err := s.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("ListRuns() = %d runs, want 0 after rollback", len(runs))
	}
}
