package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/linewalk/internal/walk"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// storeWalk runs cfg on a default engine and stores the result under id.
func storeWalk(t *testing.T, s *Store, id string, cfg walk.Config) (Run, walk.Result) {
	t.Helper()
	return storeWalkOn(t, s, walk.New(), id, cfg)
}

// storeWalkOn runs cfg on eng and stores the result with eng's budget.
func storeWalkOn(t *testing.T, s *Store, eng *walk.Engine, id string, cfg walk.Config) (Run, walk.Result) {
	t.Helper()
	result := eng.Begin(cfg)
	run, err := s.SaveResult(context.Background(), id, result, eng.MaxSpan())
	if err != nil {
		t.Fatalf("SaveResult(%s) failed: %v", id, err)
	}
	return run, result
}
