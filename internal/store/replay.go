package store

import (
	"context"
	"fmt"

	"github.com/roach88/linewalk/internal/walk"
)

// ReplayResult reports whether re-running a stored config reproduced the
// stored trace.
type ReplayResult struct {
	RunID         string
	Deterministic bool
	StoredDigest  string
	ReplayDigest  string

	// Divergence is the seq of the first differing event, or -1 when the
	// event lists agree up to the shorter length.
	Divergence int64

	// Detail describes the mismatch. Empty when Deterministic.
	Detail string
}

// Replay re-runs the stored config of run id and compares the fresh trace
// with the stored one.
//
// The stored events are first checked against the stored digest, so a
// corrupted row is reported even when the engine is unchanged. The replay
// engine is built from opts plus the span budget stored with the run.
func (s *Store) Replay(ctx context.Context, id string, opts ...walk.EngineOption) (ReplayResult, error) {
	run, stored, err := s.ReadResult(ctx, id)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	res := ReplayResult{
		RunID:        id,
		StoredDigest: run.Digest,
		Divergence:   -1,
	}

	storedDigest, err := stored.Digest()
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", id, err)
	}
	if storedDigest != run.Digest {
		res.ReplayDigest = storedDigest
		res.Detail = "stored events do not match the stored digest"
		return res, nil
	}

	fresh := run.engine(opts...).Begin(run.Config)
	freshDigest, err := fresh.Digest()
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", id, err)
	}
	res.ReplayDigest = freshDigest

	if freshDigest == run.Digest {
		res.Deterministic = true
		return res, nil
	}

	res.Divergence = firstDivergence(stored.Events, fresh.Events)
	switch {
	case stored.Reason != fresh.Reason:
		res.Detail = fmt.Sprintf("termination reason %s, replay produced %s", stored.Reason, fresh.Reason)
	case len(stored.Events) != len(fresh.Events):
		res.Detail = fmt.Sprintf("%d events stored, replay produced %d", len(stored.Events), len(fresh.Events))
	default:
		res.Detail = "trace digests differ"
	}
	return res, nil
}

// ReplayAll replays every stored run in creation order, each under its own
// stored budget.
func (s *Store) ReplayAll(ctx context.Context, opts ...walk.EngineOption) ([]ReplayResult, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay all: %w", err)
	}

	results := make([]ReplayResult, 0, len(runs))
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.Replay(ctx, run.ID, opts...)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func firstDivergence(a, b []walk.Event) int64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i].Seq
		}
	}
	return -1
}
