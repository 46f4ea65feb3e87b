package store

import (
	"context"
	"fmt"

	"github.com/roach88/linewalk/internal/walk"
)

// WriteRun stores a run and all of its events in a single transaction.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: if the run ID already
// exists, nothing is written and inserted is false. A partially written run
// is never visible because the events share the run's transaction.
//
// The stored created_seq is one greater than the highest existing value.
func (s *Store) WriteRun(ctx context.Context, run Run, events []walk.Event) (inserted bool, err error) {
	if int64(len(events)) != run.EventCount {
		return false, fmt.Errorf("write run %s: event count %d does not match run summary %d",
			run.ID, len(events), run.EventCount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_seq, start_position, max_position, config_hash, max_span, reason,
		 rejection_code, rejection_message, event_count, digest, engine_version, trace_version)
		SELECT ?, COALESCE(MAX(created_seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM runs
		WHERE true
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		int64(run.Config.StartPosition),
		int64(run.Config.MaxPosition),
		run.ConfigHash,
		run.MaxSpan,
		string(run.Reason),
		string(run.RejectionCode),
		run.RejectionMsg,
		run.EventCount,
		run.Digest,
		run.EngineVersion,
		run.TraceVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Run already stored; its events were written with it.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("write run: commit (existing): %w", err)
		}
		return false, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, phase, position)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("write run: prepare events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, run.ID, ev.Seq, ev.Phase.String(), int64(ev.Position)); err != nil {
			return false, fmt.Errorf("write run: insert event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

// SaveResult builds a Run from result and writes it with its events.
// maxSpan is the producing engine's budget, as for NewRun.
func (s *Store) SaveResult(ctx context.Context, id string, result walk.Result, maxSpan int64) (Run, error) {
	run, err := NewRun(id, result, maxSpan)
	if err != nil {
		return Run{}, err
	}
	if _, err := s.WriteRun(ctx, run, result.Events); err != nil {
		return Run{}, err
	}
	return s.ReadRun(ctx, id)
}
