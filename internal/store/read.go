package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/linewalk/internal/ir"
	"github.com/roach88/linewalk/internal/walk"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, created_seq, start_position, max_position, config_hash, max_span, reason,
	rejection_code, rejection_message, event_count, digest, engine_version, trace_version
`

// ReadRun retrieves a single run summary by ID.
// Returns an error wrapping ErrRunNotFound if the ID is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every stored run in creation order.
// Results are ordered deterministically: ORDER BY created_seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`)
}

// RunsForConfig returns the runs stored for a config under any budget, in
// creation order.
func (s *Store) RunsForConfig(ctx context.Context, cfg walk.Config) ([]Run, error) {
	hash := ir.ConfigDigest(int64(cfg.StartPosition), int64(cfg.MaxPosition))
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE config_hash = ?
		ORDER BY created_seq ASC, id COLLATE BINARY ASC
	`, hash)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the events of a run ordered by seq ASC.
// Returns an empty slice (not nil) for a rejected run.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]walk.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, phase, position
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []walk.Event{}
	for rows.Next() {
		var (
			ev       walk.Event
			phase    string
			position int64
		)
		if err := rows.Scan(&ev.Seq, &phase, &position); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Phase, err = walk.ParsePhase(phase); err != nil {
			return nil, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
		ev.Position = walk.Position(position)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadResult reconstructs the full walk.Result of a stored run.
func (s *Store) ReadResult(ctx context.Context, id string) (Run, walk.Result, error) {
	run, err := s.ReadRun(ctx, id)
	if err != nil {
		return Run{}, walk.Result{}, err
	}
	events, err := s.ReadEvents(ctx, id)
	if err != nil {
		return Run{}, walk.Result{}, fmt.Errorf("read result %s: %w", id, err)
	}
	return run, run.result(events), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run           Run
		start, maxPos int64
		reason, rcode string
	)
	if err := row.Scan(
		&run.ID, &run.CreatedSeq, &start, &maxPos, &run.ConfigHash, &run.MaxSpan, &reason,
		&rcode, &run.RejectionMsg, &run.EventCount, &run.Digest,
		&run.EngineVersion, &run.TraceVersion,
	); err != nil {
		return Run{}, err
	}

	parsed, err := walk.ParseReason(reason)
	if err != nil {
		return Run{}, err
	}
	run.Reason = parsed
	run.RejectionCode = walk.ConfigErrorCode(rcode)
	run.Config = walk.Config{
		StartPosition: walk.Position(start),
		MaxPosition:   walk.Position(maxPos),
	}
	return run, nil
}
