package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tubescribe/internal/pipeline"
	"tubescribe/internal/services"
)

// Record is one persisted run.
type Record struct {
	ID            string           `json:"run_id" yaml:"run_id"`
	URL           string           `json:"url" yaml:"url"`
	VideoID       string           `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	Title         string           `json:"title,omitempty" yaml:"title,omitempty"`
	Model         string           `json:"model" yaml:"model"`
	WindowSeconds float64          `json:"segment_duration" yaml:"segment_duration"`
	Language      string           `json:"language,omitempty" yaml:"language,omitempty"`
	State         pipeline.State   `json:"state" yaml:"state"`
	ErrorKind     services.Kind    `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	ErrorMessage  string           `json:"error,omitempty" yaml:"error,omitempty"`
	SegmentCount  int              `json:"total_segments" yaml:"total_segments"`
	Result        *pipeline.Result `json:"result,omitempty" yaml:"result,omitempty"`
	StartedAt     time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	ElapsedMS     int64            `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// ListOptions filters List results.
type ListOptions struct {
	Limit  int
	States []pipeline.State
}

const (
	summaryColumns = "id, url, video_id, title, model, window_seconds, language, state, error_kind, error_message, segment_count, started_at, finished_at, elapsed_ms"
	defaultLimit   = 50
)

// Begin records a run entering intake. It implements pipeline.Recorder.
func (s *Store) Begin(ctx context.Context, run pipeline.Run) error {
	_, err := s.execWithRetry(ctx, `INSERT INTO runs
		(id, url, video_id, model, window_seconds, language, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.URL,
		nullableString(run.VideoID),
		run.Model,
		run.WindowSeconds,
		nullableString(run.Language),
		string(run.State),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish stores the terminal state of a run. It implements pipeline.Recorder.
func (s *Store) Finish(ctx context.Context, run pipeline.Run) error {
	var resultJSON any
	if run.Result != nil {
		data, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("encode run result: %w", err)
		}
		resultJSON = string(data)
	}
	finished := run.FinishedAt
	res, err := s.execWithRetry(ctx, `UPDATE runs SET
		video_id = ?, title = ?, language = ?, state = ?, error_kind = ?, error_message = ?,
		segment_count = ?, result_json = ?, finished_at = ?, elapsed_ms = ?
		WHERE id = ?`,
		nullableString(run.VideoID),
		nullableString(run.Title),
		nullableString(run.Language),
		string(run.State),
		nullableString(string(run.ErrorKind)),
		nullableString(run.ErrorMessage),
		run.SegmentCount,
		resultJSON,
		nullableTime(&finished),
		run.Elapsed.Milliseconds(),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "runstore", "finish", fmt.Sprintf("run %s", run.ID), nil)
	}
	return nil
}

// Get loads one run including its stored result.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+summaryColumns+", result_json FROM runs WHERE id = ?",
		strings.TrimSpace(id),
	)
	var resultJSON sql.NullString
	record, err := scanRecord(row, &resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "runstore", "get", fmt.Sprintf("run %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result pipeline.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decode run result: %w", err)
		}
		record.Result = &result
	}
	return record, nil
}

// List returns runs newest first without their stored results.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query := "SELECT " + summaryColumns + " FROM runs"
	args := make([]any, 0, len(opts.States)+1)
	if len(opts.States) > 0 {
		query += " WHERE state IN (" + makePlaceholders(len(opts.States)) + ")"
		for _, state := range opts.States {
			args = append(args, string(state))
		}
	}
	query += " ORDER BY started_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Stats returns a count of runs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[pipeline.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM runs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[pipeline.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[pipeline.State(state)] = count
	}
	return stats, rows.Err()
}

// MarkInterrupted fails every run that never reached a terminal state, which
// happens when the process exits mid-run. It returns the number of runs updated.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx, `UPDATE runs SET
		state = ?, error_kind = ?, error_message = ?, finished_at = ?
		WHERE state NOT IN (?, ?, ?)`,
		string(pipeline.StateFailed),
		string(services.KindInternal),
		"interrupted before completion",
		nullableTime(&now),
		string(pipeline.StateDone),
		string(pipeline.StateCleanupAndFail),
		string(pipeline.StateFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}
