package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"splintarr/internal/services"
)

const searchRunColumns = "id, instance_id, search_queue_id, search_name, strategy, started_at, completed_at, status, items_searched, items_found, searches_triggered, errors_encountered, search_metadata, feedback_checked_at"

func scanSearchRun(scanner rowScanner) (*SearchRun, error) {
	var (
		run          SearchRun
		queueID      sql.NullInt64
		startedRaw   sql.NullString
		completedRaw sql.NullString
		metadata     sql.NullString
		checkedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.InstanceID,
		&queueID,
		&run.Name,
		&run.Strategy,
		&startedRaw,
		&completedRaw,
		&run.Status,
		&run.ItemsSearched,
		&run.ItemsFound,
		&run.SearchesTriggered,
		&run.ErrorsEncountered,
		&metadata,
		&checkedRaw,
	); err != nil {
		return nil, err
	}
	if queueID.Valid {
		id := queueID.Int64
		run.QueueID = &id
	}
	if started, err := parseTimeString(startedRaw.String); err == nil {
		run.StartedAt = started
	}
	run.CompletedAt = parseNullTime(completedRaw)
	run.Metadata = metadata.String
	run.FeedbackCheckedAt = parseNullTime(checkedRaw)
	return &run, nil
}

// CreateSearchRun records a finished search run. StartedAt defaults to now.
func (s *Store) CreateSearchRun(ctx context.Context, run *SearchRun) (*SearchRun, error) {
	if run == nil {
		return nil, services.Wrap(services.ErrValidation, "store", "create search run", "run is nil", nil)
	}
	if run.InstanceID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "create search run", "instance id is required", nil)
	}
	name := strings.TrimSpace(run.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create search run", "name is required", nil)
	}
	status := run.Status
	if status == "" {
		status = "success"
	}
	started := s.timestamp()
	if !run.StartedAt.IsZero() {
		started = run.StartedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO search_history (
            instance_id, search_queue_id, search_name, strategy, started_at, completed_at,
            status, items_searched, items_found, searches_triggered, errors_encountered,
            search_metadata
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.InstanceID,
		nullableInt64(run.QueueID),
		name,
		run.Strategy,
		started,
		nullableTime(run.CompletedAt),
		status,
		run.ItemsSearched,
		run.ItemsFound,
		run.SearchesTriggered,
		run.ErrorsEncountered,
		nullableString(run.Metadata),
	)
	if err != nil {
		return nil, fmt.Errorf("insert search run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetSearchRun(ctx, id)
}

// GetSearchRun fetches a run by id. It returns nil, nil when no row matches.
func (s *Store) GetSearchRun(ctx context.Context, id int64) (*SearchRun, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+searchRunColumns+" FROM search_history WHERE id = ?", id)
	run, err := scanSearchRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get search run %d: %w", id, err)
	}
	return run, nil
}

// ListSearchRuns returns the most recent runs, newest first.
func (s *Store) ListSearchRuns(ctx context.Context, limit int) ([]*SearchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+searchRunColumns+" FROM search_history ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list search runs: %w", err)
	}
	defer rows.Close()

	return collectSearchRuns(rows)
}

func collectSearchRuns(rows *sql.Rows) ([]*SearchRun, error) {
	var out []*SearchRun
	for rows.Next() {
		run, err := scanSearchRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan search run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListPendingFeedback returns finished runs that have not been through a
// feedback check and finished at or before cutoff, oldest first.
func (s *Store) ListPendingFeedback(ctx context.Context, cutoff time.Time, limit int) ([]*SearchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+searchRunColumns+` FROM search_history
        WHERE feedback_checked_at IS NULL
          AND status != 'in_progress'
          AND julianday(COALESCE(completed_at, started_at)) <= julianday(?)
        ORDER BY id ASC LIMIT ?`,
		cutoff.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending feedback: %w", err)
	}
	defer rows.Close()
	return collectSearchRuns(rows)
}

// MarkFeedbackChecked stamps the run so schedulers skip it.
func (s *Store) MarkFeedbackChecked(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE search_history SET feedback_checked_at = ? WHERE id = ?", s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("mark feedback checked %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "mark feedback checked",
			fmt.Sprintf("search run %d does not exist", id), nil)
	}
	return nil
}

// UpdateSearchMetadata overwrites the run's audit blob. The write replaces
// the whole column; concurrent writers for the same run race and the last one
// wins.
func (s *Store) UpdateSearchMetadata(ctx context.Context, id int64, metadata string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE search_history SET search_metadata = ? WHERE id = ?",
		nullableString(metadata), id)
	if err != nil {
		return fmt.Errorf("update search metadata %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update search metadata",
			fmt.Sprintf("search run %d does not exist", id), nil)
	}
	return nil
}
