package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"splintarr/internal/services"
)

const libraryColumns = "id, instance_id, content_type, external_id, title, episode_count, episode_have, grabs_confirmed, last_grab_at, created_at, updated_at"

func scanLibraryItem(scanner rowScanner) (*LibraryItem, error) {
	var (
		item       LibraryItem
		contentStr string
		lastGrab   sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.InstanceID,
		&contentStr,
		&item.ExternalID,
		&item.Title,
		&item.EpisodeCount,
		&item.EpisodeHave,
		&item.GrabsConfirmed,
		&lastGrab,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.ContentType = ContentType(contentStr)
	item.LastGrabAt = parseNullTime(lastGrab)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

// UpsertLibraryItem inserts or refreshes a library item keyed by
// (instance, content type, external id). Sync owns title and episode
// counters; grab counters are never touched here.
func (s *Store) UpsertLibraryItem(ctx context.Context, item *LibraryItem) (*LibraryItem, error) {
	if item == nil {
		return nil, services.Wrap(services.ErrValidation, "store", "upsert library item", "item is nil", nil)
	}
	if item.ContentType != ContentSeries && item.ContentType != ContentMovie {
		return nil, services.Wrap(services.ErrValidation, "store", "upsert library item",
			fmt.Sprintf("unknown content type %q", item.ContentType), nil)
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "upsert library item", "title is required", nil)
	}

	ts := s.timestamp()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO library_items (
            instance_id, content_type, external_id, title, episode_count, episode_have,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (instance_id, content_type, external_id) DO UPDATE SET
            title = excluded.title,
            episode_count = excluded.episode_count,
            episode_have = excluded.episode_have,
            updated_at = excluded.updated_at`,
		item.InstanceID,
		string(item.ContentType),
		item.ExternalID,
		title,
		item.EpisodeCount,
		item.EpisodeHave,
		ts,
		ts,
	); err != nil {
		return nil, fmt.Errorf("upsert library item: %w", err)
	}
	return s.FindLibraryItem(ctx, item.InstanceID, item.ContentType, item.ExternalID)
}

// FindLibraryItem looks up an item by its natural key. It returns nil, nil
// when no row matches.
func (s *Store) FindLibraryItem(ctx context.Context, instanceID int64, contentType ContentType, externalID int64) (*LibraryItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+libraryColumns+" FROM library_items WHERE instance_id = ? AND content_type = ? AND external_id = ?",
		instanceID, string(contentType), externalID)
	item, err := scanLibraryItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find library item: %w", err)
	}
	return item, nil
}

// GetLibraryItem fetches an item by id. It returns nil, nil when no row
// matches.
func (s *Store) GetLibraryItem(ctx context.Context, id int64) (*LibraryItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+libraryColumns+" FROM library_items WHERE id = ?", id)
	item, err := scanLibraryItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library item %d: %w", id, err)
	}
	return item, nil
}

// RecordGrab increments grabs_confirmed and stamps last_grab_at with the
// current time. No other column changes.
func (s *Store) RecordGrab(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE library_items SET grabs_confirmed = grabs_confirmed + 1, last_grab_at = ? WHERE id = ?",
		s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("record grab %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "record grab",
			fmt.Sprintf("library item %d does not exist", id), nil)
	}
	return nil
}
