package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"splintarr/internal/logging"
	"splintarr/internal/notifications"
	"splintarr/internal/searchmeta"
	"splintarr/internal/services"
	"splintarr/internal/store"
)

// LibraryStore is the library surface the tracker needs.
type LibraryStore interface {
	FindLibraryItem(ctx context.Context, instanceID int64, contentType store.ContentType, externalID int64) (*store.LibraryItem, error)
	RecordGrab(ctx context.Context, id int64) error
}

// GrabNotifier receives confirmed grabs.
type GrabNotifier interface {
	NotifyGrabConfirmed(ctx context.Context, event notifications.GrabEvent) error
}

// GrabTracker records confirmed grabs on library items.
type GrabTracker struct {
	store    LibraryStore
	notifier GrabNotifier
	logger   *slog.Logger
}

// NewGrabTracker builds a tracker. notifier may be nil.
func NewGrabTracker(st LibraryStore, notifier GrabNotifier, logger *slog.Logger) *GrabTracker {
	return &GrabTracker{
		store:    st,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "grab-tracker"),
	}
}

// ExternalID returns the library key an entry maps to: the series id for
// series, the item id for movies. Zero means the entry carries none.
func ExternalID(contentType store.ContentType, entry searchmeta.Entry) int64 {
	if contentType == store.ContentSeries {
		return positive(entry.SeriesID)
	}
	return positive(entry.ItemID)
}

// RecordGrab bumps the grab counter of the library item identified by the
// triple. A missing item is not an error; library sync may not have seen it
// yet.
func (t *GrabTracker) RecordGrab(ctx context.Context, instanceID int64, contentType store.ContentType, externalID int64) error {
	return t.record(ctx, instanceID, contentType, externalID, "")
}

// RecordEntry records a grab for a confirmed audit entry.
func (t *GrabTracker) RecordEntry(ctx context.Context, instanceID int64, contentType store.ContentType, entry searchmeta.Entry) error {
	externalID := ExternalID(contentType, entry)
	if externalID == 0 {
		return nil
	}
	return t.record(ctx, instanceID, contentType, externalID, entry.Item)
}

func (t *GrabTracker) record(ctx context.Context, instanceID int64, contentType store.ContentType, externalID int64, label string) error {
	logger := logging.WithContext(ctx, t.logger)
	item, err := t.store.FindLibraryItem(ctx, instanceID, contentType, externalID)
	if err != nil {
		return fmt.Errorf("find library item: %w", err)
	}
	if item == nil {
		logger.Debug("library item not synced, grab not recorded",
			logging.String("content_type", string(contentType)),
			logging.Int64("external_id", externalID),
		)
		return nil
	}
	if err := t.store.RecordGrab(ctx, item.ID); err != nil {
		return fmt.Errorf("record grab on library item %d: %w", item.ID, err)
	}
	logger.Info("feedback grab confirmed",
		logging.String(logging.FieldEventType, "feedback_grab_confirmed"),
		logging.String("content_type", string(contentType)),
		logging.Int64("external_id", externalID),
		logging.String("title", item.Title),
	)

	if t.notifier == nil {
		return nil
	}
	historyID, _ := services.HistoryIDFromContext(ctx)
	event := notifications.GrabEvent{
		InstanceID:  instanceID,
		HistoryID:   historyID,
		ContentType: string(contentType),
		ExternalID:  externalID,
		Title:       item.Title,
		Item:        label,
		Grabs:       item.GrabsConfirmed + 1,
	}
	if err := t.notifier.NotifyGrabConfirmed(ctx, event); err != nil {
		logging.WarnWithContext(logger, "grab notification failed", "grab_notify_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy topic and network connectivity"),
			logging.String(logging.FieldImpact, "grab was recorded but not announced"),
		)
	}
	return nil
}
