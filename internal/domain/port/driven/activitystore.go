package driven

import (
	"context"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
)

// ActivityStore defines the driven port for the append-only activity log.
type ActivityStore interface {
	// Append inserts a new record and returns its ID. The scan cycle appends
	// in ActivityProcessing before invoking the generator.
	Append(ctx context.Context, rec model.ActivityRecord) (int64, error)

	// Finalize moves the record with the given ID to its terminal status,
	// attaching the generated reply text and, for failures, the error detail.
	// A record is finalized at most once.
	Finalize(ctx context.Context, id int64, status model.ActivityStatus, replyText, detail string) error

	// ListByStatus returns records with the given status, newest first.
	// An empty status returns all records.
	ListByStatus(ctx context.Context, status model.ActivityStatus) ([]model.ActivityRecord, error)

	// CountByStatus counts records with the given status; empty counts all.
	CountByStatus(ctx context.Context, status model.ActivityStatus) (int, error)
}
