package sqlite

import (
	"context"
	"fmt"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityStore = (*ActivityRepo)(nil)

// ActivityRepo is the SQLite implementation of the ActivityStore port interface.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates an ActivityRepo backed by the given DB.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Append inserts a new activity record and returns its ID.
func (r *ActivityRepo) Append(ctx context.Context, rec model.ActivityRecord) (int64, error) {
	const query = `
		INSERT INTO activity_records (account_email, message_id, subject, reply_text, status, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		rec.AccountEmail, rec.MessageID, rec.Subject, rec.ReplyText, string(rec.Status), rec.Detail,
	)
	if err != nil {
		return 0, fmt.Errorf("append activity record for %q: %w", rec.AccountEmail, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append activity record for %q: %w", rec.AccountEmail, err)
	}

	return id, nil
}

// Finalize moves a processing record to its terminal status. Records already
// in a terminal state are left untouched.
func (r *ActivityRepo) Finalize(ctx context.Context, id int64, status model.ActivityStatus, replyText, detail string) error {
	const query = `
		UPDATE activity_records
		SET status = ?, reply_text = ?, detail = ?
		WHERE id = ? AND status = ?
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		string(status), replyText, detail, id, string(model.ActivityProcessing),
	)
	if err != nil {
		return fmt.Errorf("finalize activity record %d: %w", id, err)
	}

	return nil
}

// ListByStatus returns records with the given status, newest first.
// An empty status returns all records.
func (r *ActivityRepo) ListByStatus(ctx context.Context, status model.ActivityStatus) ([]model.ActivityRecord, error) {
	query := `
		SELECT id, account_email, message_id, subject, reply_text, status, detail, created_at
		FROM activity_records
	`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity records: %w", err)
	}
	defer rows.Close()

	var records []model.ActivityRecord
	for rows.Next() {
		var (
			rec       model.ActivityRecord
			statusRaw string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.AccountEmail, &rec.MessageID, &rec.Subject,
			&rec.ReplyText, &statusRaw, &rec.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}

		rec.Status = model.ActivityStatus(statusRaw)
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for record %d: %w", rec.ID, err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity records: %w", err)
	}

	return records, nil
}

// CountByStatus counts records with the given status; empty counts all.
func (r *ActivityRepo) CountByStatus(ctx context.Context, status model.ActivityStatus) (int, error) {
	query := `SELECT COUNT(*) FROM activity_records`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activity records: %w", err)
	}

	return count, nil
}
