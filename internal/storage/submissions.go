package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// Status values reported by the import task.
const (
	StatusImported = "imported"
	StatusFailed   = "failed"
	StatusPending  = "pending"
)

// ErrSubmissionNotFound is returned when no submission has the requested task id.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionSummary is one ledger row with task status totals.
type SubmissionSummary struct {
	SubmittedAt time.Time
	SessionID   string
	TaskID      int64
	ItemCount   int
	Checked     int
	Imported    int
	Failed      int
}

// SubmittedItem is the stored projection of a submitted listing.
type SubmittedItem struct {
	OfferID               string
	Name                  string
	TypeID                int64
	DescriptionCategoryID int64
}

// TaskItemRecord is the last known import status of one offer.
type TaskItemRecord struct {
	CheckedAt time.Time
	OfferID   string
	Status    string
	ProductID int64
	Errors    int
}

// RecordSubmission stores an accepted submission and its items.
func (l *Ledger) RecordSubmission(ctx context.Context, sub model.Submission) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSubmission(sub); err != nil {
		return err
	}

	builders := []sq.Sqlizer{
		sq.Insert("submissions").
			Columns("task_id", "session_id", "item_count", "submitted_at").
			Values(sub.TaskID, sub.SessionID, len(sub.Items), sub.SubmittedAt.UTC()),
	}

	if len(sub.Items) > 0 {
		items := sq.Insert("submission_items").
			Columns("task_id", "offer_id", "type_id", "description_category_id", "name").
			Options("OR REPLACE")
		for _, item := range sub.Items {
			items = items.Values(sub.TaskID, item.OfferID, item.TypeID, item.DescriptionCategoryID, item.Name)
		}
		builders = append(builders, items)
	}

	if err := l.execTx(ctx, builders...); err != nil {
		return fmt.Errorf("failed to record submission %d: %w", sub.TaskID, err)
	}
	return nil
}

// RecordTaskInfo upserts the per-item status of a polled import task.
func (l *Ledger) RecordTaskInfo(ctx context.Context, info *model.TaskInfo) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: task info is nil", ErrInvalidSubmission)
	}
	if len(info.Items) == 0 {
		return nil
	}

	checkedAt := info.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	insert := sq.Insert("task_items").
		Columns("task_id", "offer_id", "product_id", "status", "errors", "checked_at").
		Suffix(`ON CONFLICT(task_id, offer_id) DO UPDATE SET
			product_id = excluded.product_id,
			status = excluded.status,
			errors = excluded.errors,
			checked_at = excluded.checked_at`)
	for _, item := range info.Items {
		insert = insert.Values(info.TaskID, item.OfferID, item.ProductID, item.Status, len(item.Errors), checkedAt.UTC())
	}

	if err := l.execTx(ctx, insert); err != nil {
		return fmt.Errorf("failed to record task %d: %w", info.TaskID, err)
	}
	return nil
}

// ListSubmissions returns the most recent submissions first. A non-positive
// limit returns all of them.
func (l *Ledger) ListSubmissions(ctx context.Context, limit int) ([]SubmissionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := sq.Select(
		"s.task_id", "s.session_id", "s.item_count", "s.submitted_at",
		"COUNT(t.offer_id)",
		fmt.Sprintf("COALESCE(SUM(CASE WHEN t.status = '%s' THEN 1 ELSE 0 END), 0)", StatusImported),
		fmt.Sprintf("COALESCE(SUM(CASE WHEN t.status = '%s' THEN 1 ELSE 0 END), 0)", StatusFailed),
	).
		From("submissions s").
		LeftJoin("task_items t ON t.task_id = s.task_id").
		GroupBy("s.task_id").
		OrderBy("s.submitted_at DESC", "s.task_id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := l.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SubmissionSummary
	for rows.Next() {
		var s SubmissionSummary
		if err := rows.Scan(&s.TaskID, &s.SessionID, &s.ItemCount, &s.SubmittedAt,
			&s.Checked, &s.Imported, &s.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSubmission returns the summary of one submission.
func (l *Ledger) GetSubmission(ctx context.Context, taskID int64) (*SubmissionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query, args, err := sq.Select("task_id", "session_id", "item_count", "submitted_at").
		From("submissions").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var s SubmissionSummary
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&s.TaskID, &s.SessionID, &s.ItemCount, &s.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %d", ErrSubmissionNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &s, nil
}

// SubmissionItems lists the items sent under a task, ordered by offer id.
func (l *Ledger) SubmissionItems(ctx context.Context, taskID int64) ([]SubmittedItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := l.query(ctx, sq.Select("offer_id", "name", "type_id", "description_category_id").
		From("submission_items").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("offer_id"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SubmittedItem
	for rows.Next() {
		var item SubmittedItem
		if err := rows.Scan(&item.OfferID, &item.Name, &item.TypeID, &item.DescriptionCategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan submission item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// TaskItems lists the recorded statuses of a task, ordered by offer id.
func (l *Ledger) TaskItems(ctx context.Context, taskID int64) ([]TaskItemRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := l.query(ctx, sq.Select("offer_id", "status", "product_id", "errors", "checked_at").
		From("task_items").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("offer_id"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TaskItemRecord
	for rows.Next() {
		var r TaskItemRecord
		if err := rows.Scan(&r.OfferID, &r.Status, &r.ProductID, &r.Errors, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task item: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LastTaskID returns the newest submitted task id, or ErrSubmissionNotFound
// when the ledger is empty.
func (l *Ledger) LastTaskID(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	query, args, err := sq.Select("task_id").
		From("submissions").
		OrderBy("submitted_at DESC", "task_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var id int64
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSubmissionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last task id: %w", err)
	}
	return id, nil
}

func (l *Ledger) query(ctx context.Context, b sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return rows, nil
}
