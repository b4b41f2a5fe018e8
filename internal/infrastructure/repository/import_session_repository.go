package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportSessionRepository stores import sessions. Every write after creation
// is a single UPDATE guarded by the session's status, and by the writer's
// lease when it holds one, so counters never lose increments, a terminal
// status is never overwritten and a worker whose claim was released cannot
// keep writing.
type ImportSessionRepository struct {
	db *gorm.DB
}

func NewImportSessionRepository(db *gorm.DB) *ImportSessionRepository {
	return &ImportSessionRepository{db: db}
}

func (r *ImportSessionRepository) Create(ctx context.Context, session domain.ImportSession) (domain.ImportSession, error) {
	row := models.CollaboratorImport{
		UserID:           session.UserID,
		Filename:         session.Filename,
		OriginalFilename: session.OriginalFilename,
		Status:           string(domain.StatusProcessing),
		Options:          datatypes.NewJSONType(toModelOptions(session.Options)),
		Errors:           datatypes.JSON("{}"),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.ImportSession{}, fmt.Errorf("create import session: %w", err)
	}

	return toDomainSession(row)
}

func (r *ImportSessionRepository) GetByID(ctx context.Context, id string) (domain.ImportSession, error) {
	var row models.CollaboratorImport

	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ImportSession{}, domain.ErrImportSessionNotFound
		}
		return domain.ImportSession{}, fmt.Errorf("get import session: %w", err)
	}

	return toDomainSession(row)
}

func (r *ImportSessionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.ImportSession, int64, error) {
	owned := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.CollaboratorImport{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := owned().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count import sessions: %w", err)
	}

	var rows []models.CollaboratorImport
	if err := owned().Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list import sessions: %w", err)
	}

	sessions := make([]domain.ImportSession, 0, len(rows))
	for _, row := range rows {
		session, err := toDomainSession(row)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, session)
	}
	return sessions, total, nil
}

// ClaimNext leases the oldest unclaimed processing session, or returns nil
// when the queue is empty.
func (r *ImportSessionRepository) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.ImportSession, error) {
	var row models.CollaboratorImport

	result := r.db.WithContext(ctx).Raw(`
UPDATE collaborator_imports
SET claimed_at = NOW(),
    heartbeat_at = NOW(),
    lease_expires_at = NOW() + make_interval(secs => ?),
    attempts = attempts + 1,
    updated_at = NOW()
WHERE id = (
    SELECT id
    FROM collaborator_imports
    WHERE status = ? AND claimed_at IS NULL
    ORDER BY created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING *
`, leaseDuration.Seconds(), string(domain.StatusProcessing)).Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("claim import session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	session, err := toDomainSession(row)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ImportSessionRepository) Heartbeat(ctx context.Context, lease domain.Lease, leaseDuration time.Duration) error {
	return r.transition(ctx, lease, domain.StatusProcessing, map[string]any{
		"heartbeat_at":     gorm.Expr("NOW()"),
		"lease_expires_at": gorm.Expr("NOW() + make_interval(secs => ?)", leaseDuration.Seconds()),
	})
}

func (r *ImportSessionRepository) Start(ctx context.Context, lease domain.Lease, totalRows int64) error {
	return r.transition(ctx, lease, domain.StatusProcessing, map[string]any{
		"total_rows": totalRows,
		"started_at": gorm.Expr("NOW()"),
	})
}

func (r *ImportSessionRepository) Complete(ctx context.Context, lease domain.Lease) error {
	return r.transition(ctx, lease, domain.StatusCompleted, map[string]any{
		"status":           string(domain.StatusCompleted),
		"completed_at":     gorm.Expr("NOW()"),
		"lease_expires_at": nil,
	})
}

// Fail moves the session to failed. Cancellation passes a lease with a zero
// Attempt so it applies whoever holds the claim.
func (r *ImportSessionRepository) Fail(ctx context.Context, lease domain.Lease, failure domain.RowErrors) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("marshal import failure: %w", err)
	}

	return r.transition(ctx, lease, domain.StatusFailed, map[string]any{
		"status":           string(domain.StatusFailed),
		"failure":          datatypes.JSON(payload),
		"completed_at":     gorm.Expr("NOW()"),
		"lease_expires_at": nil,
	})
}

// AddRowError merges rowErrors under the line key without reading the
// current errors document.
func (r *ImportSessionRepository) AddRowError(ctx context.Context, lease domain.Lease, line int, rowErrors domain.RowErrors) error {
	payload, err := json.Marshal(rowErrors)
	if err != nil {
		return fmt.Errorf("marshal row errors: %w", err)
	}

	return r.transition(ctx, lease, domain.StatusProcessing, map[string]any{
		"errors": gorm.Expr("COALESCE(errors, '{}'::jsonb) || jsonb_build_object(?::text, ?::jsonb)", strconv.Itoa(line), string(payload)),
	})
}

func (r *ImportSessionRepository) IncrementCounters(ctx context.Context, lease domain.Lease, success bool) error {
	updates := map[string]any{
		"processed_rows": gorm.Expr("processed_rows + 1"),
	}
	if success {
		updates["successful_rows"] = gorm.Expr("successful_rows + 1")
	} else {
		updates["failed_rows"] = gorm.Expr("failed_rows + 1")
	}
	return r.transition(ctx, lease, domain.StatusProcessing, updates)
}

// ReleaseExpired returns never-started sessions with expired leases to the
// queue while attempts remain, and fails every other expired session. Both
// clear claimed_at, so the previous holder's writes fail with ErrLeaseLost.
func (r *ImportSessionRepository) ReleaseExpired(ctx context.Context, maxAttempts int, failure domain.RowErrors) ([]string, error) {
	payload, err := json.Marshal(failure)
	if err != nil {
		return nil, fmt.Errorf("marshal import failure: %w", err)
	}

	var failed []string
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
UPDATE collaborator_imports
SET claimed_at = NULL,
    heartbeat_at = NULL,
    lease_expires_at = NULL,
    updated_at = NOW()
WHERE status = ?
  AND lease_expires_at < NOW()
  AND started_at IS NULL
  AND attempts < ?
`, string(domain.StatusProcessing), maxAttempts).Error; err != nil {
			return fmt.Errorf("requeue expired import sessions: %w", err)
		}

		if err := tx.Raw(`
UPDATE collaborator_imports
SET status = ?,
    failure = ?::jsonb,
    completed_at = NOW(),
    claimed_at = NULL,
    lease_expires_at = NULL,
    updated_at = NOW()
WHERE status = ?
  AND lease_expires_at < NOW()
RETURNING id
`, string(domain.StatusFailed), string(payload), string(domain.StatusProcessing)).Scan(&failed).Error; err != nil {
			return fmt.Errorf("fail expired import sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// DeleteFinishedBefore removes terminal sessions created before cutoff and
// returns what it removed.
func (r *ImportSessionRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.ImportSession, error) {
	var rows []models.CollaboratorImport

	err := r.db.WithContext(ctx).Raw(`
DELETE FROM collaborator_imports
WHERE status IN ?
  AND created_at < ?
RETURNING *
`, []string{string(domain.StatusCompleted), string(domain.StatusFailed)}, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("delete finished import sessions: %w", err)
	}

	sessions := make([]domain.ImportSession, 0, len(rows))
	for _, row := range rows {
		session, err := toDomainSession(row)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (r *ImportSessionRepository) QueueDepth(ctx context.Context) (domain.QueueDepth, error) {
	var depth struct {
		Queued  int64
		Running int64
		Stale   int64
	}

	err := r.db.WithContext(ctx).Raw(`
SELECT
  COUNT(*) FILTER (WHERE claimed_at IS NULL) AS queued,
  COUNT(*) FILTER (WHERE claimed_at IS NOT NULL AND lease_expires_at >= NOW()) AS running,
  COUNT(*) FILTER (WHERE claimed_at IS NOT NULL AND lease_expires_at < NOW()) AS stale
FROM collaborator_imports
WHERE status = ?
`, string(domain.StatusProcessing)).Scan(&depth).Error
	if err != nil {
		return domain.QueueDepth{}, fmt.Errorf("count import queue: %w", err)
	}

	return domain.QueueDepth{Queued: depth.Queued, Running: depth.Running, Stale: depth.Stale}, nil
}

// transition applies updates only while the session may still move to to
// and, for a non-zero lease, while that lease still holds the claim.
func (r *ImportSessionRepository) transition(ctx context.Context, lease domain.Lease, to domain.ImportStatus, updates map[string]any) error {
	sources := domain.TransitionSources(to)
	statuses := make([]string, len(sources))
	for i, status := range sources {
		statuses[i] = string(status)
	}

	query := r.db.WithContext(ctx).
		Model(&models.CollaboratorImport{}).
		Where("id = ? AND status IN ?", lease.SessionID, statuses)
	if lease.Attempt > 0 {
		query = query.Where("attempts = ? AND claimed_at IS NOT NULL", lease.Attempt)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update import session: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current models.CollaboratorImport
	err := r.db.WithContext(ctx).
		Select("id", "status", "attempts", "claimed_at").
		First(&current, "id = ?", lease.SessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrImportSessionNotFound
		}
		return fmt.Errorf("check import session: %w", err)
	}
	if lease.Attempt > 0 && (current.ClaimedAt == nil || current.Attempts != lease.Attempt) {
		return domain.ErrLeaseLost
	}
	return domain.ErrImportSessionFinished
}

func toModelOptions(opts domain.ImportOptions) models.ImportOptions {
	return models.ImportOptions{
		Delimiter: string(opts.Delimiter),
		Encoding:  string(opts.Encoding),
		HasHeader: opts.HasHeader,
	}
}

func toDomainOptions(opts models.ImportOptions) domain.ImportOptions {
	out := domain.DefaultImportOptions()
	if r, _ := utf8.DecodeRuneInString(opts.Delimiter); r != utf8.RuneError {
		out.Delimiter = r
	}
	if enc, err := domain.ParseEncoding(opts.Encoding); err == nil {
		out.Encoding = enc
	}
	out.HasHeader = opts.HasHeader
	return out
}

func toDomainSession(row models.CollaboratorImport) (domain.ImportSession, error) {
	session := domain.ImportSession{
		ID:               row.ID,
		UserID:           row.UserID,
		Filename:         row.Filename,
		OriginalFilename: row.OriginalFilename,
		Status:           domain.ImportStatus(row.Status),
		Options:          toDomainOptions(row.Options.Data()),
		TotalRows:        row.TotalRows,
		ProcessedRows:    row.ProcessedRows,
		SuccessfulRows:   row.SuccessfulRows,
		FailedRows:       row.FailedRows,
		Errors:           map[int]domain.RowErrors{},
		Attempts:         row.Attempts,
		StartedAt:        row.StartedAt,
		CompletedAt:      row.CompletedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}

	if len(row.Errors) > 0 {
		if err := json.Unmarshal(row.Errors, &session.Errors); err != nil {
			return domain.ImportSession{}, fmt.Errorf("decode import errors: %w", err)
		}
	}
	if len(row.Failure) > 0 && string(row.Failure) != "null" {
		if err := json.Unmarshal(row.Failure, &session.Failure); err != nil {
			return domain.ImportSession{}, fmt.Errorf("decode import failure: %w", err)
		}
	}

	return session, nil
}
