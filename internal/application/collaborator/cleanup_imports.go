package collaborator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
)

const DefaultRetentionDays = 30

type CleanupOldImportsInput struct {
	Days int
}

type CleanupOldImportsOutput struct {
	Cutoff       time.Time `json:"cutoff"`
	Deleted      int       `json:"deleted"`
	FilesRemoved int       `json:"files_removed"`
}

type CleanupOldImports interface {
	Execute(ctx context.Context, in CleanupOldImportsInput) (CleanupOldImportsOutput, error)
}

type importSessionJanitor interface {
	// DeleteFinishedBefore removes terminal sessions created before cutoff
	// and returns them.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.ImportSession, error)
}

type uploadRemover interface {
	Remove(ctx context.Context, filename string) error
}

type cleanupOldImports struct {
	sessions importSessionJanitor
	uploads  uploadRemover
	now      func() time.Time
}

func NewCleanupOldImports(sessions importSessionJanitor, uploads uploadRemover) CleanupOldImports {
	return &cleanupOldImports{sessions: sessions, uploads: uploads, now: time.Now}
}

func (uc *cleanupOldImports) Execute(ctx context.Context, in CleanupOldImportsInput) (CleanupOldImportsOutput, error) {
	days := in.Days
	if days == 0 {
		days = DefaultRetentionDays
	}
	if days < 0 {
		return CleanupOldImportsOutput{}, fmt.Errorf("%w: days must be positive", ErrCleanupImports)
	}

	cutoff := uc.now().UTC().AddDate(0, 0, -days)
	deleted, err := uc.sessions.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return CleanupOldImportsOutput{}, fmt.Errorf("%w: %v", ErrCleanupImports, err)
	}

	out := CleanupOldImportsOutput{Cutoff: cutoff, Deleted: len(deleted)}
	logger := logging.FromContext(ctx)
	for _, session := range deleted {
		if err := uc.uploads.Remove(ctx, session.Filename); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("remove import file failed", "import_id", session.ID, "filename", session.Filename, "error", err)
			}
			continue
		}
		out.FilesRemoved++
	}

	logger.Info("old imports cleaned up", "cutoff", cutoff, "deleted", out.Deleted, "files_removed", out.FilesRemoved)
	return out, nil
}

type QueueStats interface {
	Execute(ctx context.Context) (domain.QueueDepth, error)
}

type queueInspector interface {
	QueueDepth(ctx context.Context) (domain.QueueDepth, error)
}

type queueStats struct {
	sessions queueInspector
}

func NewQueueStats(sessions queueInspector) QueueStats {
	return &queueStats{sessions: sessions}
}

func (uc *queueStats) Execute(ctx context.Context) (domain.QueueDepth, error) {
	depth, err := uc.sessions.QueueDepth(ctx)
	if err != nil {
		return domain.QueueDepth{}, fmt.Errorf("read import queue depth: %w", err)
	}
	return depth, nil
}
