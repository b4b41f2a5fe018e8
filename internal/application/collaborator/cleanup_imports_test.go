package collaborator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

func TestCleanupOldImportsDeletesFinishedSessions(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionStore()
	old := time.Now().UTC().AddDate(0, 0, -45)

	finished := domain.NewImportSession(ownerID, "old.csv", "old.csv", domain.DefaultImportOptions())
	finished.Status = domain.StatusCompleted
	finished.CreatedAt = old
	sessions.put(finished)

	running := domain.NewImportSession(ownerID, "running.csv", "running.csv", domain.DefaultImportOptions())
	running.CreatedAt = old
	running = sessions.put(running)

	recent := domain.NewImportSession(ownerID, "recent.csv", "recent.csv", domain.DefaultImportOptions())
	recent.Status = domain.StatusFailed
	recent.CreatedAt = time.Now().UTC()
	sessions.put(recent)

	uploads := &fakeUploads{}
	out, err := app.NewCleanupOldImports(sessions, uploads).Execute(context.Background(), app.CleanupOldImportsInput{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if out.Deleted != 1 || out.FilesRemoved != 1 {
		t.Fatalf("expected 1 deleted session and file, got %+v", out)
	}
	if len(uploads.removed) != 1 || uploads.removed[0] != "old.csv" {
		t.Fatalf("unexpected removed files: %v", uploads.removed)
	}
	if _, err := sessions.GetByID(context.Background(), running.ID); err != nil {
		t.Fatal("expected processing session to be kept")
	}
	if age := time.Since(sessions.gotCutoff); age < 29*24*time.Hour || age > 31*24*time.Hour {
		t.Fatalf("expected 30 day cutoff, got %v", sessions.gotCutoff)
	}
}

func TestCleanupOldImportsRejectsNegativeDays(t *testing.T) {
	t.Parallel()

	_, err := app.NewCleanupOldImports(newFakeSessionStore(), &fakeUploads{}).Execute(context.Background(), app.CleanupOldImportsInput{Days: -1})
	if !errors.Is(err, app.ErrCleanupImports) {
		t.Fatalf("expected ErrCleanupImports, got %v", err)
	}
}

func TestQueueStats(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionStore()
	sessions.depth = domain.QueueDepth{Queued: 3, Running: 2, Stale: 1}

	depth, err := app.NewQueueStats(sessions).Execute(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if depth != sessions.depth {
		t.Fatalf("expected %+v, got %+v", sessions.depth, depth)
	}
}
