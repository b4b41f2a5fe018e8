package collaborator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

func TestGetImportStatusSuccess(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionStore()
	total := int64(3)
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	session := sessions.put(domain.ImportSession{
		UserID:           ownerID,
		Filename:         "stored.csv",
		OriginalFilename: "team.csv",
		Status:           domain.StatusCompleted,
		TotalRows:        &total,
		ProcessedRows:    3,
		SuccessfulRows:   2,
		FailedRows:       1,
		Errors:           map[int]domain.RowErrors{3: {"cpf": {"invalid"}}},
		StartedAt:        &started,
		CompletedAt:      &completed,
	})

	out, err := app.NewGetImportStatus(sessions).Execute(context.Background(), app.GetImportStatusInput{ID: session.ID, UserID: ownerID})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if out.ProgressPercentage != 100 {
		t.Fatalf("expected 100%%, got %v", out.ProgressPercentage)
	}
	if out.IsSuccessful {
		t.Fatal("expected is_successful=false with failed rows")
	}
	if out.DurationSeconds == nil || *out.DurationSeconds != 90 {
		t.Fatalf("expected 90s duration, got %v", out.DurationSeconds)
	}
	if out.Filename != "team.csv" || out.ErrorCount != 1 || out.SuccessCount != 2 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.Errors[3]["cpf"][0] != "invalid" {
		t.Fatalf("unexpected errors: %v", out.Errors)
	}
}

func TestGetImportStatusErrors(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionStore()
	session := sessions.put(domain.NewImportSession(ownerID, "s.csv", "s.csv", domain.DefaultImportOptions()))

	tests := []struct {
		name string
		in   app.GetImportStatusInput
		repo *fakeSessionStore
		want error
	}{
		{name: "invalid id", in: app.GetImportStatusInput{ID: "42", UserID: ownerID}, repo: sessions, want: app.ErrInvalidImportID},
		{name: "not found", in: app.GetImportStatusInput{ID: uuid.NewString(), UserID: ownerID}, repo: sessions, want: app.ErrImportNotFound},
		{name: "other owner", in: app.GetImportStatusInput{ID: session.ID, UserID: uuid.NewString()}, repo: sessions, want: app.ErrImportForbidden},
		{name: "repository down", in: app.GetImportStatusInput{ID: session.ID, UserID: ownerID}, repo: &fakeSessionStore{getErr: errDatabaseDown}, want: app.ErrGetImport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := app.NewGetImportStatus(tt.repo).Execute(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestListImportsPaginates(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := domain.NewImportSession(ownerID, "s.csv", "s.csv", domain.DefaultImportOptions())
		s.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		sessions.put(s)
	}
	sessions.put(domain.NewImportSession(uuid.NewString(), "x.csv", "x.csv", domain.DefaultImportOptions()))

	uc := app.NewListImports(sessions)
	out, err := uc.Execute(context.Background(), app.ListImportsInput{UserID: ownerID, Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Total != 5 || out.LastPage != 3 || out.Page != 2 || len(out.Items) != 2 {
		t.Fatalf("unexpected page: %+v", out)
	}
	if sessions.gotOffset != 2 || sessions.gotLimit != 2 {
		t.Fatalf("unexpected limit/offset: %d/%d", sessions.gotLimit, sessions.gotOffset)
	}
	if !out.Items[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("expected newest first, got %v", out.Items[0].CreatedAt)
	}

	out, err = uc.Execute(context.Background(), app.ListImportsInput{UserID: ownerID, PerPage: 1000})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.PerPage != 100 || out.Page != 1 {
		t.Fatalf("expected clamped per_page, got %+v", out)
	}
}

func TestListImportsRepositoryError(t *testing.T) {
	t.Parallel()

	_, err := app.NewListImports(&fakeSessionStore{listErr: errDatabaseDown}).Execute(context.Background(), app.ListImportsInput{UserID: ownerID})
	if !errors.Is(err, app.ErrListImports) {
		t.Fatalf("expected ErrListImports, got %v", err)
	}
}
