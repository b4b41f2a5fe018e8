package collaborator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

type GetImportStatusInput struct {
	ID     string
	UserID string
}

type ImportStatusOutput struct {
	ID                 string                   `json:"id"`
	Status             domain.ImportStatus      `json:"status"`
	Filename           string                   `json:"filename"`
	Options            domain.ImportOptions     `json:"options"`
	TotalRows          *int64                   `json:"total_rows"`
	ProcessedRows      int64                    `json:"processed_rows"`
	SuccessCount       int64                    `json:"success_count"`
	ErrorCount         int64                    `json:"error_count"`
	ProgressPercentage float64                  `json:"progress_percentage"`
	IsSuccessful       bool                     `json:"is_successful"`
	DurationSeconds    *float64                 `json:"duration_seconds"`
	Errors             map[int]domain.RowErrors `json:"errors"`
	Failure            domain.RowErrors         `json:"failure,omitempty"`
	StartedAt          *time.Time               `json:"started_at"`
	CompletedAt        *time.Time               `json:"completed_at"`
	CreatedAt          time.Time                `json:"created_at"`
}

func newImportStatusOutput(session domain.ImportSession) ImportStatusOutput {
	out := ImportStatusOutput{
		ID:                 session.ID,
		Status:             session.Status,
		Filename:           session.OriginalFilename,
		Options:            session.Options,
		TotalRows:          session.TotalRows,
		ProcessedRows:      session.ProcessedRows,
		SuccessCount:       session.SuccessfulRows,
		ErrorCount:         session.FailedRows,
		ProgressPercentage: session.ProgressPercentage(),
		IsSuccessful:       session.IsSuccessful(),
		Errors:             session.Errors,
		Failure:            session.Failure,
		StartedAt:          session.StartedAt,
		CompletedAt:        session.CompletedAt,
		CreatedAt:          session.CreatedAt,
	}
	if out.Errors == nil {
		out.Errors = map[int]domain.RowErrors{}
	}
	if d := session.Duration(); d != nil {
		seconds := d.Seconds()
		out.DurationSeconds = &seconds
	}
	return out
}

type GetImportStatus interface {
	Execute(ctx context.Context, in GetImportStatusInput) (ImportStatusOutput, error)
}

type getImportStatus struct {
	sessions domain.ImportSessionRepository
}

func NewGetImportStatus(sessions domain.ImportSessionRepository) GetImportStatus {
	return &getImportStatus{sessions: sessions}
}

func (uc *getImportStatus) Execute(ctx context.Context, in GetImportStatusInput) (ImportStatusOutput, error) {
	session, err := loadOwnedSession(ctx, uc.sessions, in.ID, in.UserID)
	if err != nil {
		return ImportStatusOutput{}, err
	}
	return newImportStatusOutput(session), nil
}

// loadOwnedSession fetches a session and checks that userID owns it.
func loadOwnedSession(ctx context.Context, sessions domain.ImportSessionRepository, id, userID string) (domain.ImportSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ImportSession{}, ErrInvalidImportID
	}

	session, err := sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrImportSessionNotFound) {
			return domain.ImportSession{}, ErrImportNotFound
		}
		return domain.ImportSession{}, fmt.Errorf("%w: %v", ErrGetImport, err)
	}

	if session.UserID != userID {
		return domain.ImportSession{}, ErrImportForbidden
	}
	return session, nil
}
