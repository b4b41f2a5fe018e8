package collaborator

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

const cancelledByUserMessage = "import cancelled by user"

type CancelImportInput struct {
	ID     string
	UserID string
}

type CancelImport interface {
	Execute(ctx context.Context, in CancelImportInput) (ImportStatusOutput, error)
}

type importSessionCanceller interface {
	domain.ImportSessionRepository
	Fail(ctx context.Context, lease domain.Lease, failure domain.RowErrors) error
}

type cancelImport struct {
	sessions importSessionCanceller
}

func NewCancelImport(sessions importSessionCanceller) CancelImport {
	return &cancelImport{sessions: sessions}
}

// Execute marks a processing session as failed whoever holds its claim. A
// worker still running it notices on its next write and stops without
// touching the status.
func (uc *cancelImport) Execute(ctx context.Context, in CancelImportInput) (ImportStatusOutput, error) {
	session, err := loadOwnedSession(ctx, uc.sessions, in.ID, in.UserID)
	if err != nil {
		return ImportStatusOutput{}, err
	}

	if err := session.Cancel(); err != nil {
		return ImportStatusOutput{}, ErrNotCancellable
	}

	failure := domain.RowErrors{"message": {cancelledByUserMessage}}
	if err := uc.sessions.Fail(ctx, domain.Lease{SessionID: session.ID}, failure); err != nil {
		if errors.Is(err, domain.ErrImportSessionFinished) {
			return ImportStatusOutput{}, ErrNotCancellable
		}
		return ImportStatusOutput{}, fmt.Errorf("%w: %v", ErrCancelImport, err)
	}

	cancelled, err := uc.sessions.GetByID(ctx, session.ID)
	if err != nil {
		return ImportStatusOutput{}, fmt.Errorf("%w: %v", ErrCancelImport, err)
	}
	return newImportStatusOutput(cancelled), nil
}
