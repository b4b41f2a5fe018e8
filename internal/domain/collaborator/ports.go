package collaborator

import "context"

type ImportSessionRepository interface {
	Create(ctx context.Context, session ImportSession) (ImportSession, error)
	GetByID(ctx context.Context, id string) (ImportSession, error)
}

// CollaboratorStore persists collaborators. Create must enforce email and CPF
// uniqueness and report violations as ErrDuplicateEmail / ErrDuplicateCPF.
type CollaboratorStore interface {
	Exists(ctx context.Context, field Field, value string) (bool, error)
	Create(ctx context.Context, c Collaborator) (Collaborator, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (User, error)
}

type Notifier interface {
	NotifyImportFinished(ctx context.Context, event ImportFinished) error
}
