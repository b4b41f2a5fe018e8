package collaborator

import "errors"

var (
	ErrImportSessionNotFound = errors.New("import session not found")
	ErrImportSessionFinished = errors.New("import session already finished")
	ErrLeaseLost             = errors.New("import session lease lost")
	ErrIllegalTransition     = errors.New("illegal import status transition")
	ErrNotCancellable        = errors.New("import session is not cancellable")
	ErrInvalidImportOptions  = errors.New("invalid import options")
	ErrDuplicateEmail        = errors.New("collaborator email already exists")
	ErrDuplicateCPF          = errors.New("collaborator cpf already exists")
	ErrUserNotFound          = errors.New("user not found")
)
