package collaborator

import "errors"

var (
	ErrInvalidImportFile   = errors.New("invalid import file")
	ErrImportFileTooLarge  = errors.New("import file too large")
	ErrInvalidImportOption = errors.New("invalid import options")
	ErrStartImport         = errors.New("failed to start import")
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrInvalidImportID     = errors.New("invalid import id")
	ErrImportNotFound      = errors.New("import not found")
	ErrImportForbidden     = errors.New("import belongs to another user")
	ErrGetImport           = errors.New("failed to get import")
	ErrListImports         = errors.New("failed to list imports")
	ErrNotCancellable      = errors.New("import cannot be cancelled")
	ErrCancelImport        = errors.New("failed to cancel import")
	ErrValidateCSV         = errors.New("failed to validate csv")
	ErrCleanupImports      = errors.New("failed to clean up imports")

	ErrSourceUnavailable   = errors.New("import source file unavailable")
	ErrEmptyImportFile     = errors.New("csv file is empty or has no data rows")
	ErrSourceChanged       = errors.New("import source file changed during processing")
	ErrColumnCountMismatch = errors.New("column count mismatch")
	ErrDuplicateHeader     = errors.New("csv header repeats a column name")
	ErrWorkerStopped       = errors.New("import worker stopped before finishing")
)
