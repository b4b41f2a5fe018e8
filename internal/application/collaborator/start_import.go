package collaborator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

const DefaultMaxFileBytes int64 = 10 << 20

var allowedUploadExtensions = map[string]bool{".csv": true, ".txt": true}

type StartImportInput struct {
	UserID           string
	OriginalFilename string
	Size             int64
	Content          io.Reader
	Delimiter        string
	Encoding         string
	// HasHeader defaults to true when nil.
	HasHeader *bool
}

type StartImportOutput struct {
	ImportID string              `json:"import_id"`
	Status   domain.ImportStatus `json:"status"`
	Filename string              `json:"filename"`
}

type StartImport interface {
	Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error)
}

type uploadStore interface {
	Save(ctx context.Context, originalFilename string, content io.Reader) (string, error)
	Remove(ctx context.Context, filename string) error
}

type startImport struct {
	sessions     domain.ImportSessionRepository
	uploads      uploadStore
	maxFileBytes int64
}

func NewStartImport(sessions domain.ImportSessionRepository, uploads uploadStore, maxFileBytes int64) StartImport {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &startImport{sessions: sessions, uploads: uploads, maxFileBytes: maxFileBytes}
}

// Execute stores the upload and queues a session for the import workers.
// Rows are not read here.
func (uc *startImport) Execute(ctx context.Context, in StartImportInput) (StartImportOutput, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return StartImportOutput{}, ErrInvalidUserID
	}

	name := strings.TrimSpace(filepath.Base(in.OriginalFilename))
	if in.Content == nil || name == "" || name == "." || !allowedUploadExtensions[strings.ToLower(filepath.Ext(name))] {
		return StartImportOutput{}, ErrInvalidImportFile
	}
	if in.Size <= 0 {
		return StartImportOutput{}, fmt.Errorf("%w: file is empty", ErrInvalidImportFile)
	}
	if in.Size > uc.maxFileBytes {
		return StartImportOutput{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrImportFileTooLarge, in.Size, uc.maxFileBytes)
	}

	hasHeader := true
	if in.HasHeader != nil {
		hasHeader = *in.HasHeader
	}
	opts, err := domain.NewImportOptions(in.Delimiter, in.Encoding, hasHeader)
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrInvalidImportOption, err)
	}

	stored, err := uc.uploads.Save(ctx, name, io.LimitReader(in.Content, uc.maxFileBytes))
	if err != nil {
		return StartImportOutput{}, fmt.Errorf("%w: store upload: %v", ErrStartImport, err)
	}

	session, err := uc.sessions.Create(ctx, domain.NewImportSession(in.UserID, stored, name, opts))
	if err != nil {
		_ = uc.uploads.Remove(context.WithoutCancel(ctx), stored)
		return StartImportOutput{}, fmt.Errorf("%w: %v", ErrStartImport, err)
	}

	return StartImportOutput{
		ImportID: session.ID,
		Status:   session.Status,
		Filename: session.OriginalFilename,
	}, nil
}
