package collaborator

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

type ListImportsInput struct {
	UserID  string
	Page    int
	PerPage int
}

type ListImportsOutput struct {
	Items    []ImportStatusOutput `json:"data"`
	Page     int                  `json:"current_page"`
	LastPage int                  `json:"last_page"`
	PerPage  int                  `json:"per_page"`
	Total    int64                `json:"total"`
}

type ListImports interface {
	Execute(ctx context.Context, in ListImportsInput) (ListImportsOutput, error)
}

type importSessionLister interface {
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.ImportSession, int64, error)
}

type listImports struct {
	sessions importSessionLister
}

func NewListImports(sessions importSessionLister) ListImports {
	return &listImports{sessions: sessions}
}

// Execute returns the caller's sessions, newest first.
func (uc *listImports) Execute(ctx context.Context, in ListImportsInput) (ListImportsOutput, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return ListImportsOutput{}, ErrInvalidUserID
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	perPage := in.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	sessions, total, err := uc.sessions.ListByUser(ctx, in.UserID, perPage, (page-1)*perPage)
	if err != nil {
		return ListImportsOutput{}, fmt.Errorf("%w: %v", ErrListImports, err)
	}

	items := make([]ImportStatusOutput, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, newImportStatusOutput(session))
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	return ListImportsOutput{
		Items:    items,
		Page:     page,
		LastPage: lastPage,
		PerPage:  perPage,
		Total:    total,
	}, nil
}
