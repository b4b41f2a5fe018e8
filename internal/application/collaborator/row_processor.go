package collaborator

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"unicode/utf8"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
)

const (
	maxFieldLength = 256
	cpfLength      = 11
)

const (
	msgRequired     = "required"
	msgTooLong      = "may not be greater than 256 characters"
	msgInvalidEmail = "must be a valid email address"
	msgCPFLength    = "must have exactly 11 digits"
	msgTaken        = "has already been taken"
	msgInvalid      = "invalid"
)

type rowSessionRecorder interface {
	AddRowError(ctx context.Context, lease domain.Lease, line int, rowErrors domain.RowErrors) error
	IncrementCounters(ctx context.Context, lease domain.Lease, success bool) error
}

// RowProcessor validates one mapped row and persists it. Every row it sees
// increments exactly one of the session's success or failure counters.
type RowProcessor struct {
	store    domain.CollaboratorStore
	sessions rowSessionRecorder
}

func NewRowProcessor(store domain.CollaboratorStore, sessions rowSessionRecorder) *RowProcessor {
	return &RowProcessor{store: store, sessions: sessions}
}

// Process records row-level failures on the session instead of returning them.
// A returned error means the session itself could not be updated.
func (p *RowProcessor) Process(ctx context.Context, row MappedRow, line int, lease domain.Lease) error {
	if rowErrors := p.validate(ctx, row); len(rowErrors) > 0 {
		return p.Reject(ctx, lease, line, rowErrors)
	}

	if !domain.IsValidCPF(row.CPF) {
		return p.Reject(ctx, lease, line, domain.RowErrors{string(domain.FieldCPF): {msgInvalid}})
	}

	if err := p.create(ctx, row); err != nil {
		logging.WithFields(ctx, "import_id", lease.SessionID, "line", line).Warn("collaborator create failed", "error", err)
		return p.Reject(ctx, lease, line, domain.GeneralError(err.Error()))
	}

	return p.sessions.IncrementCounters(ctx, lease, true)
}

// Reject stores rowErrors for line and counts the row as failed.
func (p *RowProcessor) Reject(ctx context.Context, lease domain.Lease, line int, rowErrors domain.RowErrors) error {
	if err := p.sessions.AddRowError(ctx, lease, line, rowErrors); err != nil {
		if errors.Is(err, domain.ErrImportSessionFinished) || errors.Is(err, domain.ErrLeaseLost) {
			return err
		}
		logging.WithFields(ctx, "import_id", lease.SessionID, "line", line).Error("record row error failed", "error", err)
	}
	return p.sessions.IncrementCounters(ctx, lease, false)
}

func (p *RowProcessor) create(ctx context.Context, row MappedRow) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collaborator store panic: %v", r)
		}
	}()

	_, err = p.store.Create(ctx, row.Collaborator())
	return err
}

func (p *RowProcessor) validate(ctx context.Context, row MappedRow) domain.RowErrors {
	rowErrors := domain.RowErrors{}

	requireText(rowErrors, domain.FieldName, row.Name)

	if requireText(rowErrors, domain.FieldEmail, row.Email) {
		if !isEmail(row.Email) {
			rowErrors.Add(string(domain.FieldEmail), msgInvalidEmail)
		} else {
			p.requireUnique(ctx, rowErrors, domain.FieldEmail, row.Email)
		}
	}

	if row.CPF == "" {
		rowErrors.Add(string(domain.FieldCPF), msgRequired)
	} else if len(row.CPF) != cpfLength {
		rowErrors.Add(string(domain.FieldCPF), msgCPFLength)
	} else {
		p.requireUnique(ctx, rowErrors, domain.FieldCPF, row.CPF)
	}

	requireText(rowErrors, domain.FieldCity, row.City)
	requireText(rowErrors, domain.FieldState, row.State)

	return rowErrors
}

func requireText(rowErrors domain.RowErrors, field domain.Field, value string) bool {
	switch {
	case value == "":
		rowErrors.Add(string(field), msgRequired)
		return false
	case utf8.RuneCountInString(value) > maxFieldLength:
		rowErrors.Add(string(field), msgTooLong)
		return false
	}
	return true
}

func (p *RowProcessor) requireUnique(ctx context.Context, rowErrors domain.RowErrors, field domain.Field, value string) {
	exists, err := p.store.Exists(ctx, field, value)
	if err != nil {
		rowErrors.Add(domain.GeneralErrorKey, fmt.Sprintf("check %s uniqueness: %v", field, err))
		return
	}
	if exists {
		rowErrors.Add(string(field), msgTaken)
	}
}

func isEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}
