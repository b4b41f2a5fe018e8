package collaborator

import (
	"context"
	"fmt"
	"io"
	"strings"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

const (
	previewRows       = 9
	largeFileRowLimit = 10000
)

type ValidateCSVStructureInput struct {
	Content   io.Reader
	Delimiter string
	Encoding  string
	HasHeader *bool
}

type ValidateCSVStructureOutput struct {
	IsValid        bool           `json:"is_valid"`
	Errors         []string       `json:"errors"`
	Warnings       []string       `json:"warnings"`
	Preview        []MappedRow    `json:"preview"`
	DetectedFields []string       `json:"detected_fields"`
	MissingFields  []domain.Field `json:"missing_fields"`
	TotalRows      int64          `json:"total_rows"`
}

// ValidateCSVStructure is a dry run over an upload. It reads the file only and
// never writes to any store.
type ValidateCSVStructure interface {
	Execute(ctx context.Context, in ValidateCSVStructureInput) (ValidateCSVStructureOutput, error)
}

type validateCSVStructure struct {
	maxFileBytes int64
}

func NewValidateCSVStructure(maxFileBytes int64) ValidateCSVStructure {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &validateCSVStructure{maxFileBytes: maxFileBytes}
}

func (uc *validateCSVStructure) Execute(ctx context.Context, in ValidateCSVStructureInput) (ValidateCSVStructureOutput, error) {
	if in.Content == nil {
		return ValidateCSVStructureOutput{}, ErrInvalidImportFile
	}

	hasHeader := true
	if in.HasHeader != nil {
		hasHeader = *in.HasHeader
	}
	opts, err := domain.NewImportOptions(in.Delimiter, in.Encoding, hasHeader)
	if err != nil {
		return ValidateCSVStructureOutput{}, fmt.Errorf("%w: %v", ErrInvalidImportOption, err)
	}

	out := ValidateCSVStructureOutput{
		Errors:   []string{},
		Warnings: []string{},
		Preview:  []MappedRow{},
	}

	reader, err := NewCSVReader(ctx, io.LimitReader(in.Content, uc.maxFileBytes), readerOptionsFor(opts, false))
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("could not read file: %v", err))
		return out, nil
	}

	out.DetectedFields = reader.Headers()
	mapper := NewFieldMapper(out.DetectedFields, !opts.HasHeader)
	out.MissingFields = mapper.Missing()
	if out.MissingFields == nil {
		out.MissingFields = []domain.Field{}
	}

	for row, err := range reader.Rows(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return ValidateCSVStructureOutput{}, fmt.Errorf("%w: %v", ErrValidateCSV, err)
			}
			out.Errors = append(out.Errors, fmt.Sprintf("could not read file: %v", err))
			break
		}
		out.TotalRows++
		if len(out.Preview) < previewRows {
			out.Preview = append(out.Preview, mapper.Map(row.Values, ""))
		}
	}

	if len(out.MissingFields) > 0 {
		names := make([]string, len(out.MissingFields))
		for i, field := range out.MissingFields {
			names[i] = string(field)
		}
		out.Errors = append(out.Errors, "required fields not found: "+strings.Join(names, ", "))
	}
	if out.TotalRows == 0 {
		out.Errors = append(out.Errors, ErrEmptyImportFile.Error())
	}
	if out.TotalRows > largeFileRowLimit {
		out.Warnings = append(out.Warnings, fmt.Sprintf("file is very large (%d rows); consider splitting it into smaller files", out.TotalRows))
	}

	out.IsValid = len(out.Errors) == 0
	return out, nil
}
