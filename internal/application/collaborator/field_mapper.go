package collaborator

import (
	"strings"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

// fieldAliases lists, per canonical field, the accepted header names in
// priority order.
var fieldAliases = []struct {
	field   domain.Field
	aliases []string
}{
	{field: domain.FieldName, aliases: []string{"name", "nome", "colaborador", "funcionario"}},
	{field: domain.FieldEmail, aliases: []string{"email", "e-mail", "correio"}},
	{field: domain.FieldCPF, aliases: []string{"cpf", "documento"}},
	{field: domain.FieldCity, aliases: []string{"city", "cidade"}},
	{field: domain.FieldState, aliases: []string{"state", "estado", "uf"}},
}

// MappedRow is a CSV row translated to canonical collaborator fields.
type MappedRow struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	CPF    string `json:"cpf"`
	City   string `json:"city"`
	State  string `json:"state"`
	UserID string `json:"user_id,omitempty"`
}

func (r MappedRow) Value(field domain.Field) string {
	switch field {
	case domain.FieldName:
		return r.Name
	case domain.FieldEmail:
		return r.Email
	case domain.FieldCPF:
		return r.CPF
	case domain.FieldCity:
		return r.City
	case domain.FieldState:
		return r.State
	default:
		return ""
	}
}

func (r MappedRow) Collaborator() domain.Collaborator {
	return domain.Collaborator{
		Name:   r.Name,
		Email:  r.Email,
		CPF:    r.CPF,
		City:   r.City,
		State:  r.State,
		UserID: r.UserID,
	}
}

// FieldMapper resolves header names to canonical fields once per file.
type FieldMapper struct {
	columns map[domain.Field]string
}

// NewFieldMapper matches headers case-insensitively against the alias table.
// With positional set, columns are taken in canonical order instead.
func NewFieldMapper(headers []string, positional bool) *FieldMapper {
	columns := make(map[domain.Field]string, len(fieldAliases))

	if positional {
		for i, field := range domain.CanonicalFields {
			if i < len(headers) {
				columns[field] = headers[i]
			}
		}
		return &FieldMapper{columns: columns}
	}

	for _, entry := range fieldAliases {
		if header, ok := findHeader(headers, entry.aliases); ok {
			columns[entry.field] = header
		}
	}
	return &FieldMapper{columns: columns}
}

func findHeader(headers []string, aliases []string) (string, bool) {
	for _, alias := range aliases {
		for _, header := range headers {
			if strings.EqualFold(strings.TrimSpace(header), alias) {
				return header, true
			}
		}
	}
	return "", false
}

// Missing lists canonical fields with no matching column.
func (m *FieldMapper) Missing() []domain.Field {
	var missing []domain.Field
	for _, field := range domain.CanonicalFields {
		if _, ok := m.columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// Map builds a MappedRow. The owner always comes from ownerID; ownership
// columns in the file are ignored.
func (m *FieldMapper) Map(raw map[string]string, ownerID string) MappedRow {
	value := func(field domain.Field) string {
		header, ok := m.columns[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(raw[header])
	}

	return MappedRow{
		Name:   value(domain.FieldName),
		Email:  strings.ToLower(value(domain.FieldEmail)),
		CPF:    domain.OnlyDigits(value(domain.FieldCPF)),
		City:   value(domain.FieldCity),
		State:  strings.ToUpper(value(domain.FieldState)),
		UserID: ownerID,
	}
}
