package collaborator_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

func TestFieldMapperSynonyms(t *testing.T) {
	t.Parallel()

	headers := []string{"Funcionario", "CORREIO", "Documento", "Cidade", "UF", "user_id"}
	mapper := app.NewFieldMapper(headers, false)
	require.Empty(t, mapper.Missing())

	row := mapper.Map(map[string]string{
		"Funcionario": "Ana Souza",
		"CORREIO":     "Ana@Example.COM",
		"Documento":   "111.444.777-35",
		"Cidade":      "Recife",
		"UF":          "pe",
		"user_id":     "someone-else",
	}, ownerID)

	require.Equal(t, app.MappedRow{
		Name:   "Ana Souza",
		Email:  "ana@example.com",
		CPF:    "11144477735",
		City:   "Recife",
		State:  "PE",
		UserID: ownerID,
	}, row)
}

func TestFieldMapperFirstAliasWins(t *testing.T) {
	t.Parallel()

	mapper := app.NewFieldMapper([]string{"nome", "name"}, false)
	row := mapper.Map(map[string]string{"nome": "Nome Column", "name": "Name Column"}, ownerID)
	require.Equal(t, "Name Column", row.Name)
}

func TestFieldMapperMissing(t *testing.T) {
	t.Parallel()

	mapper := app.NewFieldMapper([]string{"name", "email"}, false)
	require.Equal(t, []domain.Field{domain.FieldCPF, domain.FieldCity, domain.FieldState}, mapper.Missing())

	row := mapper.Map(map[string]string{"name": "Ana", "email": "ana@example.com"}, ownerID)
	require.Empty(t, row.CPF)
	require.Empty(t, row.City)
}

func TestFieldMapperPositional(t *testing.T) {
	t.Parallel()

	headers := []string{"field_0", "field_1", "field_2", "field_3", "field_4"}
	mapper := app.NewFieldMapper(headers, true)
	require.Empty(t, mapper.Missing())

	row := mapper.Map(map[string]string{
		"field_0": "Ana",
		"field_1": "ana@example.com",
		"field_2": "11144477735",
		"field_3": "Recife",
		"field_4": "PE",
	}, ownerID)
	require.Equal(t, "Ana", row.Value(domain.FieldName))
	require.Equal(t, "PE", row.Value(domain.FieldState))
}
