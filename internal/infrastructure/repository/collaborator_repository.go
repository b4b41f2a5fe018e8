package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
)

const uniqueViolation = "23505"

var uniqueColumns = map[domain.Field]string{
	domain.FieldEmail: "email",
	domain.FieldCPF:   "cpf",
}

var constraintErrors = map[string]error{
	"collaborators_email_key": domain.ErrDuplicateEmail,
	"collaborators_cpf_key":   domain.ErrDuplicateCPF,
}

// CollaboratorRepository writes collaborators through pgx. The table's unique
// constraints back up the row processor's existence checks.
type CollaboratorRepository struct {
	pool *pgxpool.Pool
}

func NewCollaboratorRepository(pool *pgxpool.Pool) *CollaboratorRepository {
	return &CollaboratorRepository{pool: pool}
}

func (r *CollaboratorRepository) Exists(ctx context.Context, field domain.Field, value string) (bool, error) {
	column, ok := uniqueColumns[field]
	if !ok {
		return false, fmt.Errorf("field %q is not unique", field)
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM collaborators WHERE %s = $1)", column)
	if err := r.pool.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("check collaborator %s: %w", field, err)
	}
	return exists, nil
}

func (r *CollaboratorRepository) Create(ctx context.Context, c domain.Collaborator) (domain.Collaborator, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO collaborators (name, email, cpf, city, state, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id, created_at, updated_at
`, c.Name, c.Email, c.CPF, c.City, c.State, c.UserID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
				return domain.Collaborator{}, mapped
			}
		}
		return domain.Collaborator{}, fmt.Errorf("insert collaborator: %w", err)
	}
	return c, nil
}
