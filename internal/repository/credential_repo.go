package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindwell/internal/domain"
)

// CredentialRepository define la persistencia de credenciales para el
// proveedor de identidad local.
type CredentialRepository interface {
	Create(ctx context.Context, cred domain.Credential) error
	GetByEmail(ctx context.Context, email string) (domain.Credential, error)
}

type PgCredentialRepository struct {
	pool *pgxpool.Pool
}

func NewPgCredentialRepository(pool *pgxpool.Pool) *PgCredentialRepository {
	return &PgCredentialRepository{pool: pool}
}

func (r *PgCredentialRepository) Create(ctx context.Context, cred domain.Credential) error {
	const query = `
		INSERT INTO credentials (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query,
		cred.ID,
		cred.Email,
		cred.PasswordHash,
		cred.CreatedAt,
	)
	return err
}

func (r *PgCredentialRepository) GetByEmail(ctx context.Context, email string) (domain.Credential, error) {
	const query = `
		SELECT id, email, password_hash, created_at
		FROM credentials
		WHERE email = $1
	`
	var cred domain.Credential
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&cred.ID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Credential{}, err
	}
	return cred, err
}
