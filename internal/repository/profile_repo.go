package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindwell/internal/domain"
)

// ProfileRepository define el contrato de persistencia para perfiles. Get
// devuelve pgx.ErrNoRows cuando no existe fila.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (domain.Profile, error)
	Upsert(ctx context.Context, profile domain.Profile) (domain.Profile, error)
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

func (r *PgProfileRepository) Get(ctx context.Context, id string) (domain.Profile, error) {
	const query = `
		SELECT id, email, name, created_at
		FROM profiles
		WHERE id = $1
	`
	var profile domain.Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.Name,
		&profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, err
	}
	return profile, err
}

// Upsert inserta o actualiza por id. Un trigger del lado del proveedor puede
// haber materializado ya la fila, así que un INSERT plano fallaría por clave
// duplicada en esa carrera.
func (r *PgProfileRepository) Upsert(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	const query = `
		INSERT INTO profiles (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name
		RETURNING id, email, name, created_at
	`
	var stored domain.Profile
	err := r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.Name,
		profile.CreatedAt,
	).Scan(
		&stored.ID,
		&stored.Email,
		&stored.Name,
		&stored.CreatedAt,
	)
	return stored, err
}
