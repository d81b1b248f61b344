package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sanjio/sanjio/internal/model"
)

// ProfileRepository handles profile data access.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetByEmail retrieves a profile by email (case-insensitive).
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, role, created_at
		 FROM profiles WHERE lower(email) = lower($1)`, email,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.PasswordHash, &p.Role, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID retrieves a profile by its UUID.
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, role, created_at
		 FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.PasswordHash, &p.Role, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *model.Profile) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO profiles (email, full_name, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Email, p.FullName, p.PasswordHash, p.Role,
	).Scan(&p.ID, &p.CreatedAt)
}
