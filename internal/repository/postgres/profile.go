package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/ordero/internal/models"
)

type ProfileStore struct {
	db DBTX
}

func NewProfileStore(db DBTX) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Upsert(ctx context.Context, p models.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, email, updated_at)
		VALUES ($1, $2, lower($3), now())
		ON CONFLICT (id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    email = EXCLUDED.email,
		    updated_at = now()`

	if _, err := s.db.Exec(ctx, query, p.ID, p.FullName, p.Email); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT id, full_name, email, updated_at
		FROM profiles
		WHERE id = $1`

	var p models.Profile
	err := s.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.FullName, &p.Email, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}
