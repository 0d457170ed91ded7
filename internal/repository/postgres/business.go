package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/ordero/internal/models"
)

type BusinessStore struct {
	db DBTX
}

func NewBusinessStore(db DBTX) *BusinessStore {
	return &BusinessStore{db: db}
}

const businessColumns = `id, slug, name, owner_phone, manager_phone, plan, created_at`

func scanBusiness(row pgx.Row) (*models.Business, error) {
	var b models.Business
	err := row.Scan(
		&b.ID,
		&b.Slug,
		&b.Name,
		&b.OwnerPhone,
		&b.ManagerPhone,
		&b.Plan,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BusinessStore) Create(ctx context.Context, b models.Business) (*models.Business, error) {
	query := `
		INSERT INTO businesses (slug, name, owner_phone, manager_phone, plan, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + businessColumns

	created, err := scanBusiness(s.db.QueryRow(ctx, query, b.Slug, b.Name, b.OwnerPhone, b.ManagerPhone, b.Plan))
	if err != nil {
		return nil, wrapInsert("insert business", err)
	}
	return created, nil
}

func (s *BusinessStore) GetByID(ctx context.Context, businessID uuid.UUID) (*models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`

	b, err := scanBusiness(s.db.QueryRow(ctx, query, businessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get business: %w", err)
	}
	return b, nil
}

func (s *BusinessStore) GetBySlug(ctx context.Context, slug string) (*models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE slug = $1`

	b, err := scanBusiness(s.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get business by slug: %w", err)
	}
	return b, nil
}

// LockForUpdate serialises writers on one business for the rest of the
// transaction. Invite acceptance uses it so two acceptances cannot both see
// "no manager yet".
func (s *BusinessStore) LockForUpdate(ctx context.Context, businessID uuid.UUID) error {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM businesses WHERE id = $1 FOR UPDATE`, businessID).Scan(&id)
	if err != nil {
		return fmt.Errorf("lock business: %w", err)
	}
	return nil
}

func (s *BusinessStore) ClearManagerPhone(ctx context.Context, businessID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `UPDATE businesses SET manager_phone = NULL WHERE id = $1`, businessID); err != nil {
		return fmt.Errorf("clear manager phone: %w", err)
	}
	return nil
}
