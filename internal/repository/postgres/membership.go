package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/ordero/internal/models"
)

type MembershipStore struct {
	db DBTX
}

func NewMembershipStore(db DBTX) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) Upsert(ctx context.Context, businessID, userID uuid.UUID, role models.Role) error {
	// ON CONFLICT DO UPDATE keeps accept-invite retries idempotent: the second
	// call rewrites the same role instead of failing on the primary key.
	// The partial unique index on MANAGER rows still rejects a second manager.
	query := `
		INSERT INTO memberships (business_id, user_id, role, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (business_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if _, err := s.db.Exec(ctx, query, businessID, userID, role); err != nil {
		return wrapInsert("upsert membership", err)
	}
	return nil
}

func (s *MembershipStore) Get(ctx context.Context, businessID, userID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT business_id, user_id, role, created_at
		FROM memberships
		WHERE business_id = $1 AND user_id = $2`

	return s.getOne(ctx, "get membership", query, businessID, userID)
}

func (s *MembershipStore) FindByRole(ctx context.Context, businessID uuid.UUID, role models.Role) (*models.Membership, error) {
	query := `
		SELECT business_id, user_id, role, created_at
		FROM memberships
		WHERE business_id = $1 AND role = $2
		ORDER BY created_at
		LIMIT 1`

	return s.getOne(ctx, "find membership by role", query, businessID, role)
}

func (s *MembershipStore) getOne(ctx context.Context, what, query string, args ...any) (*models.Membership, error) {
	var m models.Membership
	err := s.db.QueryRow(ctx, query, args...).Scan(&m.BusinessID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return &m, nil
}

func (s *MembershipStore) Delete(ctx context.Context, businessID, userID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM memberships WHERE business_id = $1 AND user_id = $2`, businessID, userID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) ListMembers(ctx context.Context, businessID uuid.UUID) ([]models.Member, error) {
	// LEFT JOIN: an owner who registered before profiles existed still shows up.
	query := `
		SELECT m.user_id, m.role, COALESCE(p.full_name, ''), COALESCE(p.email, u.email)
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.business_id = $1
		ORDER BY CASE m.role WHEN 'OWNER' THEN 0 ELSE 1 END, m.created_at`

	rows, err := s.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Role, &m.FullName, &m.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

func (s *MembershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserBusiness, error) {
	query := `
		SELECT b.id, b.slug, b.name, m.role
		FROM memberships m
		JOIN businesses b ON b.id = m.business_id
		WHERE m.user_id = $1
		ORDER BY b.slug`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user businesses: %w", err)
	}
	defer rows.Close()

	out := make([]models.UserBusiness, 0)
	for rows.Next() {
		var ub models.UserBusiness
		if err := rows.Scan(&ub.BusinessID, &ub.Slug, &ub.Name, &ub.Role); err != nil {
			return nil, fmt.Errorf("scan user business: %w", err)
		}
		out = append(out, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user businesses: %w", err)
	}
	return out, nil
}
