package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/ordero/internal/models"
)

type InviteStore struct {
	db DBTX
}

func NewInviteStore(db DBTX) *InviteStore {
	return &InviteStore{db: db}
}

const inviteColumns = `id, business_id, email, role, status, created_by, created_at,
	accepted_at, accepted_by, revoked_at, revoked_by`

func scanInvite(row pgx.Row) (*models.Invite, error) {
	var inv models.Invite
	err := row.Scan(
		&inv.ID,
		&inv.BusinessID,
		&inv.Email,
		&inv.Role,
		&inv.Status,
		&inv.CreatedBy,
		&inv.CreatedAt,
		&inv.AcceptedAt,
		&inv.AcceptedBy,
		&inv.RevokedAt,
		&inv.RevokedBy,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InviteStore) Create(ctx context.Context, businessID uuid.UUID, email string, role models.Role, createdBy uuid.UUID) (*models.Invite, error) {
	// invites_one_pending (partial unique index) turns a racing second insert
	// into a unique violation, which the issuer resolves by re-reading.
	query := `
		INSERT INTO invites (business_id, email, role, status, created_by, created_at)
		VALUES ($1, $2, $3, 'PENDING', $4, now())
		RETURNING ` + inviteColumns

	inv, err := scanInvite(s.db.QueryRow(ctx, query, businessID, strings.ToLower(email), role, createdBy))
	if err != nil {
		return nil, wrapInsert("insert invite", err)
	}
	return inv, nil
}

func (s *InviteStore) GetByID(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE id = $1`

	inv, err := scanInvite(s.db.QueryRow(ctx, query, inviteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) FindPending(ctx context.Context, businessID uuid.UUID, email string, role models.Role) (*models.Invite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM invites
		WHERE business_id = $1 AND email = lower($2) AND role = $3 AND status = 'PENDING'
		LIMIT 1`

	inv, err := scanInvite(s.db.QueryRow(ctx, query, businessID, email, role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *models.InviteStatus) ([]models.Invite, error) {
	var query string
	var args []any

	if status != nil {
		query = `
			SELECT ` + inviteColumns + `
			FROM invites
			WHERE business_id = $1 AND status = $2
			ORDER BY created_at DESC`
		args = []any{businessID, *status}
	} else {
		query = `
			SELECT ` + inviteColumns + `
			FROM invites
			WHERE business_id = $1
			ORDER BY created_at DESC`
		args = []any{businessID}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]models.Invite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return invites, nil
}

func (s *InviteStore) MarkAccepted(ctx context.Context, inviteID, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE invites
		SET status = 'ACCEPTED', accepted_at = now(), accepted_by = $2
		WHERE id = $1 AND status = 'PENDING'`

	tag, err := s.db.Exec(ctx, query, inviteID, userID)
	if err != nil {
		return false, fmt.Errorf("accept invite: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *InviteStore) MarkRevoked(ctx context.Context, inviteID uuid.UUID, revokedBy *uuid.UUID) (bool, error) {
	query := `
		UPDATE invites
		SET status = 'REVOKED', revoked_at = now(), revoked_by = $2
		WHERE id = $1 AND status = 'PENDING'`

	tag, err := s.db.Exec(ctx, query, inviteID, revokedBy)
	if err != nil {
		return false, fmt.Errorf("revoke invite: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *InviteStore) ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	query := `
		UPDATE invites
		SET status = 'REVOKED', revoked_at = now(), revoked_by = NULL
		WHERE status = 'PENDING' AND created_at < $1`

	tag, err := s.db.Exec(ctx, query, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	return tag.RowsAffected(), nil
}
