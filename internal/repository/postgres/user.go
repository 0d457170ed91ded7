package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/ordero/internal/models"
)

const userColumns = `id, email, COALESCE(password_hash, ''), email_verified, created_at`

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user row. Postgres generates the UUID and timestamp.
// E-mails are stored lower-cased so the unique index is case-insensitive.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string, emailVerified bool) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, email_verified, created_at)
		VALUES ($1, NULLIF($2, ''), $3, now())
		RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, strings.ToLower(email), passwordHash, emailVerified))
	if err != nil {
		return nil, wrapInsert("insert user", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.getOne(ctx, "get user", query, userID)
}

// GetByEmail looks up a user by e-mail. Used for login and magic links.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return s.getOne(ctx, "get user by email", query, email)
}

// ClaimEmail verifies the address. The CASE reads the row as it was before
// the update, so only a previously unverified account loses its password.
func (s *UserStore) ClaimEmail(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `
		UPDATE users
		SET password_hash = CASE WHEN email_verified THEN password_hash ELSE NULL END,
		    email_verified = true
		WHERE id = $1
		RETURNING ` + userColumns

	return s.getOne(ctx, "claim email", query, userID)
}

func (s *UserStore) getOne(ctx context.Context, what, query string, arg any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
