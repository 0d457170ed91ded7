package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/auth"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
	"github.com/lalith-99/ordero/internal/session"
	"go.uber.org/zap"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

const (
	minSlugLen     = 3
	maxSlugLen     = 48
	minPasswordLen = 8
)

type AccountService struct {
	stores     repository.Stores
	tx         repository.Transactor
	sessions   session.Store
	secret     string
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewAccountService(stores repository.Stores, tx repository.Transactor, sessions session.Store, secret string, sessionTTL time.Duration, logger *zap.Logger) *AccountService {
	return &AccountService{
		stores:     stores,
		tx:         tx,
		sessions:   sessions,
		secret:     secret,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

type RegisterInput struct {
	Email        string
	Password     string
	FullName     string
	Slug         string
	BusinessName string
	OwnerPhone   string
	Plan         string
}

// Session is a freshly issued session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Register creates the owner account and its business in one transaction.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, *models.Business, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, nil, validationf("password must be at least %d characters", minPasswordLen)
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, nil, validationf("full_name is required")
	}
	slug := normalizeSlug(in.Slug)
	if err := validateSlug(slug); err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(in.BusinessName)
	if name == "" {
		return nil, nil, validationf("business_name is required")
	}
	plan := strings.ToLower(strings.TrimSpace(in.Plan))
	if plan == "" {
		plan = models.PlanFree
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	var user *models.User
	var business *models.Business
	err = s.tx.WithinTx(ctx, func(tx repository.Stores) error {
		var err error
		user, err = tx.Users.Create(ctx, email, hash, false)
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("an account with this email already exists")
		}
		if err != nil {
			return err
		}
		if err := tx.Profiles.Upsert(ctx, models.Profile{ID: user.ID, FullName: fullName, Email: email}); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}

		business, err = tx.Businesses.Create(ctx, models.Business{
			Slug:       slug,
			Name:       name,
			OwnerPhone: strings.TrimSpace(in.OwnerPhone),
			Plan:       plan,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("business slug is already taken")
		}
		if err != nil {
			return err
		}
		if err := tx.Memberships.Upsert(ctx, business.ID, user.ID, models.RoleOwner); err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("business registered",
		zap.String("business", business.Slug),
		zap.String("user_id", user.ID.String()),
	)
	return user, business, nil
}

func validateSlug(slug string) error {
	if len(slug) < minSlugLen || len(slug) > maxSlugLen || !slugPattern.MatchString(slug) {
		return validationf("slug must be %d-%d lowercase letters, digits or single dashes", minSlugLen, maxSlugLen)
	}
	return nil
}

// Login checks the password. Unknown e-mail, magic-link users without a
// password and wrong passwords all fail the same way.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, unauthenticated("invalid email or password")
	}
	return user, nil
}

// ExchangeMagicCode turns the code from an invite e-mail into a user. The
// code works once. A user is created for the code's address if none exists;
// receiving the e-mail is the proof of ownership.
//
// An existing account whose address was never verified is claimed: it
// loses its password and every session issued to it so far.
//
// The code is spent only after the user is resolved, so a failed lookup
// leaves the link usable.
func (s *AccountService) ExchangeMagicCode(ctx context.Context, code string) (*models.User, uuid.UUID, error) {
	claims, err := auth.ParseMagicCode(strings.TrimSpace(code), s.secret)
	if err != nil {
		return nil, uuid.Nil, unauthenticated("invalid or expired link")
	}

	user, err := s.magicUser(ctx, strings.ToLower(claims.Email))
	if err != nil {
		return nil, uuid.Nil, err
	}

	first, err := s.sessions.ConsumeOnce(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !first {
		return nil, uuid.Nil, unauthenticated("this link has already been used")
	}
	return user, claims.InviteID, nil
}

func (s *AccountService) magicUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user, err = s.stores.Users.Create(ctx, email, "", true)
		if errors.Is(err, repository.ErrDuplicate) {
			user, err = s.stores.Users.GetByEmail(ctx, email)
		}
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("create user: %s vanished after a duplicate insert", email)
		}
	}
	if user.EmailVerified {
		return user, nil
	}

	// Revoke first: if it fails the account is left untouched.
	if err := s.sessions.RevokeUnverified(ctx, user.ID.String(), time.Now().Add(s.sessionTTL)); err != nil {
		return nil, err
	}
	claimed, err := s.stores.Users.ClaimEmail(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("claim email: %w", err)
	}
	if claimed == nil {
		return nil, unauthenticated("account no longer exists")
	}
	s.logger.Warn("unverified account claimed by magic link",
		zap.String("user_id", claimed.ID.String()),
		zap.Bool("had_password", user.PasswordHash != ""),
	)
	return claimed, nil
}

// IssueSession signs a session token for user. The token carries whether
// the address was verified at this moment.
func (s *AccountService) IssueSession(user *models.User) (*Session, error) {
	expires := time.Now().Add(s.sessionTTL)
	token, err := auth.GenerateToken(user.ID, user.Email, user.EmailVerified, s.secret, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires}, nil
}

// Logout revokes the token until it would have expired on its own.
func (s *AccountService) Logout(ctx context.Context, claims *auth.Claims) error {
	until := time.Now().Add(s.sessionTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.sessions.Revoke(ctx, claims.ID, until)
}

// Me is the signed-in user's own view.
type Me struct {
	User       *models.User          `json:"user"`
	Profile    *models.Profile       `json:"profile"`
	Businesses []models.UserBusiness `json:"businesses"`
}

func (s *AccountService) Me(ctx context.Context, userID uuid.UUID) (*Me, error) {
	user, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, unauthenticated("account no longer exists")
	}
	profile, err := s.stores.Profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	businesses, err := s.stores.Memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return &Me{User: user, Profile: profile, Businesses: businesses}, nil
}
