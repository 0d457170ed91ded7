package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/auth"
	"github.com/lalith-99/ordero/internal/mailer"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
	"go.uber.org/zap"
)

// Caller is a signed-in user as seen by the invite flow. Email and
// EmailVerified come from the session token.
type Caller struct {
	UserID        uuid.UUID
	Email         string
	EmailVerified bool
}

// invitee checks that caller proved ownership of the invited address.
func (c Caller) invitee(inv *models.Invite) error {
	if !strings.EqualFold(strings.TrimSpace(c.Email), inv.Email) {
		return forbidden("this invite was sent to a different email address")
	}
	if !c.EmailVerified {
		return forbidden("open the link from the invite email to verify your address first")
	}
	return nil
}

// InviteConfig carries what the invite e-mail needs to build a magic link.
type InviteConfig struct {
	JWTSecret    string
	MagicLinkTTL time.Duration
	AppBaseURL   string
}

type InviteService struct {
	stores repository.Stores
	tx     repository.Transactor
	mailer mailer.Mailer
	cfg    InviteConfig
	logger *zap.Logger
}

func NewInviteService(stores repository.Stores, tx repository.Transactor, m mailer.Mailer, cfg InviteConfig, logger *zap.Logger) *InviteService {
	return &InviteService{stores: stores, tx: tx, mailer: m, cfg: cfg, logger: logger}
}

// IssueResult reports what Issue did. Created is false when an existing
// PENDING invite was returned; no e-mail goes out in that case.
type IssueResult struct {
	Invite     *models.Invite
	Created    bool
	EmailSent  bool
	EmailError string
}

// Issue creates a MANAGER invite for email, or returns the one already
// pending for the same address.
func (s *InviteService) Issue(ctx context.Context, callerID uuid.UUID, slug, email string) (*IssueResult, error) {
	b, err := ownedBusiness(ctx, s.stores, slug, callerID)
	if err != nil {
		return nil, err
	}

	email, err = normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	existing, err := s.stores.Invites.FindPending(ctx, b.ID, email, models.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("find pending invite: %w", err)
	}
	if existing != nil {
		return &IssueResult{Invite: existing}, nil
	}

	inv, err := s.stores.Invites.Create(ctx, b.ID, email, models.RoleManager, callerID)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent issue; theirs is the canonical one.
		existing, err = s.stores.Invites.FindPending(ctx, b.ID, email, models.RoleManager)
		if err != nil {
			return nil, fmt.Errorf("find pending invite: %w", err)
		}
		if existing == nil {
			return nil, conflict("invite changed concurrently, try again")
		}
		return &IssueResult{Invite: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	res := &IssueResult{Invite: inv, Created: true}
	if err := s.sendInvite(ctx, b, inv); err != nil {
		s.logger.Warn("invite email not sent",
			zap.String("invite_id", inv.ID.String()),
			zap.String("business", b.Slug),
			zap.Error(err),
		)
		res.EmailError = "invite created but the email could not be sent"
		return res, nil
	}
	res.EmailSent = true
	return res, nil
}

func (s *InviteService) sendInvite(ctx context.Context, b *models.Business, inv *models.Invite) error {
	code, err := auth.GenerateMagicCode(inv.Email, inv.ID, s.cfg.JWTSecret, s.cfg.MagicLinkTTL)
	if err != nil {
		return err
	}
	return s.mailer.SendInvite(ctx, mailer.InviteEmail{
		To:           inv.Email,
		BusinessName: b.Name,
		BusinessSlug: b.Slug,
		Link:         s.inviteLink(inv.ID, code),
	})
}

func (s *InviteService) inviteLink(inviteID uuid.UUID, code string) string {
	q := url.Values{}
	q.Set("code", code)
	return fmt.Sprintf("%s/invite/%s?%s", strings.TrimRight(s.cfg.AppBaseURL, "/"), inviteID, q.Encode())
}

// Accept makes the caller the manager named by the invite.
//
// The checks that only read the invite run first. Everything that writes
// runs in one transaction holding the business row lock, so two acceptances
// for the same business cannot both end up as MANAGER.
func (s *InviteService) Accept(ctx context.Context, caller Caller, inviteID uuid.UUID, fullName string) (string, error) {
	if caller.UserID == uuid.Nil {
		return "", unauthenticated("authentication required")
	}

	inv, err := s.stores.Invites.GetByID(ctx, inviteID)
	if err != nil {
		return "", fmt.Errorf("get invite: %w", err)
	}
	if inv == nil {
		return "", notFound("invite not found")
	}
	if inv.Status != models.InviteStatusPending {
		return "", conflict(fmt.Sprintf("invite is %s", strings.ToLower(string(inv.Status))))
	}
	if inv.Role != models.RoleManager {
		return "", validationf("unsupported invite role %s", inv.Role)
	}
	if err := caller.invitee(inv); err != nil {
		return "", err
	}

	fullName = strings.TrimSpace(fullName)
	var slug string
	err = s.tx.WithinTx(ctx, func(tx repository.Stores) error {
		if err := tx.Businesses.LockForUpdate(ctx, inv.BusinessID); err != nil {
			return fmt.Errorf("lock business: %w", err)
		}
		b, err := tx.Businesses.GetByID(ctx, inv.BusinessID)
		if err != nil {
			return fmt.Errorf("get business: %w", err)
		}
		if b == nil {
			return notFound("business not found")
		}

		current, err := tx.Memberships.FindByRole(ctx, b.ID, models.RoleManager)
		if err != nil {
			return fmt.Errorf("find manager: %w", err)
		}
		if current != nil && current.UserID != caller.UserID {
			return conflict("this business already has a manager")
		}
		own, err := tx.Memberships.Get(ctx, b.ID, caller.UserID)
		if err != nil {
			return fmt.Errorf("get membership: %w", err)
		}
		if own != nil && own.Role == models.RoleOwner {
			return conflict("the owner cannot become the manager")
		}

		if err := tx.Profiles.Upsert(ctx, models.Profile{ID: caller.UserID, FullName: fullName, Email: inv.Email}); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		if err := tx.Memberships.Upsert(ctx, b.ID, caller.UserID, models.RoleManager); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflict("this business already has a manager")
			}
			return fmt.Errorf("upsert membership: %w", err)
		}
		ok, err := tx.Invites.MarkAccepted(ctx, inv.ID, caller.UserID)
		if err != nil {
			return fmt.Errorf("accept invite: %w", err)
		}
		if !ok {
			return conflict("invite is no longer pending")
		}
		slug = b.Slug
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("invite accepted",
		zap.String("invite_id", inv.ID.String()),
		zap.String("business", slug),
		zap.String("user_id", caller.UserID.String()),
	)
	return slug, nil
}

// Revoke cancels a PENDING invite. Owner only.
func (s *InviteService) Revoke(ctx context.Context, callerID uuid.UUID, slug string, inviteID uuid.UUID) (*models.Invite, error) {
	b, err := ownedBusiness(ctx, s.stores, slug, callerID)
	if err != nil {
		return nil, err
	}
	inv, err := s.stores.Invites.GetByID(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if inv == nil || inv.BusinessID != b.ID {
		return nil, notFound("invite not found")
	}

	ok, err := s.stores.Invites.MarkRevoked(ctx, inv.ID, &callerID)
	if err != nil {
		return nil, fmt.Errorf("revoke invite: %w", err)
	}
	if !ok {
		return nil, conflict("invite is no longer pending")
	}

	inv, err = s.stores.Invites.GetByID(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// List returns the business's invites, optionally filtered by status. Owner only.
func (s *InviteService) List(ctx context.Context, callerID uuid.UUID, slug string, status *models.InviteStatus) ([]models.Invite, error) {
	b, err := ownedBusiness(ctx, s.stores, slug, callerID)
	if err != nil {
		return nil, err
	}
	invites, err := s.stores.Invites.ListByBusiness(ctx, b.ID, status)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

// InvitePreview is what an invitee sees before accepting.
type InvitePreview struct {
	Invite       *models.Invite `json:"invite"`
	BusinessSlug string         `json:"business_slug"`
	BusinessName string         `json:"business_name"`
}

// Preview shows an invite to the verified owner of the address it was sent
// to. Anyone else gets a 403, without learning the business.
func (s *InviteService) Preview(ctx context.Context, caller Caller, inviteID uuid.UUID) (*InvitePreview, error) {
	inv, err := s.stores.Invites.GetByID(ctx, inviteID)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if inv == nil {
		return nil, notFound("invite not found")
	}
	if err := caller.invitee(inv); err != nil {
		return nil, err
	}
	b, err := s.stores.Businesses.GetByID(ctx, inv.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	if b == nil {
		return nil, notFound("business not found")
	}
	return &InvitePreview{Invite: inv, BusinessSlug: b.Slug, BusinessName: b.Name}, nil
}

// normalizeEmail trims, lower-cases and rejects anything that is not a bare
// address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", validationf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationf("invalid email address")
	}
	return email, nil
}
