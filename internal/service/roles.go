package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
)

// Identity is whoever is calling. UserID is set for a signed-in session.
// Phone is the legacy ?u= identity and is only honoured when there is no
// session.
type Identity struct {
	UserID uuid.UUID
	Phone  string
}

func (id Identity) Authenticated() bool {
	return id.UserID != uuid.Nil
}

func (id Identity) anonymous() bool {
	return !id.Authenticated() && id.Phone == ""
}

// Access is the caller's resolved view of one business.
type Access struct {
	Business *models.Business
	Role     models.Role
}

// RoleResolver is the only place roles are decided.
type RoleResolver struct {
	businesses  repository.BusinessRepository
	memberships repository.MembershipRepository
	legacyPhone bool
}

func NewRoleResolver(businesses repository.BusinessRepository, memberships repository.MembershipRepository, legacyPhone bool) *RoleResolver {
	return &RoleResolver{businesses: businesses, memberships: memberships, legacyPhone: legacyPhone}
}

// Resolve decides the caller's role in b.
//
// A session is looked up in memberships and nothing else; a signed-in user
// without a row is a GUEST even if the URL carries a matching phone.
func (r *RoleResolver) Resolve(ctx context.Context, b *models.Business, id Identity) (models.Role, error) {
	if id.Authenticated() {
		m, err := r.memberships.Get(ctx, b.ID, id.UserID)
		if err != nil {
			return "", fmt.Errorf("resolve role: %w", err)
		}
		if m == nil {
			return models.RoleGuest, nil
		}
		return m.Role, nil
	}

	if !r.legacyPhone || id.Phone == "" {
		return models.RoleGuest, nil
	}
	return phoneRole(b, id.Phone), nil
}

func phoneRole(b *models.Business, phone string) models.Role {
	caller := NormalizePhone(phone)
	if caller == "" {
		return models.RoleGuest
	}
	isOwner := NormalizePhone(b.OwnerPhone) == caller
	isManager := b.ManagerPhone != nil && NormalizePhone(*b.ManagerPhone) == caller

	switch {
	case isOwner && isManager:
		return models.RoleOwnerAndManager
	case isOwner:
		return models.RoleOwner
	case isManager:
		return models.RoleManager
	default:
		return models.RoleGuest
	}
}

// Access loads the business by slug and resolves the caller's role in it.
func (r *RoleResolver) Access(ctx context.Context, slug string, id Identity) (*Access, error) {
	b, err := r.businesses.GetBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	if b == nil {
		return nil, notFound("business not found")
	}
	role, err := r.Resolve(ctx, b, id)
	if err != nil {
		return nil, err
	}
	return &Access{Business: b, Role: role}, nil
}

// RequireOrderAccess is Access plus the CanManageOrders check.
func (r *RoleResolver) RequireOrderAccess(ctx context.Context, slug string, id Identity) (*Access, error) {
	a, err := r.Access(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	if !a.Role.CanManageOrders() {
		if id.anonymous() {
			return nil, unauthenticated("authentication required")
		}
		return nil, forbidden("only the owner or manager can do this")
	}
	return a, nil
}

// NormalizePhone keeps digits only, so "+1 (555) 010-2000" and "15550102000"
// compare equal.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ownedBusiness loads a business and checks that userID holds the OWNER
// membership row. Legacy phone identities never pass this check.
func ownedBusiness(ctx context.Context, st repository.Stores, slug string, userID uuid.UUID) (*models.Business, error) {
	if userID == uuid.Nil {
		return nil, unauthenticated("authentication required")
	}
	b, err := st.Businesses.GetBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return nil, fmt.Errorf("get business: %w", err)
	}
	if b == nil {
		return nil, notFound("business not found")
	}
	m, err := st.Memberships.Get(ctx, b.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if m == nil || m.Role != models.RoleOwner {
		return nil, forbidden("only the business owner can do this")
	}
	return b, nil
}
