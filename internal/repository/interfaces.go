package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
)

// Conventions shared by every repository:
//
//   - context.Context comes first on every method. If the HTTP request is
//     cancelled, the query is cancelled with it.
//   - Lookups return nil, nil when the row does not exist. Callers translate
//     that to a 404; a non-nil error always means the store itself failed.
//   - Inserts that hit a unique constraint return an error wrapping
//     ErrDuplicate so services can tell "already exists" from "broken".
//   - Anything scoped to a business takes the business ID and filters on it,
//     even when the row ID alone would be enough.

// ErrDuplicate is wrapped by inserts that violate a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// UserRepository holds sign-in identities.
type UserRepository interface {
	// Create inserts a user. passwordHash may be empty for magic-link users.
	Create(ctx context.Context, email, passwordHash string, emailVerified bool) (*models.User, error)

	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ClaimEmail marks the user's address verified. If it was not verified
	// yet, the password is cleared as well. Returns nil, nil for an unknown ID.
	ClaimEmail(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// ProfileRepository holds display data keyed by user ID.
type ProfileRepository interface {
	// Upsert creates the profile or overwrites name and e-mail.
	Upsert(ctx context.Context, p models.Profile) error

	GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// BusinessRepository is the tenant directory.
type BusinessRepository interface {
	// Create inserts a business. A taken slug returns ErrDuplicate.
	Create(ctx context.Context, b models.Business) (*models.Business, error)

	GetByID(ctx context.Context, businessID uuid.UUID) (*models.Business, error)

	GetBySlug(ctx context.Context, slug string) (*models.Business, error)

	// LockForUpdate takes a row lock until the surrounding transaction ends.
	// Outside a transaction it is a plain existence check.
	LockForUpdate(ctx context.Context, businessID uuid.UUID) error

	// ClearManagerPhone drops the legacy manager phone.
	ClearManagerPhone(ctx context.Context, businessID uuid.UUID) error
}

// MembershipRepository maps (business, user) to a stored role.
type MembershipRepository interface {
	// Upsert inserts the membership or changes the role of an existing one.
	Upsert(ctx context.Context, businessID, userID uuid.UUID, role models.Role) error

	// Get returns the caller's membership in a business, nil if none.
	Get(ctx context.Context, businessID, userID uuid.UUID) (*models.Membership, error)

	// FindByRole returns the first membership with the given role, nil if none.
	// Used for the single-manager rule.
	FindByRole(ctx context.Context, businessID uuid.UUID, role models.Role) (*models.Membership, error)

	// Delete removes a membership and reports whether a row existed.
	Delete(ctx context.Context, businessID, userID uuid.UUID) (bool, error)

	// ListMembers returns memberships joined with profiles, owners first.
	ListMembers(ctx context.Context, businessID uuid.UUID) ([]models.Member, error)

	// ListByUser returns every business the user belongs to.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserBusiness, error)
}

// InviteRepository holds invites and their status transitions.
//
// Transitions are conditional updates: they only apply while the row is
// still PENDING and report whether they did.
type InviteRepository interface {
	// Create inserts a PENDING invite. A second PENDING invite for the same
	// (business, email, role) returns ErrDuplicate.
	Create(ctx context.Context, businessID uuid.UUID, email string, role models.Role, createdBy uuid.UUID) (*models.Invite, error)

	GetByID(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error)

	// FindPending returns the PENDING invite for the triple, nil if none.
	FindPending(ctx context.Context, businessID uuid.UUID, email string, role models.Role) (*models.Invite, error)

	// ListByBusiness returns invites newest first. A nil status lists all.
	ListByBusiness(ctx context.Context, businessID uuid.UUID, status *models.InviteStatus) ([]models.Invite, error)

	// MarkAccepted moves PENDING -> ACCEPTED.
	MarkAccepted(ctx context.Context, inviteID, userID uuid.UUID) (bool, error)

	// MarkRevoked moves PENDING -> REVOKED. revokedBy is nil for system revocations.
	MarkRevoked(ctx context.Context, inviteID uuid.UUID, revokedBy *uuid.UUID) (bool, error)

	// ExpirePending revokes every PENDING invite created before the cutoff
	// and returns how many it touched.
	ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error)
}

// OrderRepository holds orders. Orders are never deleted.
type OrderRepository interface {
	// Create inserts the order and assigns the next order number of its
	// business. ID, OrderNumber and timestamps on the argument are ignored.
	Create(ctx context.Context, o models.Order) (*models.Order, error)

	GetByID(ctx context.Context, businessID, orderID uuid.UUID) (*models.Order, error)

	// List returns orders newest first.
	List(ctx context.Context, businessID uuid.UUID, filter models.OrderFilter) ([]models.Order, error)

	// UpdateDetails overwrites client fields, amount, due date and description.
	// Returns nil, nil if the order does not exist.
	UpdateDetails(ctx context.Context, o models.Order) (*models.Order, error)

	// SetStatus writes status and closed_at together.
	SetStatus(ctx context.Context, businessID, orderID uuid.UUID, status models.OrderStatus, closedAt *time.Time) (*models.Order, error)

	SetPaid(ctx context.Context, businessID, orderID uuid.UUID, paid bool) (*models.Order, error)
}

// Stores bundles one implementation of every repository. Outside a
// transaction the fields share the pool; inside WithinTx they share the tx.
type Stores struct {
	Users       UserRepository
	Profiles    ProfileRepository
	Businesses  BusinessRepository
	Memberships MembershipRepository
	Invites     InviteRepository
	Orders      OrderRepository
}

// Transactor runs fn inside one database transaction. If fn returns an
// error, everything it wrote is rolled back and the error is returned as is.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Stores) error) error
}
