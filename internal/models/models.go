package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity that can sign in. Users created through a magic link
// have no password until they set one.
//
// EmailVerified is set only by following a magic link. Registering with a
// password proves nothing about the address.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile is the display data attached to a user. users holds credentials;
// profiles is what other people in a business see. Accepting an invite
// upserts the profile and never touches the users row.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Business is the tenant. Every membership, invite and order belongs to
// exactly one business.
//
// OwnerPhone and ManagerPhone predate memberships. They are only consulted by
// the legacy phone identity path and are otherwise display data.
type Business struct {
	ID           uuid.UUID `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	OwnerPhone   string    `json:"owner_phone"`
	ManagerPhone *string   `json:"manager_phone"`
	Plan         string    `json:"plan"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlanFree is the plan a business gets when registration does not name one.
const PlanFree = "free"

// Membership is the authoritative (business, user) -> role relation.
type Membership struct {
	BusinessID uuid.UUID `json:"business_id"`
	UserID     uuid.UUID `json:"user_id"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Member is a membership joined with the member's profile, for people lookups.
type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

// UserBusiness is one entry of "which businesses can I open" for a user.
type UserBusiness struct {
	BusinessID uuid.UUID `json:"business_id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
}

// Invite is a pending offer of a role (in practice MANAGER) to an e-mail address.
type Invite struct {
	ID         uuid.UUID    `json:"id"`
	BusinessID uuid.UUID    `json:"business_id"`
	Email      string       `json:"email"`
	Role       Role         `json:"role"`
	Status     InviteStatus `json:"status"`
	CreatedBy  uuid.UUID    `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
	AcceptedAt *time.Time   `json:"accepted_at"`
	AcceptedBy *uuid.UUID   `json:"accepted_by"`
	RevokedAt  *time.Time   `json:"revoked_at"`
	RevokedBy  *uuid.UUID   `json:"revoked_by"`
}

// Order is a client transaction tracked through OrderStatus.
//
// Paid is independent of Status: an order can be DONE and unpaid, or paid
// while still IN_PROGRESS.
type Order struct {
	ID          uuid.UUID   `json:"id"`
	BusinessID  uuid.UUID   `json:"business_id"`
	OrderNumber int64       `json:"order_number"`
	ClientName  string      `json:"client_name"`
	ClientPhone string      `json:"client_phone"`
	Amount      float64     `json:"amount"`
	DueDate     *time.Time  `json:"due_date"`
	Description string      `json:"description"`
	Status      OrderStatus `json:"status"`
	Paid        bool        `json:"paid"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ClosedAt    *time.Time  `json:"closed_at"`
}

// OrderFilter narrows an order listing. Nil fields do not filter.
type OrderFilter struct {
	Status *OrderStatus
	Paid   *bool
}
