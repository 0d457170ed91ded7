package models

import (
	"fmt"
	"strings"
)

// Role is what a caller is allowed to do inside one business.
//
// Only OWNER and MANAGER are ever stored. GUEST is the absence of a
// membership, and OWNER_AND_MANAGER only comes out of the legacy phone path
// when a business lists the same phone for both.
type Role string

const (
	RoleOwner           Role = "OWNER"
	RoleManager         Role = "MANAGER"
	RoleGuest           Role = "GUEST"
	RoleOwnerAndManager Role = "OWNER_AND_MANAGER"
)

// ParseRole accepts any casing ("owner", "Owner") and returns the canonical value.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleOwner, RoleManager, RoleGuest, RoleOwnerAndManager:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Stored reports whether the role may appear in a membership row.
func (r Role) Stored() bool {
	return r == RoleOwner || r == RoleManager
}

// CanManageOrders covers create/update/status/paid and the order views.
func (r Role) CanManageOrders() bool {
	return r == RoleOwner || r == RoleManager || r == RoleOwnerAndManager
}

// CanManageBusiness covers invites and manager removal.
func (r Role) CanManageBusiness() bool {
	return r == RoleOwner || r == RoleOwnerAndManager
}

// InviteStatus moves PENDING -> ACCEPTED or PENDING -> REVOKED, never back.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusRevoked  InviteStatus = "REVOKED"
)

func ParseInviteStatus(s string) (InviteStatus, error) {
	switch st := InviteStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case InviteStatusPending, InviteStatusAccepted, InviteStatusRevoked:
		return st, nil
	}
	return "", fmt.Errorf("unknown invite status %q", s)
}

// OrderStatus is a closed set. Any status may follow any other.
type OrderStatus string

const (
	OrderStatusNew            OrderStatus = "NEW"
	OrderStatusInProgress     OrderStatus = "IN_PROGRESS"
	OrderStatusWaitingPayment OrderStatus = "WAITING_PAYMENT"
	OrderStatusDone           OrderStatus = "DONE"
	OrderStatusCanceled       OrderStatus = "CANCELED"
	OrderStatusDuplicate      OrderStatus = "DUPLICATE"
)

// OrderStatuses lists every valid status in display order.
var OrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusInProgress,
	OrderStatusWaitingPayment,
	OrderStatusDone,
	OrderStatusCanceled,
	OrderStatusDuplicate,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, valid := range OrderStatuses {
		if st == valid {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
