package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
	"go.uber.org/zap"
)

type ManagerService struct {
	stores   repository.Stores
	tx       repository.Transactor
	resolver *RoleResolver
	logger   *zap.Logger
}

func NewManagerService(stores repository.Stores, tx repository.Transactor, resolver *RoleResolver, logger *zap.Logger) *ManagerService {
	return &ManagerService{stores: stores, tx: tx, resolver: resolver, logger: logger}
}

// ManagerStatus is the owner's view of the manager slot.
type ManagerStatus struct {
	Manager        *models.Member  `json:"manager"`
	PendingInvites []models.Invite `json:"pending_invites"`
}

func findManager(members []models.Member) *models.Member {
	for i := range members {
		if members[i].Role == models.RoleManager {
			return &members[i]
		}
	}
	return nil
}

func (s *ManagerService) Status(ctx context.Context, callerID uuid.UUID, slug string) (*ManagerStatus, error) {
	b, err := ownedBusiness(ctx, s.stores, slug, callerID)
	if err != nil {
		return nil, err
	}
	members, err := s.stores.Memberships.ListMembers(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	pending := models.InviteStatusPending
	invites, err := s.stores.Invites.ListByBusiness(ctx, b.ID, &pending)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	manager := make([]models.Invite, 0, len(invites))
	for _, inv := range invites {
		if inv.Role == models.RoleManager {
			manager = append(manager, inv)
		}
	}
	return &ManagerStatus{Manager: findManager(members), PendingInvites: manager}, nil
}

// Remove drops the MANAGER membership and the legacy manager phone together.
// It returns the removed user, or uuid.Nil when only a legacy phone was set.
func (s *ManagerService) Remove(ctx context.Context, callerID uuid.UUID, slug string) (uuid.UUID, error) {
	var removed uuid.UUID
	err := s.tx.WithinTx(ctx, func(tx repository.Stores) error {
		b, err := ownedBusiness(ctx, tx, slug, callerID)
		if err != nil {
			return err
		}
		if err := tx.Businesses.LockForUpdate(ctx, b.ID); err != nil {
			return fmt.Errorf("lock business: %w", err)
		}

		m, err := tx.Memberships.FindByRole(ctx, b.ID, models.RoleManager)
		if err != nil {
			return fmt.Errorf("find manager: %w", err)
		}
		if m == nil && b.ManagerPhone == nil {
			return notFound("this business has no manager")
		}
		if m != nil {
			if _, err := tx.Memberships.Delete(ctx, b.ID, m.UserID); err != nil {
				return fmt.Errorf("delete manager membership: %w", err)
			}
			removed = m.UserID
		}
		if b.ManagerPhone != nil {
			if err := tx.Businesses.ClearManagerPhone(ctx, b.ID); err != nil {
				return fmt.Errorf("clear manager phone: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("manager removed",
		zap.String("business", normalizeSlug(slug)),
		zap.String("user_id", removed.String()),
	)
	return removed, nil
}

// People lists who runs the business. Owner or manager.
type People struct {
	Members      []models.Member `json:"members"`
	OwnerPhone   string          `json:"owner_phone"`
	ManagerPhone *string         `json:"manager_phone"`
}

func (s *ManagerService) People(ctx context.Context, id Identity, slug string) (*People, error) {
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	members, err := s.stores.Memberships.ListMembers(ctx, a.Business.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return &People{
		Members:      members,
		OwnerPhone:   a.Business.OwnerPhone,
		ManagerPhone: a.Business.ManagerPhone,
	}, nil
}
