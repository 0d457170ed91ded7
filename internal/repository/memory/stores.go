package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
)

type userStore struct{ db *DB }

func (s *userStore) Create(ctx context.Context, email, passwordHash string, emailVerified bool) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range s.db.st.users {
		if u.Email == email {
			return nil, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
	}
	u := models.User{ID: uuid.New(), Email: email, PasswordHash: passwordHash, EmailVerified: emailVerified, CreatedAt: time.Now()}
	s.db.st.users[u.ID] = u
	return &u, nil
}

func (s *userStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if u, ok := s.db.st.users[userID]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, u := range s.db.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *userStore) ClaimEmail(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.st.users[userID]
	if !ok {
		return nil, nil
	}
	if !u.EmailVerified {
		u.PasswordHash = ""
		u.EmailVerified = true
		s.db.st.users[userID] = u
	}
	return &u, nil
}

type profileStore struct{ db *DB }

func (s *profileStore) Upsert(ctx context.Context, p models.Profile) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p.Email = strings.ToLower(p.Email)
	p.UpdatedAt = time.Now()
	s.db.st.profiles[p.ID] = p
	return nil
}

func (s *profileStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if p, ok := s.db.st.profiles[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

type businessStore struct{ db *DB }

func (s *businessStore) Create(ctx context.Context, b models.Business) (*models.Business, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, existing := range s.db.st.businesses {
		if existing.Slug == b.Slug {
			return nil, fmt.Errorf("insert business: %w", repository.ErrDuplicate)
		}
	}
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	if b.Plan == "" {
		b.Plan = models.PlanFree
	}
	s.db.st.businesses[b.ID] = b
	return &b, nil
}

func (s *businessStore) GetByID(ctx context.Context, businessID uuid.UUID) (*models.Business, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if b, ok := s.db.st.businesses[businessID]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *businessStore) GetBySlug(ctx context.Context, slug string) (*models.Business, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, b := range s.db.st.businesses {
		if b.Slug == slug {
			return &b, nil
		}
	}
	return nil, nil
}

// LockForUpdate only checks existence; WithinTx already serialises.
func (s *businessStore) LockForUpdate(ctx context.Context, businessID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.st.businesses[businessID]; !ok {
		return fmt.Errorf("lock business: %s not found", businessID)
	}
	return nil
}

func (s *businessStore) ClearManagerPhone(ctx context.Context, businessID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if b, ok := s.db.st.businesses[businessID]; ok {
		b.ManagerPhone = nil
		s.db.st.businesses[businessID] = b
	}
	return nil
}

// SetManagerPhone exists only here: the service never writes legacy phones,
// but tests need businesses that still carry them.
func (db *DB) SetManagerPhone(businessID uuid.UUID, phone string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if b, ok := db.st.businesses[businessID]; ok {
		b.ManagerPhone = &phone
		db.st.businesses[businessID] = b
	}
}

type membershipStore struct{ db *DB }

func (s *membershipStore) Upsert(ctx context.Context, businessID, userID uuid.UUID, role models.Role) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := memberKey{businessID, userID}
	if role == models.RoleManager {
		for k, m := range s.db.st.memberships {
			if k.businessID == businessID && k.userID != userID && m.Role == models.RoleManager {
				return fmt.Errorf("upsert membership: %w", repository.ErrDuplicate)
			}
		}
	}
	m, ok := s.db.st.memberships[key]
	if !ok {
		m = models.Membership{BusinessID: businessID, UserID: userID, CreatedAt: time.Now()}
	}
	m.Role = role
	s.db.st.memberships[key] = m
	return nil
}

func (s *membershipStore) Get(ctx context.Context, businessID, userID uuid.UUID) (*models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if m, ok := s.db.st.memberships[memberKey{businessID, userID}]; ok {
		return &m, nil
	}
	return nil, nil
}

func (s *membershipStore) FindByRole(ctx context.Context, businessID uuid.UUID, role models.Role) (*models.Membership, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var found *models.Membership
	for k, m := range s.db.st.memberships {
		if k.businessID != businessID || m.Role != role {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			m := m
			found = &m
		}
	}
	return found, nil
}

func (s *membershipStore) Delete(ctx context.Context, businessID, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := memberKey{businessID, userID}
	if _, ok := s.db.st.memberships[key]; !ok {
		return false, nil
	}
	delete(s.db.st.memberships, key)
	return true, nil
}

func (s *membershipStore) ListMembers(ctx context.Context, businessID uuid.UUID) ([]models.Member, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	type row struct {
		member  models.Member
		created time.Time
	}
	rows := make([]row, 0)
	for k, m := range s.db.st.memberships {
		if k.businessID != businessID {
			continue
		}
		mem := models.Member{UserID: m.UserID, Role: m.Role}
		if u, ok := s.db.st.users[m.UserID]; ok {
			mem.Email = u.Email
		}
		if p, ok := s.db.st.profiles[m.UserID]; ok {
			mem.FullName = p.FullName
			mem.Email = p.Email
		}
		rows = append(rows, row{member: mem, created: m.CreatedAt})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		oi, oj := rows[i].member.Role == models.RoleOwner, rows[j].member.Role == models.RoleOwner
		if oi != oj {
			return oi
		}
		return rows[i].created.Before(rows[j].created)
	})

	members := make([]models.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.member)
	}
	return members, nil
}

func (s *membershipStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserBusiness, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.UserBusiness, 0)
	for k, m := range s.db.st.memberships {
		if k.userID != userID {
			continue
		}
		b := s.db.st.businesses[k.businessID]
		out = append(out, models.UserBusiness{BusinessID: b.ID, Slug: b.Slug, Name: b.Name, Role: m.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

type inviteStore struct{ db *DB }

func (s *inviteStore) Create(ctx context.Context, businessID uuid.UUID, email string, role models.Role, createdBy uuid.UUID) (*models.Invite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	email = strings.ToLower(email)
	for _, inv := range s.db.st.invites {
		if inv.BusinessID == businessID && inv.Email == email && inv.Role == role && inv.Status == models.InviteStatusPending {
			return nil, fmt.Errorf("insert invite: %w", repository.ErrDuplicate)
		}
	}
	inv := models.Invite{
		ID:         uuid.New(),
		BusinessID: businessID,
		Email:      email,
		Role:       role,
		Status:     models.InviteStatusPending,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}
	s.db.st.invites[inv.ID] = inv
	s.db.st.inviteOrder = append(s.db.st.inviteOrder, inv.ID)
	return &inv, nil
}

func (s *inviteStore) GetByID(ctx context.Context, inviteID uuid.UUID) (*models.Invite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if inv, ok := s.db.st.invites[inviteID]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (s *inviteStore) FindPending(ctx context.Context, businessID uuid.UUID, email string, role models.Role) (*models.Invite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, inv := range s.db.st.invites {
		if inv.BusinessID == businessID && strings.EqualFold(inv.Email, email) && inv.Role == role && inv.Status == models.InviteStatusPending {
			return &inv, nil
		}
	}
	return nil, nil
}

func (s *inviteStore) ListByBusiness(ctx context.Context, businessID uuid.UUID, status *models.InviteStatus) ([]models.Invite, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Invite, 0)
	for i := len(s.db.st.inviteOrder) - 1; i >= 0; i-- {
		inv := s.db.st.invites[s.db.st.inviteOrder[i]]
		if inv.BusinessID != businessID {
			continue
		}
		if status != nil && inv.Status != *status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *inviteStore) MarkAccepted(ctx context.Context, inviteID, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	inv, ok := s.db.st.invites[inviteID]
	if !ok || inv.Status != models.InviteStatusPending {
		return false, nil
	}
	now := time.Now()
	inv.Status = models.InviteStatusAccepted
	inv.AcceptedAt = &now
	inv.AcceptedBy = &userID
	s.db.st.invites[inviteID] = inv
	return true, nil
}

func (s *inviteStore) MarkRevoked(ctx context.Context, inviteID uuid.UUID, revokedBy *uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	inv, ok := s.db.st.invites[inviteID]
	if !ok || inv.Status != models.InviteStatusPending {
		return false, nil
	}
	now := time.Now()
	inv.Status = models.InviteStatusRevoked
	inv.RevokedAt = &now
	inv.RevokedBy = revokedBy
	s.db.st.invites[inviteID] = inv
	return true, nil
}

func (s *inviteStore) ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	now := time.Now()
	for id, inv := range s.db.st.invites {
		if inv.Status != models.InviteStatusPending || !inv.CreatedAt.Before(createdBefore) {
			continue
		}
		inv.Status = models.InviteStatusRevoked
		inv.RevokedAt = &now
		inv.RevokedBy = nil
		s.db.st.invites[id] = inv
		n++
	}
	return n, nil
}

// BackdateInvite moves an invite's created_at, for expiry tests.
func (db *DB) BackdateInvite(inviteID uuid.UUID, createdAt time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if inv, ok := db.st.invites[inviteID]; ok {
		inv.CreatedAt = createdAt
		db.st.invites[inviteID] = inv
	}
}

type orderStore struct{ db *DB }

// checkAmount mirrors CHECK (amount > 0) on the numeric(12,2) column.
func checkAmount(amount float64) error {
	if !(math.Round(amount*100) > 0) {
		return fmt.Errorf("amount %v violates orders_amount_check", amount)
	}
	return nil
}

func (s *orderStore) Create(ctx context.Context, o models.Order) (*models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.st.businesses[o.BusinessID]; !ok {
		return nil, fmt.Errorf("insert order: business %s not found", o.BusinessID)
	}
	if err := checkAmount(o.Amount); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	s.db.st.orderSeq[o.BusinessID]++

	now := time.Now()
	o.ID = uuid.New()
	o.OrderNumber = s.db.st.orderSeq[o.BusinessID]
	o.Status = models.OrderStatusNew
	o.Paid = false
	o.CreatedAt = now
	o.UpdatedAt = now
	o.ClosedAt = nil
	s.db.st.orders[o.ID] = o
	return &o, nil
}

func (s *orderStore) GetByID(ctx context.Context, businessID, orderID uuid.UUID) (*models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if o, ok := s.db.st.orders[orderID]; ok && o.BusinessID == businessID {
		return &o, nil
	}
	return nil, nil
}

func (s *orderStore) List(ctx context.Context, businessID uuid.UUID, filter models.OrderFilter) ([]models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	out := make([]models.Order, 0)
	for _, o := range s.db.st.orders {
		if o.BusinessID != businessID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		if filter.Paid != nil && o.Paid != *filter.Paid {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })
	return out, nil
}

func (s *orderStore) update(businessID, orderID uuid.UUID, fn func(o *models.Order)) (*models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.st.orders[orderID]
	if !ok || o.BusinessID != businessID {
		return nil, nil
	}
	fn(&o)
	o.UpdatedAt = time.Now()
	s.db.st.orders[orderID] = o
	return &o, nil
}

func (s *orderStore) UpdateDetails(ctx context.Context, in models.Order) (*models.Order, error) {
	if err := checkAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return s.update(in.BusinessID, in.ID, func(o *models.Order) {
		o.ClientName = in.ClientName
		o.ClientPhone = in.ClientPhone
		o.Amount = in.Amount
		o.DueDate = in.DueDate
		o.Description = in.Description
	})
}

func (s *orderStore) SetStatus(ctx context.Context, businessID, orderID uuid.UUID, status models.OrderStatus, closedAt *time.Time) (*models.Order, error) {
	return s.update(businessID, orderID, func(o *models.Order) {
		o.Status = status
		o.ClosedAt = closedAt
	})
}

func (s *orderStore) SetPaid(ctx context.Context, businessID, orderID uuid.UUID, paid bool) (*models.Order, error) {
	return s.update(businessID, orderID, func(o *models.Order) {
		o.Paid = paid
	})
}
