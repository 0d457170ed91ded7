package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/realtime"
	"github.com/lalith-99/ordero/internal/repository"
)

// OrderEvents receives every order after a successful write.
// realtime.Hub implements it.
type OrderEvents interface {
	OrderChanged(eventType string, o models.Order)
}

type noEvents struct{}

func (noEvents) OrderChanged(string, models.Order) {}

type OrderService struct {
	orders   repository.OrderRepository
	resolver *RoleResolver
	events   OrderEvents
	now      func() time.Time
}

// NewOrderService builds the service. events may be nil.
func NewOrderService(orders repository.OrderRepository, resolver *RoleResolver, events OrderEvents) *OrderService {
	if events == nil {
		events = noEvents{}
	}
	return &OrderService{orders: orders, resolver: resolver, events: events, now: time.Now}
}

// OrderInput is a new order.
type OrderInput struct {
	ClientName  string
	ClientPhone string
	Amount      float64
	DueDate     *time.Time
	Description string
}

// OrderPatch changes only the fields that are set. ClearDueDate removes the
// due date; it wins over DueDate.
type OrderPatch struct {
	ClientName   *string
	ClientPhone  *string
	Amount       *float64
	DueDate      *time.Time
	ClearDueDate bool
	Description  *string
}

// validateOrder expects amount already rounded to cents, so an amount that
// would be stored as 0.00 is rejected here and not by the database.
func validateOrder(clientName string, amount float64) error {
	if strings.TrimSpace(clientName) == "" {
		return validationf("client_name is required")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return validationf("amount must be greater than zero")
	}
	return nil
}

// roundCents matches the numeric(12,2) column.
func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Create validates before touching the store, then inserts a NEW unpaid
// order with the business's next order number.
func (s *OrderService) Create(ctx context.Context, id Identity, slug string, in OrderInput) (*models.Order, error) {
	amount := roundCents(in.Amount)
	if err := validateOrder(in.ClientName, amount); err != nil {
		return nil, err
	}
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.Create(ctx, models.Order{
		BusinessID:  a.Business.ID,
		ClientName:  strings.TrimSpace(in.ClientName),
		ClientPhone: strings.TrimSpace(in.ClientPhone),
		Amount:      amount,
		DueDate:     dateOnly(in.DueDate),
		Description: strings.TrimSpace(in.Description),
		Status:      models.OrderStatusNew,
		Paid:        false,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.events.OrderChanged(realtime.EventOrderCreated, *o)
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id Identity, slug string, orderID uuid.UUID) (*models.Order, error) {
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, a.Business.ID, orderID)
}

func (s *OrderService) load(ctx context.Context, businessID, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, businessID, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o == nil {
		return nil, notFound("order not found")
	}
	return o, nil
}

func (s *OrderService) List(ctx context.Context, id Identity, slug string, filter models.OrderFilter) ([]models.Order, error) {
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.List(ctx, a.Business.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Update applies patch on top of the stored order and validates the result.
func (s *OrderService) Update(ctx context.Context, id Identity, slug string, orderID uuid.UUID, patch OrderPatch) (*models.Order, error) {
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	o, err := s.load(ctx, a.Business.ID, orderID)
	if err != nil {
		return nil, err
	}

	if patch.ClientName != nil {
		o.ClientName = strings.TrimSpace(*patch.ClientName)
	}
	if patch.ClientPhone != nil {
		o.ClientPhone = strings.TrimSpace(*patch.ClientPhone)
	}
	if patch.Amount != nil {
		o.Amount = roundCents(*patch.Amount)
	}
	if patch.DueDate != nil {
		o.DueDate = dateOnly(patch.DueDate)
	}
	if patch.ClearDueDate {
		o.DueDate = nil
	}
	if patch.Description != nil {
		o.Description = strings.TrimSpace(*patch.Description)
	}
	if err := validateOrder(o.ClientName, o.Amount); err != nil {
		return nil, err
	}

	updated, err := s.orders.UpdateDetails(ctx, *o)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if updated == nil {
		return nil, notFound("order not found")
	}
	s.events.OrderChanged(realtime.EventOrderUpdated, *updated)
	return updated, nil
}

// SetStatus accepts any of the six statuses from any other. DONE stamps
// closed_at; every other status clears it.
func (s *OrderService) SetStatus(ctx context.Context, id Identity, slug string, orderID uuid.UUID, status string) (*models.Order, error) {
	st, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, validationf("invalid status %q", status)
	}
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}

	var closedAt *time.Time
	if st == models.OrderStatusDone {
		now := s.now().UTC()
		closedAt = &now
	}
	o, err := s.orders.SetStatus(ctx, a.Business.ID, orderID, st, closedAt)
	if err != nil {
		return nil, fmt.Errorf("set order status: %w", err)
	}
	if o == nil {
		return nil, notFound("order not found")
	}
	s.events.OrderChanged(realtime.EventOrderUpdated, *o)
	return o, nil
}

func (s *OrderService) SetPaid(ctx context.Context, id Identity, slug string, orderID uuid.UUID, paid bool) (*models.Order, error) {
	a, err := s.resolver.RequireOrderAccess(ctx, slug, id)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.SetPaid(ctx, a.Business.ID, orderID, paid)
	if err != nil {
		return nil, fmt.Errorf("set order paid: %w", err)
	}
	if o == nil {
		return nil, notFound("order not found")
	}
	s.events.OrderChanged(realtime.EventOrderUpdated, *o)
	return o, nil
}
