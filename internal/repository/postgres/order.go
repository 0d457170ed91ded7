package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/ordero/internal/models"
)

type OrderStore struct {
	db DBTX
}

func NewOrderStore(db DBTX) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `id, business_id, order_number, client_name, client_phone, amount::float8,
	due_date, description, status, paid, created_at, updated_at, closed_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.BusinessID,
		&o.OrderNumber,
		&o.ClientName,
		&o.ClientPhone,
		&o.Amount,
		&o.DueDate,
		&o.Description,
		&o.Status,
		&o.Paid,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) Create(ctx context.Context, o models.Order) (*models.Order, error) {
	// Order numbers come from businesses.order_seq, bumped in the same
	// statement. The UPDATE takes a row lock, so two concurrent creates for
	// one business get consecutive numbers instead of both computing count+1.
	// orders_business_number_key backs this up at the table level.
	query := `
		WITH seq AS (
			UPDATE businesses
			SET order_seq = order_seq + 1
			WHERE id = $1
			RETURNING order_seq
		)
		INSERT INTO orders (business_id, order_number, client_name, client_phone, amount,
			due_date, description, status, paid, created_at, updated_at)
		SELECT $1, seq.order_seq, $2, $3, $4, $5, $6, $7, false, now(), now()
		FROM seq
		RETURNING ` + orderColumns

	created, err := scanOrder(s.db.QueryRow(ctx, query,
		o.BusinessID,
		o.ClientName,
		o.ClientPhone,
		o.Amount,
		o.DueDate,
		o.Description,
		models.OrderStatusNew,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The CTE matched no business.
			return nil, fmt.Errorf("insert order: business %s not found", o.BusinessID)
		}
		return nil, wrapInsert("insert order", err)
	}
	return created, nil
}

func (s *OrderStore) GetByID(ctx context.Context, businessID, orderID uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND business_id = $2`
	return s.one(ctx, "get order", query, orderID, businessID)
}

func (s *OrderStore) List(ctx context.Context, businessID uuid.UUID, filter models.OrderFilter) ([]models.Order, error) {
	// Filters are optional, so the WHERE clause is assembled from the ones
	// that are set. Placeholders are numbered as they are appended.
	conds := []string{"business_id = $1"}
	args := []any{businessID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Paid != nil {
		args = append(args, *filter.Paid)
		conds = append(conds, fmt.Sprintf("paid = $%d", len(args)))
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY order_number DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) UpdateDetails(ctx context.Context, o models.Order) (*models.Order, error) {
	query := `
		UPDATE orders
		SET client_name = $3, client_phone = $4, amount = $5, due_date = $6,
		    description = $7, updated_at = now()
		WHERE id = $1 AND business_id = $2
		RETURNING ` + orderColumns

	return s.one(ctx, "update order", query,
		o.ID, o.BusinessID, o.ClientName, o.ClientPhone, o.Amount, o.DueDate, o.Description)
}

func (s *OrderStore) SetStatus(ctx context.Context, businessID, orderID uuid.UUID, status models.OrderStatus, closedAt *time.Time) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $3, closed_at = $4, updated_at = now()
		WHERE id = $1 AND business_id = $2
		RETURNING ` + orderColumns

	return s.one(ctx, "set order status", query, orderID, businessID, status, closedAt)
}

func (s *OrderStore) SetPaid(ctx context.Context, businessID, orderID uuid.UUID, paid bool) (*models.Order, error) {
	query := `
		UPDATE orders
		SET paid = $3, updated_at = now()
		WHERE id = $1 AND business_id = $2
		RETURNING ` + orderColumns

	return s.one(ctx, "set order paid", query, orderID, businessID, paid)
}

func (s *OrderStore) one(ctx context.Context, what, query string, args ...any) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return o, nil
}
