package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/ordero/internal/repository"
)

// DBTX is the part of pgx that the stores need. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so the same store code runs inside and outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewStores builds every store on the same connection.
func NewStores(db DBTX) repository.Stores {
	return repository.Stores{
		Users:       NewUserStore(db),
		Profiles:    NewProfileStore(db),
		Businesses:  NewBusinessStore(db),
		Memberships: NewMembershipStore(db),
		Invites:     NewInviteStore(db),
		Orders:      NewOrderStore(db),
	}
}

// Transactor implements repository.Transactor on a pgx pool.
type Transactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(tx repository.Stores) error) error {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback after Commit is a no-op, so this is safe on every path.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewStores(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// uniqueViolation is the SQLSTATE Postgres uses for unique constraint failures.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrapInsert tags unique violations with repository.ErrDuplicate.
func wrapInsert(what string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, repository.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}
