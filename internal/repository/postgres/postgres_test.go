package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/ordero/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestWrapInsert_TagsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "businesses_slug_key"}

	err := wrapInsert("insert business", fmt.Errorf("query: %w", pgErr))
	assert.True(t, errors.Is(err, repository.ErrDuplicate))
	assert.Contains(t, err.Error(), "insert business")
}

func TestWrapInsert_LeavesOtherErrors(t *testing.T) {
	err := wrapInsert("insert order", &pgconn.PgError{Code: "23514"})
	assert.False(t, errors.Is(err, repository.ErrDuplicate))

	err = wrapInsert("insert order", errors.New("connection reset"))
	assert.False(t, errors.Is(err, repository.ErrDuplicate))
}
