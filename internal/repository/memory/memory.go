// Package memory is an in-process implementation of the repository
// interfaces. It enforces the same contracts as the Postgres stores
// (duplicates, conditional transitions, single manager, rollback on error)
// so services and handlers can be tested without a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
)

type memberKey struct {
	businessID uuid.UUID
	userID     uuid.UUID
}

type state struct {
	users       map[uuid.UUID]models.User
	profiles    map[uuid.UUID]models.Profile
	businesses  map[uuid.UUID]models.Business
	orderSeq    map[uuid.UUID]int64
	memberships map[memberKey]models.Membership
	invites     map[uuid.UUID]models.Invite
	inviteOrder []uuid.UUID
	orders      map[uuid.UUID]models.Order
}

func newState() *state {
	return &state{
		users:       make(map[uuid.UUID]models.User),
		profiles:    make(map[uuid.UUID]models.Profile),
		businesses:  make(map[uuid.UUID]models.Business),
		orderSeq:    make(map[uuid.UUID]int64),
		memberships: make(map[memberKey]models.Membership),
		invites:     make(map[uuid.UUID]models.Invite),
		orders:      make(map[uuid.UUID]models.Order),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.businesses {
		c.businesses[k] = v
	}
	for k, v := range s.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range s.memberships {
		c.memberships[k] = v
	}
	for k, v := range s.invites {
		c.invites[k] = v
	}
	c.inviteOrder = append([]uuid.UUID(nil), s.inviteOrder...)
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// DB holds all tables. The zero value is not usable; call New.
type DB struct {
	mu sync.Mutex
	st *state

	// txMu serialises transactions, which is what SELECT ... FOR UPDATE on
	// the business row gives the Postgres implementation.
	txMu sync.Mutex
}

func New() *DB {
	return &DB{st: newState()}
}

// Stores returns repositories backed by this DB.
func (db *DB) Stores() repository.Stores {
	return repository.Stores{
		Users:       &userStore{db: db},
		Profiles:    &profileStore{db: db},
		Businesses:  &businessStore{db: db},
		Memberships: &membershipStore{db: db},
		Invites:     &inviteStore{db: db},
		Orders:      &orderStore{db: db},
	}
}

// WithinTx snapshots every table, runs fn and restores the snapshot if fn
// fails.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Stores) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snapshot := db.st.clone()
	db.mu.Unlock()

	if err := fn(db.Stores()); err != nil {
		db.mu.Lock()
		db.st = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Counts reports table sizes, for assertions like "nothing was written".
type Counts struct {
	Users, Profiles, Businesses, Memberships, Invites, Orders int
}

func (db *DB) Counts() Counts {
	db.mu.Lock()
	defer db.mu.Unlock()
	return Counts{
		Users:       len(db.st.users),
		Profiles:    len(db.st.profiles),
		Businesses:  len(db.st.businesses),
		Memberships: len(db.st.memberships),
		Invites:     len(db.st.invites),
		Orders:      len(db.st.orders),
	}
}
