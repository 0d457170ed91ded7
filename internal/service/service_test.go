package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/ordero/internal/mailer"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository/memory"
	"github.com/lalith-99/ordero/internal/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// fakeMailer records every invite and can be told to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.InviteEmail
	err  error
}

func (m *fakeMailer) SendInvite(ctx context.Context, msg mailer.InviteEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last(t *testing.T) mailer.InviteEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no invite email was sent")
	return m.sent[len(m.sent)-1]
}

// codeFrom pulls the magic-link code out of an invite e-mail.
func codeFrom(t *testing.T, msg mailer.InviteEmail) string {
	t.Helper()
	u, err := url.Parse(msg.Link)
	require.NoError(t, err)
	code := u.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

type recordedEvent struct {
	Type  string
	Order models.Order
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *fakeEvents) OrderChanged(eventType string, o models.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{Type: eventType, Order: o})
}

type fixture struct {
	db       *memory.DB
	mail     *fakeMailer
	events   *fakeEvents
	sessions *session.MemoryStore
	resolver *RoleResolver
	accounts *AccountService
	invites  *InviteService
	orders   *OrderService
	managers *ManagerService
}

func newFixture(t *testing.T, legacyPhone bool) *fixture {
	t.Helper()
	db := memory.New()
	st := db.Stores()
	logger := zap.NewNop()

	f := &fixture{
		db:       db,
		mail:     &fakeMailer{},
		events:   &fakeEvents{},
		sessions: session.NewMemoryStore(),
	}
	f.resolver = NewRoleResolver(st.Businesses, st.Memberships, legacyPhone)
	f.accounts = NewAccountService(st, db, f.sessions, testSecret, time.Hour, logger)
	f.invites = NewInviteService(st, db, f.mail, InviteConfig{
		JWTSecret:    testSecret,
		MagicLinkTTL: time.Hour,
		AppBaseURL:   "https://app.ordero.test/",
	}, logger)
	f.orders = NewOrderService(st.Orders, f.resolver, f.events)
	f.managers = NewManagerService(st, db, f.resolver, logger)
	return f
}

// register creates an owner and a business.
func (f *fixture) register(t *testing.T, email, slug, phone string) (*models.User, *models.Business) {
	t.Helper()
	u, b, err := f.accounts.Register(context.Background(), RegisterInput{
		Email:        email,
		Password:     "correct horse",
		FullName:     "Owner of " + slug,
		Slug:         slug,
		BusinessName: slug + " shop",
		OwnerPhone:   phone,
	})
	require.NoError(t, err)
	return u, b
}

// magicUser goes through the magic link of the last invite e-mail.
func (f *fixture) magicUser(t *testing.T) (*models.User, Caller) {
	t.Helper()
	u, _, err := f.accounts.ExchangeMagicCode(context.Background(), codeFrom(t, f.mail.last(t)))
	require.NoError(t, err)
	return u, Caller{UserID: u.ID, Email: u.Email, EmailVerified: u.EmailVerified}
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se), "expected *service.Error, got %T: %v", err, err)
	require.Equal(t, kind, se.Kind, "unexpected kind for %q", se.Message)
}
