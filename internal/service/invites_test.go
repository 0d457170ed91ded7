package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/auth"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInviteFlow_AliceInvitesBob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "555-0100")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "Bob@Example.com")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.EmailSent)
	assert.Equal(t, "bob@example.com", res.Invite.Email)
	assert.Equal(t, models.InviteStatusPending, res.Invite.Status)

	msg := f.mail.last(t)
	assert.Equal(t, "bob@example.com", msg.To)
	assert.True(t, strings.HasPrefix(msg.Link, "https://app.ordero.test/invite/"+res.Invite.ID.String()+"?code="))

	bob, inviteID, err := f.accounts.ExchangeMagicCode(ctx, codeFrom(t, msg))
	require.NoError(t, err)
	assert.Equal(t, res.Invite.ID, inviteID)
	assert.Equal(t, "bob@example.com", bob.Email)
	assert.True(t, bob.EmailVerified)

	slug, err := f.invites.Accept(ctx, Caller{UserID: bob.ID, Email: bob.Email, EmailVerified: true}, inviteID, "  Bob Builder ")
	require.NoError(t, err)
	assert.Equal(t, "acme", slug)

	st := f.db.Stores()
	m, err := st.Memberships.Get(ctx, acme.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.RoleManager, m.Role)

	inv, err := st.Invites.GetByID(ctx, inviteID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusAccepted, inv.Status)
	require.NotNil(t, inv.AcceptedBy)
	assert.Equal(t, bob.ID, *inv.AcceptedBy)

	p, err := st.Profiles.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob Builder", p.FullName)

	// Bob now manages orders through his session.
	role, err := f.resolver.Resolve(ctx, acme, Identity{UserID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, role)
}

func TestIssue_IdempotentWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")

	first, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)
	before := f.db.Counts().Invites

	second, err := f.invites.Issue(ctx, alice.ID, "acme", " BOB@example.com ")
	require.NoError(t, err)

	assert.Equal(t, first.Invite.ID, second.Invite.ID)
	assert.False(t, second.Created)
	assert.False(t, second.EmailSent)
	assert.Equal(t, before, f.db.Counts().Invites)
	assert.Len(t, f.mail.sent, 1)
}

func TestIssue_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")
	mallory, _ := f.register(t, "mallory@example.com", "other", "")

	_, err := f.invites.Issue(ctx, mallory.ID, "acme", "bob@example.com")
	requireKind(t, err, KindForbidden)

	_, err = f.invites.Issue(ctx, alice.ID, "nope", "bob@example.com")
	requireKind(t, err, KindNotFound)

	_, err = f.invites.Issue(ctx, alice.ID, "acme", "   ")
	requireKind(t, err, KindValidation)

	_, err = f.invites.Issue(ctx, alice.ID, "acme", "Bob <bob@example.com>")
	requireKind(t, err, KindValidation)

	_, err = f.invites.Issue(ctx, uuid.Nil, "acme", "bob@example.com")
	requireKind(t, err, KindUnauthenticated)

	assert.Zero(t, f.db.Counts().Invites)
}

func TestIssue_MailFailureKeepsInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")
	f.mail.err = errors.New("smtp down")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.EmailSent)
	assert.NotEmpty(t, res.EmailError)
	assert.NotContains(t, res.EmailError, "smtp")
	assert.Equal(t, 1, f.db.Counts().Invites)
}

func TestAccept_RevokedInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)
	bob, caller := f.magicUser(t)

	_, err = f.invites.Revoke(ctx, alice.ID, "acme", res.Invite.ID)
	require.NoError(t, err)

	_, err = f.invites.Accept(ctx, caller, res.Invite.ID, "Bob")
	requireKind(t, err, KindConflict)

	m, err := f.db.Stores().Memberships.Get(ctx, acme.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestAccept_AlreadyAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)
	_, caller := f.magicUser(t)

	_, err = f.invites.Accept(ctx, caller, res.Invite.ID, "Bob")
	require.NoError(t, err)
	_, err = f.invites.Accept(ctx, caller, res.Invite.ID, "Bob")
	requireKind(t, err, KindConflict)
}

func TestAccept_EmailMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")
	eve, _ := f.register(t, "eve@example.com", "eve-shop", "")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)

	_, err = f.invites.Accept(ctx, Caller{UserID: eve.ID, Email: eve.Email, EmailVerified: true}, res.Invite.ID, "Eve")
	requireKind(t, err, KindForbidden)

	// Case alone is not a mismatch.
	bob, err := f.db.Stores().Users.Create(ctx, "bob@example.com", "", true)
	require.NoError(t, err)
	_, err = f.invites.Accept(ctx, Caller{UserID: bob.ID, Email: "BOB@Example.COM", EmailVerified: true}, res.Invite.ID, "Bob")
	require.NoError(t, err)
}

func TestAccept_SecondManagerConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "")

	first, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)
	_, bob := f.magicUser(t)

	second, err := f.invites.Issue(ctx, alice.ID, "acme", "carol@example.com")
	require.NoError(t, err)
	carol, carolCaller := f.magicUser(t)

	_, err = f.invites.Accept(ctx, bob, first.Invite.ID, "Bob")
	require.NoError(t, err)

	before := f.db.Counts()
	_, err = f.invites.Accept(ctx, carolCaller, second.Invite.ID, "Carol")
	requireKind(t, err, KindConflict)

	st := f.db.Stores()
	m, err := st.Memberships.Get(ctx, acme.ID, carol.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
	inv, err := st.Invites.GetByID(ctx, second.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, inv.Status)
	assert.Equal(t, before, f.db.Counts())
}

func TestAccept_OwnerCannotBecomeManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "alice@example.com")
	require.NoError(t, err)
	verified, caller := f.magicUser(t)
	require.Equal(t, alice.ID, verified.ID)

	_, err = f.invites.Accept(ctx, caller, res.Invite.ID, "Alice")
	requireKind(t, err, KindConflict)

	m, err := f.db.Stores().Memberships.Get(ctx, acme.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}

func TestAccept_NotFoundAndUnauthenticated(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.invites.Accept(context.Background(), Caller{UserID: uuid.New(), Email: "x@example.com"}, uuid.New(), "X")
	requireKind(t, err, KindNotFound)

	_, err = f.invites.Accept(context.Background(), Caller{}, uuid.New(), "X")
	requireKind(t, err, KindUnauthenticated)
}

func TestAccept_RejectsNonManagerRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "")

	inv, err := f.db.Stores().Invites.Create(ctx, acme.ID, "bob@example.com", models.RoleOwner, alice.ID)
	require.NoError(t, err)

	_, err = f.invites.Accept(ctx, Caller{UserID: uuid.New(), Email: "bob@example.com", EmailVerified: true}, inv.ID, "Bob")
	requireKind(t, err, KindValidation)
}

func TestRevokeAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")
	other, _ := f.register(t, "olga@example.com", "olga", "")

	a, err := f.invites.Issue(ctx, alice.ID, "acme", "a@example.com")
	require.NoError(t, err)
	_, err = f.invites.Issue(ctx, alice.ID, "acme", "b@example.com")
	require.NoError(t, err)

	// Another business's owner cannot touch acme's invites.
	_, err = f.invites.Revoke(ctx, other.ID, "olga", a.Invite.ID)
	requireKind(t, err, KindNotFound)

	revoked, err := f.invites.Revoke(ctx, alice.ID, "acme", a.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedBy)
	assert.Equal(t, alice.ID, *revoked.RevokedBy)

	_, err = f.invites.Revoke(ctx, alice.ID, "acme", a.Invite.ID)
	requireKind(t, err, KindConflict)

	all, err := f.invites.List(ctx, alice.ID, "acme", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending := models.InviteStatusPending
	open, err := f.invites.List(ctx, alice.ID, "acme", &pending)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b@example.com", open[0].Email)

	// After a revoke the address can be invited again.
	again, err := f.invites.Issue(ctx, alice.ID, "acme", "a@example.com")
	require.NoError(t, err)
	assert.True(t, again.Created)
	assert.NotEqual(t, a.Invite.ID, again.Invite.ID)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, _ := f.register(t, "alice@example.com", "acme", "")

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)

	p, err := f.invites.Preview(ctx, Caller{UserID: uuid.New(), Email: "bob@example.com", EmailVerified: true}, res.Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", p.BusinessSlug)
	assert.Equal(t, "acme shop", p.BusinessName)

	_, err = f.invites.Preview(ctx, Caller{UserID: uuid.New(), Email: "eve@example.com", EmailVerified: true}, res.Invite.ID)
	requireKind(t, err, KindForbidden)

	_, err = f.invites.Preview(ctx, Caller{UserID: uuid.New(), Email: "bob@example.com"}, res.Invite.ID)
	requireKind(t, err, KindForbidden)
}

// racingInvites behaves as if another request inserted the pending invite
// between Issue's lookup and its insert.
type racingInvites struct {
	repository.InviteRepository
	lookups int
	lost    bool // the racing row disappears again before the re-query
}

func (r *racingInvites) FindPending(ctx context.Context, businessID uuid.UUID, email string, role models.Role) (*models.Invite, error) {
	r.lookups++
	if r.lookups == 1 || r.lost {
		return nil, nil
	}
	return r.InviteRepository.FindPending(ctx, businessID, email, role)
}

func (r *racingInvites) Create(ctx context.Context, businessID uuid.UUID, email string, role models.Role, createdBy uuid.UUID) (*models.Invite, error) {
	return nil, fmt.Errorf("insert invite: %w", repository.ErrDuplicate)
}

func TestIssue_LostRaceReturnsCanonicalInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "")

	st := f.db.Stores()
	theirs, err := st.Invites.Create(ctx, acme.ID, "bob@example.com", models.RoleManager, alice.ID)
	require.NoError(t, err)

	racing := &racingInvites{InviteRepository: st.Invites}
	st.Invites = racing
	invites := NewInviteService(st, f.db, f.mail, InviteConfig{JWTSecret: testSecret, MagicLinkTTL: time.Hour, AppBaseURL: "https://app.ordero.test"}, zap.NewNop())

	res, err := invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, theirs.ID, res.Invite.ID)
	assert.False(t, res.Created)
	assert.False(t, res.EmailSent)
	assert.Equal(t, 2, racing.lookups)
	assert.Empty(t, f.mail.sent)
	assert.Equal(t, 1, f.db.Counts().Invites)

	racing.lookups, racing.lost = 0, true
	_, err = invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	requireKind(t, err, KindConflict)
	assert.Empty(t, f.mail.sent)
}

func TestAccept_UnverifiedSquatterCannotTakeInvite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	alice, acme := f.register(t, "alice@example.com", "acme", "")

	// Mallory registers Bob's address with her own password before he is invited.
	mallory, _ := f.register(t, "bob@example.com", "mal", "")
	assert.False(t, mallory.EmailVerified)
	malSession, err := f.accounts.IssueSession(mallory)
	require.NoError(t, err)

	res, err := f.invites.Issue(ctx, alice.ID, "acme", "bob@example.com")
	require.NoError(t, err)

	// Her session names the right address but proves nothing.
	_, err = f.invites.Accept(ctx, Caller{UserID: mallory.ID, Email: mallory.Email}, res.Invite.ID, "Mallory")
	requireKind(t, err, KindForbidden)
	_, err = f.invites.Preview(ctx, Caller{UserID: mallory.ID, Email: mallory.Email}, res.Invite.ID)
	requireKind(t, err, KindForbidden)

	// Bob follows his link: the account is now his.
	bob, caller := f.magicUser(t)
	assert.Equal(t, mallory.ID, bob.ID)
	assert.True(t, bob.EmailVerified)
	assert.Empty(t, bob.PasswordHash)

	_, err = f.invites.Accept(ctx, caller, res.Invite.ID, "Bob")
	require.NoError(t, err)
	role, err := f.resolver.Resolve(ctx, acme, Identity{UserID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, role)

	// Mallory can neither log back in nor keep using her old session.
	_, err = f.accounts.Login(ctx, "bob@example.com", "correct horse")
	requireKind(t, err, KindUnauthenticated)

	claims, err := auth.ParseToken(malSession.Token, testSecret)
	require.NoError(t, err)
	assert.False(t, claims.EmailVerified)
	ended, err := f.sessions.IsUnverifiedRevoked(ctx, claims.UserID.String())
	require.NoError(t, err)
	assert.True(t, ended)

	fresh, err := f.accounts.IssueSession(bob)
	require.NoError(t, err)
	freshClaims, err := auth.ParseToken(fresh.Token, testSecret)
	require.NoError(t, err)
	assert.True(t, freshClaims.EmailVerified)
}
