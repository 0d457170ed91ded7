package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/auth"
	"github.com/lalith-99/ordero/internal/service"
	"github.com/lalith-99/ordero/internal/session"
	"go.uber.org/zap"
)

// Context keys for values stored in gin.Context.
//
// Constants instead of inline strings: c.Get("usr_id") compiles fine and
// silently returns nil, a misspelled constant does not compile.
const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "email"
	ContextKeyClaims = "claims"
	ContextKeyPhone  = "legacy_phone"
)

// LegacyPhoneParam is the query parameter the old links carry (?u=<phone>).
const LegacyPhoneParam = "u"

// Authenticator turns a session token into claims in the gin context.
//
// The token is read from the Authorization header first ("Bearer <jwt>",
// for API clients) and then from the session cookie (for browsers). A
// revoked token counts as no token at all.
type Authenticator struct {
	secret      string
	cookieName  string
	sessions    session.Store
	legacyPhone bool
	logger      *zap.Logger
}

func NewAuthenticator(secret, cookieName string, sessions session.Store, legacyPhone bool, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret:      secret,
		cookieName:  cookieName,
		sessions:    sessions,
		legacyPhone: legacyPhone,
		logger:      logger,
	}
}

// CookieName is the name of the session cookie handlers set on login.
func (a *Authenticator) CookieName() string {
	return a.cookieName
}

// RequireSession rejects the request with 401 unless it carries a valid,
// unrevoked session.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, status, msg := a.authenticate(c)
		if claims == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalSession stores claims when a valid session is present and lets
// the request through either way. Without a session, and only then, the
// legacy ?u=<phone> identity is picked up if it is enabled.
func (a *Authenticator) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, status, _ := a.authenticate(c)
		if status == http.StatusInternalServerError {
			c.AbortWithStatusJSON(status, gin.H{"error": "failed to check session"})
			return
		}
		if claims != nil {
			setClaims(c, claims)
		} else if a.legacyPhone {
			if phone := strings.TrimSpace(c.Query(LegacyPhoneParam)); phone != "" {
				c.Set(ContextKeyPhone, phone)
			}
		}
		c.Next()
	}
}

// authenticate returns the claims, or nil plus the status and message to
// answer with.
func (a *Authenticator) authenticate(c *gin.Context) (*auth.Claims, int, string) {
	token, ok := tokenFrom(c, a.cookieName)
	if !ok {
		return nil, http.StatusUnauthorized, "authentication required"
	}

	claims, err := auth.ParseToken(token, a.secret)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid or expired token"
	}

	revoked, err := a.sessions.IsRevoked(c.Request.Context(), claims.ID)
	if err != nil {
		a.logger.Error("failed to check session revocation", zap.Error(err))
		return nil, http.StatusInternalServerError, "failed to check session"
	}
	if revoked {
		return nil, http.StatusUnauthorized, "session has ended"
	}

	// Once someone proves the address by magic link, sessions that were
	// issued to the account before that proof stop working.
	if !claims.EmailVerified {
		ended, err := a.sessions.IsUnverifiedRevoked(c.Request.Context(), claims.UserID.String())
		if err != nil {
			a.logger.Error("failed to check unverified sessions", zap.Error(err))
			return nil, http.StatusInternalServerError, "failed to check session"
		}
		if ended {
			return nil, http.StatusUnauthorized, "session has ended"
		}
	}
	return claims, http.StatusOK, ""
}

func tokenFrom(c *gin.Context, cookieName string) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
			return strings.TrimSpace(parts[1]), true
		}
		return "", false
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextKeyClaims, claims)
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
}

// ---------------------------------------------------------------
// Helpers for handlers. They do the type assertion once and return zero
// values when the key is missing, which every service treats as
// "not signed in".
// ---------------------------------------------------------------

func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	val, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	email, ok := val.(string)
	if !ok {
		return ""
	}
	return email
}

// GetEmailVerified is false without a session.
func GetEmailVerified(c *gin.Context) bool {
	claims := GetClaims(c)
	return claims != nil && claims.EmailVerified
}

func GetClaims(c *gin.Context) *auth.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetIdentity is the caller as the role resolver sees it.
func GetIdentity(c *gin.Context) service.Identity {
	id := service.Identity{UserID: GetUserID(c)}
	if id.UserID == uuid.Nil {
		id.Phone = c.GetString(ContextKeyPhone)
	}
	return id
}
