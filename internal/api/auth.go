package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles registration, login, logout and the magic-link
// exchange. Only logout needs a session; the others are how one is obtained.
type AuthHandler struct {
	accounts *service.AccountService
	cookie   CookieConfig
	logger   *zap.Logger
}

func NewAuthHandler(accounts *service.AccountService, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookie: cookie, logger: logger}
}

type registerRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"full_name" binding:"required"`
	Slug         string `json:"slug" binding:"required"`
	BusinessName string `json:"business_name" binding:"required"`
	OwnerPhone   string `json:"owner_phone"`
	Plan         string `json:"plan"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type magicRequest struct {
	Code string `json:"code" binding:"required"`
}

// startSession signs a token, sets it as an HttpOnly cookie and returns it
// for API clients that prefer the Authorization header.
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) (*service.Session, bool) {
	sess, err := h.accounts.IssueSession(user)
	if err != nil {
		fail(c, h.logger, err, "failed to start session")
		return nil, false
	}
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.Token, maxAge, "/", "", h.cookie.Secure, true)
	return sess, true
}

// Register handles POST /v1/auth/register
//
// Creates the owner's user, profile, business and OWNER membership in one
// transaction, then signs the owner in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, business, err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Slug:         req.Slug,
		BusinessName: req.BusinessName,
		OwnerPhone:   req.OwnerPhone,
		Plan:         req.Plan,
	})
	if err != nil {
		fail(c, h.logger, err, "failed to register")
		return
	}

	sess, done := h.startSession(c, user)
	if !done {
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"user":       user,
		"business":   business,
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}

// Login handles POST /v1/auth/login
//
// Unknown e-mail and wrong password get the same 401 so the endpoint does
// not reveal which addresses are registered.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.logger, err, "failed to log in")
		return
	}

	sess, done := h.startSession(c, user)
	if !done {
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user":       user,
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.accounts.Logout(c.Request.Context(), claims); err != nil {
		fail(c, h.logger, err, "failed to log out")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	ok(c, http.StatusOK, nil)
}

// Magic handles POST /v1/auth/magic
//
// Exchanges the code from an invite e-mail for a session. The response
// names the invite so the client can go straight to accepting it.
func (h *AuthHandler) Magic(c *gin.Context) {
	var req magicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, inviteID, err := h.accounts.ExchangeMagicCode(c.Request.Context(), req.Code)
	if err != nil {
		fail(c, h.logger, err, "failed to sign in with link")
		return
	}

	sess, done := h.startSession(c, user)
	if !done {
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user":       user,
		"invite_id":  inviteID,
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
	})
}
