package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/models"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

// InviteHandler covers both sides of an invite: the owner who issues and
// revokes it, and the invitee who previews and accepts it.
type InviteHandler struct {
	invites *service.InviteService
	logger  *zap.Logger
}

func NewInviteHandler(invites *service.InviteService, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, logger: logger}
}

// Email is validated by the service, which also lower-cases it; binding
// only checks presence so the error messages stay in one place.
type createInviteRequest struct {
	Email string `json:"email" binding:"required"`
}

type acceptInviteRequest struct {
	FullName string `json:"full_name"`
}

// Create handles POST /v1/businesses/:slug/invites and its alias
// POST /v1/businesses/:slug/manager/invite
//
// 201 when a new invite was created, 200 when the pending one for the same
// address was returned instead. A failed e-mail does not fail the request.
func (h *InviteHandler) Create(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.invites.Issue(c.Request.Context(), middleware.GetUserID(c), c.Param("slug"), req.Email)
	if err != nil {
		fail(c, h.logger, err, "failed to create invite")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	payload := gin.H{
		"invite":     res.Invite,
		"created":    res.Created,
		"email_sent": res.EmailSent,
	}
	if res.EmailError != "" {
		payload["email_error"] = res.EmailError
	}
	ok(c, status, payload)
}

// List handles GET /v1/businesses/:slug/invites?status=PENDING
func (h *InviteHandler) List(c *gin.Context) {
	var status *models.InviteStatus
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseInviteStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status = &st
	}

	invites, err := h.invites.List(c.Request.Context(), middleware.GetUserID(c), c.Param("slug"), status)
	if err != nil {
		fail(c, h.logger, err, "failed to list invites")
		return
	}
	ok(c, http.StatusOK, gin.H{"invites": invites})
}

// Revoke handles POST /v1/businesses/:slug/invites/:id/revoke
func (h *InviteHandler) Revoke(c *gin.Context) {
	inviteID, valid := uuidParam(c, "id")
	if !valid {
		return
	}

	inv, err := h.invites.Revoke(c.Request.Context(), middleware.GetUserID(c), c.Param("slug"), inviteID)
	if err != nil {
		fail(c, h.logger, err, "failed to revoke invite")
		return
	}
	ok(c, http.StatusOK, gin.H{"invite": inv})
}

func callerFrom(c *gin.Context) service.Caller {
	return service.Caller{
		UserID:        middleware.GetUserID(c),
		Email:         middleware.GetEmail(c),
		EmailVerified: middleware.GetEmailVerified(c),
	}
}

// Get handles GET /v1/invites/:id
//
// Only the invited address may look; the business name is not shown to
// anyone else.
func (h *InviteHandler) Get(c *gin.Context) {
	inviteID, valid := uuidParam(c, "id")
	if !valid {
		return
	}

	preview, err := h.invites.Preview(c.Request.Context(), callerFrom(c), inviteID)
	if err != nil {
		fail(c, h.logger, err, "failed to get invite")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"invite":        preview.Invite,
		"business_slug": preview.BusinessSlug,
		"business_name": preview.BusinessName,
	})
}

// Accept handles POST /v1/invites/:id/accept
//
// Returns the business slug so the client can redirect to its dashboard.
func (h *InviteHandler) Accept(c *gin.Context) {
	inviteID, valid := uuidParam(c, "id")
	if !valid {
		return
	}

	// The body is optional; an empty one just leaves the name blank.
	var req acceptInviteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	slug, err := h.invites.Accept(c.Request.Context(), callerFrom(c), inviteID, req.FullName)
	if err != nil {
		fail(c, h.logger, err, "failed to accept invite")
		return
	}
	ok(c, http.StatusOK, gin.H{"business_slug": slug})
}
