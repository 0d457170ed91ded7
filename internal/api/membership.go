package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

// MembershipHandler handles the people of a business: who the manager is,
// removing them, and the people lookup.
type MembershipHandler struct {
	managers *service.ManagerService
	logger   *zap.Logger
}

func NewMembershipHandler(managers *service.ManagerService, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{managers: managers, logger: logger}
}

// ManagerStatus handles GET /v1/businesses/:slug/manager
//
// manager is null when the slot is free; pending_invites lists the MANAGER
// invites still waiting for an answer.
func (h *MembershipHandler) ManagerStatus(c *gin.Context) {
	status, err := h.managers.Status(c.Request.Context(), middleware.GetUserID(c), c.Param("slug"))
	if err != nil {
		fail(c, h.logger, err, "failed to get manager")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"manager":         status.Manager,
		"pending_invites": status.PendingInvites,
	})
}

// RemoveManager handles DELETE /v1/businesses/:slug/manager
//
// The removed user loses access on their next request; roles are never
// cached in the session token.
func (h *MembershipHandler) RemoveManager(c *gin.Context) {
	removed, err := h.managers.Remove(c.Request.Context(), middleware.GetUserID(c), c.Param("slug"))
	if err != nil {
		fail(c, h.logger, err, "failed to remove manager")
		return
	}

	payload := gin.H{"removed_user_id": nil}
	if removed != uuid.Nil {
		payload["removed_user_id"] = removed
	}
	ok(c, http.StatusOK, payload)
}

// People handles GET /v1/businesses/:slug/people
func (h *MembershipHandler) People(c *gin.Context) {
	people, err := h.managers.People(c.Request.Context(), middleware.GetIdentity(c), c.Param("slug"))
	if err != nil {
		fail(c, h.logger, err, "failed to list people")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"members":       people.Members,
		"owner_phone":   people.OwnerPhone,
		"manager_phone": people.ManagerPhone,
	})
}
