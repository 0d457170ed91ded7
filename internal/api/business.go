package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

// BusinessHandler serves the public business card. It is the one
// business-scoped view a GUEST may see.
type BusinessHandler struct {
	resolver *service.RoleResolver
	logger   *zap.Logger
}

func NewBusinessHandler(resolver *service.RoleResolver, logger *zap.Logger) *BusinessHandler {
	return &BusinessHandler{resolver: resolver, logger: logger}
}

// businessCard leaves out the phones; those are for owner and manager only.
type businessCard struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
	Plan string    `json:"plan"`
}

// Get handles GET /v1/businesses/:slug
//
// Also tells the caller what they may do here, so the front end can decide
// between the dashboard and the read-only page.
func (h *BusinessHandler) Get(c *gin.Context) {
	id := middleware.GetIdentity(c)
	access, err := h.resolver.Access(c.Request.Context(), c.Param("slug"), id)
	if err != nil {
		fail(c, h.logger, err, "failed to get business")
		return
	}

	// Owner-only routes need a session; the legacy phone never reaches them.
	b := access.Business
	ok(c, http.StatusOK, gin.H{
		"business": businessCard{ID: b.ID, Slug: b.Slug, Name: b.Name, Plan: b.Plan},
		"role":     access.Role,
		"permissions": gin.H{
			"manage_orders":   access.Role.CanManageOrders(),
			"manage_business": id.Authenticated() && access.Role.CanManageBusiness(),
		},
	})
}
