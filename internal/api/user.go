package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

// UserHandler serves the signed-in user's own data.
type UserHandler struct {
	accounts *service.AccountService
	logger   *zap.Logger
}

func NewUserHandler(accounts *service.AccountService, logger *zap.Logger) *UserHandler {
	return &UserHandler{accounts: accounts, logger: logger}
}

// GetMe handles GET /v1/me
//
// Returns the user, their profile and every business they belong to with
// their role there. The front end uses the list to decide where to go
// after login.
func (h *UserHandler) GetMe(c *gin.Context) {
	me, err := h.accounts.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, h.logger, err, "failed to get user")
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user":       me.User,
		"profile":    me.Profile,
		"businesses": me.Businesses,
	})
}
