package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/ordero/internal/middleware"
	"github.com/lalith-99/ordero/internal/service"
	"go.uber.org/zap"
)

// Pinger reports whether the database answers. db.DB implements it.
type Pinger interface {
	Health(ctx context.Context) error
}

// Deps is everything the routes need. main builds it from Postgres and
// Redis; tests build it from the in-memory stores.
type Deps struct {
	Auth     *middleware.Authenticator
	Accounts *service.AccountService
	Invites  *service.InviteService
	Orders   *service.OrderService
	Managers *service.ManagerService
	Resolver *service.RoleResolver
	Stream   OrderStream
	DB       Pinger
	Cookie   CookieConfig
	Logger   *zap.Logger
}

// RegisterRoutes mounts the API on r, which main passes as the /v1 group.
//
// Three kinds of routes:
//   - public: health, register, login, magic link
//   - session: a valid cookie or bearer token is required
//   - business: the session is optional; without one the legacy ?u=<phone>
//     identity may apply, and the role resolver decides what is allowed
func RegisterRoutes(r gin.IRouter, d Deps) {
	authH := NewAuthHandler(d.Accounts, d.Cookie, d.Logger)
	userH := NewUserHandler(d.Accounts, d.Logger)
	inviteH := NewInviteHandler(d.Invites, d.Logger)
	businessH := NewBusinessHandler(d.Resolver, d.Logger)
	memberH := NewMembershipHandler(d.Managers, d.Logger)
	orderH := NewOrderHandler(d.Orders, d.Resolver, d.Stream, d.Logger)

	r.GET("/health", health(d.DB))

	authGroup := r.Group("/auth")
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/magic", authH.Magic)
	authGroup.POST("/logout", d.Auth.RequireSession(), authH.Logout)

	session := r.Group("")
	session.Use(d.Auth.RequireSession())
	session.GET("/me", userH.GetMe)
	session.GET("/invites/:id", inviteH.Get)
	session.POST("/invites/:id/accept", inviteH.Accept)

	owner := r.Group("/businesses/:slug")
	owner.Use(d.Auth.RequireSession())
	owner.GET("/invites", inviteH.List)
	owner.POST("/invites", inviteH.Create)
	owner.POST("/invites/:id/revoke", inviteH.Revoke)
	owner.GET("/manager", memberH.ManagerStatus)
	owner.POST("/manager/invite", inviteH.Create)
	owner.DELETE("/manager", memberH.RemoveManager)

	business := r.Group("/businesses/:slug")
	business.Use(d.Auth.OptionalSession())
	business.GET("", businessH.Get)
	business.GET("/people", memberH.People)
	business.GET("/orders", orderH.List)
	business.POST("/orders", orderH.Create)
	business.GET("/orders/ws", orderH.Stream)
	business.GET("/orders/:id", orderH.Get)
	business.PATCH("/orders/:id", orderH.Update)
	business.PUT("/orders/:id/status", orderH.SetStatus)
	business.PUT("/orders/:id/paid", orderH.SetPaid)
}

// health is public so load balancers can call it.
func health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
				return
			}
		}
		ok(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
