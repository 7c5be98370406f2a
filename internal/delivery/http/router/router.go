// Package router contains routing setup for the HTTP delivery.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"athfed/internal/delivery/http/middleware"
	"athfed/internal/delivery/http/router/handler"
	"athfed/internal/domain/entity"
)

// RouterParams holds the handlers and middleware, injected by Fx.
type RouterParams struct {
	fx.In

	AuthHandler      *handler.AuthHandler
	TwoFactorHandler *handler.TwoFactorHandler
	PasswordHandler  *handler.PasswordHandler
	AuthMiddleware   *middleware.AuthMiddleware
	RateLimit        *middleware.RateLimitMiddleware
}

type router struct {
	authHandler      *handler.AuthHandler
	twoFactorHandler *handler.TwoFactorHandler
	passwordHandler  *handler.PasswordHandler
	authMiddleware   *middleware.AuthMiddleware
	rateLimit        *middleware.RateLimitMiddleware
}

// NewRouter is the constructor for the Router.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:      params.AuthHandler,
		twoFactorHandler: params.TwoFactorHandler,
		passwordHandler:  params.PasswordHandler,
		authMiddleware:   params.AuthMiddleware,
		rateLimit:        params.RateLimit,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.HealthCheck)

	auth := e.Group("/api/v1/auth")

	// Unauthenticated surface, budgeted by client address.
	auth.POST("/register", r.authHandler.Register,
		r.rateLimit.LimitByIP("register", middleware.RegisterBudget))
	auth.POST("/login", r.authHandler.Login,
		r.rateLimit.LimitByIP("login", middleware.LoginBudget))
	auth.POST("/2fa/verify", r.authHandler.VerifyTwoFactor,
		r.rateLimit.LimitByIP("2fa-verify", middleware.TwoFactorBudget))
	auth.POST("/refresh", r.authHandler.Refresh,
		r.rateLimit.LimitByIP("refresh", middleware.DefaultBudget))
	auth.POST("/logout", r.authHandler.Logout,
		r.rateLimit.LimitByIP("logout", middleware.DefaultBudget))
	auth.POST("/email/verify", r.passwordHandler.VerifyEmail,
		r.rateLimit.LimitByIP("email-verify", middleware.DefaultBudget))
	auth.POST("/password-reset/request", r.passwordHandler.RequestPasswordReset,
		r.rateLimit.LimitByIP("reset-request", middleware.ResetRequestBudget))
	auth.POST("/password-reset/validate", r.passwordHandler.ValidatePasswordReset,
		r.rateLimit.LimitByIP("reset-validate", middleware.ResetValidateBudget))
	auth.POST("/password-reset/confirm", r.passwordHandler.ConfirmPasswordReset,
		r.rateLimit.LimitByIP("reset-confirm", middleware.DefaultBudget))

	// Authenticated surface, budgeted by identity.
	protected := auth.Group("", r.authMiddleware.Authenticate,
		r.rateLimit.LimitByUser("authenticated", middleware.DefaultBudget))
	protected.POST("/logout-all", r.authHandler.LogoutAll)
	protected.GET("/sessions", r.authHandler.ListSessions)
	protected.GET("/me", r.authHandler.Me)
	protected.POST("/2fa/enable", r.twoFactorHandler.Enable)
	protected.POST("/2fa/confirm", r.twoFactorHandler.Confirm)
	protected.POST("/2fa/disable", r.twoFactorHandler.Disable)
	protected.POST("/email/request-verification", r.passwordHandler.RequestEmailVerification)
	protected.POST("/password-change", r.passwordHandler.ChangePassword)

	// Admin surface.
	admin := auth.Group("/users", r.authMiddleware.Authenticate,
		r.authMiddleware.RequireRole(entity.RoleAdmin),
		r.rateLimit.LimitByUser("admin", middleware.DefaultBudget))
	admin.GET("/:id/sessions", r.authHandler.ListUserSessions)
}
