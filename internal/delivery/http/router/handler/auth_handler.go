// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"athfed/config"
	deliverycontext "athfed/internal/delivery/context"
	"athfed/internal/delivery/http/response"
	"athfed/internal/domain/entity"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/usecase"
)

// AuthHandler holds dependencies for the credential and session handlers.
type AuthHandler struct {
	uc     usecase.AuthUsecase
	cfg    *config.Config
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AuthUsecase, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:     uc,
		cfg:    cfg,
		logger: logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// Register handles the account registration request.
func (h *AuthHandler) Register(c echo.Context) error {
	var input registerRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid registration input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.uc.Register(c.Request().Context(), usecase.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Role:     entity.Role(input.Role),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, user, "Account registered")
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles the password step of a login. Accounts with 2FA enabled
// receive a pending token instead of a pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var input loginRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid login input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.Login(c.Request().Context(), usecase.LoginInput{
		Email:     input.Email,
		Password:  input.Password,
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if output.TwoFactorRequired {
		return response.Success(c, http.StatusOK, output, "Two-factor code required")
	}

	setTokenCookies(c, h.cfg, output.Tokens)

	return response.Success(c, http.StatusOK, output, "Login successful")
}

type verifyTwoFactorRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required"`
}

// VerifyTwoFactor completes a two-step login with a TOTP or backup code.
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var input verifyTwoFactorRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid verification input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.VerifyTwoFactor(c.Request().Context(), usecase.VerifyTwoFactorInput{
		PendingToken: input.PendingToken,
		Code:         input.Code,
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	setTokenCookies(c, h.cfg, output.Tokens)

	return response.Success(c, http.StatusOK, output, "Login successful")
}

// Refresh rotates a refresh token taken from the cookie or the body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshToken, err := h.refreshTokenFrom(c)
	if err != nil {
		return err
	}

	output, err := h.uc.Refresh(c.Request().Context(), usecase.RefreshInput{
		RefreshToken: refreshToken,
		UserAgent:    c.Request().UserAgent(),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	setTokenCookies(c, h.cfg, output.Tokens)

	return response.Success(c, http.StatusOK, output, "Token refreshed")
}

// Logout revokes the session behind the refresh token and clears the
// token cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	refreshToken, err := h.refreshTokenFrom(c)
	if err != nil {
		return err
	}

	if err := h.uc.Logout(c.Request().Context(), refreshToken); err != nil {
		return errors.WithStack(err)
	}

	clearTokenCookies(c, h.cfg)

	return c.NoContent(http.StatusNoContent)
}

// LogoutAll revokes every session of the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	count, err := h.uc.LogoutAll(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	clearTokenCookies(c, h.cfg)
	c.Response().Header().Set("X-Revoked-Count", strconv.FormatInt(count, 10))

	return c.NoContent(http.StatusNoContent)
}

// ListSessions lists the caller's active sessions, flagging the current one.
func (h *AuthHandler) ListSessions(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	sessions, err := h.uc.ListSessions(c.Request().Context(), claims.UserID, claims.JTI)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, sessions, "Active sessions")
}

// ListUserSessions lists another user's active sessions. Admin only.
func (h *AuthHandler) ListUserSessions(c echo.Context) error {
	publicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return domainerrors.ErrValidation.WithDetails("invalid user id")
	}

	sessions, err := h.uc.ListSessionsForUser(c.Request().Context(), publicID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, sessions, "Active sessions")
}

// Me returns the authenticated user's identity summary.
func (h *AuthHandler) Me(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	user, err := h.uc.Me(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, user, "Profile retrieved")
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshTokenFrom accepts the refresh token from the cookie or the
// body. The cookie wins when both are present and disagree.
func (h *AuthHandler) refreshTokenFrom(c echo.Context) (string, error) {
	var body refreshRequest
	_ = c.Bind(&body)

	cookie, err := c.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		if body.RefreshToken == "" {
			return "", domainerrors.ErrRefreshInvalid
		}

		return body.RefreshToken, nil
	}

	if body.RefreshToken != "" && body.RefreshToken != cookie.Value {
		h.logger.Warn("Refresh token in body differs from cookie, preferring cookie",
			slog.String("request_id", deliverycontext.GetRequestID(c)),
		)
	}

	return cookie.Value, nil
}
