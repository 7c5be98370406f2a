package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	deliverycontext "athfed/internal/delivery/context"
	"athfed/internal/delivery/http/response"
	domainerrors "athfed/internal/domain/errors"
	"athfed/internal/usecase"
)

// PasswordHandler holds dependencies for the verification, reset and
// change handlers.
type PasswordHandler struct {
	uc usecase.PasswordUsecase
}

// NewPasswordHandler is the constructor for PasswordHandler, injected by Fx.
func NewPasswordHandler(uc usecase.PasswordUsecase) *PasswordHandler {
	return &PasswordHandler{uc: uc}
}

// RequestEmailVerification sends a verification code to the caller's address.
func (h *PasswordHandler) RequestEmailVerification(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	if err := h.uc.RequestEmailVerification(c.Request().Context(), claims.UserID); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusAccepted, nil, "Verification code sent")
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// VerifyEmail consumes a verification code.
func (h *PasswordHandler) VerifyEmail(c echo.Context) error {
	var input verifyEmailRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid verification input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.uc.VerifyEmail(c.Request().Context(), input.Email, input.Code); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

type resetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RequestPasswordReset issues a reset code. The response is identical
// whether or not the address is registered.
func (h *PasswordHandler) RequestPasswordReset(c echo.Context) error {
	var input resetRequestRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid reset request input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.uc.RequestPasswordReset(c.Request().Context(), input.Email); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusAccepted, nil, "If the address is registered, a reset code has been sent")
}

type resetValidateRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// ValidatePasswordReset exchanges a reset code for a reset-authorization token.
func (h *PasswordHandler) ValidatePasswordReset(c echo.Context) error {
	var input resetValidateRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid reset validation input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	token, err := h.uc.ValidatePasswordReset(c.Request().Context(), input.Email, input.Code)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"reset_token": token}, "Reset code validated")
}

type resetConfirmRequest struct {
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ConfirmPasswordReset applies the new password and revokes every session.
func (h *PasswordHandler) ConfirmPasswordReset(c echo.Context) error {
	var input resetConfirmRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid reset confirmation input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.uc.ConfirmPasswordReset(c.Request().Context(), input.ResetToken, input.NewPassword); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// ChangePassword sets a new password for the caller and revokes every
// other session. The caller's own refresh cookie, when present, keeps
// its session alive.
func (h *PasswordHandler) ChangePassword(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	var input changePasswordRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid password change input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	keepRefreshToken := ""
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil {
		keepRefreshToken = cookie.Value
	}

	err := h.uc.ChangePassword(c.Request().Context(), usecase.ChangePasswordInput{
		PublicID:         claims.UserID,
		CurrentPassword:  input.CurrentPassword,
		NewPassword:      input.NewPassword,
		KeepRefreshToken: keepRefreshToken,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
