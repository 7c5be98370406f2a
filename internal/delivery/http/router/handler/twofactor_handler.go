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

// TwoFactorHandler holds dependencies for the TOTP enrollment handlers.
type TwoFactorHandler struct {
	uc usecase.TwoFactorUsecase
}

// NewTwoFactorHandler is the constructor for TwoFactorHandler, injected by Fx.
func NewTwoFactorHandler(uc usecase.TwoFactorUsecase) *TwoFactorHandler {
	return &TwoFactorHandler{uc: uc}
}

// Enable provisions a candidate secret and QR code for the caller.
func (h *TwoFactorHandler) Enable(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	provision, err := h.uc.Enable(c.Request().Context(), claims.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, provision, "Scan the QR code and confirm with a code")
}

type confirmTwoFactorRequest struct {
	Code string `json:"code" validate:"required"`
}

// Confirm activates 2FA and returns the backup codes exactly once.
func (h *TwoFactorHandler) Confirm(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	var input confirmTwoFactorRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid confirmation input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	output, err := h.uc.Confirm(c.Request().Context(), claims.UserID, input.Code)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, output, "Two-factor authentication enabled, store the backup codes now")
}

type disableTwoFactorRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// Disable deactivates 2FA after re-verifying password and code.
func (h *TwoFactorHandler) Disable(c echo.Context) error {
	claims := deliverycontext.GetClaims(c)
	if claims == nil {
		return domainerrors.ErrUnauthorized
	}

	var input disableTwoFactorRequest
	if err := c.Bind(&input); err != nil {
		return response.BindingError(c, "VALIDATION", "Invalid disable input")
	}
	if err := c.Validate(&input); err != nil {
		return errors.WithStack(err)
	}

	if err := h.uc.Disable(c.Request().Context(), claims.UserID, input.Password, input.Code); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
