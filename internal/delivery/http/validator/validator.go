// Package validator adapts go-playground/validator to Echo's Validator.
package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	domainerrors "athfed/internal/domain/errors"
)

type requestValidator struct {
	validate *validator.Validate
}

// New creates the request validator installed on the Echo server.
func New() echo.Validator {
	return &requestValidator{validate: validator.New()}
}

// Validate checks struct tags and surfaces failures as a VALIDATION error.
func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return domainerrors.ErrValidation.WithDetails(err.Error())
	}

	return nil
}
