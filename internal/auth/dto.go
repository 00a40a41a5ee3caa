package auth

import (
	"github.com/tradecore/access-management/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d LoginDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("email", d.Email).Required()
	validator.Field("password", d.Password).Required()
	if err := validator.Validate(); err != nil {
		return err
	}
	return nil
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token"`
}

func (d RefreshTokenDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("refresh_token", d.RefreshToken).Required()
	if err := validator.Validate(); err != nil {
		return err
	}
	return nil
}
