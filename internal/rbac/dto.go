package rbac

import (
	"fmt"

	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/core/common/validation"
)

type CreatePermissionDTO struct {
	API    string `json:"api"`
	Name   string `json:"name"`
	Module string `json:"module"`
	Route  string `json:"route"`
}

func (d CreatePermissionDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("api", d.API).Required()
	validator.Field("name", d.Name).Required()
	validator.Field("module", d.Module).Required()
	validator.Field("route", d.Route).Required()
	if err := validator.Validate(); err != nil {
		return err
	}
	if !IsValidAction(d.API) {
		return internal.NewValidationError(
			fmt.Sprintf("api must be one of view, write, edit, delete, export; got %q", d.API),
			internal.ErrCodeInvalidAction)
	}
	return nil
}

type EditPermissionDTO struct {
	Name string `json:"name"`
}

func (d EditPermissionDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("name", d.Name).Required()
	if err := validator.Validate(); err != nil {
		return err
	}
	return nil
}

type AssignRoleDTO struct {
	UserID   int64  `json:"user_id"`
	RoleName string `json:"role"`
}

func (d AssignRoleDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("user_id", d.UserID).Required()
	validator.Field("role", d.RoleName).Required()
	return errOrNil(validator.Validate())
}

type SetGrantDTO struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
	IsGranted    *bool  `json:"is_granted,omitempty"`
}

// Granted defaults the flag to true when the caller omits it.
func (d SetGrantDTO) Granted() bool {
	if d.IsGranted == nil {
		return true
	}
	return *d.IsGranted
}

func (d SetGrantDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("role_id", d.RoleID).Required()
	validator.Field("permission_id", d.PermissionID).Required()
	return errOrNil(validator.Validate())
}

type ReplaceGrantsDTO struct {
	PermissionIDs []string `json:"permissions"`
}

type CreateRoleDTO struct {
	RoleName string `json:"role_name"`
}

type RenameRoleDTO struct {
	RoleName string `json:"role_name"`
}

// errOrNil keeps a typed-nil *AppError from leaking into a non-nil error.
func errOrNil(err *internal.AppError) error {
	if err != nil {
		return err
	}
	return nil
}
