package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tradecore/access-management/internal"
)

// AdminRepository is the storage surface for role and permission
// administration. ReplaceGrants must run delete and insert in one
// transaction so a concurrent rebuild never observes an empty grant set.
type AdminRepository interface {
	GetRoleByID(ctx context.Context, roleID string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, role *Role) error
	SaveRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, roleID string) error
	ListRoles(ctx context.Context) ([]Role, error)
	CountUsersWithRole(ctx context.Context, roleID string) (int64, error)

	GetPermissionByID(ctx context.Context, permissionID string) (*Permission, error)
	GetPermissionByTuple(ctx context.Context, api, module, route string) (*Permission, error)
	CreatePermission(ctx context.Context, permission *Permission) error
	SavePermission(ctx context.Context, permission *Permission) error
	DeletePermission(ctx context.Context, permissionID string) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	CountPermissionsByIDs(ctx context.Context, ids []string) (int64, error)

	GetGrant(ctx context.Context, roleID, permissionID string) (*Grant, error)
	CreateGrant(ctx context.Context, grant *Grant) error
	SaveGrant(ctx context.Context, grant *Grant) error
	DeleteGrant(ctx context.Context, roleID, permissionID string) error
	ReplaceGrants(ctx context.Context, roleID string, grants []Grant) error
	ListGrantsForRole(ctx context.Context, roleID string) ([]Grant, error)
	CountGrantsForRole(ctx context.Context, roleID string) (int64, error)
}

// RolePermissionView pairs a grant row with its flattened permission for the
// admin list endpoints.
type RolePermissionView struct {
	GrantID      string             `json:"id"`
	RoleID       string             `json:"role_id"`
	PermissionID string             `json:"permission_id"`
	IsGranted    bool               `json:"is_granted"`
	Permission   PermissionSnapshot `json:"permission"`
}

// AdminService owns the Role, Permission and RoleGrant tables.
type AdminService struct {
	repo   AdminRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewAdminService(repo AdminRepository, logger *slog.Logger) *AdminService {
	return &AdminService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *AdminService) CreatePermission(ctx context.Context, dto CreatePermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetPermissionByTuple(ctx, dto.API, dto.Module, dto.Route)
	if err != nil {
		s.logger.Error("create permission: duplicate check failed", "error", err)
		return nil, internal.NewInternalError("Error creating permission", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError(
			fmt.Sprintf("Permission already exists for %s %s on %s", dto.API, dto.Route, dto.Module),
			internal.ErrCodeDuplicatePermission)
	}

	permission := &Permission{
		ID:        uuid.NewString(),
		API:       dto.API,
		Name:      dto.Name,
		Module:    dto.Module,
		Route:     dto.Route,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.repo.CreatePermission(ctx, permission); err != nil {
		s.logger.Error("create permission: insert failed", "error", err)
		return nil, internal.NewInternalError("Error creating permission", err)
	}
	return permission, nil
}

// EditPermission updates descriptive fields only; the (api, module, route)
// identity is immutable.
func (s *AdminService) EditPermission(ctx context.Context, permissionID string, dto EditPermissionDTO) (*Permission, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	permission, err := s.repo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		s.logger.Error("edit permission: lookup failed", "permission_id", permissionID, "error", err)
		return nil, internal.NewInternalError("Error updating permission", err)
	}
	if permission == nil {
		return nil, internal.ErrPermissionNotFound
	}

	permission.Name = dto.Name
	permission.UpdatedAt = s.now()
	if err := s.repo.SavePermission(ctx, permission); err != nil {
		s.logger.Error("edit permission: save failed", "permission_id", permissionID, "error", err)
		return nil, internal.NewInternalError("Error updating permission", err)
	}
	return permission, nil
}

// DeletePermission removes the permission row only. Grant rows referencing it
// are left behind; the snapshot rebuild joins through the permission table so
// orphaned grants simply stop matching.
func (s *AdminService) DeletePermission(ctx context.Context, permissionID string) error {
	permission, err := s.repo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		s.logger.Error("delete permission: lookup failed", "permission_id", permissionID, "error", err)
		return internal.NewInternalError("Error deleting permission", err)
	}
	if permission == nil {
		return internal.ErrPermissionNotFound
	}

	if err := s.repo.DeletePermission(ctx, permissionID); err != nil {
		s.logger.Error("delete permission: delete failed", "permission_id", permissionID, "error", err)
		return internal.NewInternalError("Error deleting permission", err)
	}
	return nil
}

func (s *AdminService) ListPermissions(ctx context.Context) ([]Permission, error) {
	permissions, err := s.repo.ListPermissions(ctx)
	if err != nil {
		s.logger.Error("list permissions failed", "error", err)
		return nil, internal.NewInternalError("Error retrieving permissions", err)
	}
	return permissions, nil
}

// SetRoleGrant upserts the (role, permission) link with the given flag. The
// returned message reflects whether the permission is now granted or revoked.
func (s *AdminService) SetRoleGrant(ctx context.Context, roleID, permissionID string, isGranted bool) (*Grant, string, error) {
	if roleID == "" || permissionID == "" {
		return nil, "", internal.NewValidationError("roleId and permissionId are required", internal.ErrCodeMissingField)
	}

	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		s.logger.Error("set grant: role lookup failed", "role_id", roleID, "error", err)
		return nil, "", internal.NewInternalError("Error assigning permission to role", err)
	}
	if role == nil {
		return nil, "", internal.ErrRoleNotFound
	}

	permission, err := s.repo.GetPermissionByID(ctx, permissionID)
	if err != nil {
		s.logger.Error("set grant: permission lookup failed", "permission_id", permissionID, "error", err)
		return nil, "", internal.NewInternalError("Error assigning permission to role", err)
	}
	if permission == nil {
		return nil, "", internal.ErrPermissionNotFound
	}

	message := "Permission granted to role"
	if !isGranted {
		message = "Permission revoked from role"
	}

	grant, err := s.repo.GetGrant(ctx, roleID, permissionID)
	if err != nil {
		s.logger.Error("set grant: grant lookup failed", "error", err)
		return nil, "", internal.NewInternalError("Error assigning permission to role", err)
	}
	if grant == nil {
		grant = &Grant{
			ID:           uuid.NewString(),
			RoleID:       roleID,
			PermissionID: permissionID,
			IsGranted:    isGranted,
			CreatedAt:    s.now(),
			UpdatedAt:    s.now(),
		}
		if err := s.repo.CreateGrant(ctx, grant); err != nil {
			s.logger.Error("set grant: insert failed", "error", err)
			return nil, "", internal.NewInternalError("Error assigning permission to role", err)
		}
		return grant, message, nil
	}

	grant.IsGranted = isGranted
	grant.UpdatedAt = s.now()
	if err := s.repo.SaveGrant(ctx, grant); err != nil {
		s.logger.Error("set grant: update failed", "error", err)
		return nil, "", internal.NewInternalError("Error assigning permission to role", err)
	}
	return grant, message, nil
}

func (s *AdminService) ClearRoleGrant(ctx context.Context, roleID, permissionID string) error {
	if roleID == "" || permissionID == "" {
		return internal.NewValidationError("roleId and permissionId are required", internal.ErrCodeMissingField)
	}

	grant, err := s.repo.GetGrant(ctx, roleID, permissionID)
	if err != nil {
		s.logger.Error("clear grant: lookup failed", "error", err)
		return internal.NewInternalError("Error removing permission from role", err)
	}
	if grant == nil {
		return internal.ErrGrantNotFound
	}

	if err := s.repo.DeleteGrant(ctx, roleID, permissionID); err != nil {
		s.logger.Error("clear grant: delete failed", "error", err)
		return internal.NewInternalError("Error removing permission from role", err)
	}
	return nil
}

// ReplaceRoleGrants sets the role's grant set to exactly permissionIDs. The
// admin UI submits the complete desired set each time, so this is a full
// replace, not a diff.
func (s *AdminService) ReplaceRoleGrants(ctx context.Context, roleID string, permissionIDs []string) ([]Grant, error) {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		s.logger.Error("replace grants: role lookup failed", "role_id", roleID, "error", err)
		return nil, internal.NewInternalError("Error updating role permissions", err)
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}

	if len(permissionIDs) > 0 {
		count, err := s.repo.CountPermissionsByIDs(ctx, permissionIDs)
		if err != nil {
			s.logger.Error("replace grants: permission count failed", "error", err)
			return nil, internal.NewInternalError("Error updating role permissions", err)
		}
		if count != int64(len(permissionIDs)) {
			return nil, internal.NewValidationError(
				fmt.Sprintf("%d of %d permission ids do not exist", int64(len(permissionIDs))-count, len(permissionIDs)),
				internal.ErrCodeUnknownGrantIDs)
		}
	}

	grants := make([]Grant, 0, len(permissionIDs))
	for _, permissionID := range permissionIDs {
		grants = append(grants, Grant{
			ID:           uuid.NewString(),
			RoleID:       roleID,
			PermissionID: permissionID,
			IsGranted:    true,
			CreatedAt:    s.now(),
			UpdatedAt:    s.now(),
		})
	}

	if err := s.repo.ReplaceGrants(ctx, roleID, grants); err != nil {
		s.logger.Error("replace grants: replace failed", "role_id", roleID, "error", err)
		return nil, internal.NewInternalError("Error updating role permissions", err)
	}
	return grants, nil
}

func (s *AdminService) ListRolePermissions(ctx context.Context, roleID string) ([]RolePermissionView, error) {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		s.logger.Error("list role permissions: role lookup failed", "role_id", roleID, "error", err)
		return nil, internal.NewInternalError("Error retrieving role permissions", err)
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}

	grants, err := s.repo.ListGrantsForRole(ctx, roleID)
	if err != nil {
		s.logger.Error("list role permissions: grant query failed", "role_id", roleID, "error", err)
		return nil, internal.NewInternalError("Error retrieving role permissions", err)
	}

	views := make([]RolePermissionView, 0, len(grants))
	for _, grant := range grants {
		permission, err := s.repo.GetPermissionByID(ctx, grant.PermissionID)
		if err != nil {
			s.logger.Error("list role permissions: permission lookup failed", "permission_id", grant.PermissionID, "error", err)
			return nil, internal.NewInternalError("Error retrieving role permissions", err)
		}
		view := RolePermissionView{
			GrantID:      grant.ID,
			RoleID:       grant.RoleID,
			PermissionID: grant.PermissionID,
			IsGranted:    grant.IsGranted,
		}
		// Orphaned grants (permission deleted after granting) keep their row
		// but carry an empty permission view.
		if permission != nil {
			view.Permission = SnapshotFromPermission(permission)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *AdminService) CreateRole(ctx context.Context, name string) (*Role, error) {
	if name == "" {
		return nil, internal.NewValidationError("role_name is required", internal.ErrCodeMissingField)
	}

	existing, err := s.repo.GetRoleByName(ctx, name)
	if err != nil {
		s.logger.Error("create role: duplicate check failed", "role", name, "error", err)
		return nil, internal.NewInternalError("Error creating role", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError(fmt.Sprintf("Role %s already exists", name), internal.ErrCodeDuplicateRole)
	}

	role := &Role{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		s.logger.Error("create role: insert failed", "role", name, "error", err)
		return nil, internal.NewInternalError("Error creating role", err)
	}
	return role, nil
}

func (s *AdminService) RenameRole(ctx context.Context, roleID, newName string) (*Role, error) {
	if newName == "" {
		return nil, internal.NewValidationError("role_name is required", internal.ErrCodeMissingField)
	}

	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		s.logger.Error("rename role: lookup failed", "role_id", roleID, "error", err)
		return nil, internal.NewInternalError("Error renaming role", err)
	}
	if role == nil {
		return nil, internal.ErrRoleNotFound
	}

	existing, err := s.repo.GetRoleByName(ctx, newName)
	if err != nil {
		s.logger.Error("rename role: duplicate check failed", "role", newName, "error", err)
		return nil, internal.NewInternalError("Error renaming role", err)
	}
	if existing != nil && existing.ID != roleID {
		return nil, internal.NewConflictError(fmt.Sprintf("Role %s already exists", newName), internal.ErrCodeDuplicateRole)
	}

	role.Name = newName
	role.UpdatedAt = s.now()
	if err := s.repo.SaveRole(ctx, role); err != nil {
		s.logger.Error("rename role: save failed", "role_id", roleID, "error", err)
		return nil, internal.NewInternalError("Error renaming role", err)
	}
	return role, nil
}

// DeleteRole refuses while any user references the role or grant links
// remain; callers must detach users and clear grants first.
func (s *AdminService) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.repo.GetRoleByID(ctx, roleID)
	if err != nil {
		s.logger.Error("delete role: lookup failed", "role_id", roleID, "error", err)
		return internal.NewInternalError("Error deleting role", err)
	}
	if role == nil {
		return internal.ErrRoleNotFound
	}

	users, err := s.repo.CountUsersWithRole(ctx, roleID)
	if err != nil {
		s.logger.Error("delete role: user count failed", "role_id", roleID, "error", err)
		return internal.NewInternalError("Error deleting role", err)
	}
	if users > 0 {
		return internal.NewConflictError("Role is still assigned to users", internal.ErrCodeRoleInUse)
	}

	grants, err := s.repo.CountGrantsForRole(ctx, roleID)
	if err != nil {
		s.logger.Error("delete role: grant count failed", "role_id", roleID, "error", err)
		return internal.NewInternalError("Error deleting role", err)
	}
	if grants > 0 {
		return internal.NewConflictError("Role still has permission grants", internal.ErrCodeRoleInUse)
	}

	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		s.logger.Error("delete role: delete failed", "role_id", roleID, "error", err)
		return internal.NewInternalError("Error deleting role", err)
	}
	return nil
}

func (s *AdminService) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		s.logger.Error("list roles failed", "error", err)
		return nil, internal.NewInternalError("Error retrieving roles", err)
	}
	return roles, nil
}
