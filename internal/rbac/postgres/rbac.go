package postgres

import (
	"context"
	"time"

	rbacDatamodel "github.com/tradecore/access-management/internal/core/datamodel/rbac"
	userDatamodel "github.com/tradecore/access-management/internal/core/datamodel/user"
	"github.com/tradecore/access-management/internal/rbac"
	"gorm.io/gorm"
)

// Repository backs the assignment service, the admin service and the
// snapshot rebuild with one gorm handle.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ---------- roles ----------

func (r *Repository) GetRoleByID(ctx context.Context, roleID string) (*rbac.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.WithContext(ctx).Where("role_id = ?", roleID).First(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.RoleFromDataModel(&role), nil
}

func (r *Repository) GetRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	var role rbacDatamodel.Role
	err := r.db.WithContext(ctx).Where("role_name = ?", name).First(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.RoleFromDataModel(&role), nil
}

func (r *Repository) CreateRole(ctx context.Context, role *rbac.Role) error {
	return r.db.WithContext(ctx).Create(rbac.RoleToDataModel(role)).Error
}

func (r *Repository) SaveRole(ctx context.Context, role *rbac.Role) error {
	return r.db.WithContext(ctx).Save(rbac.RoleToDataModel(role)).Error
}

func (r *Repository) DeleteRole(ctx context.Context, roleID string) error {
	return r.db.WithContext(ctx).Where("role_id = ?", roleID).Delete(&rbacDatamodel.Role{}).Error
}

func (r *Repository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var rows []rbacDatamodel.Role
	if err := r.db.WithContext(ctx).Order("role_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]rbac.Role, 0, len(rows))
	for i := range rows {
		roles = append(roles, *rbac.RoleFromDataModel(&rows[i]))
	}
	return roles, nil
}

func (r *Repository) CountUsersWithRole(ctx context.Context, roleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}

// ---------- permissions ----------

func (r *Repository) GetPermissionByID(ctx context.Context, permissionID string) (*rbac.Permission, error) {
	var permission rbacDatamodel.Permission
	err := r.db.WithContext(ctx).Where("permission_id = ?", permissionID).First(&permission).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.PermissionFromDataModel(&permission), nil
}

func (r *Repository) GetPermissionByTuple(ctx context.Context, api, module, route string) (*rbac.Permission, error) {
	var permission rbacDatamodel.Permission
	err := r.db.WithContext(ctx).
		Where("api = ? AND module = ? AND route = ?", api, module, route).
		First(&permission).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.PermissionFromDataModel(&permission), nil
}

func (r *Repository) CreatePermission(ctx context.Context, permission *rbac.Permission) error {
	return r.db.WithContext(ctx).Create(rbac.PermissionToDataModel(permission)).Error
}

func (r *Repository) SavePermission(ctx context.Context, permission *rbac.Permission) error {
	return r.db.WithContext(ctx).Save(rbac.PermissionToDataModel(permission)).Error
}

func (r *Repository) DeletePermission(ctx context.Context, permissionID string) error {
	return r.db.WithContext(ctx).Where("permission_id = ?", permissionID).Delete(&rbacDatamodel.Permission{}).Error
}

func (r *Repository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var rows []rbacDatamodel.Permission
	if err := r.db.WithContext(ctx).Order("module ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	permissions := make([]rbac.Permission, 0, len(rows))
	for i := range rows {
		permissions = append(permissions, *rbac.PermissionFromDataModel(&rows[i]))
	}
	return permissions, nil
}

func (r *Repository) CountPermissionsByIDs(ctx context.Context, ids []string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&rbacDatamodel.Permission{}).Where("permission_id IN ?", ids).Count(&count).Error
	return count, err
}

// ---------- grants ----------

func (r *Repository) GetGrant(ctx context.Context, roleID, permissionID string) (*rbac.Grant, error) {
	var grant rbacDatamodel.RoleGrant
	err := r.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		First(&grant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.GrantFromDataModel(&grant), nil
}

func (r *Repository) CreateGrant(ctx context.Context, grant *rbac.Grant) error {
	return r.db.WithContext(ctx).Create(rbac.GrantToDataModel(grant)).Error
}

func (r *Repository) SaveGrant(ctx context.Context, grant *rbac.Grant) error {
	return r.db.WithContext(ctx).Save(rbac.GrantToDataModel(grant)).Error
}

func (r *Repository) DeleteGrant(ctx context.Context, roleID, permissionID string) error {
	return r.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&rbacDatamodel.RoleGrant{}).Error
}

// ReplaceGrants swaps the role's grant set in one transaction so concurrent
// snapshot rebuilds never see the role with zero grants.
func (r *Repository) ReplaceGrants(ctx context.Context, roleID string, grants []rbac.Grant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&rbacDatamodel.RoleGrant{}).Error; err != nil {
			return err
		}
		if len(grants) == 0 {
			return nil
		}
		rows := make([]rbacDatamodel.RoleGrant, 0, len(grants))
		for i := range grants {
			rows = append(rows, *rbac.GrantToDataModel(&grants[i]))
		}
		return tx.Create(&rows).Error
	})
}

func (r *Repository) ListGrantsForRole(ctx context.Context, roleID string) ([]rbac.Grant, error) {
	var rows []rbacDatamodel.RoleGrant
	if err := r.db.WithContext(ctx).Where("role_id = ?", roleID).Find(&rows).Error; err != nil {
		return nil, err
	}
	grants := make([]rbac.Grant, 0, len(rows))
	for i := range rows {
		grants = append(grants, *rbac.GrantFromDataModel(&rows[i]))
	}
	return grants, nil
}

func (r *Repository) CountGrantsForRole(ctx context.Context, roleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&rbacDatamodel.RoleGrant{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}

// ---------- user directory ----------

func (r *Repository) GetUserByID(ctx context.Context, userID int64) (*rbac.DirectoryUser, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.UserFromDataModel(&user), nil
}

// SaveUserRole persists only the fields the assignment service owns.
func (r *Repository) SaveUserRole(ctx context.Context, user *rbac.DirectoryUser) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"role_id":    user.RoleID,
			"roles":      user.Roles,
			"status":     user.Status,
			"updated_at": user.UpdatedAt,
		}).Error
}

// FindUserHoldingRole matches the denormalized role list by substring, the
// same way the uniqueness scan always worked.
func (r *Repository) FindUserHoldingRole(ctx context.Context, roleName string, excludeUserID int64) (*rbac.DirectoryUser, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("roles LIKE ? AND id <> ?", "%"+roleName+"%", excludeUserID).
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return rbac.UserFromDataModel(&user), nil
}

func (r *Repository) UsersPendingAssignment(ctx context.Context, now time.Time) ([]rbac.DirectoryUser, error) {
	recentCutoff := now.Add(-14 * 24 * time.Hour)
	var rows []userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("(role_id IS NULL AND status <> ?) OR (created_at > ? AND status = ?)",
			userDatamodel.StatusRestricted, recentCutoff, userDatamodel.StatusInactive).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]rbac.DirectoryUser, 0, len(rows))
	for i := range rows {
		users = append(users, *rbac.UserFromDataModel(&rows[i]))
	}
	return users, nil
}

func (r *Repository) DemoteStaleUnassigned(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&userDatamodel.User{}).
		Where("role_id IS NULL AND created_at < ? AND status <> ?", cutoff, userDatamodel.StatusInactive).
		Update("status", userDatamodel.StatusInactive)
	return result.RowsAffected, result.Error
}

// ---------- snapshot read model ----------

// GetUserWithRoleAndPermissions loads everything a cache rebuild needs in
// one pass: the user, its role and the role's granted permissions flattened.
func (r *Repository) GetUserWithRoleAndPermissions(ctx context.Context, userID int64) (*rbac.UserAccess, error) {
	var user userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	access := &rbac.UserAccess{
		User:        *rbac.UserFromDataModel(&user),
		Permissions: []rbac.PermissionSnapshot{},
	}
	if user.RoleID == nil {
		return access, nil
	}

	var role rbacDatamodel.Role
	err = r.db.WithContext(ctx).Where("role_id = ?", *user.RoleID).First(&role).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Dangling role reference; serve the user with no grants.
			return access, nil
		}
		return nil, err
	}
	access.Role = rbac.RoleFromDataModel(&role)

	var permissions []rbacDatamodel.Permission
	err = r.db.WithContext(ctx).
		Joins("JOIN role_grants ON role_grants.permission_id = permissions.permission_id").
		Where("role_grants.role_id = ? AND role_grants.is_granted = ?", role.ID, true).
		Find(&permissions).Error
	if err != nil {
		return nil, err
	}
	for i := range permissions {
		access.Permissions = append(access.Permissions, rbac.SnapshotFromPermission(rbac.PermissionFromDataModel(&permissions[i])))
	}
	return access, nil
}
