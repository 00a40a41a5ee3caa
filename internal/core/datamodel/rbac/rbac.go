package rbac

import "time"

type Role struct {
	ID        string    `gorm:"column:role_id;primaryKey"`
	RoleName  string    `gorm:"column:role_name;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Role) TableName() string {
	return "roles"
}

// Permission identity is the (api, module, route) tuple; name is descriptive
// and editable.
type Permission struct {
	ID        string    `gorm:"column:permission_id;primaryKey"`
	API       string    `gorm:"column:api;not null;uniqueIndex:idx_permissions_api_module_route"`
	Name      string    `gorm:"column:name;not null"`
	Module    string    `gorm:"column:module;not null;uniqueIndex:idx_permissions_api_module_route"`
	Route     string    `gorm:"column:route;not null;uniqueIndex:idx_permissions_api_module_route"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Permission) TableName() string {
	return "permissions"
}

type RoleGrant struct {
	ID           string    `gorm:"column:id;primaryKey"`
	RoleID       string    `gorm:"column:role_id;not null;uniqueIndex:idx_role_grants_role_permission"`
	PermissionID string    `gorm:"column:permission_id;not null;uniqueIndex:idx_role_grants_role_permission"`
	IsGranted    bool      `gorm:"column:is_granted;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}
