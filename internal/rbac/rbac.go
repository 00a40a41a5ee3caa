package rbac

import (
	"strings"
	"time"

	rbacDatamodel "github.com/tradecore/access-management/internal/core/datamodel/rbac"
	userDatamodel "github.com/tradecore/access-management/internal/core/datamodel/user"
)

const (
	// SuperAdminRole bypasses every guard tuple check. Compared
	// case-insensitively wherever it is matched.
	SuperAdminRole = "SuperAdmin"

	// DefaultRole is the unprivileged role new users start with. Assigning it
	// clears the role foreign key and deactivates the user.
	DefaultRole = "Users"

	// FreshnessWindow bounds how long a cached permission snapshot is served
	// before it is rebuilt from the relational store.
	FreshnessWindow = 24 * time.Hour

	// staleUnassignedAfter is the grace period before the sweep demotes users
	// that never received a role.
	staleUnassignedAfter = 7 * 24 * time.Hour

	// pendingWindow is how long a new inactive user shows up in the
	// onboarding pending list.
	pendingWindow = 14 * 24 * time.Hour
)

// User activation states, mirrored from the directory data model.
const (
	StatusActive     = userDatamodel.StatusActive
	StatusInactive   = userDatamodel.StatusInactive
	StatusRestricted = userDatamodel.StatusRestricted
)

// Actions a permission can guard.
const (
	ActionView   = "view"
	ActionWrite  = "write"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionExport = "export"
)

func IsValidAction(action string) bool {
	switch action {
	case ActionView, ActionWrite, ActionEdit, ActionDelete, ActionExport:
		return true
	}
	return false
}

type Role struct {
	ID        string    `json:"role_id"`
	Name      string    `json:"role_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Permission struct {
	ID        string    `json:"permission_id"`
	API       string    `json:"api"`
	Name      string    `json:"name"`
	Module    string    `json:"module"`
	Route     string    `json:"route"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Grant struct {
	ID           string    `json:"id"`
	RoleID       string    `json:"role_id"`
	PermissionID string    `json:"permission_id"`
	IsGranted    bool      `json:"is_granted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DirectoryUser is the slice of the user record this core reads and whose
// role fields it owns.
type DirectoryUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    *string   `json:"role_id"`
	Roles     string    `json:"roles"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleNames splits the denormalized comma-joined role list.
func (u *DirectoryUser) RoleNames() []string {
	if u.Roles == "" {
		return nil
	}
	return strings.Split(u.Roles, ",")
}

func (u *DirectoryUser) HoldsRole(roleName string) bool {
	for _, name := range u.RoleNames() {
		if name == roleName {
			return true
		}
	}
	return false
}

// PermissionSnapshot is the flattened permission shape stored per user in the
// authorization cache.
type PermissionSnapshot struct {
	PermissionID string `json:"permission_id"`
	Name         string `json:"name"`
	API          string `json:"api"`
	Route        string `json:"route"`
	Module       string `json:"module"`
}

// CacheEntry is the per-user snapshot document. One entry per user, fully
// replaced on every rebuild; there is no versioning field, concurrent
// rebuilds simply overwrite.
type CacheEntry struct {
	UserID      int64                `json:"user_id"`
	RoleID      string               `json:"role_id"`
	RoleName    string               `json:"role_name"`
	Permissions []PermissionSnapshot `json:"permissions"`
	FetchedAt   time.Time            `json:"fetched_at"`
}

func (e *CacheEntry) IsFresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < FreshnessWindow
}

func (e *CacheEntry) IsSuperAdmin() bool {
	return strings.EqualFold(e.RoleName, SuperAdminRole)
}

// Guard is the (action, name, module, route) tuple a protected route declares
// at registration time.
type Guard struct {
	API    string
	Name   string
	Module string
	Route  string
}

// Complete reports whether all four guard parameters were supplied. An
// incomplete guard is a deployment bug, not a denial.
func (g Guard) Complete() bool {
	return g.API != "" && g.Name != "" && g.Module != "" && g.Route != ""
}

// AssignResult is the role assignment outcome. Assignment never lets errors
// escape its boundary; every failure is reported here.
type AssignResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UserAccess is the relational read model the cache rebuild consumes: the
// user, its resolved role and the role's granted permissions flattened.
type UserAccess struct {
	User        DirectoryUser
	Role        *Role
	Permissions []PermissionSnapshot
}

func RoleFromDataModel(r *rbacDatamodel.Role) *Role {
	return &Role{
		ID:        r.ID,
		Name:      r.RoleName,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func RoleToDataModel(r *Role) *rbacDatamodel.Role {
	return &rbacDatamodel.Role{
		ID:        r.ID,
		RoleName:  r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func PermissionFromDataModel(p *rbacDatamodel.Permission) *Permission {
	return &Permission{
		ID:        p.ID,
		API:       p.API,
		Name:      p.Name,
		Module:    p.Module,
		Route:     p.Route,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func PermissionToDataModel(p *Permission) *rbacDatamodel.Permission {
	return &rbacDatamodel.Permission{
		ID:        p.ID,
		API:       p.API,
		Name:      p.Name,
		Module:    p.Module,
		Route:     p.Route,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func GrantFromDataModel(g *rbacDatamodel.RoleGrant) *Grant {
	return &Grant{
		ID:           g.ID,
		RoleID:       g.RoleID,
		PermissionID: g.PermissionID,
		IsGranted:    g.IsGranted,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func GrantToDataModel(g *Grant) *rbacDatamodel.RoleGrant {
	return &rbacDatamodel.RoleGrant{
		ID:           g.ID,
		RoleID:       g.RoleID,
		PermissionID: g.PermissionID,
		IsGranted:    g.IsGranted,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func UserFromDataModel(u *userDatamodel.User) *DirectoryUser {
	return &DirectoryUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		RoleID:    u.RoleID,
		Roles:     u.Roles,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// SnapshotFromPermission flattens a permission into its cached shape.
func SnapshotFromPermission(p *Permission) PermissionSnapshot {
	return PermissionSnapshot{
		PermissionID: p.ID,
		Name:         p.Name,
		API:          p.API,
		Route:        p.Route,
		Module:       p.Module,
	}
}
