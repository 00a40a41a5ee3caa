package rbac

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/tradecore/access-management/internal"
)

// Mock admin repository for testing
type mockAdminRepo struct {
	rolesByID    map[string]*Role
	rolesByName  map[string]*Role
	permsByID    map[string]*Permission
	permsByTuple map[string]*Permission
	grants       map[string]*Grant // roleID|permissionID
	replaced     []Grant
	replacedRole string
	userCount    int64
	grantCount   int64
	knownPermIDs int64
	returnError  bool
}

func newMockAdminRepo() *mockAdminRepo {
	role := &Role{ID: "role-finance", Name: "Finance"}
	perm := &Permission{ID: "perm-1", API: ActionView, Name: "View Invoices", Module: "Billing", Route: "invoices"}
	return &mockAdminRepo{
		rolesByID:    map[string]*Role{role.ID: role},
		rolesByName:  map[string]*Role{role.Name: role},
		permsByID:    map[string]*Permission{perm.ID: perm},
		permsByTuple: map[string]*Permission{perm.API + "|" + perm.Module + "|" + perm.Route: perm},
		grants:       map[string]*Grant{},
	}
}

func (m *mockAdminRepo) err() error {
	if m.returnError {
		return errors.New("database error")
	}
	return nil
}

func (m *mockAdminRepo) GetRoleByID(_ context.Context, roleID string) (*Role, error) {
	return m.rolesByID[roleID], m.err()
}

func (m *mockAdminRepo) GetRoleByName(_ context.Context, name string) (*Role, error) {
	return m.rolesByName[name], m.err()
}

func (m *mockAdminRepo) CreateRole(_ context.Context, role *Role) error {
	if err := m.err(); err != nil {
		return err
	}
	m.rolesByID[role.ID] = role
	m.rolesByName[role.Name] = role
	return nil
}

func (m *mockAdminRepo) SaveRole(_ context.Context, role *Role) error {
	if err := m.err(); err != nil {
		return err
	}
	m.rolesByID[role.ID] = role
	return nil
}

func (m *mockAdminRepo) DeleteRole(_ context.Context, roleID string) error {
	if err := m.err(); err != nil {
		return err
	}
	delete(m.rolesByID, roleID)
	return nil
}

func (m *mockAdminRepo) ListRoles(_ context.Context) ([]Role, error) {
	roles := make([]Role, 0, len(m.rolesByID))
	for _, r := range m.rolesByID {
		roles = append(roles, *r)
	}
	return roles, m.err()
}

func (m *mockAdminRepo) CountUsersWithRole(_ context.Context, _ string) (int64, error) {
	return m.userCount, m.err()
}

func (m *mockAdminRepo) GetPermissionByID(_ context.Context, permissionID string) (*Permission, error) {
	return m.permsByID[permissionID], m.err()
}

func (m *mockAdminRepo) GetPermissionByTuple(_ context.Context, api, module, route string) (*Permission, error) {
	return m.permsByTuple[api+"|"+module+"|"+route], m.err()
}

func (m *mockAdminRepo) CreatePermission(_ context.Context, permission *Permission) error {
	if err := m.err(); err != nil {
		return err
	}
	m.permsByID[permission.ID] = permission
	m.permsByTuple[permission.API+"|"+permission.Module+"|"+permission.Route] = permission
	return nil
}

func (m *mockAdminRepo) SavePermission(_ context.Context, permission *Permission) error {
	if err := m.err(); err != nil {
		return err
	}
	m.permsByID[permission.ID] = permission
	return nil
}

func (m *mockAdminRepo) DeletePermission(_ context.Context, permissionID string) error {
	if err := m.err(); err != nil {
		return err
	}
	delete(m.permsByID, permissionID)
	return nil
}

func (m *mockAdminRepo) ListPermissions(_ context.Context) ([]Permission, error) {
	permissions := make([]Permission, 0, len(m.permsByID))
	for _, p := range m.permsByID {
		permissions = append(permissions, *p)
	}
	return permissions, m.err()
}

func (m *mockAdminRepo) CountPermissionsByIDs(_ context.Context, ids []string) (int64, error) {
	if m.knownPermIDs > 0 {
		return m.knownPermIDs, m.err()
	}
	var count int64
	for _, id := range ids {
		if _, ok := m.permsByID[id]; ok {
			count++
		}
	}
	return count, m.err()
}

func (m *mockAdminRepo) GetGrant(_ context.Context, roleID, permissionID string) (*Grant, error) {
	return m.grants[roleID+"|"+permissionID], m.err()
}

func (m *mockAdminRepo) CreateGrant(_ context.Context, grant *Grant) error {
	if err := m.err(); err != nil {
		return err
	}
	m.grants[grant.RoleID+"|"+grant.PermissionID] = grant
	return nil
}

func (m *mockAdminRepo) SaveGrant(_ context.Context, grant *Grant) error {
	return m.CreateGrant(context.Background(), grant)
}

func (m *mockAdminRepo) DeleteGrant(_ context.Context, roleID, permissionID string) error {
	if err := m.err(); err != nil {
		return err
	}
	delete(m.grants, roleID+"|"+permissionID)
	return nil
}

func (m *mockAdminRepo) ReplaceGrants(_ context.Context, roleID string, grants []Grant) error {
	if err := m.err(); err != nil {
		return err
	}
	m.replacedRole = roleID
	m.replaced = grants
	return nil
}

func (m *mockAdminRepo) ListGrantsForRole(_ context.Context, roleID string) ([]Grant, error) {
	grants := make([]Grant, 0)
	for _, g := range m.grants {
		if g.RoleID == roleID {
			grants = append(grants, *g)
		}
	}
	return grants, m.err()
}

func (m *mockAdminRepo) CountGrantsForRole(_ context.Context, _ string) (int64, error) {
	return m.grantCount, m.err()
}

var _ = ginkgo.Describe("AdminService", func() {
	var (
		repo    *mockAdminRepo
		service *AdminService
		ctx     context.Context
	)

	ginkgo.BeforeEach(func() {
		repo = newMockAdminRepo()
		service = NewAdminService(repo, testLogger())
		ctx = context.Background()
	})

	ginkgo.Describe("CreatePermission", func() {
		ginkgo.It("should create a permission with a fresh id", func() {
			dto := CreatePermissionDTO{API: ActionWrite, Name: "Create Invoice", Module: "Billing", Route: "invoices"}

			permission, err := service.CreatePermission(ctx, dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(permission.ID).ToNot(gomega.BeEmpty())
			gomega.Expect(permission.API).To(gomega.Equal(ActionWrite))
		})

		ginkgo.It("should reject a duplicate (api, module, route) tuple", func() {
			dto := CreatePermissionDTO{API: ActionView, Name: "Other Name", Module: "Billing", Route: "invoices"}

			_, err := service.CreatePermission(ctx, dto)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeConflict))
		})

		ginkgo.It("should reject an unsupported action", func() {
			dto := CreatePermissionDTO{API: "approve", Name: "Approve", Module: "Billing", Route: "invoices"}

			_, err := service.CreatePermission(ctx, dto)

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
		})

		ginkgo.It("should reject missing fields", func() {
			dto := CreatePermissionDTO{API: ActionView, Module: "Billing"}

			_, err := service.CreatePermission(ctx, dto)

			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("EditPermission", func() {
		ginkgo.It("should update the display name only", func() {
			dto := EditPermissionDTO{Name: "View All Invoices"}

			permission, err := service.EditPermission(ctx, "perm-1", dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(permission.Name).To(gomega.Equal("View All Invoices"))
			gomega.Expect(permission.API).To(gomega.Equal(ActionView))
			gomega.Expect(permission.Route).To(gomega.Equal("invoices"))
		})

		ginkgo.It("should return not found for an unknown permission", func() {
			_, err := service.EditPermission(ctx, "perm-missing", EditPermissionDTO{Name: "X"})

			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionNotFound))
		})
	})

	ginkgo.Describe("DeletePermission", func() {
		ginkgo.It("should delete an existing permission", func() {
			gomega.Expect(service.DeletePermission(ctx, "perm-1")).To(gomega.Succeed())
			gomega.Expect(repo.permsByID).ToNot(gomega.HaveKey("perm-1"))
		})

		ginkgo.It("should return not found for an unknown permission", func() {
			err := service.DeletePermission(ctx, "perm-missing")
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionNotFound))
		})
	})

	ginkgo.Describe("SetRoleGrant", func() {
		ginkgo.It("should create a grant and report it granted", func() {
			grant, message, err := service.SetRoleGrant(ctx, "role-finance", "perm-1", true)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(message).To(gomega.Equal("Permission granted to role"))
			gomega.Expect(grant.IsGranted).To(gomega.BeTrue())
		})

		ginkgo.It("should flip an existing grant and report it revoked", func() {
			_, _, err := service.SetRoleGrant(ctx, "role-finance", "perm-1", true)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			grant, message, err := service.SetRoleGrant(ctx, "role-finance", "perm-1", false)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(message).To(gomega.Equal("Permission revoked from role"))
			gomega.Expect(grant.IsGranted).To(gomega.BeFalse())
			gomega.Expect(repo.grants).To(gomega.HaveLen(1))
		})

		ginkgo.It("should reject an unknown role", func() {
			_, _, err := service.SetRoleGrant(ctx, "role-missing", "perm-1", true)
			gomega.Expect(err).To(gomega.Equal(internal.ErrRoleNotFound))
		})

		ginkgo.It("should reject an unknown permission", func() {
			_, _, err := service.SetRoleGrant(ctx, "role-finance", "perm-missing", true)
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionNotFound))
		})
	})

	ginkgo.Describe("ClearRoleGrant", func() {
		ginkgo.It("should remove an existing grant", func() {
			_, _, err := service.SetRoleGrant(ctx, "role-finance", "perm-1", true)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(service.ClearRoleGrant(ctx, "role-finance", "perm-1")).To(gomega.Succeed())
			gomega.Expect(repo.grants).To(gomega.BeEmpty())
		})

		ginkgo.It("should return not found when no grant exists", func() {
			err := service.ClearRoleGrant(ctx, "role-finance", "perm-1")
			gomega.Expect(err).To(gomega.Equal(internal.ErrGrantNotFound))
		})
	})

	ginkgo.Describe("ReplaceRoleGrants", func() {
		ginkgo.It("should replace the full grant set with granted rows", func() {
			grants, err := service.ReplaceRoleGrants(ctx, "role-finance", []string{"perm-1"})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(grants).To(gomega.HaveLen(1))
			gomega.Expect(grants[0].IsGranted).To(gomega.BeTrue())
			gomega.Expect(repo.replacedRole).To(gomega.Equal("role-finance"))
			gomega.Expect(repo.replaced).To(gomega.HaveLen(1))
		})

		ginkgo.It("should accept an empty set and clear all grants", func() {
			grants, err := service.ReplaceRoleGrants(ctx, "role-finance", nil)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(grants).To(gomega.BeEmpty())
			gomega.Expect(repo.replacedRole).To(gomega.Equal("role-finance"))
		})

		ginkgo.It("should reject unknown permission ids", func() {
			_, err := service.ReplaceRoleGrants(ctx, "role-finance", []string{"perm-1", "perm-ghost"})

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
			gomega.Expect(appErr.Message).To(gomega.ContainSubstring("1 of 2 permission ids do not exist"))
		})

		ginkgo.It("should reject an unknown role", func() {
			_, err := service.ReplaceRoleGrants(ctx, "role-missing", []string{"perm-1"})
			gomega.Expect(err).To(gomega.Equal(internal.ErrRoleNotFound))
		})
	})

	ginkgo.Describe("ListRolePermissions", func() {
		ginkgo.It("should pair grants with their permissions", func() {
			_, _, err := service.SetRoleGrant(ctx, "role-finance", "perm-1", true)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			views, err := service.ListRolePermissions(ctx, "role-finance")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(views).To(gomega.HaveLen(1))
			gomega.Expect(views[0].Permission.Name).To(gomega.Equal("View Invoices"))
		})

		ginkgo.It("should keep orphaned grants with an empty permission view", func() {
			_, _, err := service.SetRoleGrant(ctx, "role-finance", "perm-1", true)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			delete(repo.permsByID, "perm-1")

			views, err := service.ListRolePermissions(ctx, "role-finance")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(views).To(gomega.HaveLen(1))
			gomega.Expect(views[0].Permission.Name).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("Role lifecycle", func() {
		ginkgo.It("should create and list roles", func() {
			role, err := service.CreateRole(ctx, "Sales")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(role.ID).ToNot(gomega.BeEmpty())

			roles, err := service.ListRoles(ctx)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(roles).To(gomega.HaveLen(2))
		})

		ginkgo.It("should reject a duplicate role name", func() {
			_, err := service.CreateRole(ctx, "Finance")

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeConflict))
		})

		ginkgo.It("should rename a role", func() {
			role, err := service.RenameRole(ctx, "role-finance", "Accounting")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(role.Name).To(gomega.Equal("Accounting"))
		})

		ginkgo.It("should refuse to delete a role still assigned to users", func() {
			repo.userCount = 2

			err := service.DeleteRole(ctx, "role-finance")

			gomega.Expect(err).To(gomega.HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeConflict))
		})

		ginkgo.It("should refuse to delete a role with remaining grants", func() {
			repo.grantCount = 1

			err := service.DeleteRole(ctx, "role-finance")

			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should delete an unreferenced role", func() {
			gomega.Expect(service.DeleteRole(ctx, "role-finance")).To(gomega.Succeed())
			gomega.Expect(repo.rolesByID).ToNot(gomega.HaveKey("role-finance"))
		})
	})
})
