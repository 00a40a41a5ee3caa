package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/redis/go-redis/v9"

	"github.com/tradecore/access-management/internal/auth"
	"github.com/tradecore/access-management/internal/rbac"
	"github.com/tradecore/access-management/internal/transport/middleware"
	"github.com/tradecore/access-management/internal/user"
)

// Guard tuples are wired per route; a route whose tuple has no matching
// permission row denies everyone except SuperAdmin.
var (
	guardAssignRole = rbac.Guard{API: rbac.ActionWrite, Name: "Assign Role", Module: "User Management", Route: "users"}
	guardViewUsers  = rbac.Guard{API: rbac.ActionView, Name: "View Users", Module: "User Management", Route: "users"}

	guardCreatePermission = rbac.Guard{API: rbac.ActionWrite, Name: "Create Permission", Module: "Permission Management", Route: "permissions"}
	guardViewPermissions  = rbac.Guard{API: rbac.ActionView, Name: "View Permissions", Module: "Permission Management", Route: "permissions"}
	guardEditPermission   = rbac.Guard{API: rbac.ActionEdit, Name: "Edit Permission", Module: "Permission Management", Route: "permissions"}
	guardDeletePermission = rbac.Guard{API: rbac.ActionDelete, Name: "Delete Permission", Module: "Permission Management", Route: "permissions"}

	guardCreateRole = rbac.Guard{API: rbac.ActionWrite, Name: "Create Role", Module: "Role Management", Route: "roles"}
	guardViewRoles  = rbac.Guard{API: rbac.ActionView, Name: "View Roles", Module: "Role Management", Route: "roles"}
	guardEditRole   = rbac.Guard{API: rbac.ActionEdit, Name: "Edit Role", Module: "Role Management", Route: "roles"}
	guardDeleteRole = rbac.Guard{API: rbac.ActionDelete, Name: "Delete Role", Module: "Role Management", Route: "roles"}

	guardAssignRolePermission = rbac.Guard{API: rbac.ActionWrite, Name: "Assign Permission", Module: "Role Management", Route: "role-permissions"}
	guardRemoveRolePermission = rbac.Guard{API: rbac.ActionDelete, Name: "Remove Permission", Module: "Role Management", Route: "role-permissions"}
	guardViewRolePermissions  = rbac.Guard{API: rbac.ActionView, Name: "View Role Permissions", Module: "Role Management", Route: "role-permissions"}
	guardEditRolePermissions  = rbac.Guard{API: rbac.ActionEdit, Name: "Update Role Permissions", Module: "Role Management", Route: "role-permissions"}
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, redisClient *redis.Client, authHandler *auth.Handler, userHandler *user.Handler, rbacHandler *rbac.Handler, checker *rbac.Checker, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, redisClient)

	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	guarded := func(guard rbac.Guard, handler http.HandlerFunc) http.Handler {
		return middleware.RequirePermission(checker, guard, logger)(handler)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)
			})
		}

		if authHandler != nil && userHandler != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				pr.Get("/users/me", userHandler.GetCurrentUser)
			})
		}

		if rbacHandler != nil {
			r.Method(http.MethodPost, "/users/assign-role", guarded(guardAssignRole, rbacHandler.AssignRole))
			r.Method(http.MethodGet, "/users/pending-role", guarded(guardViewUsers, rbacHandler.PendingRoleAssignments))

			r.Route("/permissions", func(sr chi.Router) {
				sr.Method(http.MethodPost, "/", guarded(guardCreatePermission, rbacHandler.CreatePermission))
				sr.Method(http.MethodGet, "/", guarded(guardViewPermissions, rbacHandler.ListPermissions))
				sr.Method(http.MethodPatch, "/{id}", guarded(guardEditPermission, rbacHandler.EditPermission))
				sr.Method(http.MethodDelete, "/{id}", guarded(guardDeletePermission, rbacHandler.DeletePermission))
			})

			r.Route("/roles", func(sr chi.Router) {
				sr.Method(http.MethodPost, "/", guarded(guardCreateRole, rbacHandler.CreateRole))
				sr.Method(http.MethodGet, "/", guarded(guardViewRoles, rbacHandler.ListRoles))
				sr.Method(http.MethodPatch, "/{id}", guarded(guardEditRole, rbacHandler.RenameRole))
				sr.Method(http.MethodDelete, "/{id}", guarded(guardDeleteRole, rbacHandler.DeleteRole))
				sr.Method(http.MethodGet, "/{id}/permissions", guarded(guardViewRolePermissions, rbacHandler.ListRolePermissions))
				sr.Method(http.MethodPut, "/{id}/permissions", guarded(guardEditRolePermissions, rbacHandler.ReplaceGrants))
			})

			r.Method(http.MethodPost, "/role-permissions", guarded(guardAssignRolePermission, rbacHandler.SetGrant))
			r.Method(http.MethodDelete, "/role-permissions", guarded(guardRemoveRolePermission, rbacHandler.ClearGrant))
		}
	})
}
