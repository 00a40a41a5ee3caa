package rbac

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/transport"
	"github.com/tradecore/access-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Admin      *AdminService
	Assignment *AssignmentService
}

func NewHandler(admin *AdminService, assignment *AssignmentService) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Admin:       admin,
		Assignment:  assignment,
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		h.WriteError(w, appErr.StatusCode, appErr.Message)
		return
	}
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var dto CreatePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	permission, err := h.Admin.CreatePermission(r.Context(), dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, permission)
}

func (h *Handler) EditPermission(w http.ResponseWriter, r *http.Request) {
	permissionID := chi.URLParam(r, "id")
	var dto EditPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	permission, err := h.Admin.EditPermission(r.Context(), permissionID, dto)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, permission)
}

func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	permissionID := chi.URLParam(r, "id")
	if err := h.Admin.DeletePermission(r.Context(), permissionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.Admin.ListPermissions(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": permissions})
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Admin.CreateRole(r.Context(), dto.RoleName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) RenameRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	var dto RenameRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.Admin.RenameRole(r.Context(), roleID, dto.RoleName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	if err := h.Admin.DeleteRole(r.Context(), roleID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Admin.ListRoles(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

// SetGrant grants or revokes a single permission for a role. Omitting
// is_granted in the body means grant.
func (h *Handler) SetGrant(w http.ResponseWriter, r *http.Request) {
	var dto SetGrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	grant, message, err := h.Admin.SetRoleGrant(r.Context(), dto.RoleID, dto.PermissionID, dto.Granted())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"grant":   grant,
	})
}

func (h *Handler) ClearGrant(w http.ResponseWriter, r *http.Request) {
	var dto SetGrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	if err := h.Admin.ClearRoleGrant(r.Context(), dto.RoleID, dto.PermissionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Permission removed from role"})
}

// ReplaceGrants overwrites the role's full grant set with the submitted
// permission ids.
func (h *Handler) ReplaceGrants(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	var dto ReplaceGrantsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grants, err := h.Admin.ReplaceRoleGrants(r.Context(), roleID, dto.PermissionIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Role permissions updated",
		"grants":  grants,
	})
}

func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	views, err := h.Admin.ListRolePermissions(r.Context(), roleID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": views})
}

// AssignRole always answers 200; success or failure rides in the body, which
// is how the admin frontend consumes it.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var dto AssignRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.writeServiceError(w, err)
		return
	}

	result := h.Assignment.AssignRole(r.Context(), dto.UserID, dto.RoleName)
	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) PendingRoleAssignments(w http.ResponseWriter, r *http.Request) {
	users, err := h.Assignment.UsersPendingRoleAssignment(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
