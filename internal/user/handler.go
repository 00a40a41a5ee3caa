package user

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/transport"
	"github.com/tradecore/access-management/pkg/logger"
)

type ServiceAPI interface {
	GetByID(userID int64) (*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	subject := internal.UserIDFromContext(r.Context())
	if subject == "" {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		h.Logger.Error("GetCurrentUser: bad subject claim", "value", subject, "error", err)
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.Service.GetByID(userID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: lookup failed", "user_id", userID, "error", err)
		h.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}
