package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/rbac"
)

// PermissionChecker is the decision function protected routes consult.
type PermissionChecker interface {
	Check(ctx context.Context, token string, guard rbac.Guard) error
}

// RequirePermission guards a route with a permission tuple. The checker
// handles token validation too, so guarded routes do not need the auth
// middleware in front.
func RequirePermission(checker PermissionChecker, guard rbac.Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)

			if err := checker.Check(r.Context(), token, guard); err != nil {
				status := http.StatusInternalServerError
				message := "Internal server error"
				if appErr, ok := internal.IsAppError(err); ok {
					status = appErr.StatusCode
					message = appErr.Message
				}
				if status >= 500 {
					logger.Error("permission check failed",
						"method", r.Method,
						"path", r.URL.Path,
						"error", err)
				}
				writeDenied(w, status, message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeDenied(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
