package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tradecore/access-management/internal"
	"github.com/tradecore/access-management/internal/auth"
)

// TokenVerifier decodes and verifies a bearer token. Owned by the auth
// package; the checker only consumes the subject claim.
type TokenVerifier interface {
	ValidateAccessToken(tokenString string) (*auth.Claims, error)
}

// Snapshots resolves the cached permission snapshot for a subject.
type Snapshots interface {
	Resolve(ctx context.Context, userID int64) (*CacheEntry, error)
}

// Checker is the request-time decision function. Every protected route wraps
// its handler in a Check against the route's guard tuple.
type Checker struct {
	verifier  TokenVerifier
	snapshots Snapshots
	logger    *slog.Logger
}

func NewChecker(verifier TokenVerifier, snapshots Snapshots, logger *slog.Logger) *Checker {
	return &Checker{
		verifier:  verifier,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Check allows the request (nil) or returns a typed AppError the transport
// layer maps to a status code. It never panics past its boundary.
func (c *Checker) Check(ctx context.Context, token string, guard Guard) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("permission check panicked", "panic", r)
			err = internal.NewInternalError("Permission validation failed", fmt.Errorf("panic: %v", r))
		}
	}()

	if token == "" {
		return internal.ErrMissingToken
	}

	claims, err := c.verifier.ValidateAccessToken(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return internal.ErrTokenExpired
		case errors.Is(err, auth.ErrInvalidToken):
			return internal.ErrInvalidToken
		default:
			return internal.NewUnauthorizedError("Unauthorized: Malformed token", internal.ErrCodeInvalidToken)
		}
	}
	if claims.UserID == "" {
		return internal.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return internal.ErrInvalidToken
	}

	entry, err := c.snapshots.Resolve(ctx, userID)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return appErr
		}
		c.logger.Error("permission check: snapshot resolution failed", "user_id", userID, "error", err)
		return internal.NewInternalError("Permission validation failed", err)
	}

	// SuperAdmin bypasses the tuple check entirely, even against an empty or
	// misconfigured guard.
	if entry.IsSuperAdmin() {
		return nil
	}

	if !guard.Complete() {
		return internal.NewConfigError("Invalid permission configuration")
	}

	for _, permission := range entry.Permissions {
		if permission.API == guard.API &&
			permission.Name == guard.Name &&
			permission.Module == guard.Module &&
			permission.Route == guard.Route {
			return nil
		}
	}

	return internal.NewForbiddenError(
		fmt.Sprintf("Forbidden: Role lacks permission %q (%s - %s)", guard.Name, strings.ToUpper(guard.API), guard.Module),
		internal.ErrCodePermissionDenied)
}
