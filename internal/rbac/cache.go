package rbac

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradecore/access-management/internal"
)

// Store is the cache medium for per-user snapshots, kept separate from the
// relational store. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, userID int64) (*CacheEntry, error)
	Put(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, userID int64) error
}

// SnapshotSource is the relational read model a rebuild consumes. Returns
// (nil, nil) when the user no longer exists.
type SnapshotSource interface {
	GetUserWithRoleAndPermissions(ctx context.Context, userID int64) (*UserAccess, error)
}

// SnapshotService is the read-through authorization cache. Entries move
// ABSENT → FRESH → STALE → FRESH; a rebuild fully replaces the prior
// snapshot. Role and permission mutations do not evict entries — staleness
// is bounded only by the freshness window, matching the source design.
//
// Two concurrent requests for the same stale user may both rebuild and both
// upsert. That is wasteful but safe: the snapshot is deterministic given the
// same underlying rows, and the last write wins.
type SnapshotService struct {
	store  Store
	source SnapshotSource
	logger *slog.Logger
	now    func() time.Time
}

func NewSnapshotService(store Store, source SnapshotSource, logger *slog.Logger) *SnapshotService {
	return &SnapshotService{
		store:  store,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Resolve returns the snapshot for userID, rebuilding it from the relational
// store when the cached copy is absent or older than the freshness window.
func (s *SnapshotService) Resolve(ctx context.Context, userID int64) (*CacheEntry, error) {
	entry, err := s.store.Get(ctx, userID)
	if err != nil {
		s.logger.Error("snapshot lookup failed", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("Permission validation failed", err)
	}
	if entry != nil && entry.IsFresh(s.now()) {
		return entry, nil
	}

	return s.rebuild(ctx, userID)
}

// Evict removes a user's snapshot. Not called on mutation paths; exposed for
// operator tooling only.
func (s *SnapshotService) Evict(ctx context.Context, userID int64) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		s.logger.Error("snapshot eviction failed", "user_id", userID, "error", err)
		return internal.NewInternalError("Failed to evict cached permissions", err)
	}
	return nil
}

func (s *SnapshotService) rebuild(ctx context.Context, userID int64) (*CacheEntry, error) {
	access, err := s.source.GetUserWithRoleAndPermissions(ctx, userID)
	if err != nil {
		s.logger.Error("snapshot rebuild query failed", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("Permission validation failed", err)
	}
	if access == nil {
		return nil, internal.ErrUserNotFound
	}

	entry := &CacheEntry{
		UserID:      access.User.ID,
		Permissions: access.Permissions,
		FetchedAt:   s.now(),
	}
	if access.Role != nil {
		entry.RoleID = access.Role.ID
		entry.RoleName = access.Role.Name
	} else {
		// Users without a role foreign key still carry the denormalized list;
		// the first listed name is what the bypass check sees.
		if names := access.User.RoleNames(); len(names) > 0 {
			entry.RoleName = names[0]
		}
	}

	if err := s.store.Put(ctx, entry); err != nil {
		s.logger.Error("snapshot upsert failed", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("Permission validation failed", err)
	}
	return entry, nil
}
