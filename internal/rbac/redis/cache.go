package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tradecore/access-management/internal/rbac"
)

const keyPrefix = "authz:user:"

// Store keeps per-user permission snapshots as JSON documents in Redis.
// Entries carry no Redis TTL; freshness is decided by the snapshot service
// from the FetchedAt stamp, so a stale entry still serves as the rebuild
// fallback when the relational store is slow.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

func (s *Store) Get(ctx context.Context, userID int64) (*rbac.CacheEntry, error) {
	payload, err := s.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot %d: %w", userID, err)
	}
	var entry rbac.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", userID, err)
	}
	return &entry, nil
}

func (s *Store) Put(ctx context.Context, entry *rbac.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", entry.UserID, err)
	}
	if err := s.client.Set(ctx, key(entry.UserID), payload, 0).Err(); err != nil {
		return fmt.Errorf("put snapshot %d: %w", entry.UserID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot %d: %w", userID, err)
	}
	return nil
}
