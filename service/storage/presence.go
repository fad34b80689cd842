package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceStore mirrors user online/offline transitions into redis so
// sibling services can answer "is this user reachable, and on which
// gateway node" without asking the gateway. The gateway's in-memory
// registry stays authoritative; the mirror is advisory and bounded by
// TTL.
type PresenceStore struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

func NewPresenceStore(rdb *redis.Client, nodeID string, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

// presence key: ks:presence:<user>
// value: gateway node id; TTL controls staleness after a crashed node
func presenceKey(user string) string { return "ks:presence:" + user }

// Online marks the user reachable through this node and renews the TTL.
func (s *PresenceStore) Online(ctx context.Context, user string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return errors.Wrap(s.rdb.Set(ctx, presenceKey(user), s.nodeID, s.ttl).Err(), "presence online")
}

// Offline deletes the presence key. Idempotent.
func (s *PresenceStore) Offline(ctx context.Context, user string) error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return errors.Wrap(s.rdb.Del(ctx, presenceKey(user)).Err(), "presence offline")
}

// Lookup reports whether the user is online anywhere, and on which
// node.
func (s *PresenceStore) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	if s == nil || s.rdb == nil {
		return "", false, nil
	}
	val, err := s.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "presence lookup")
	}
	return val, true, nil
}
