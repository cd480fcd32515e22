package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const identityKeyPrefix = "identity:"

// Cache resolves user identifiers to identity snapshots. Reads go to Redis
// first and fall back to the durable Store on miss; fills are coalesced per
// key so a burst of concurrent misses issues one store load.
type Cache struct {
	client *redis.Client
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache constructs an identity cache.
func NewCache(client *redis.Client, store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, store: store, ttl: ttl, logger: logger}
}

// Resolve returns the identity snapshot for userID, filling the cache from
// the durable store when needed. Returns ErrIdentityNotFound when the store
// has no such user.
func (c *Cache) Resolve(ctx context.Context, userID string) (*Identity, error) {
	if userID == "" {
		return nil, ErrIdentityNotFound
	}

	payload, err := c.client.Get(ctx, identityKeyPrefix+userID).Bytes()
	if err == nil {
		var identity Identity
		if err := json.Unmarshal(payload, &identity); err == nil {
			return &identity, nil
		}
		c.logger.Warn("identity cache entry corrupt, reloading", slog.String("user_id", userID))
	} else if !errors.Is(err, redis.Nil) {
		// Cache backend trouble degrades to a direct store load; the durable
		// store stays the source of truth for correctness.
		c.logger.Warn("identity cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	// Coalesce concurrent misses per key. The load runs detached from the
	// caller's cancellation so an aborted request does not kill an in-flight
	// fill that other callers are waiting on.
	resultChan := c.group.DoChan(userID, func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Identity), nil
	}
}

// Invalidate removes the cached snapshot; the next Resolve repopulates from
// the durable store.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := c.client.Del(ctx, identityKeyPrefix+userID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("authz: invalidate %s: %w", userID, err)
	}
	return nil
}

var _ Invalidator = (*Cache)(nil)

func (c *Cache) load(ctx context.Context, userID string) (*Identity, error) {
	record, err := c.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[Permission]struct{})
	for _, roleID := range record.RoleIDs {
		perms, err := c.store.LoadRolePermissions(ctx, roleID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			seen[p] = struct{}{}
		}
	}
	permissions := make([]Permission, 0, len(seen))
	for p := range seen {
		permissions = append(permissions, p)
	}
	sort.Slice(permissions, func(i, j int) bool { return permissions[i] < permissions[j] })

	identity := &Identity{
		UserID:           record.ID,
		CredentialDigest: record.CredentialDigest,
		Disabled:         record.Disabled,
		Roles:            record.RoleIDs,
		Permissions:      permissions,
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, identityKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		// The snapshot is still valid for this request; the next resolve
		// retries the fill.
		c.logger.Warn("identity cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	return identity, nil
}
