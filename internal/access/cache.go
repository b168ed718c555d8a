package access

import (
	"context"
	"encoding/json"
	"time"

	"omnicorp.dev/authcore/internal/obs"
)

const defaultCacheTTL = 24 * time.Hour

const (
	levelGroup     = "grantgroup"
	levelPrincipal = "principal"
)

// KV is the shared key-value store backing the permission cache. The
// store owns per-key expiry and linearizes concurrent operations on the
// same key; the production implementation lives in internal/kvstore.
type KV interface {
	// Get returns the value and true, or false when the key was never
	// set or has expired. Callers cannot distinguish the two cases.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelMatch deletes every key matching a glob pattern.
	DelMatch(ctx context.Context, pattern string) error
}

// Cache memoizes permission expansion at two levels: per grant group and
// per principal. It is an optimization, never a correctness dependency:
// every store fault degrades to a miss and is logged, and a nil *Cache is
// a valid always-miss cache.
type Cache struct {
	kv  KV
	ttl time.Duration
}

// NewCache wraps a key-value store. A non-positive ttl selects the
// default of 24 hours.
func NewCache(kv KV, ttl time.Duration) *Cache {
	if kv == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

func groupKey(groupID string) string { return "grantgroup:" + groupID + ":permissions" }

func principalKey(principalID string) string { return "principal:" + principalID + ":permissions" }

// Group returns the cached permission names for a grant group.
func (c *Cache) Group(ctx context.Context, groupID string) ([]string, bool) {
	return c.get(ctx, groupKey(groupID), levelGroup)
}

// PutGroup stores the permission names for a grant group.
func (c *Cache) PutGroup(ctx context.Context, groupID string, names []string) {
	c.put(ctx, groupKey(groupID), names)
}

// DropGroup removes a grant-group entry. Every principal-level entry is
// dropped with it: a principal entry is only valid while all the group
// entries it aggregated remain valid, and conservative invalidation is
// cheaper than versioning.
func (c *Cache) DropGroup(ctx context.Context, groupID string) error {
	if c == nil {
		return nil
	}
	if err := c.kv.Del(ctx, groupKey(groupID)); err != nil {
		return err
	}
	return c.kv.DelMatch(ctx, principalKey("*"))
}

// Principal returns the cached permission names for a principal.
func (c *Cache) Principal(ctx context.Context, principalID string) ([]string, bool) {
	return c.get(ctx, principalKey(principalID), levelPrincipal)
}

// PutPrincipal stores the resolved permission names for a principal.
func (c *Cache) PutPrincipal(ctx context.Context, principalID string, names []string) {
	c.put(ctx, principalKey(principalID), names)
}

// DropPrincipal removes a principal-level entry.
func (c *Cache) DropPrincipal(ctx context.Context, principalID string) error {
	if c == nil {
		return nil
	}
	return c.kv.Del(ctx, principalKey(principalID))
}

// Clear removes every cached permission entry at both levels.
func (c *Cache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.kv.DelMatch(ctx, groupKey("*")); err != nil {
		return err
	}
	return c.kv.DelMatch(ctx, principalKey("*"))
}

func (c *Cache) get(ctx context.Context, key, level string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	raw, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		obs.RecordCacheLookup(level, "error")
		obs.Warn("permission cache read failed", map[string]any{"key": key, "error": err.Error()})
		return nil, false
	}
	if !ok {
		obs.RecordCacheLookup(level, "miss")
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		// A corrupt entry is a miss; the next put overwrites it.
		obs.RecordCacheLookup(level, "error")
		obs.Warn("permission cache entry malformed", map[string]any{"key": key, "error": err.Error()})
		return nil, false
	}
	obs.RecordCacheLookup(level, "hit")
	return names, true
}

func (c *Cache) put(ctx context.Context, key string, names []string) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(NewPermissionSet(names).Names())
	if err != nil {
		return
	}
	if err := c.kv.SetEx(ctx, key, raw, c.ttl); err != nil {
		obs.Warn("permission cache write failed", map[string]any{"key": key, "error": err.Error()})
	}
}
