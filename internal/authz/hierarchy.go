// hierarchy.go is the organization hierarchy index: direct-child lookups,
// the transitive descendant set, and ancestor checks over the organization
// tree. The underlying store is read per request; an optional Redis
// read-through cache with a short TTL can absorb the direct-children query
// without breaking the "topology changes are visible to subsequent requests"
// contract.
package authz

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safesite-hq/safesite/internal/telemetry"
)

// HierarchyStore answers the single query the index needs from the database:
// the active direct children of an organization.
type HierarchyStore interface {
	DirectChildIDs(ctx context.Context, orgID string) ([]string, error)
}

// Hierarchy is the organization hierarchy index.
type Hierarchy struct {
	store HierarchyStore
	cache *redis.Client // nil disables caching
	ttl   time.Duration
}

// NewHierarchy creates an index with no cache; every lookup hits the store.
func NewHierarchy(store HierarchyStore) *Hierarchy {
	return &Hierarchy{store: store}
}

// NewCachedHierarchy creates an index backed by a Redis read-through cache.
// ttl should be short (seconds, not minutes): organization creation and
// deactivation must become visible to subsequent requests promptly.
func NewCachedHierarchy(store HierarchyStore, cache *redis.Client, ttl time.Duration) *Hierarchy {
	return &Hierarchy{store: store, cache: cache, ttl: ttl}
}

const childrenKeyPrefix = "authz:children:"

// DirectChildren returns the IDs of the organization's active direct children.
// The result does not include orgID itself.
func (h *Hierarchy) DirectChildren(ctx context.Context, orgID string) ([]string, error) {
	if h.cache != nil {
		if ids, ok := h.cacheGet(ctx, orgID); ok {
			telemetry.HierarchyCacheLookups.WithLabelValues("hit").Inc()
			return ids, nil
		}
		telemetry.HierarchyCacheLookups.WithLabelValues("miss").Inc()
	}

	ids, err := h.store.DirectChildIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		h.cacheSet(ctx, orgID, ids)
	}
	return ids, nil
}

// Descendants returns the full descendant set of orgID, inclusive of orgID
// itself ("accessible" sets include the starting node by convention). It
// terminates on any input: if the walk revisits a node the parent relation is
// not a tree and ErrHierarchyCorruption is returned instead of looping.
func (h *Hierarchy) Descendants(ctx context.Context, orgID string) ([]string, error) {
	visited := map[string]bool{orgID: true}
	result := []string{orgID}
	frontier := []string{orgID}

	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]

		children, err := h.DirectChildren(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child] {
				return nil, ErrHierarchyCorruption
			}
			visited[child] = true
			result = append(result, child)
			frontier = append(frontier, child)
		}
	}

	return result, nil
}

// IsDirectChild reports whether orgID is an active direct child of parentID.
func (h *Hierarchy) IsDirectChild(ctx context.Context, orgID, parentID string) (bool, error) {
	children, err := h.DirectChildren(ctx, parentID)
	if err != nil {
		return false, err
	}
	for _, id := range children {
		if id == orgID {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached child set for orgID. Called by the organization
// handlers after a create/deactivate so the change is visible before the TTL
// expires.
func (h *Hierarchy) Invalidate(ctx context.Context, orgID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, childrenKeyPrefix+orgID).Err(); err != nil {
		slog.Debug("hierarchy cache invalidate failed", "org_id", orgID, "error", err)
	}
}

// cacheGet returns the cached child set. Any Redis failure is treated as a
// miss — the cache is an optimisation, never a source of truth.
func (h *Hierarchy) cacheGet(ctx context.Context, orgID string) ([]string, bool) {
	raw, err := h.cache.Get(ctx, childrenKeyPrefix+orgID).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("hierarchy cache read failed", "org_id", orgID, "error", err)
		}
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (h *Hierarchy) cacheSet(ctx context.Context, orgID string, ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, childrenKeyPrefix+orgID, raw, h.ttl).Err(); err != nil {
		slog.Debug("hierarchy cache write failed", "org_id", orgID, "error", err)
	}
}
