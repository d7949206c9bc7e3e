package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openctemio/console/internal/infra/redis"
	"github.com/openctemio/console/pkg/domain/shared"
	"github.com/openctemio/console/pkg/logger"
)

const (
	menuTreeCachePrefix = "role_menus"
	menuTreeVersionKey  = "role_menus:version"
	defaultMenuTreeTTL  = 10 * time.Minute
)

type menuTreeStore interface {
	Get(ctx context.Context, key string) (*RoleMenus, error)
	Set(ctx context.Context, key string, value RoleMenus) error
	Delete(ctx context.Context, key string) error
}

type versionCounter interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// MenuTreeCache keeps assembled role menu trees in Redis.
//
// Key format: role_menus:v{version}:{role_id}:{account_type}
// Lifecycle changes touch every role at once, so they bump the global version
// instead of deleting keys; stale entries expire with the TTL.
type MenuTreeCache struct {
	store    menuTreeStore
	versions versionCounter
	logger   *logger.Logger
}

// NewMenuTreeCache creates a Redis backed menu tree cache.
func NewMenuTreeCache(client *redis.Client, ttl time.Duration, log *logger.Logger) (*MenuTreeCache, error) {
	if ttl <= 0 {
		ttl = defaultMenuTreeTTL
	}
	cache, err := redis.NewCache[RoleMenus](client, menuTreeCachePrefix, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu tree cache: %w", err)
	}
	return newMenuTreeCache(cache, client, log), nil
}

func newMenuTreeCache(store menuTreeStore, versions versionCounter, log *logger.Logger) *MenuTreeCache {
	return &MenuTreeCache{
		store:    store,
		versions: versions,
		logger:   log.With("service", "menu_tree_cache"),
	}
}

func (c *MenuTreeCache) key(ctx context.Context, roleID shared.ID, accountType shared.AccountType) (string, error) {
	version, err := c.versions.GetInt64(ctx, menuTreeVersionKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("v%d:%d:%s", version, roleID, accountType), nil
}

// Get returns the cached tree. Any cache error counts as a miss.
func (c *MenuTreeCache) Get(ctx context.Context, roleID shared.ID, accountType shared.AccountType) (*RoleMenus, bool) {
	key, err := c.key(ctx, roleID, accountType)
	if err != nil {
		c.logger.Warn("menu tree cache version unavailable", "error", err)
		return nil, false
	}
	tree, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			c.logger.Warn("menu tree cache read failed", "role_id", roleID, "error", err)
		}
		return nil, false
	}
	return tree, true
}

// Set stores a tree. Failures are logged and otherwise ignored.
func (c *MenuTreeCache) Set(ctx context.Context, roleID shared.ID, accountType shared.AccountType, tree *RoleMenus) {
	if tree == nil {
		return
	}
	key, err := c.key(ctx, roleID, accountType)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, *tree); err != nil {
		c.logger.Warn("failed to cache menu tree", "role_id", roleID, "error", err)
	}
}

// InvalidateRole drops the cached tree of one role.
func (c *MenuTreeCache) InvalidateRole(ctx context.Context, roleID shared.ID, accountType shared.AccountType) error {
	key, err := c.key(ctx, roleID, accountType)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, key)
}

// InvalidateAll drops every cached tree.
func (c *MenuTreeCache) InvalidateAll(ctx context.Context) error {
	version, err := c.versions.Incr(ctx, menuTreeVersionKey)
	if err != nil {
		return err
	}
	c.logger.Debug("menu tree cache version bumped", "version", version)
	return nil
}
