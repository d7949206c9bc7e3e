package main

import (
	"fmt"

	"github.com/openctemio/console/internal/app"
	"github.com/openctemio/console/internal/config"
	"github.com/openctemio/console/internal/infra/manifest"
	"github.com/openctemio/console/internal/infra/redis"
	"github.com/openctemio/console/pkg/logger"
)

// Services holds all application services.
type Services struct {
	Lifecycle *app.ModuleLifecycleService
	Assembly  *app.PermissionAssemblyService
}

// ServiceDeps contains dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.Config
	Log         *logger.Logger
	Repos       *Repositories
	RedisClient *redis.Client // nil when Redis is disabled
}

// NewServices creates all application services.
func NewServices(deps *ServiceDeps) (*Services, error) {
	cfg := deps.Config

	reader, err := manifest.NewReader(cfg.Modules.Root)
	if err != nil {
		return nil, fmt.Errorf("module root: %w", err)
	}
	deps.Log.Debug("module root resolved", "path", reader.Root())

	lifecycleOpts := []app.LifecycleOption{
		app.WithScanConcurrency(cfg.Modules.ScanConcurrency),
		app.WithSourceRemover(reader),
		app.WithPurge(cfg.Modules.AllowPurge),
	}
	assemblyOpts := []app.AssemblyOption{
		app.WithGroupMoveMode(app.GroupMoveMode(cfg.Modules.GroupMoveMode)),
	}

	if deps.RedisClient != nil {
		trees, err := app.NewMenuTreeCache(deps.RedisClient, cfg.Cache.MenuTreeTTL, deps.Log)
		if err != nil {
			return nil, err
		}
		lifecycleOpts = append(lifecycleOpts, app.WithTreeInvalidator(trees))
		assemblyOpts = append(assemblyOpts, app.WithRoleMenusCache(trees))
		deps.Log.Info("menu tree cache enabled", "ttl", cfg.Cache.MenuTreeTTL)
	}

	return &Services{
		Lifecycle: app.NewModuleLifecycleService(
			deps.Repos.Modules, deps.Repos.Entitlements, reader, deps.Log, lifecycleOpts...,
		),
		Assembly: app.NewPermissionAssemblyService(
			deps.Repos.Roles, deps.Repos.Grants, deps.Repos.Menus, deps.Repos.Modules, deps.Log, assemblyOpts...,
		),
	}, nil
}
