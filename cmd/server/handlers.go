package main

import (
	"github.com/openctemio/console/internal/infra/http/handler"
	"github.com/openctemio/console/internal/infra/http/routes"
	"github.com/openctemio/console/internal/infra/postgres"
	"github.com/openctemio/console/internal/infra/redis"
	"github.com/openctemio/console/pkg/logger"
	"github.com/openctemio/console/pkg/validator"
)

// HandlerDeps contains dependencies for handler initialization.
type HandlerDeps struct {
	Log         *logger.Logger
	Validator   *validator.Validator
	DB          *postgres.DB  // nil with the memory driver
	RedisClient *redis.Client // nil when Redis is disabled
	Services    *Services
}

// NewHandlers creates all HTTP handlers.
func NewHandlers(deps *HandlerDeps) routes.Handlers {
	var healthOpts []handler.HealthHandlerOption
	if deps.DB != nil {
		healthOpts = append(healthOpts, handler.WithDatabase(deps.DB))
	}
	if deps.RedisClient != nil {
		healthOpts = append(healthOpts, handler.WithRedis(deps.RedisClient))
	}

	return routes.Handlers{
		Health:   handler.NewHealthHandler(healthOpts...),
		Module:   handler.NewModuleHandler(deps.Services.Lifecycle, deps.Validator, deps.Log),
		RoleMenu: handler.NewRoleMenuHandler(deps.Services.Assembly, deps.Validator, deps.Log),
	}
}
