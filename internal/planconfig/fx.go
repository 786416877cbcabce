package planconfig

import (
	"github.com/smallbiznis/entitlement/internal/planconfig/repository"
	"github.com/smallbiznis/entitlement/internal/planconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("planconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
