package legacy

import (
	"github.com/smallbiznis/entitlement/internal/legacy/repository"
	"github.com/smallbiznis/entitlement/internal/legacy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("legacy.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
