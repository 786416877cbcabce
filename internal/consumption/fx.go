package consumption

import (
	"github.com/smallbiznis/entitlement/internal/consumption/repository"
	"github.com/smallbiznis/entitlement/internal/consumption/service"
	"go.uber.org/fx"
)

var Module = fx.Module("consumption.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
