package tariff

import (
	"github.com/flowin/pdam/internal/tariff/repository"
	"github.com/flowin/pdam/internal/tariff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tariff.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
