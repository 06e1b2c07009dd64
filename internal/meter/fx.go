package meter

import (
	"github.com/flowin/pdam/internal/meter/repository"
	"github.com/flowin/pdam/internal/meter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("meter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
