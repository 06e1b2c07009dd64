package connection

import (
	"github.com/flowin/pdam/internal/connection/repository"
	"github.com/flowin/pdam/internal/connection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("connection.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
