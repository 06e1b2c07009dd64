package billing

import (
	"github.com/flowin/pdam/internal/billing/repository"
	"github.com/flowin/pdam/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
