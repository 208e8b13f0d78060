package provider

import (
	"github.com/smallbiznis/smsrent/internal/cache"
	"github.com/smallbiznis/smsrent/internal/provider/adapters"
	"github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/provider/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provider",
	fx.Provide(adapters.NewDefaultRegistry),
	fx.Provide(cache.NewCatalogCache),
	fx.Provide(service.New),
	fx.Provide(func(s *service.Service) domain.Directory { return s }),
)
