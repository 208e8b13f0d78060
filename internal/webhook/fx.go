package webhook

import (
	providerservice "github.com/smallbiznis/smsrent/internal/provider/service"
	"github.com/smallbiznis/smsrent/internal/webhook/domain"
	"github.com/smallbiznis/smsrent/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(func(s *providerservice.Service) domain.Parsers { return s }),
	fx.Provide(service.New),
)
