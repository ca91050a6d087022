package audit

import (
	"github.com/smallbiznis/esimgate/internal/audit/domain"
	"github.com/smallbiznis/esimgate/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(
		service.NewService,
		func(s *service.Service) domain.Recorder { return s },
		func(s *service.Service) domain.Reader { return s },
	),
)
