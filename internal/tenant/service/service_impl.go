package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/esimgate/internal/auth/password"
	"github.com/smallbiznis/esimgate/internal/config"
	"github.com/smallbiznis/esimgate/internal/tenant/domain"
	"github.com/smallbiznis/esimgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	cfg   config.Config
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		cfg:   p.Cfg,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenantRequest) (*domain.Tenant, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	if len(req.Password) < 8 {
		return nil, domain.ErrInvalidPassword
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleTenant
	}
	if role != domain.RoleAdmin && role != domain.RoleTenant {
		return nil, domain.ErrInvalidRole
	}

	dailyLimit := s.cfg.Quota.DefaultDailyLimit
	if req.DailyESIMLimit != nil {
		dailyLimit = *req.DailyESIMLimit
	}
	maxGB := s.cfg.Quota.DefaultMaxGBPerSIM
	if req.MaxGBPerESIM != nil {
		maxGB = *req.MaxGBPerESIM
	}
	if dailyLimit < 0 || maxGB <= 0 {
		return nil, domain.ErrInvalidQuota
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	company := strings.TrimSpace(req.CompanyName)
	tenant := &domain.Tenant{
		ID:             s.genID.Generate(),
		Username:       username,
		PasswordHash:   hash,
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Role:           role,
		IsActive:       true,
		DailyESIMLimit: dailyLimit,
		MaxGBPerESIM:   maxGB,
		CompanyName:    company,
		CompanySlug:    slug.Make(company),
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("role", tenant.Role),
	)
	return tenant, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateTenantRequest) (*domain.Tenant, error) {
	fields := map[string]any{}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.DailyESIMLimit != nil {
		if *req.DailyESIMLimit < 0 {
			return nil, domain.ErrInvalidQuota
		}
		fields["daily_esim_limit"] = *req.DailyESIMLimit
	}
	if req.MaxGBPerESIM != nil {
		if *req.MaxGBPerESIM <= 0 {
			return nil, domain.ErrInvalidQuota
		}
		fields["max_gb_per_esim"] = *req.MaxGBPerESIM
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
