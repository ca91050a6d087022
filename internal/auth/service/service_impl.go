package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimgate/internal/auth/domain"
	"github.com/smallbiznis/esimgate/internal/auth/password"
	"github.com/smallbiznis/esimgate/internal/clock"
	"github.com/smallbiznis/esimgate/internal/config"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"go.uber.org/zap"
)

const sessionTokenBytes = 32

type Service struct {
	log      *zap.Logger
	cfg      config.Config
	clk      clock.Clock
	tenants  tenantdomain.Repository
	sessions domain.SessionRepository
	genID    *snowflake.Node
}

func New(log *zap.Logger, cfg config.Config, clk clock.Clock, tenants tenantdomain.Repository, sessions domain.SessionRepository, genID *snowflake.Node) domain.Service {
	return &Service{
		log:      log.Named("auth.service"),
		cfg:      cfg,
		clk:      clk,
		tenants:  tenants,
		sessions: sessions,
		genID:    genID,
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	tenant, err := s.tenants.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, tenantdomain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, tenant.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !tenant.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		TenantID:         tenant.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(s.cfg.SessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if err := s.tenants.TouchLastLogin(ctx, tenant.ID); err != nil {
		s.log.Warn("update last login failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
	}

	return &domain.LoginResult{
		Tenant:    tenant,
		RawToken:  rawToken,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessions.RevokeSession(ctx, session.ID, s.clk.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, *tenantdomain.Tenant, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, nil, domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil, domain.ErrInvalidSession
		}
		return nil, nil, err
	}

	now := s.clk.Now()
	if session.RevokedAt != nil {
		return nil, nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, nil, domain.ErrSessionExpired
	}

	tenant, err := s.tenants.GetByID(ctx, session.TenantID)
	if err != nil {
		return nil, nil, err
	}
	if !tenant.IsActive {
		return nil, nil, domain.ErrAccountDisabled
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, nil, err
	}

	return session, tenant, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
