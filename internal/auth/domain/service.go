package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
)

type LoginRequest struct {
	Username  string
	Password  string
	UserAgent string
	IPAddress string
}

// LoginResult carries the raw session token exactly once, to be set as a
// cookie and then forgotten.
type LoginResult struct {
	Tenant    *tenantdomain.Tenant
	RawToken  string
	SessionID snowflake.ID
	ExpiresAt time.Time
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	// Authenticate resolves a raw token to a live session and the tenant
	// behind it, refreshing last_seen_at.
	Authenticate(ctx context.Context, rawToken string) (*Session, *tenantdomain.Tenant, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}
