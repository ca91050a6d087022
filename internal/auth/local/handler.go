package local

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/esimgate/internal/audit/domain"
	authdomain "github.com/smallbiznis/esimgate/internal/auth/domain"
	"github.com/smallbiznis/esimgate/internal/auth/session"
	"go.uber.org/zap"
)

// Handler manages username/password auth endpoints.
type Handler struct {
	authsvc  authdomain.Service
	sessions *session.Manager
	audit    auditdomain.Recorder
	log      *zap.Logger
}

func NewHandler(authsvc authdomain.Service, sessions *session.Manager, audit auditdomain.Recorder, log *zap.Logger) *Handler {
	return &Handler{
		authsvc:  authsvc,
		sessions: sessions,
		audit:    audit,
		log:      log.Named("auth.local.handler"),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	group := r.Group("/auth")
	group.POST("/login", h.Login)
	group.POST("/logout", h.Logout)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	TenantID  string `json:"tenant_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAuthError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := h.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrAccountDisabled) {
			writeAuthError(c, http.StatusForbidden, "account_disabled")
			return
		}
		writeAuthError(c, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	h.sessions.Set(c, result.RawToken, result.ExpiresAt)

	h.audit.Record(c.Request.Context(), auditdomain.Entry{
		ActorID:   &result.Tenant.ID,
		Action:    "LOGIN",
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, loginResponse{
		TenantID:  result.Tenant.ID.String(),
		Username:  result.Tenant.Username,
		Role:      result.Tenant.Role,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	token, ok := h.sessions.ReadToken(c)
	if !ok {
		writeAuthError(c, http.StatusUnauthorized, "invalid_session")
		return
	}
	if err := h.authsvc.Logout(c.Request.Context(), token); err != nil {
		writeAuthError(c, http.StatusUnauthorized, "invalid_session")
		return
	}

	h.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func writeAuthError(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"error": code})
}
