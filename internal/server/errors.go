package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/esimgate/internal/auth/domain"
	"github.com/smallbiznis/esimgate/internal/authorization"
	esimdomain "github.com/smallbiznis/esimgate/internal/esim/domain"
	"github.com/smallbiznis/esimgate/internal/provider"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
	quotadomain "github.com/smallbiznis/esimgate/internal/quota/domain"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if qe, ok := quotadomain.IsQuotaExceeded(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "quota_exceeded",
			Message: "daily esim limit reached",
			Details: map[string]any{
				"limit":     qe.Decision.Limit,
				"used":      qe.Decision.Used,
				"remaining": qe.Decision.Remaining,
			},
		}
	}
	if nr, ok := esimdomain.IsNotReady(err); ok {
		return http.StatusConflict, errorPayload{
			Type:    "qr_not_ready",
			Message: "esim is not ready yet",
			Details: map[string]any{
				"status": nr.Status,
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	// The forbidden body is intentionally bare so probing another
	// tenant's transaction id learns nothing about the purchase.
	case errors.Is(err, esimdomain.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authdomain.ErrAccountDisabled),
		errors.Is(err, tenantdomain.ErrInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, tenantdomain.ErrUsernameTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "username already taken",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, provider.ErrUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_unavailable",
			Message: "provider is unreachable",
		}
	case errors.Is(err, provider.ErrRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_rejected",
			Message: "provider rejected the request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, purchasedomain.ErrNotFound),
		errors.Is(err, tenantdomain.ErrNotFound),
		errors.Is(err, esimdomain.ErrOfferNotFound),
		errors.Is(err, quotadomain.ErrTenantNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, esimdomain.ErrDataCapExceeded),
		errors.Is(err, tenantdomain.ErrInvalidUsername),
		errors.Is(err, tenantdomain.ErrInvalidPassword),
		errors.Is(err, tenantdomain.ErrInvalidRole),
		errors.Is(err, tenantdomain.ErrInvalidQuota):
		return true
	default:
		return false
	}
}
