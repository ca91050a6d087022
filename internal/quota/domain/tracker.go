package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Decision is the outcome of one check-and-reserve attempt.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}

// Tracker admits or rejects purchases against the tenant's daily limit.
type Tracker interface {
	// CheckAndReserve atomically admits one eSIM creation of requestedGB
	// for tenantID today. Check and increment are a single unit: under
	// concurrent calls at most `limit` reservations succeed per day. A
	// disallowed attempt changes no state.
	CheckAndReserve(ctx context.Context, tenantID snowflake.ID, requestedGB int) (Decision, error)
	// Usage reports today's counter without reserving.
	Usage(ctx context.Context, tenantID snowflake.ID) (Decision, error)
}

var ErrTenantNotFound = errors.New("quota_tenant_not_found")

// QuotaExceededError carries the figures shown to the rejected tenant.
type QuotaExceededError struct {
	Decision Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota_exceeded: limit=%d used=%d", e.Decision.Limit, e.Decision.Used)
}

// IsQuotaExceeded reports whether err is a quota rejection.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
