// Package domain contains the reconciliation engine contract: the single
// place that answers "what is the current status of purchase X" and
// "create a new purchase for tenant Y".
package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimgate/internal/provider"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
)

// Where a status answer came from. source=store marks a degraded answer
// served from the last known local state while the provider is down.
const (
	SourceCache    = "cache"
	SourceProvider = "provider"
	SourceStore    = "store"
)

type CreatePurchaseRequest struct {
	TenantID  snowflake.ID
	OfferID   string
	IPAddress string
	UserAgent string
}

// StatusResult is the reconciled answer for one purchase.
type StatusResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	QRReady       bool   `json:"qr_ready"`
	Source        string `json:"source"`
}

type Service interface {
	// ListOffers returns the enabled offers for the configured country,
	// cache-first.
	ListOffers(ctx context.Context, forceRefresh bool) ([]provider.Offer, error)
	// CreatePurchase enforces quota before any provider call and leaves
	// no partial row when the provider call fails.
	CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*purchasedomain.Purchase, error)
	// GetStatus answers cache-first, falls through to the provider, and
	// degrades to the store when the provider is unreachable.
	GetStatus(ctx context.Context, tenantID snowflake.ID, transactionID string, forceRefresh bool) (StatusResult, error)
	// GetQRCode re-checks readiness against the provider before serving.
	GetQRCode(ctx context.Context, tenantID snowflake.ID, transactionID string) ([]byte, error)
	// ListPurchases returns the tenant's purchases newest first and
	// kicks off a best-effort background refresh of the most recent few.
	ListPurchases(ctx context.Context, tenantID snowflake.ID, forceRefresh bool) ([]purchasedomain.Purchase, error)
}

var (
	// ErrForbidden: requester does not own the purchase. The body shown
	// to the caller carries no purchase data.
	ErrForbidden = errors.New("forbidden")
	// ErrOfferNotFound: the offer id is not in the provider's catalog.
	ErrOfferNotFound = errors.New("offer_not_found")
	// ErrDataCapExceeded: the offer's volume exceeds the tenant's
	// per-eSIM ceiling.
	ErrDataCapExceeded = errors.New("esim_data_cap_exceeded")
)

// NotReadyError is returned when the QR code is requested before the
// purchase reached a QR-ready status. It carries the current status so the
// caller can poll again.
type NotReadyError struct {
	Status string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("qr_not_ready: status=%s", e.Status)
}

// IsNotReady reports whether err is a QR readiness rejection.
func IsNotReady(err error) (*NotReadyError, bool) {
	var nr *NotReadyError
	if errors.As(err, &nr) {
		return nr, true
	}
	return nil, false
}
