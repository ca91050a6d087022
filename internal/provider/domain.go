// Package provider wraps the remote eSIM provisioning API. The provider is
// an opaque external service: this package maps requests and responses and
// classifies failures, nothing more.
package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable marks network or timeout failures and 5xx answers.
	// Status reads may fall back to the local store on this error.
	ErrUnavailable = errors.New("provider_unavailable")
	// ErrRejected marks application-level provider errors (non-2xx).
	// Never retried.
	ErrRejected = errors.New("provider_rejected")
)

// Offer is a provider-defined purchasable data package.
type Offer struct {
	ID           string          `json:"offerId"`
	Name         string          `json:"name"`
	Country      string          `json:"country"`
	DataGB       int             `json:"dataGB"`
	ValidityDays int             `json:"durationDays"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Enabled      bool            `json:"enabled"`
}

// Purchase is the provider's view of one purchase.
type Purchase struct {
	TransactionID  string          `json:"transactionId"`
	OfferID        string          `json:"offerId"`
	OfferName      string          `json:"offerName"`
	Status         string          `json:"status"`
	DataGB         int             `json:"dataGB"`
	Country        string          `json:"country"`
	ValidityDays   int             `json:"durationDays"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	DataUsedMB     int             `json:"dataUsedMB"`
	ActivationCode string          `json:"activationCode"`
	SMDPAddress    string          `json:"smdpAddress"`
}

// Client is the four-operation contract against the provisioning API.
type Client interface {
	// ListOffers has no side effects.
	ListOffers(ctx context.Context, country string, limit, offset int) ([]Offer, error)
	// CreatePurchase is idempotent on the provider side only by the
	// caller-generated transaction id. Callers must not retry blindly.
	CreatePurchase(ctx context.Context, offerID, transactionID string) (*Purchase, error)
	// GetPurchaseStatus is read-only and safe to retry.
	GetPurchaseStatus(ctx context.Context, transactionID string) (*Purchase, error)
	// GetPurchaseQRCode returns the opaque activation image payload.
	GetPurchaseQRCode(ctx context.Context, transactionID string) ([]byte, error)
}
