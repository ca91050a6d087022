// Package cache provides the short-TTL key/value layer backing purchase
// reconciliation. Entries are a disposable derived view: losing one only
// costs an extra provider call, so every failure degrades to a miss and no
// operation ever returns an error to the caller.
package cache

import (
	"context"
	"time"
)

// Store is the injected cache abstraction. A single-process in-memory
// implementation and a shared redis implementation are interchangeable
// without touching calling code.
type Store interface {
	// Get returns the value for key, or false when absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl. Zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string)
	// InvalidatePrefix removes every key sharing prefix.
	InvalidatePrefix(ctx context.Context, prefix string)
}

const (
	keyOffers          = "offers:"
	keyStatus          = "status:"
	keyQRCode          = "qr:"
	keyTenantPurchases = "purchases:"
)

func OffersKey(country string) string { return keyOffers + country }

func StatusKey(transactionID string) string { return keyStatus + transactionID }

func QRCodeKey(transactionID string) string { return keyQRCode + transactionID }

func TenantPurchasesKey(tenantID string) string { return keyTenantPurchases + tenantID }

// TenantPurchasesPrefix covers every cached purchase view for one tenant.
func TenantPurchasesPrefix(tenantID string) string { return keyTenantPurchases + tenantID }
