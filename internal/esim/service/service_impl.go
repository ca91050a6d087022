package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/esimgate/internal/audit/domain"
	"github.com/smallbiznis/esimgate/internal/cache"
	"github.com/smallbiznis/esimgate/internal/config"
	esimdomain "github.com/smallbiznis/esimgate/internal/esim/domain"
	"github.com/smallbiznis/esimgate/internal/provider"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
	quotadomain "github.com/smallbiznis/esimgate/internal/quota/domain"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	Cfg       config.Config
	Vocab     *config.VocabularyHolder
	Log       *zap.Logger
	DB        *gorm.DB
	GenID     *snowflake.Node
	Cache     cache.Store
	Provider  provider.Client
	Purchases purchasedomain.Repository
	Tenants   tenantdomain.Repository
	Quota     quotadomain.Tracker
	Audit     auditdomain.Recorder
	Refresher *Refresher
}

// Service is the reconciliation engine. It mirrors whatever the provider
// reports; it never invents transitions of its own.
type Service struct {
	cfg       config.Config
	vocab     *config.VocabularyHolder
	log       *zap.Logger
	db        *gorm.DB
	genID     *snowflake.Node
	cache     cache.Store
	provider  provider.Client
	purchases purchasedomain.Repository
	tenants   tenantdomain.Repository
	quota     quotadomain.Tracker
	audit     auditdomain.Recorder
	refresher *Refresher
}

func NewService(p ServiceParam) esimdomain.Service {
	return &Service{
		cfg:       p.Cfg,
		vocab:     p.Vocab,
		log:       p.Log.Named("esim.service"),
		db:        p.DB,
		genID:     p.GenID,
		cache:     p.Cache,
		provider:  p.Provider,
		purchases: p.Purchases,
		tenants:   p.Tenants,
		quota:     p.Quota,
		audit:     p.Audit,
		refresher: p.Refresher,
	}
}

// statusEntry is the cached shape for one purchase status. The raw
// provider string rides along so QR readiness is always re-derived from
// the current vocabulary, not frozen at write time.
type statusEntry struct {
	Status         string `json:"status"`
	ProviderStatus string `json:"provider_status,omitempty"`
}

func (e statusEntry) qrReady(vocab *config.VocabularyHolder) bool {
	if e.ProviderStatus != "" {
		return vocab.QRReady(e.ProviderStatus)
	}
	return vocab.QRReady(e.Status)
}

func (s *Service) ListOffers(ctx context.Context, forceRefresh bool) ([]provider.Offer, error) {
	key := cache.OffersKey(s.cfg.Provider.Country)

	if !forceRefresh {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var offers []provider.Offer
			if err := json.Unmarshal(raw, &offers); err == nil {
				return offers, nil
			}
			s.cache.Delete(ctx, key)
		}
	}

	listed, err := s.provider.ListOffers(ctx, s.cfg.Provider.Country, s.cfg.Provider.PageSize, 0)
	if err != nil {
		return nil, err
	}

	offers := make([]provider.Offer, 0, len(listed))
	for _, offer := range listed {
		if offer.Enabled {
			offers = append(offers, offer)
		}
	}

	s.cacheSet(ctx, key, offers, s.cfg.Cache.Offers)
	return offers, nil
}

func (s *Service) CreatePurchase(ctx context.Context, req esimdomain.CreatePurchaseRequest) (*purchasedomain.Purchase, error) {
	tenant, err := s.tenants.GetByID(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !tenant.IsActive {
		return nil, tenantdomain.ErrInactive
	}

	offer, err := s.findOffer(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.DataGB > tenant.MaxGBPerESIM {
		return nil, esimdomain.ErrDataCapExceeded
	}

	// Quota is checked and reserved before the provider is touched. A
	// reservation is never released: counters only count up, and a
	// failed provider call still consumed an attempt.
	if _, err := s.quota.CheckAndReserve(ctx, tenant.ID, offer.DataGB); err != nil {
		return nil, err
	}

	transactionID := uuid.NewString()

	created, err := s.provider.CreatePurchase(ctx, offer.ID, transactionID)
	if err != nil {
		// Nothing was persisted; the provider failure is the outcome.
		return nil, err
	}

	providerStatus := strings.TrimSpace(created.Status)
	status := purchasedomain.StatusPending
	if providerStatus != "" {
		status = s.vocab.MapStatus(providerStatus)
	}

	row := &purchasedomain.Purchase{
		ID:             s.genID.Generate(),
		TenantID:       tenant.ID,
		OfferID:        offer.ID,
		OfferName:      firstNonEmpty(created.OfferName, offer.Name),
		GBLimit:        firstPositive(created.DataGB, offer.DataGB),
		Country:        firstNonEmpty(created.Country, offer.Country, s.cfg.Provider.Country),
		ValidityDays:   firstPositive(created.ValidityDays, offer.ValidityDays),
		TransactionID:  transactionID,
		Status:         status,
		Price:          offer.Price,
		Currency:       firstNonEmpty(created.Currency, offer.Currency),
		ActivationCode: created.ActivationCode,
		SMDPAddress:    created.SMDPAddress,
	}
	if !created.Price.IsZero() {
		row.Price = created.Price
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.purchases.WithTrx(tx).Create(ctx, row)
	}); err != nil {
		return nil, err
	}

	// Store first, then cache: a concurrent reader either misses and
	// repopulates from the store or sees exactly what was written.
	s.cacheSet(ctx, cache.StatusKey(transactionID), statusEntry{
		Status:         status,
		ProviderStatus: providerStatus,
	}, s.cfg.Cache.Status)
	s.cache.InvalidatePrefix(ctx, cache.TenantPurchasesPrefix(tenant.ID.String()))

	s.audit.Record(ctx, auditdomain.Entry{
		ActorID:    &tenant.ID,
		Action:     "PURCHASE_ESIM",
		PurchaseID: &row.ID,
		Detail:     "offer " + offer.ID,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
		Metadata: map[string]any{
			"transaction_id": transactionID,
			"gb_limit":       row.GBLimit,
		},
	})

	return row, nil
}

func (s *Service) GetStatus(ctx context.Context, tenantID snowflake.ID, transactionID string, forceRefresh bool) (esimdomain.StatusResult, error) {
	record, err := s.ownedPurchase(ctx, tenantID, transactionID)
	if err != nil {
		return esimdomain.StatusResult{}, err
	}

	if !forceRefresh {
		if entry, ok := s.cachedStatus(ctx, transactionID); ok {
			return esimdomain.StatusResult{
				TransactionID: transactionID,
				Status:        entry.Status,
				QRReady:       entry.qrReady(s.vocab),
				Source:        esimdomain.SourceCache,
			}, nil
		}
	}

	entry, source, err := s.refreshFromProvider(ctx, record)
	if err != nil {
		return esimdomain.StatusResult{}, err
	}
	return esimdomain.StatusResult{
		TransactionID: transactionID,
		Status:        entry.Status,
		QRReady:       entry.qrReady(s.vocab),
		Source:        source,
	}, nil
}

func (s *Service) GetQRCode(ctx context.Context, tenantID snowflake.ID, transactionID string) ([]byte, error) {
	record, err := s.ownedPurchase(ctx, tenantID, transactionID)
	if err != nil {
		return nil, err
	}

	// Readiness is re-checked fresh against the provider, never only
	// against a cached value: the purchase may have been cancelled since
	// the status entry was written.
	entry, _, err := s.refreshFromProvider(ctx, record)
	if err != nil {
		return nil, err
	}
	if !entry.qrReady(s.vocab) {
		return nil, &esimdomain.NotReadyError{Status: entry.Status}
	}

	key := cache.QRCodeKey(transactionID)
	if payload, ok := s.cache.Get(ctx, key); ok {
		return payload, nil
	}

	payload, err := s.provider.GetPurchaseQRCode(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, payload, s.cfg.Cache.QRCode)
	return payload, nil
}

func (s *Service) ListPurchases(ctx context.Context, tenantID snowflake.ID, forceRefresh bool) ([]purchasedomain.Purchase, error) {
	key := cache.TenantPurchasesKey(tenantID.String())

	if !forceRefresh {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var purchases []purchasedomain.Purchase
			if err := json.Unmarshal(raw, &purchases); err == nil {
				return purchases, nil
			}
			s.cache.Delete(ctx, key)
		}
	}

	purchases, err := s.purchases.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, purchases, s.cfg.Cache.PurchaseLists)

	s.scheduleRecentRefresh(purchases)
	return purchases, nil
}

// scheduleRecentRefresh fires a detached status refresh for the most
// recent non-terminal purchases. Bounded by the refresher's worker pool;
// failure never reaches the list response.
func (s *Service) scheduleRecentRefresh(purchases []purchasedomain.Purchase) {
	scheduled := 0
	for _, p := range purchases {
		if scheduled >= s.cfg.Refresh.RecentCount {
			break
		}
		if purchasedomain.IsTerminal(p.Status) {
			continue
		}
		record := p
		s.refresher.Submit("status:"+record.TransactionID, func(ctx context.Context) error {
			_, _, err := s.refreshFromProvider(ctx, &record)
			return err
		})
		scheduled++
	}
}

// refreshFromProvider fetches the provider's view of record, reconciles
// the store when the status moved, and maintains the cache. On provider
// unavailability it degrades to the stored status instead of failing.
func (s *Service) refreshFromProvider(ctx context.Context, record *purchasedomain.Purchase) (statusEntry, string, error) {
	remote, err := s.provider.GetPurchaseStatus(ctx, record.TransactionID)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			return statusEntry{Status: record.Status}, esimdomain.SourceStore, nil
		}
		return statusEntry{}, "", err
	}

	providerStatus := strings.TrimSpace(remote.Status)
	status := purchasedomain.StatusPending
	if providerStatus != "" {
		status = s.vocab.MapStatus(providerStatus)
	}

	if status != record.Status {
		updated, err := s.purchases.Reconcile(ctx, record.TransactionID, status)
		if err != nil {
			// The provider answered; a failed local write must not fail
			// the caller. The next poll retries the reconciliation.
			s.log.Warn("status reconciliation write failed",
				zap.String("transaction_id", record.TransactionID),
				zap.String("status", status),
				zap.Error(err),
			)
		} else if updated {
			s.cache.Delete(ctx, cache.StatusKey(record.TransactionID))
			s.cache.InvalidatePrefix(ctx, cache.TenantPurchasesPrefix(record.TenantID.String()))
			record.Status = status
		}
	}

	entry := statusEntry{Status: status, ProviderStatus: providerStatus}
	s.cacheSet(ctx, cache.StatusKey(record.TransactionID), entry, s.cfg.Cache.Status)
	return entry, esimdomain.SourceProvider, nil
}

// ownedPurchase loads the record and enforces ownership. Existence is a
// hard requirement; ownership failures carry no purchase data.
func (s *Service) ownedPurchase(ctx context.Context, tenantID snowflake.ID, transactionID string) (*purchasedomain.Purchase, error) {
	record, err := s.purchases.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if record.TenantID != tenantID {
		return nil, esimdomain.ErrForbidden
	}
	return record, nil
}

func (s *Service) findOffer(ctx context.Context, offerID string) (*provider.Offer, error) {
	offers, err := s.ListOffers(ctx, false)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		if offers[i].ID == offerID {
			return &offers[i], nil
		}
	}

	// The cache holds the first page only. Walk the catalog before
	// declaring the offer unknown.
	pageSize := s.cfg.Provider.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	for offset := 0; ; offset += pageSize {
		page, err := s.provider.ListOffers(ctx, s.cfg.Provider.Country, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for i := range page {
			if page[i].ID == offerID {
				if !page[i].Enabled {
					return nil, esimdomain.ErrOfferNotFound
				}
				return &page[i], nil
			}
		}
		if len(page) < pageSize {
			return nil, esimdomain.ErrOfferNotFound
		}
	}
}

func (s *Service) cachedStatus(ctx context.Context, transactionID string) (statusEntry, bool) {
	raw, ok := s.cache.Get(ctx, cache.StatusKey(transactionID))
	if !ok {
		return statusEntry{}, false
	}
	var entry statusEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.cache.Delete(ctx, cache.StatusKey(transactionID))
		return statusEntry{}, false
	}
	return entry, true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, raw, ttl)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
