package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/esimgate/internal/audit/domain"
	"github.com/smallbiznis/esimgate/internal/cache"
	"github.com/smallbiznis/esimgate/internal/clock"
	"github.com/smallbiznis/esimgate/internal/config"
	esimdomain "github.com/smallbiznis/esimgate/internal/esim/domain"
	"github.com/smallbiznis/esimgate/internal/provider"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
	purchaserepo "github.com/smallbiznis/esimgate/internal/purchase/repository"
	quotadomain "github.com/smallbiznis/esimgate/internal/quota/domain"
	quotaservice "github.com/smallbiznis/esimgate/internal/quota/service"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/esimgate/internal/tenant/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Stubs --

type providerStub struct {
	mu          sync.Mutex
	offers      []provider.Offer
	statuses    map[string]string
	qr          []byte
	listErr     error
	createErr   error
	statusErr   error
	qrErr       error
	statusCalls int
}

func (p *providerStub) ListOffers(ctx context.Context, country string, limit, offset int) ([]provider.Offer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	if offset >= len(p.offers) {
		return nil, nil
	}
	end := offset + limit
	if end > len(p.offers) {
		end = len(p.offers)
	}
	return p.offers[offset:end], nil
}

func (p *providerStub) CreatePurchase(ctx context.Context, offerID, transactionID string) (*provider.Purchase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &provider.Purchase{
		TransactionID: transactionID,
		OfferID:       offerID,
		Status:        "ACCEPTED",
	}, nil
}

func (p *providerStub) GetPurchaseStatus(ctx context.Context, transactionID string) (*provider.Purchase, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusCalls++
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	status, ok := p.statuses[transactionID]
	if !ok {
		status = "PENDING"
	}
	return &provider.Purchase{TransactionID: transactionID, Status: status}, nil
}

func (p *providerStub) GetPurchaseQRCode(ctx context.Context, transactionID string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.qrErr != nil {
		return nil, p.qrErr
	}
	return p.qr, nil
}

func (p *providerStub) setStatus(txID, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.statuses == nil {
		p.statuses = make(map[string]string)
	}
	p.statuses[txID] = status
}

func (p *providerStub) setStatusErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusErr = err
}

func (p *providerStub) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCalls
}

type recorderStub struct {
	mu      sync.Mutex
	entries []auditdomain.Entry
}

func (r *recorderStub) Record(ctx context.Context, entry auditdomain.Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// -- Fixture --

type fixture struct {
	svc      esimdomain.Service
	db       *gorm.DB
	prov     *providerStub
	store    cache.Store
	clk      *clock.FakeClock
	tenantID snowflake.ID
	node     *snowflake.Node
	repo     purchasedomain.Repository
}

func testConfig() config.Config {
	return config.Config{
		Cache: config.CacheTTLConfig{
			Offers:        300 * time.Second,
			Status:        30 * time.Second,
			QRCode:        time.Hour,
			PurchaseLists: 60 * time.Second,
		},
		Provider: config.ProviderConfig{Country: "TR", PageSize: 10},
		Quota:    config.QuotaConfig{DefaultDailyLimit: 5, DefaultMaxGBPerSIM: 20},
		Refresh:  config.RefreshConfig{RecentCount: 0, Workers: 1},
	}
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.Exec("PRAGMA busy_timeout = 5000").Error)

	require.NoError(t, db.AutoMigrate(
		&tenantdomain.Tenant{},
		&purchasedomain.Purchase{},
		&quotadomain.DailyUsage{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	tenant := tenantdomain.Tenant{
		ID:             node.Generate(),
		Username:       "acme",
		PasswordHash:   "x",
		Role:           tenantdomain.RoleTenant,
		IsActive:       true,
		DailyESIMLimit: 5,
		MaxGBPerESIM:   20,
	}
	require.NoError(t, db.Create(&tenant).Error)

	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	store := cache.NewMemoryStore(clk)
	t.Cleanup(store.Close)

	prov := &providerStub{
		offers: []provider.Offer{
			{ID: "offer-5gb", Name: "5GB 30d", Country: "TR", DataGB: 5, ValidityDays: 30, Price: decimal.NewFromInt(10), Currency: "USD", Enabled: true},
			{ID: "offer-50gb", Name: "50GB 30d", Country: "TR", DataGB: 50, ValidityDays: 30, Price: decimal.NewFromInt(80), Currency: "USD", Enabled: true},
			{ID: "offer-off", Name: "Disabled", Country: "TR", DataGB: 1, ValidityDays: 7, Price: decimal.NewFromInt(2), Currency: "USD", Enabled: false},
		},
	}

	cfg := testConfig()
	log := zap.NewNop()
	repo := purchaserepo.NewRepository(db, clk)
	tracker := quotaservice.NewTracker(quotaservice.TrackerParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
	})

	svc := NewService(ServiceParam{
		Cfg:       cfg,
		Vocab:     config.NewStaticVocabularyHolder(config.DefaultVocabulary()),
		Log:       log,
		DB:        db,
		GenID:     node,
		Cache:     store,
		Provider:  prov,
		Purchases: repo,
		Tenants:   tenantrepo.NewRepository(db),
		Quota:     tracker,
		Audit:     &recorderStub{},
		Refresher: NewRefresher(cfg, log),
	})

	return &fixture{
		svc:      svc,
		db:       db,
		prov:     prov,
		store:    store,
		clk:      clk,
		tenantID: tenant.ID,
		node:     node,
		repo:     repo,
	}
}

func (f *fixture) createPurchase(t *testing.T) *purchasedomain.Purchase {
	t.Helper()
	p, err := f.svc.CreatePurchase(context.Background(), esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-5gb",
	})
	require.NoError(t, err)
	return p
}

// -- Tests --

func TestListOffersFiltersAndCaches(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	offers, err := f.svc.ListOffers(ctx, false)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	for _, o := range offers {
		require.True(t, o.Enabled)
	}

	// Second read comes from the cache even if the provider dies.
	f.prov.mu.Lock()
	f.prov.listErr = provider.ErrUnavailable
	f.prov.mu.Unlock()

	offers, err = f.svc.ListOffers(ctx, false)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	// Forced refresh goes back to the provider and surfaces its failure.
	_, err = f.svc.ListOffers(ctx, true)
	require.ErrorIs(t, err, provider.ErrUnavailable)
}

func TestCreatePurchasePersistsAndSeedsCache(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	p := f.createPurchase(t)
	require.NotEmpty(t, p.TransactionID)
	require.Equal(t, purchasedomain.StatusPending, p.Status)
	require.Equal(t, 5, p.GBLimit)

	stored, err := f.repo.GetByTransactionID(ctx, p.TransactionID)
	require.NoError(t, err)
	require.Equal(t, f.tenantID, stored.TenantID)

	// The status cache is seeded at creation, so the first poll does not
	// touch the provider.
	before := f.prov.calls()
	result, err := f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, false)
	require.NoError(t, err)
	require.Equal(t, esimdomain.SourceCache, result.Source)
	require.Equal(t, before, f.prov.calls())
}

func TestCreatePurchaseRejectsOverCap(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.CreatePurchase(context.Background(), esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-50gb",
	})
	require.ErrorIs(t, err, esimdomain.ErrDataCapExceeded)
}

func TestCreatePurchaseUnknownOffer(t *testing.T) {
	f := setupFixture(t)

	_, err := f.svc.CreatePurchase(context.Background(), esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-nope",
	})
	require.ErrorIs(t, err, esimdomain.ErrOfferNotFound)
}

func TestCreatePurchaseFindsOfferBeyondFirstPage(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Pad the catalog so the wanted offers land past the first page.
	f.prov.mu.Lock()
	for i := 0; i < 10; i++ {
		f.prov.offers = append(f.prov.offers, provider.Offer{
			ID: fmt.Sprintf("offer-pad-%d", i), Name: "Pad", Country: "TR",
			DataGB: 1, ValidityDays: 7, Price: decimal.NewFromInt(2), Currency: "USD", Enabled: true,
		})
	}
	f.prov.offers = append(f.prov.offers,
		provider.Offer{ID: "offer-deep", Name: "3GB 30d", Country: "TR", DataGB: 3, ValidityDays: 30, Price: decimal.NewFromInt(6), Currency: "USD", Enabled: true},
		provider.Offer{ID: "offer-deep-off", Name: "Disabled", Country: "TR", DataGB: 3, ValidityDays: 30, Price: decimal.NewFromInt(6), Currency: "USD", Enabled: false},
	)
	f.prov.mu.Unlock()

	p, err := f.svc.CreatePurchase(ctx, esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-deep",
	})
	require.NoError(t, err)
	require.Equal(t, "offer-deep", p.OfferID)
	require.Equal(t, 3, p.GBLimit)

	// Disabled offers stay unpurchasable no matter which page they sit on.
	_, err = f.svc.CreatePurchase(ctx, esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-deep-off",
	})
	require.ErrorIs(t, err, esimdomain.ErrOfferNotFound)

	_, err = f.svc.CreatePurchase(ctx, esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-nowhere",
	})
	require.ErrorIs(t, err, esimdomain.ErrOfferNotFound)
}

func TestCreatePurchaseProviderFailureLeavesNoRow(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.prov.mu.Lock()
	f.prov.createErr = provider.ErrRejected
	f.prov.mu.Unlock()

	_, err := f.svc.CreatePurchase(ctx, esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-5gb",
	})
	require.ErrorIs(t, err, provider.ErrRejected)

	var count int64
	require.NoError(t, f.db.Model(&purchasedomain.Purchase{}).Count(&count).Error)
	require.Zero(t, count)

	// The quota slot stays consumed: failed attempts still count.
	var usage quotadomain.DailyUsage
	require.NoError(t, f.db.Where("tenant_id = ?", f.tenantID).First(&usage).Error)
	require.Equal(t, 1, usage.ESIMsCreated)
}

func TestCreatePurchaseQuotaExhaustion(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.CreatePurchase(ctx, esimdomain.CreatePurchaseRequest{
			TenantID: f.tenantID,
			OfferID:  "offer-5gb",
		})
		require.NoError(t, err)
	}

	_, err := f.svc.CreatePurchase(ctx, esimdomain.CreatePurchaseRequest{
		TenantID: f.tenantID,
		OfferID:  "offer-5gb",
	})
	qe, ok := quotadomain.IsQuotaExceeded(err)
	require.True(t, ok)
	require.Equal(t, 5, qe.Decision.Used)
}

func TestGetStatusReconcilesAndInvalidates(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	p := f.createPurchase(t)

	// Provider moves the purchase along; cached value is still pending.
	f.prov.setStatus(p.TransactionID, "COMPLETED")

	result, err := f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, false)
	require.NoError(t, err)
	require.Equal(t, purchasedomain.StatusPending, result.Status)
	require.Equal(t, esimdomain.SourceCache, result.Source)

	// Forced refresh observes the transition, reconciles the store, and
	// repopulates the cache.
	result, err = f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, true)
	require.NoError(t, err)
	require.Equal(t, purchasedomain.StatusActive, result.Status)
	require.Equal(t, esimdomain.SourceProvider, result.Source)
	require.True(t, result.QRReady)

	stored, err := f.repo.GetByTransactionID(ctx, p.TransactionID)
	require.NoError(t, err)
	require.Equal(t, purchasedomain.StatusActive, stored.Status)

	// No read after the transition observes the stale pending status.
	result, err = f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, false)
	require.NoError(t, err)
	require.Equal(t, purchasedomain.StatusActive, result.Status)
	require.Equal(t, esimdomain.SourceCache, result.Source)
}

func TestGetStatusProviderDownFallsBackToStore(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	p := f.createPurchase(t)

	f.prov.setStatusErr(provider.ErrUnavailable)

	result, err := f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, true)
	require.NoError(t, err)
	require.Equal(t, purchasedomain.StatusPending, result.Status)
	require.Equal(t, esimdomain.SourceStore, result.Source)
}

func TestGetStatusUnknownTransaction(t *testing.T) {
	f := setupFixture(t)

	// Missing purchases 404 regardless of provider reachability.
	f.prov.setStatusErr(provider.ErrUnavailable)

	_, err := f.svc.GetStatus(context.Background(), f.tenantID, "tx-missing", false)
	require.ErrorIs(t, err, purchasedomain.ErrNotFound)
}

func TestGetStatusOwnershipIsolation(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	p := f.createPurchase(t)

	other := tenantdomain.Tenant{
		ID:             f.node.Generate(),
		Username:       "rival",
		PasswordHash:   "x",
		Role:           tenantdomain.RoleTenant,
		IsActive:       true,
		DailyESIMLimit: 5,
		MaxGBPerESIM:   20,
	}
	require.NoError(t, f.db.Create(&other).Error)

	_, err := f.svc.GetStatus(ctx, other.ID, p.TransactionID, false)
	require.ErrorIs(t, err, esimdomain.ErrForbidden)

	_, err = f.svc.GetQRCode(ctx, other.ID, p.TransactionID)
	require.ErrorIs(t, err, esimdomain.ErrForbidden)
}

func TestGetQRCodeRechecksReadiness(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	p := f.createPurchase(t)

	// Still pending on the provider side.
	_, err := f.svc.GetQRCode(ctx, f.tenantID, p.TransactionID)
	nr, ok := esimdomain.IsNotReady(err)
	require.True(t, ok)
	require.Equal(t, purchasedomain.StatusPending, nr.Status)

	f.prov.setStatus(p.TransactionID, "COMPLETED")
	f.prov.mu.Lock()
	f.prov.qr = []byte("png-bytes")
	f.prov.mu.Unlock()

	payload, err := f.svc.GetQRCode(ctx, f.tenantID, p.TransactionID)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), payload)

	// Cancellation on the provider side revokes access even though the QR
	// payload is still cached.
	f.prov.setStatus(p.TransactionID, "CANCELLED")
	_, err = f.svc.GetQRCode(ctx, f.tenantID, p.TransactionID)
	nr, ok = esimdomain.IsNotReady(err)
	require.True(t, ok)
	require.Equal(t, purchasedomain.StatusCancelled, nr.Status)
}

func TestListPurchasesCacheInvalidatedByCreate(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	f.createPurchase(t)

	purchases, err := f.svc.ListPurchases(ctx, f.tenantID, false)
	require.NoError(t, err)
	require.Len(t, purchases, 1)

	// A new purchase invalidates the cached list.
	f.createPurchase(t)

	purchases, err = f.svc.ListPurchases(ctx, f.tenantID, false)
	require.NoError(t, err)
	require.Len(t, purchases, 2)
}

func TestStatusCacheExpires(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	p := f.createPurchase(t)

	before := f.prov.calls()
	_, err := f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, false)
	require.NoError(t, err)
	require.Equal(t, before, f.prov.calls())

	f.clk.Advance(31 * time.Second)

	_, err = f.svc.GetStatus(ctx, f.tenantID, p.TransactionID, false)
	require.NoError(t, err)
	require.Equal(t, before+1, f.prov.calls())
}
