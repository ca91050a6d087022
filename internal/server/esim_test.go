package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	esimdomain "github.com/smallbiznis/esimgate/internal/esim/domain"
	"github.com/smallbiznis/esimgate/internal/provider"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"github.com/stretchr/testify/require"
)

type esimServiceStub struct {
	lastOfferID string
}

func (s *esimServiceStub) ListOffers(ctx context.Context, forceRefresh bool) ([]provider.Offer, error) {
	return nil, nil
}

func (s *esimServiceStub) CreatePurchase(ctx context.Context, req esimdomain.CreatePurchaseRequest) (*purchasedomain.Purchase, error) {
	s.lastOfferID = req.OfferID
	return &purchasedomain.Purchase{
		TenantID:      req.TenantID,
		OfferID:       req.OfferID,
		TransactionID: "tx-stub",
		Status:        purchasedomain.StatusPending,
	}, nil
}

func (s *esimServiceStub) GetStatus(ctx context.Context, tenantID snowflake.ID, transactionID string, forceRefresh bool) (esimdomain.StatusResult, error) {
	return esimdomain.StatusResult{}, nil
}

func (s *esimServiceStub) GetQRCode(ctx context.Context, tenantID snowflake.ID, transactionID string) ([]byte, error) {
	return nil, nil
}

func (s *esimServiceStub) ListPurchases(ctx context.Context, tenantID snowflake.ID, forceRefresh bool) ([]purchasedomain.Purchase, error) {
	return nil, nil
}

func newPurchaseRouter(t *testing.T) (*gin.Engine, *esimServiceStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub := &esimServiceStub{}
	srv := &Server{esimSvc: stub}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	tenant := &tenantdomain.Tenant{ID: node.Generate(), Username: "acme", Role: tenantdomain.RoleTenant, IsActive: true}

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.Use(func(c *gin.Context) {
		c.Set(contextTenantKey, tenant)
		c.Next()
	})
	r.POST("/purchases", srv.CreatePurchase)
	return r, stub
}

func postPurchase(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/purchases", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePurchaseAcceptsBothOfferKeySpellings(t *testing.T) {
	r, stub := newPurchaseRouter(t)

	w := postPurchase(t, r, `{"offer_id": "offer-5gb"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "offer-5gb", stub.lastOfferID)

	w = postPurchase(t, r, `{"offerId": "offer-50gb"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "offer-50gb", stub.lastOfferID)

	// snake_case wins when a client sends both.
	w = postPurchase(t, r, `{"offer_id": "offer-a", "offerId": "offer-b"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "offer-a", stub.lastOfferID)
}

func TestCreatePurchaseRejectsMissingOffer(t *testing.T) {
	r, stub := newPurchaseRouter(t)

	for _, body := range []string{`{}`, `{"offer_id": "  "}`, `{"offerId": ""}`} {
		w := postPurchase(t, r, body)
		require.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
	require.Empty(t, stub.lastOfferID)
}
