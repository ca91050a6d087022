package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	esimdomain "github.com/smallbiznis/esimgate/internal/esim/domain"
)

func (s *Server) ListOffers(c *gin.Context) {
	offers, err := s.esimSvc.ListOffers(c.Request.Context(), forceRefresh(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

// Both key spellings are in the wild, so the handler takes either.
type createPurchaseRequest struct {
	OfferID      string `json:"offer_id"`
	OfferIDCamel string `json:"offerId"`
}

func (r createPurchaseRequest) offerID() string {
	if v := strings.TrimSpace(r.OfferID); v != "" {
		return v
	}
	return strings.TrimSpace(r.OfferIDCamel)
}

func (s *Server) CreatePurchase(c *gin.Context) {
	tenant := currentTenant(c)

	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	offerID := req.offerID()
	if offerID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	purchase, err := s.esimSvc.CreatePurchase(c.Request.Context(), esimdomain.CreatePurchaseRequest{
		TenantID:  tenant.ID,
		OfferID:   offerID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Browser flows land on the status view; API clients get the row.
	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusSeeOther, "/status/"+purchase.TransactionID)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

func (s *Server) GetStatus(c *gin.Context) {
	tenant := currentTenant(c)
	txID := strings.TrimSpace(c.Param("txId"))
	if txID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.esimSvc.GetStatus(c.Request.Context(), tenant.ID, txID, forceRefresh(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetQRCode(c *gin.Context) {
	tenant := currentTenant(c)
	txID := strings.TrimSpace(c.Param("txId"))
	if txID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payload, err := s.esimSvc.GetQRCode(c.Request.Context(), tenant.ID, txID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", payload)
}

func (s *Server) ListPurchases(c *gin.Context) {
	tenant := currentTenant(c)

	purchases, err := s.esimSvc.ListPurchases(c.Request.Context(), tenant.ID, forceRefresh(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func forceRefresh(c *gin.Context) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query("refresh")))
	if err != nil {
		return false
	}
	return v
}
