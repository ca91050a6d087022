package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
)

type statsResponse struct {
	Tenants       int64            `json:"tenants"`
	ActiveTenants int64            `json:"active_tenants"`
	Purchases     int64            `json:"purchases"`
	ByStatus      map[string]int64 `json:"purchases_by_status"`
}

func (s *Server) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	var resp statsResponse

	if err := s.db.WithContext(ctx).Model(&tenantdomain.Tenant{}).Count(&resp.Tenants).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.db.WithContext(ctx).Model(&tenantdomain.Tenant{}).
		Where("is_active = ?", true).
		Count(&resp.ActiveTenants).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.db.WithContext(ctx).Model(&purchasedomain.Purchase{}).Count(&resp.Purchases).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	var rows []struct {
		Status string `gorm:"column:status"`
		Total  int64  `gorm:"column:total"`
	}
	if err := s.db.WithContext(ctx).Model(&purchasedomain.Purchase{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	resp.ByStatus = make(map[string]int64, len(rows))
	for _, row := range rows {
		resp.ByStatus[row.Status] = row.Total
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListLogs(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	logs, err := s.auditRead.List(c.Request.Context(), limit, offset)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) ListTenants(c *gin.Context) {
	tenants, err := s.tenantSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": tenants})
}

func (s *Server) CreateTenant(c *gin.Context) {
	var req tenantdomain.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tenant, err := s.tenantSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (s *Server) UpdateTenant(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req tenantdomain.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tenant, err := s.tenantSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
