package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/esimgate/internal/audit/domain"
	authdomain "github.com/smallbiznis/esimgate/internal/auth/domain"
	"github.com/smallbiznis/esimgate/internal/auth/session"
	"github.com/smallbiznis/esimgate/internal/authorization"
	"github.com/smallbiznis/esimgate/internal/config"
	esimdomain "github.com/smallbiznis/esimgate/internal/esim/domain"
	quotadomain "github.com/smallbiznis/esimgate/internal/quota/domain"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	db        *gorm.DB
	authsvc   authdomain.Service
	sessions  *session.Manager
	authzSvc  authorization.Service
	esimSvc   esimdomain.Service
	tenantSvc tenantdomain.Service
	quota     quotadomain.Tracker
	auditRead auditdomain.Reader
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Authsvc   authdomain.Service
	Sessions  *session.Manager
	AuthzSvc  authorization.Service
	ESIMSvc   esimdomain.Service
	TenantSvc tenantdomain.Service
	Quota     quotadomain.Tracker
	AuditRead auditdomain.Reader
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		db:        p.DB,
		authsvc:   p.Authsvc,
		sessions:  p.Sessions,
		authzSvc:  p.AuthzSvc,
		esimSvc:   p.ESIMSvc,
		tenantSvc: p.TenantSvc,
		quota:     p.Quota,
		auditRead: p.AuditRead,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/", s.AuthRequired())

	api.GET("/offers", s.authorize(authorization.ObjectOffer, authorization.ActionView), s.ListOffers)
	api.POST("/purchases", s.authorize(authorization.ObjectESIM, authorization.ActionPurchase), s.CreatePurchase)
	api.GET("/purchases", s.authorize(authorization.ObjectESIM, authorization.ActionView), s.ListPurchases)
	api.GET("/status/:txId", s.authorize(authorization.ObjectESIM, authorization.ActionView), s.GetStatus)
	api.GET("/qrcode/:txId", s.authorize(authorization.ObjectESIM, authorization.ActionView), s.GetQRCode)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired())

	admin.GET("/stats", s.authorize(authorization.ObjectStats, authorization.ActionView), s.GetStats)
	admin.GET("/logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListLogs)
	admin.GET("/users", s.authorize(authorization.ObjectTenant, authorization.ActionView), s.ListTenants)
	admin.POST("/users", s.authorize(authorization.ObjectTenant, authorization.ActionManage), s.CreateTenant)
	admin.PATCH("/users/:id", s.authorize(authorization.ObjectTenant, authorization.ActionManage), s.UpdateTenant)
}
