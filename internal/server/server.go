package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/smsrent/internal/config"
	"github.com/smallbiznis/smsrent/internal/observability"
	obslogger "github.com/smallbiznis/smsrent/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/smsrent/internal/observability/metrics"
	obstracing "github.com/smallbiznis/smsrent/internal/observability/tracing"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerservice "github.com/smallbiznis/smsrent/internal/provider/service"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	reconciledomain "github.com/smallbiznis/smsrent/internal/reconcile/domain"
	webhookdomain "github.com/smallbiznis/smsrent/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine     *gin.Engine
	cfg        config.Config
	providers  *providerservice.Service
	numbers    phonedomain.Service
	reconcile  reconciledomain.Service
	webhooks   webhookdomain.Service
	guard      *ratelimit.Guard
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Providers  *providerservice.Service
	Numbers    phonedomain.Service
	Reconcile  reconciledomain.Service
	Webhooks   webhookdomain.Service
	Guard      *ratelimit.Guard    `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		providers:  p.Providers,
		numbers:    p.Numbers,
		reconcile:  p.Reconcile,
		webhooks:   p.Webhooks,
		guard:      p.Guard,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	s.registerAPIRoutes()
	s.registerWebhookRoutes()
	if !s.cfg.IsProduction() {
		s.registerDebugRoutes()
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Providers --------
	api.GET("/providers", s.ListProviders)
	api.GET("/providers/:provider/catalog", s.GetProviderCatalog)
	api.GET("/providers/:provider/active", s.ListProviderActive)
	api.POST("/providers/:provider/sync", s.SyncProvider)

	// -------- Phone numbers --------
	api.POST("/phone-numbers", s.RentRateLimit(), s.RentNumber)
	api.GET("/phone-numbers", s.ListPhoneNumbers)
	api.GET("/phone-numbers/:id", s.GetPhoneNumber)
	api.GET("/phone-numbers/:id/messages", s.ListPhoneNumberMessages)
	api.POST("/phone-numbers/:id/cancel", s.CancelPhoneNumber)
	api.POST("/phone-numbers/:id/extend", s.ExtendPhoneNumber)
	api.POST("/phone-numbers/:id/resolve", s.ResolvePhoneNumber)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/api/webhooks")

	hooks.POST("/sms", s.HandleGenericWebhook)
	hooks.POST("/:provider", s.HandleProviderWebhook)
}

func (s *Server) registerDebugRoutes() {
	debug := s.engine.Group("/api/debug")

	debug.GET("/providers/:provider/mapping", s.DebugProviderMapping)
	debug.POST("/providers/:provider/status", s.DebugProviderStatus)
}
