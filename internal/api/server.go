package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers   *Handlers
	CronSecret string
	AdminToken string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(), LimitBody())

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := cfg.Handlers
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	v1.POST("/webhooks/deposit", h.DepositWebhook)
	v1.POST("/deposits/monitor", h.MonitorPair)
	v1.GET("/deposits/monitor", RequireBearer(cfg.CronSecret), h.MonitorAll)
	v1.POST("/deposits/status", h.DepositStatus)
	v1.GET("/deposits/status", h.UserDeposits)

	admin := v1.Group("/admin", RequireBearer(cfg.AdminToken))
	admin.GET("/deposits/orphans", h.ListOrphans)
	admin.POST("/deposits/:id/assign", h.AssignOrphan)
	admin.POST("/deposits/:id/approve", h.ApproveClaim)
	admin.POST("/deposits/:id/reject", h.RejectClaim)
	admin.GET("/users/:id/balance", h.UserBalance)

	return r
}

// Server runs the gin router on an http.Server with graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Start serves in the background. Errors other than a clean shutdown are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errs := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server failed: %w", err)
		}
		close(errs)
	}()
	return errs
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
