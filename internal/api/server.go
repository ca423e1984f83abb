// Package api exposes the management surface: subscriber administration,
// event-ledger access, webhook event injection, health and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultbot/internal/storage"
	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

type Config struct {
	Addr string
}

// Enqueuer is the queue slice the webhook endpoint needs. Nil when the
// queue is disabled.
type Enqueuer interface {
	Enqueue(ctx context.Context, p *vaults.RebalancePayload) error
}

type Server struct {
	cfg   Config
	store storage.Store
	queue Enqueuer
	log   logx.Logger
	http  *http.Server
}

func NewServer(cfg Config, store storage.Store, queue Enqueuer, log logx.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, store: store, queue: queue, log: log}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/subscribers", s.listSubscribers)
	r.DELETE("/subscribers/:id", s.removeSubscriber)

	r.GET("/events/:id", s.getEvent)
	r.POST("/events", s.createEvent)

	r.POST("/rebalances", s.enqueueRebalance)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is cancelled, then drains with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("management api listening", logx.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(sctx); err != nil {
		return err
	}
	return <-errCh
}
