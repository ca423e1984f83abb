// Package app wires the services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vaultbot/internal/api"
	"vaultbot/internal/broadcast"
	"vaultbot/internal/config"
	"vaultbot/internal/digest"
	"vaultbot/internal/queue"
	"vaultbot/internal/rebalance"
	"vaultbot/internal/storage"
	"vaultbot/internal/summary"
	"vaultbot/internal/transport/telegram"
	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

type App struct {
	cfg *config.Config
	log logx.Logger

	store   storage.Store
	cache   *summary.Cache
	adapter *telegram.Adapter
	bcast   *broadcast.Service
	pipe    *rebalance.Pipeline
	poller  *rebalance.Poller
	queue   *queue.Queue
	worker  *queue.Worker
	apiSrv  *api.Server
	digest  *digest.Service
}

func New(cfg *config.Config, log logx.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DatabaseURL: cfg.Storage.DatabaseURL,
		BusyTimeout: cfg.Storage.BusyTimeout,
	}, log.With(logx.String("svc", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	client := vaults.NewClient(vaults.Config{
		StatsURL:      cfg.Upstream.StatsURL,
		RebalancesURL: cfg.Upstream.RebalancesURL,
		Timeout:       cfg.Upstream.Timeout,
	})

	a.cache = summary.NewCache(summary.Fetch(client), cfg.Summary.TTL,
		log.With(logx.String("svc", "summary")))

	a.adapter, err = telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
	}, store, a.cache, log.With(logx.String("svc", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	a.bcast = broadcast.New(broadcast.Config{
		Concurrency: cfg.Broadcast.Concurrency,
		RatePerSec:  cfg.Broadcast.RatePerSec,
		SendTimeout: cfg.Broadcast.SendTimeout,
	}, a.adapter, log.With(logx.String("svc", "broadcast")))

	a.pipe = rebalance.NewPipeline(store, a.bcast, log.With(logx.String("svc", "pipeline")))

	if cfg.Queue.Enabled {
		qctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		q, err := queue.New(qctx, queue.Config{
			Addr:        cfg.Queue.Addr,
			Password:    cfg.Queue.Password,
			DB:          cfg.Queue.DB,
			Key:         cfg.Queue.Key,
			MaxAttempts: cfg.Queue.MaxAttempts,
			Backoff:     cfg.Queue.Backoff,
		}, log.With(logx.String("svc", "queue")))
		cancel()
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect queue: %w", err)
		}
		a.queue = q
		a.worker = queue.NewWorker(q, a.pipe.Process, log.With(logx.String("svc", "worker")))
	}

	if cfg.Poller.Enabled {
		sink := a.pipe.Process
		if cfg.Poller.Mode == "queue" {
			sink = a.queue.Enqueue
		}
		a.poller = rebalance.NewPoller(client, store, sink, cfg.Poller.Interval,
			log.With(logx.String("svc", "poller")))
	}

	if cfg.API.Enabled {
		var enq api.Enqueuer
		if a.queue != nil {
			enq = a.queue
		}
		a.apiSrv = api.NewServer(api.Config{Addr: cfg.API.Addr}, store, enq,
			log.With(logx.String("svc", "api")))
	}

	if cfg.Digest.Enabled {
		a.digest, err = digest.New(digest.Config{
			Schedule: cfg.Digest.Schedule,
			Timezone: cfg.Digest.Timezone,
		}, a.cache, store, a.bcast, log.With(logx.String("svc", "digest")))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return a, nil
}

// Run starts everything and blocks until ctx is cancelled or a fatal
// service error occurs, then shuts down in reverse order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Warm the summary slot so the first button press is fast. Failure is
	// fine; the first request retries.
	go a.cache.Prime(runCtx)

	a.adapter.Start(runCtx)

	var wg sync.WaitGroup
	if a.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.poller.Run(runCtx)
		}()
	}
	if a.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.worker.Run(runCtx)
		}()
	}
	if a.apiSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.apiSrv.Run(runCtx); err != nil {
				a.log.Error("management api failed", logx.Err(err))
				cancel(err)
			}
		}()
	}
	if a.digest != nil {
		a.digest.Start()
	}

	<-runCtx.Done()
	a.log.Info("shutting down")

	if a.digest != nil {
		a.digest.Stop()
	}
	a.adapter.Wait()
	wg.Wait()

	if a.queue != nil {
		_ = a.queue.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}

	if err := context.Cause(runCtx); err != nil && err != ctx.Err() {
		return err
	}
	return nil
}
