// Package digest pushes the metrics summary to all subscribers on a
// cron schedule, so users get a daily snapshot without asking for it.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	tele "gopkg.in/telebot.v4"

	"vaultbot/internal/broadcast"
	"vaultbot/pkg/logx"
)

type Config struct {
	Schedule string // standard 5-field cron spec, e.g. "0 9 * * *"
	Timezone string // IANA TZ; empty means local
}

type SummarySource interface {
	Get(ctx context.Context) (string, error)
}

type SubscriberSource interface {
	ListSubscriberIDs(ctx context.Context) ([]int64, error)
}

type Broadcaster interface {
	Send(ctx context.Context, chatIDs []int64, text string, mode string) broadcast.Result
}

type Service struct {
	c     *cron.Cron
	cache SummarySource
	subs  SubscriberSource
	bcast Broadcaster
	log   logx.Logger
}

func New(cfg Config, cache SummarySource, subs SubscriberSource, bcast Broadcaster, log logx.Logger) (*Service, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("digest timezone: %w", err)
		}
		loc = l
	}

	s := &Service{
		c:     cron.New(cron.WithLocation(loc)),
		cache: cache,
		subs:  subs,
		bcast: bcast,
		log:   log,
	}
	if _, err := s.c.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("digest schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Service) Start() {
	s.c.Start()
	s.log.Info("digest scheduler started")
}

// Stop halts scheduling and waits for a running digest to finish.
func (s *Service) Stop() {
	<-s.c.Stop().Done()
	s.log.Info("digest scheduler stopped")
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("digest using degraded summary", logx.Err(err))
	}
	ids, err := s.subs.ListSubscriberIDs(ctx)
	if err != nil {
		s.log.Error("digest aborted, cannot list subscribers", logx.Err(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	res := s.bcast.Send(ctx, ids, text, tele.ModeHTML)
	s.log.Info("digest sent",
		logx.Int("sent", res.Sent), logx.Int("total", res.Total), logx.Int("failed", res.Failed))
}
