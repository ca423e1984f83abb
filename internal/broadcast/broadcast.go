package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"vaultbot/internal/obs"
	"vaultbot/pkg/logx"
)

type Config struct {
	Concurrency int
	RatePerSec  int
	SendTimeout time.Duration
}

// Sender delivers one message to one chat. Implemented by the telegram
// adapter; tests supply fakes.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, mode string) error
}

// Outcome is the per-recipient result of one fan-out.
type Outcome struct {
	ChatID int64
	Err    error
}

// Result summarizes one fan-out. Partial failure is not an error; the
// caller reads Failed to decide whether anything needs attention.
type Result struct {
	JobID    string
	Total    int
	Sent     int
	Failed   int
	Outcomes []Outcome
	Took     time.Duration
}

type Service struct {
	cfg     Config
	sender  Sender
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, sender Sender, log logx.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Send delivers text to every chat id concurrently and returns when all
// attempts finished. Cancellation of ctx cuts off deliveries that have
// not started; in-flight sends are bounded by the per-send timeout.
func (s *Service) Send(ctx context.Context, chatIDs []int64, text string, mode string) Result {
	start := time.Now()
	jobID := uuid.New().String()
	res := Result{JobID: jobID, Total: len(chatIDs), Outcomes: make([]Outcome, len(chatIDs))}

	s.log.Info("broadcast started", logx.String("job", jobID), logx.Int("total", len(chatIDs)))

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, id := range chatIDs {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			res.Outcomes[i] = Outcome{ChatID: id, Err: s.sendOne(ctx, id, text, mode)}
		}()
	}
	wg.Wait()

	for _, o := range res.Outcomes {
		if o.Err != nil {
			res.Failed++
			obs.NotificationsFailed.Inc()
			s.log.Warn("broadcast send failed",
				logx.String("job", jobID), logx.Int64("chat_id", o.ChatID), logx.Err(o.Err))
		} else {
			res.Sent++
			obs.NotificationsSent.Inc()
		}
	}
	res.Took = time.Since(start)

	fields := []logx.Field{
		logx.String("job", jobID),
		logx.Int("total", res.Total),
		logx.Int("sent", res.Sent),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Took),
	}
	if res.Failed > 0 {
		s.log.Warn("broadcast finished with failures", fields...)
	} else {
		s.log.Info("broadcast finished", fields...)
	}
	return res
}

func (s *Service) sendOne(ctx context.Context, chatID int64, text, mode string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return s.sender.SendText(sctx, chatID, text, mode)
}
