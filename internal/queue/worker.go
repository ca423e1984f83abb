package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"vaultbot/internal/obs"
	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

// blockTimeout bounds each BRPOP so the worker observes cancellation
// even on an idle queue.
const blockTimeout = 2 * time.Second

// Processor runs the pipeline for one dequeued payload.
type Processor func(ctx context.Context, p *vaults.RebalancePayload) error

// jobStore is where failed jobs go back to. The Queue itself in
// production; tests swap in a fake so the retry protocol can be
// exercised without redis.
type jobStore interface {
	push(ctx context.Context, job Job) error
	deadLetter(ctx context.Context, job Job) error
}

// Worker consumes jobs one at a time. Processing errors requeue the job
// with an incremented attempt count; exhausted jobs go to the
// dead-letter list. Duplicate delivery to recipients is possible on
// retry, duplicate ledger records are not (the pipeline dedups).
type Worker struct {
	q     *Queue
	store jobStore
	proc  Processor
	log   logx.Logger
}

func NewWorker(q *Queue, proc Processor, log logx.Logger) *Worker {
	return &Worker{q: q, store: q, proc: proc, log: log}
}

// Run blocks until ctx is cancelled. The in-flight job is allowed to
// finish processing before the worker exits.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("queue worker started", logx.String("key", w.q.cfg.Key))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("queue worker stopped")
			return ctx.Err()
		default:
		}

		vals, err := w.q.rdb.BRPop(ctx, blockTimeout, w.q.cfg.Key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("queue worker stopped")
				return ctx.Err()
			}
			w.log.Warn("queue pop failed", logx.Err(err))
			w.sleep(ctx, blockTimeout)
			continue
		}
		if len(vals) != 2 {
			continue
		}
		w.handle(ctx, vals[1])
	}
}

func (w *Worker) handle(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Malformed jobs are dropped, not requeued: they can never succeed.
		w.log.Error("dropping undecodable job", logx.Err(err))
		return
	}
	log := w.log.With(logx.String("job", job.ID))

	err := w.proc(ctx, job.Payload)
	if err == nil {
		log.Info("job processed", logx.Int("attempts", job.Attempts+1))
		return
	}
	if ctx.Err() != nil {
		// Shutting down: put the job back untouched so the attempt is not
		// charged against it.
		if rqErr := w.store.push(context.Background(), job); rqErr != nil {
			log.Error("failed to requeue job during shutdown", logx.Err(rqErr))
		}
		return
	}

	job.Attempts++
	if job.Attempts >= w.q.cfg.MaxAttempts {
		log.Error("job exhausted retries, moving to dead letter",
			logx.Int("attempts", job.Attempts), logx.Err(err))
		if dlErr := w.store.deadLetter(ctx, job); dlErr != nil {
			log.Error("dead letter push failed", logx.Err(dlErr))
		}
		return
	}

	delay := delayFor(w.q.cfg.Backoff, job.Attempts)
	log.Warn("job failed, requeueing",
		logx.Int("attempt", job.Attempts), logx.Duration("delay", delay), logx.Err(err))
	obs.QueueRetries.Inc()
	w.sleep(ctx, delay)
	// Background so a shutdown during the backoff sleep cannot lose the job.
	if rqErr := w.store.push(context.Background(), job); rqErr != nil {
		log.Error("requeue failed, job lost", logx.Err(rqErr))
	}
}

// delayFor grows linearly with the attempt count.
func delayFor(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
	case <-tmr.C:
	}
}
