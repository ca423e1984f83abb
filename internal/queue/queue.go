// Package queue is the durable handoff between event detection and the
// notification pipeline. Jobs survive process restarts in a Redis list;
// failed jobs are requeued with backoff and bounded attempts, then
// parked on a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	MaxAttempts int
	Backoff     time.Duration
}

// Job wraps one rebalance payload while it sits in the queue.
type Job struct {
	ID         string                   `json:"id"`
	Attempts   int                      `json:"attempts"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
	Payload    *vaults.RebalancePayload `json:"payload"`
}

type Queue struct {
	rdb *redis.Client
	cfg Config
	log logx.Logger
}

func New(ctx context.Context, cfg Config, log logx.Logger) (*Queue, error) {
	if cfg.Key == "" {
		cfg.Key = "vaultbot:rebalances"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Queue{rdb: rdb, cfg: cfg, log: log}, nil
}

// Enqueue pushes a fresh job for the payload.
func (q *Queue) Enqueue(ctx context.Context, p *vaults.RebalancePayload) error {
	job := Job{ID: uuid.New().String(), EnqueuedAt: time.Now().UTC(), Payload: p}
	return q.push(ctx, job)
}

func (q *Queue) push(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.cfg.Key, b).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	q.log.Debug("job enqueued",
		logx.String("job", job.ID), logx.Int("attempts", job.Attempts))
	return nil
}

func (q *Queue) deadLetter(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.rdb.LPush(ctx, q.cfg.Key+":dead", b).Err()
}

func (q *Queue) Close() error { return q.rdb.Close() }
