package storage

import (
	"context"
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite":   SQLite database file (default)
//   - "postgres": PostgreSQL via DatabaseURL
//   - "memory":   in-process map (tests, throwaway deployments)
type Config struct {
	Driver      string
	Path        string        // sqlite only
	DatabaseURL string        // postgres only
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type Subscriber struct {
	ChatID       int64
	SubscribedAt time.Time
}

type Event struct {
	EventID         string
	TransactionHash string
	RecordedAt      time.Time
}

// Store is the durable backend shared by the bot, the pipeline and the
// management API. Implementations must make InsertEvent atomic with
// respect to concurrent callers.
type Store interface {
	AddSubscriber(ctx context.Context, chatID int64) (Subscriber, bool, error)
	ListSubscriberIDs(ctx context.Context) ([]int64, error)
	RemoveSubscriber(ctx context.Context, chatID int64) (bool, error)

	EventExists(ctx context.Context, eventID string) (bool, error)
	// InsertEvent records the event id once. It reports inserted=false,
	// with no error, when the id was already present.
	InsertEvent(ctx context.Context, eventID, txHash string) (Event, bool, error)
	GetEvent(ctx context.Context, eventID string) (Event, bool, error)

	Close() error
}
