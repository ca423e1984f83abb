package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultbot/pkg/logx"
)

// schemaSQL is embedded so the service can self-bootstrap its schema.
//
//go:embed schema_postgres.sql
var schemaSQL string

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	st := &postgresStore{pool: pool, log: log}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return st, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) AddSubscriber(ctx context.Context, chatID int64) (Subscriber, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscribers(chat_id)
		VALUES ($1)
		ON CONFLICT (chat_id) DO NOTHING
		RETURNING subscribed_at
	`, chatID).Scan(&at)
	if err == nil {
		return Subscriber{ChatID: chatID, SubscribedAt: at}, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Subscriber{}, false, fmt.Errorf("insert subscriber: %w", err)
	}

	// Duplicate: fetch the existing row.
	err = s.pool.QueryRow(ctx,
		`SELECT subscribed_at FROM subscribers WHERE chat_id = $1`, chatID).Scan(&at)
	if err != nil {
		return Subscriber{}, false, fmt.Errorf("select subscriber: %w", err)
	}
	return Subscriber{ChatID: chatID, SubscribedAt: at}, false, nil
}

func (s *postgresStore) ListSubscriberIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *postgresStore) RemoveSubscriber(ctx context.Context, chatID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete subscriber: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) EventExists(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM rebalance_events WHERE event_id = $1`, eventID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select event: %w", err)
	}
	return true, nil
}

func (s *postgresStore) InsertEvent(ctx context.Context, eventID, txHash string) (Event, bool, error) {
	// RETURNING yields a row only when inserted; duplicates return no rows.
	var at time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rebalance_events(event_id, transaction_hash)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING recorded_at
	`, eventID, txHash).Scan(&at)
	if err == nil {
		return Event{EventID: eventID, TransactionHash: txHash, RecordedAt: at}, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Event{}, false, fmt.Errorf("insert event: %w", err)
	}

	ev, ok, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, false, err
	}
	if !ok {
		return Event{EventID: eventID}, false, nil
	}
	return ev, false, nil
}

func (s *postgresStore) GetEvent(ctx context.Context, eventID string) (Event, bool, error) {
	var hash string
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT transaction_hash, recorded_at FROM rebalance_events WHERE event_id = $1`,
		eventID).Scan(&hash, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("select event: %w", err)
	}
	return Event{EventID: eventID, TransactionHash: hash, RecordedAt: at}, true, nil
}
