package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vaultbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddSubscriber(ctx context.Context, chatID int64) (Subscriber, bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(chat_id, subscribed_at) VALUES(?,?)
		 ON CONFLICT(chat_id) DO NOTHING`,
		chatID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Subscriber{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Subscriber{}, false, err
	}
	if n > 0 {
		return Subscriber{ChatID: chatID, SubscribedAt: now}, true, nil
	}

	var at string
	err = s.db.QueryRowContext(ctx,
		`SELECT subscribed_at FROM subscribers WHERE chat_id = ?`, chatID).Scan(&at)
	if err != nil {
		return Subscriber{}, false, err
	}
	return Subscriber{ChatID: chatID, SubscribedAt: parseTS(at)}, false, nil
}

func (s *sqliteStore) ListSubscriberIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) RemoveSubscriber(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) EventExists(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM rebalance_events WHERE event_id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) InsertEvent(ctx context.Context, eventID, txHash string) (Event, bool, error) {
	now := time.Now().UTC()
	// The primary key makes the insert the atomic check-then-insert point.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rebalance_events(event_id, transaction_hash, recorded_at) VALUES(?,?,?)
		 ON CONFLICT(event_id) DO NOTHING`,
		eventID, txHash, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Event{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Event{}, false, err
	}
	if n == 0 {
		ev, ok, err := s.GetEvent(ctx, eventID)
		if err != nil {
			return Event{}, false, err
		}
		if !ok {
			// Lost a race with a concurrent delete; treat as duplicate anyway.
			return Event{EventID: eventID}, false, nil
		}
		return ev, false, nil
	}
	return Event{EventID: eventID, TransactionHash: txHash, RecordedAt: now}, true, nil
}

func (s *sqliteStore) GetEvent(ctx context.Context, eventID string) (Event, bool, error) {
	var hash, at string
	err := s.db.QueryRowContext(ctx,
		`SELECT transaction_hash, recorded_at FROM rebalance_events WHERE event_id = ?`,
		eventID).Scan(&hash, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, err
	}
	return Event{EventID: eventID, TransactionHash: hash, RecordedAt: parseTS(at)}, true, nil
}

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
