package storage

import (
	"fmt"
	"strings"

	"vaultbot/pkg/logx"
)

// Open constructs the configured Store. Callers own the returned Store
// and must Close() it on shutdown.
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
