package summary

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vaultbot/internal/vaults"
)

// ErrNoUsableRecords means every upstream row was missing fields or had a
// non-numeric total. The cache treats it like any other fetch failure.
var ErrNoUsableRecords = errors.New("summary: no usable records in upstream response")

// StatsFetcher is the slice of the vaults client the formatter needs.
type StatsFetcher interface {
	Stats(ctx context.Context) ([]vaults.VaultStat, error)
}

// Fetch adapts a vaults client into the cache's FetchFunc.
func Fetch(src StatsFetcher) FetchFunc {
	return func(ctx context.Context) (string, error) {
		stats, err := src.Stats(ctx)
		if err != nil {
			return "", err
		}
		return FormatStats(stats)
	}
}

// FormatStats renders the metrics text (Telegram HTML mode). Rows with a
// missing source, symbol, or non-numeric total are skipped per-record;
// only an entirely unusable response is an error.
func FormatStats(stats []vaults.VaultStat) (string, error) {
	var b strings.Builder
	b.WriteString("📊 <b>Vault Metrics</b>\n\n")

	var total float64
	used := 0
	symbol := ""
	mixed := false
	for _, s := range stats {
		if s.SourceName == "" || s.TokenSymbol == "" {
			continue
		}
		v, err := strconv.ParseFloat(s.TotalAssets, 64)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "• %s: %s %s\n", s.SourceName, vaults.FormatAmount(v), s.TokenSymbol)
		total += v
		used++
		if symbol == "" {
			symbol = s.TokenSymbol
		} else if symbol != s.TokenSymbol {
			mixed = true
		}
	}
	if used == 0 {
		return "", ErrNoUsableRecords
	}
	if !mixed {
		fmt.Fprintf(&b, "\n<b>Total:</b> %s %s", vaults.FormatAmount(total), symbol)
	}
	return b.String(), nil
}
