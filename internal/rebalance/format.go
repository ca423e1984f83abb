package rebalance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vaultbot/internal/vaults"
)

// ErrBadPayload marks a payload that cannot be announced: a required
// field is missing or malformed. The pipeline aborts with no side effect
// (no ledger record, no sends) when formatting fails.
var ErrBadPayload = errors.New("rebalance: payload missing required fields")

// FormatMessage renders the notification text (Telegram HTML mode).
// Required: event id, amount (numeric string), token symbol, both vault
// names, a transaction hash on at least one leg, and the reasoning text.
func FormatMessage(p *vaults.RebalancePayload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: nil payload", ErrBadPayload)
	}
	var missing []string
	if strings.TrimSpace(p.RebalanceID) == "" {
		missing = append(missing, "rebalance_id")
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(p.Amount), 64)
	if p.Amount == "" || err != nil {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(p.TokenSymbol) == "" {
		missing = append(missing, "token_symbol")
	}
	if strings.TrimSpace(p.FromVault) == "" {
		missing = append(missing, "from_vault")
	}
	if strings.TrimSpace(p.ToVault) == "" {
		missing = append(missing, "to_vault")
	}
	txHash := p.TxHash()
	if txHash == "" {
		missing = append(missing, "transaction_hash")
	}
	if strings.TrimSpace(p.Reasoning) == "" {
		missing = append(missing, "reasoning")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrBadPayload, strings.Join(missing, ", "))
	}

	var b strings.Builder
	b.WriteString("🔄 <b>Rebalance Executed</b>\n\n")
	fmt.Fprintf(&b, "Moved <b>%s %s</b>\n", vaults.FormatAmount(amount), p.TokenSymbol)
	fmt.Fprintf(&b, "From: %s\n", p.FromVault)
	fmt.Fprintf(&b, "To: %s\n\n", p.ToVault)
	fmt.Fprintf(&b, "Reason: %s\n", p.Reasoning)
	fmt.Fprintf(&b, "Tx: <code>%s</code>", txHash)
	return b.String(), nil
}
