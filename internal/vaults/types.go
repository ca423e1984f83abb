package vaults

// VaultStat is one row of the upstream vault metrics listing.
// TotalAssets arrives as a decimal string; rows with missing or
// non-numeric values are skipped by the summary formatter.
type VaultStat struct {
	SourceName  string `json:"source_name"`
	TokenSymbol string `json:"token_symbol"`
	TotalAssets string `json:"total_assets"`
}

// TransactionRef carries the on-chain reference of one leg of a rebalance.
type TransactionRef struct {
	TransactionHash string `json:"transaction_hash"`
}

// RebalancePayload is the upstream representation of one rebalance event.
// The deposit and withdrawal legs are optional individually; a payload is
// only broadcastable when at least one carries a transaction hash.
type RebalancePayload struct {
	RebalanceID string          `json:"rebalance_id"`
	Amount      string          `json:"amount"`
	TokenSymbol string          `json:"token_symbol"`
	FromVault   string          `json:"from_vault"`
	ToVault     string          `json:"to_vault"`
	Reasoning   string          `json:"reasoning"`
	Deposit     *TransactionRef `json:"deposit_transaction,omitempty"`
	Withdrawal  *TransactionRef `json:"withdrawal_transaction,omitempty"`
}

// TxHash resolves the correlation hash: the deposit leg wins, the
// withdrawal leg is the fallback. Empty when neither leg carries one.
func (p *RebalancePayload) TxHash() string {
	if p.Deposit != nil && p.Deposit.TransactionHash != "" {
		return p.Deposit.TransactionHash
	}
	if p.Withdrawal != nil && p.Withdrawal.TransactionHash != "" {
		return p.Withdrawal.TransactionHash
	}
	return ""
}
