// Package storage provides the persistence layer used by the bot.
//
// It holds two durable sets:
//   - Subscribers (chat ids that receive rebalance notifications)
//   - The event ledger (rebalance ids that were already recorded)
//
// The ledger's insert-if-absent is enforced by the backend's unique key,
// never by an application-level check, so two concurrent pipeline runs
// racing on the same event id cannot both record it.
package storage
