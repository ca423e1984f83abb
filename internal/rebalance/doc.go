// Package rebalance detects new vault rebalance events and announces
// them to subscribers.
//
// The poller asks the upstream for the single newest event each cycle
// and hands unseen ones to the pipeline. The pipeline records the event
// in the ledger exactly once (store-enforced) and fans the notification
// out to every subscriber; both the inline path and the durable-queue
// worker run the same pipeline.
//
// Known limitation: only the newest upstream event is considered per
// cycle. If two or more events land between polls, the older ones are
// never seen; there is no paginated backfill.
package rebalance
