package rebalance

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"vaultbot/internal/broadcast"
	"vaultbot/internal/obs"
	"vaultbot/internal/storage"
	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

// Broadcaster is the fan-out slice the pipeline needs.
type Broadcaster interface {
	Send(ctx context.Context, chatIDs []int64, text string, mode string) broadcast.Result
}

// Pipeline records a rebalance event at most once and broadcasts it to
// every subscriber. The same instance serves the inline poller path and
// the durable-queue worker.
type Pipeline struct {
	store storage.Store
	bcast Broadcaster
	log   logx.Logger
}

func NewPipeline(store storage.Store, bcast Broadcaster, log logx.Logger) *Pipeline {
	return &Pipeline{store: store, bcast: bcast, log: log}
}

// Process runs the dedup-and-broadcast protocol:
//
//  1. Ledger existence check; already recorded is success, not an error.
//  2. Format the message; a bad payload aborts with no side effect.
//  3. Ledger insert-if-absent (record before notify, both paths); losing
//     the insert race to a concurrent run is success, not an error.
//  4. Concurrent fan-out with per-recipient isolation; partial failure is
//     logged and counted, never an error.
//
// A returned error means the event may still need attention: the queue
// path retries the whole job (steps 1 and 3 make re-recording
// impossible, though already-notified recipients may be notified again),
// the inline path just logs it.
func (p *Pipeline) Process(ctx context.Context, payload *vaults.RebalancePayload) error {
	if payload == nil || payload.RebalanceID == "" {
		return fmt.Errorf("%w: rebalance_id", ErrBadPayload)
	}
	log := p.log.With(logx.String("event", payload.RebalanceID))

	exists, err := p.store.EventExists(ctx, payload.RebalanceID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if exists {
		obs.EventsDuplicate.Inc()
		log.Debug("event already recorded, skipping")
		return nil
	}

	text, err := FormatMessage(payload)
	if err != nil {
		log.Error("event payload rejected", logx.Err(err))
		return err
	}

	_, inserted, err := p.store.InsertEvent(ctx, payload.RebalanceID, payload.TxHash())
	if err != nil {
		return fmt.Errorf("ledger insert: %w", err)
	}
	if !inserted {
		// A concurrent run won the insert race; it owns the broadcast.
		obs.EventsDuplicate.Inc()
		log.Info("event recorded by a concurrent run, skipping broadcast")
		return nil
	}
	obs.EventsRecorded.Inc()

	ids, err := p.store.ListSubscriberIDs(ctx)
	if err != nil {
		// Recorded but not notified; surfaced so the queue path can retry.
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(ids) == 0 {
		log.Info("event recorded, no subscribers to notify")
		return nil
	}

	res := p.bcast.Send(ctx, ids, text, tele.ModeHTML)
	log.Info("event broadcast finished",
		logx.Int("sent", res.Sent), logx.Int("total", res.Total), logx.Int("failed", res.Failed))
	if res.Sent == 0 {
		return fmt.Errorf("broadcast delivered to 0 of %d subscribers", res.Total)
	}
	return nil
}
