package rebalance

import (
	"context"
	"time"

	"vaultbot/internal/obs"
	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

// EventSource is the slice of the vaults client the poller needs.
type EventSource interface {
	LatestRebalance(ctx context.Context) (*vaults.RebalancePayload, error)
}

// Ledger is the novelty check against already-recorded events.
type Ledger interface {
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// Sink receives a payload the poller has decided is new. Inline mode
// wires the pipeline's Process here; queue mode wires the queue Enqueue.
type Sink func(ctx context.Context, p *vaults.RebalancePayload) error

// Poller checks the upstream for the newest rebalance on a fixed
// interval. Cycles are strictly sequential and never overlap; any cycle
// error is logged and the loop continues.
type Poller struct {
	source   EventSource
	ledger   Ledger
	sink     Sink
	interval time.Duration
	log      logx.Logger
}

func NewPoller(source EventSource, ledger Ledger, sink Sink, interval time.Duration, log logx.Logger) *Poller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Poller{source: source, ledger: ledger, sink: sink, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. The in-flight cycle is allowed to
// finish; the wait between cycles is interruptible.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("rebalance poller started", logx.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("rebalance poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle inspects the single newest upstream event. Steady state is a
// no-op: the newest event is usually already recorded.
func (p *Poller) cycle(ctx context.Context) {
	obs.PollCycles.Inc()

	payload, err := p.source.LatestRebalance(ctx)
	if err != nil {
		obs.PollErrors.Inc()
		p.log.Warn("rebalance poll failed, skipping cycle", logx.Err(err))
		return
	}
	if payload == nil {
		p.log.Debug("no rebalance events upstream yet")
		return
	}
	if payload.RebalanceID == "" {
		obs.PollErrors.Inc()
		p.log.Warn("rebalance poll returned a payload without an id, skipping cycle")
		return
	}

	exists, err := p.ledger.EventExists(ctx, payload.RebalanceID)
	if err != nil {
		obs.PollErrors.Inc()
		p.log.Warn("ledger lookup failed, skipping cycle", logx.Err(err))
		return
	}
	if exists {
		return
	}

	p.log.Info("new rebalance event detected", logx.String("event", payload.RebalanceID))
	if err := p.sink(ctx, payload); err != nil {
		// Not retried here: the event is only seen again if it is still
		// the newest one next cycle.
		p.log.Error("rebalance handoff failed", logx.String("event", payload.RebalanceID), logx.Err(err))
	}
}
