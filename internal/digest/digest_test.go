package digest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vaultbot/internal/broadcast"
	"vaultbot/pkg/logx"
)

type fakeSummary struct {
	text string
	err  error
}

func (f fakeSummary) Get(context.Context) (string, error) { return f.text, f.err }

type fakeSubs struct {
	ids []int64
	err error
}

func (f fakeSubs) ListSubscriberIDs(context.Context) ([]int64, error) { return f.ids, f.err }

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls int
	ids   []int64
	text  string
}

func (f *fakeBroadcaster) Send(_ context.Context, ids []int64, text, mode string) broadcast.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = ids
	f.text = text
	return broadcast.Result{Total: len(ids), Sent: len(ids)}
}

func newTestService(cache SummarySource, subs SubscriberSource, bc *fakeBroadcaster) *Service {
	return &Service{cache: cache, subs: subs, bcast: bc, log: logx.Nop()}
}

func TestRunBroadcastsSummary(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	s := newTestService(fakeSummary{text: "metrics"}, fakeSubs{ids: []int64{1, 2}}, bc)

	s.run()

	if bc.calls != 1 {
		t.Fatalf("broadcast calls = %d, want 1", bc.calls)
	}
	if len(bc.ids) != 2 || bc.text != "metrics" {
		t.Fatalf("broadcast got ids=%v text=%q", bc.ids, bc.text)
	}
}

func TestRunDegradedSummaryStillSent(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	s := newTestService(
		fakeSummary{text: "stale metrics", err: errors.New("upstream down")},
		fakeSubs{ids: []int64{1}}, bc)

	s.run()

	if bc.calls != 1 || bc.text != "stale metrics" {
		t.Fatalf("calls=%d text=%q, want the degraded text delivered", bc.calls, bc.text)
	}
}

func TestRunAbortsWhenListingFails(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	s := newTestService(fakeSummary{text: "metrics"}, fakeSubs{err: errors.New("storage down")}, bc)

	s.run()

	if bc.calls != 0 {
		t.Fatalf("broadcast calls = %d, want 0 when subscribers cannot be listed", bc.calls)
	}
}

func TestRunSkipsEmptySubscriberList(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	s := newTestService(fakeSummary{text: "metrics"}, fakeSubs{}, bc)

	s.run()

	if bc.calls != 0 {
		t.Fatalf("broadcast calls = %d, want 0 with no subscribers", bc.calls)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad schedule", cfg: Config{Schedule: "not a cron spec"}},
		{name: "bad timezone", cfg: Config{Schedule: "0 9 * * *", Timezone: "Mars/Olympus"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, fakeSummary{}, fakeSubs{}, &fakeBroadcaster{}, logx.Nop()); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}
