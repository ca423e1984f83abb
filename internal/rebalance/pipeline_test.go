package rebalance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vaultbot/internal/broadcast"
	"vaultbot/internal/storage"
	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls int
	sent  [][]int64
	fail  map[int64]error
}

func (f *fakeBroadcaster) Send(_ context.Context, ids []int64, text, mode string) broadcast.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sent = append(f.sent, ids)

	res := broadcast.Result{Total: len(ids)}
	for _, id := range ids {
		if err, ok := f.fail[id]; ok {
			res.Failed++
			res.Outcomes = append(res.Outcomes, broadcast.Outcome{ChatID: id, Err: err})
			continue
		}
		res.Sent++
		res.Outcomes = append(res.Outcomes, broadcast.Outcome{ChatID: id})
	}
	return res
}

func goodPayload() *vaults.RebalancePayload {
	return &vaults.RebalancePayload{
		RebalanceID: "rb-1",
		Amount:      "1500.25",
		TokenSymbol: "USDT",
		FromVault:   "Aave",
		ToVault:     "Venus",
		Reasoning:   "higher yield",
		Deposit:     &vaults.TransactionRef{TransactionHash: "0xdep"},
	}
}

func newTestPipeline(t *testing.T, subs []int64, bc *fakeBroadcaster) (*Pipeline, *storage.Memory) {
	t.Helper()
	st := storage.NewMemory()
	ctx := context.Background()
	for _, id := range subs {
		if _, _, err := st.AddSubscriber(ctx, id); err != nil {
			t.Fatalf("add subscriber: %v", err)
		}
	}
	return NewPipeline(st, bc, logx.Nop()), st
}

func TestProcessRecordsAndBroadcastsOnce(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	p, st := newTestPipeline(t, []int64{1, 2, 3}, bc)
	ctx := context.Background()

	if err := p.Process(ctx, goodPayload()); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if err := p.Process(ctx, goodPayload()); err != nil {
		t.Fatalf("second Process: %v", err)
	}

	if bc.calls != 1 {
		t.Fatalf("broadcast calls = %d, want 1", bc.calls)
	}
	ev, ok, _ := st.GetEvent(ctx, "rb-1")
	if !ok {
		t.Fatal("event not recorded")
	}
	if ev.TransactionHash != "0xdep" {
		t.Fatalf("hash = %q", ev.TransactionHash)
	}
}

func TestProcessPartialDeliveryIsNotAnError(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{fail: map[int64]error{3: errors.New("blocked")}}
	p, _ := newTestPipeline(t, []int64{1, 2, 3, 4, 5}, bc)

	if err := p.Process(context.Background(), goodPayload()); err != nil {
		t.Fatalf("Process: %v (partial failure must not fail the event)", err)
	}
	if bc.calls != 1 {
		t.Fatalf("broadcast calls = %d", bc.calls)
	}
}

func TestProcessTotalDeliveryFailureIsAnError(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{fail: map[int64]error{
		1: errors.New("down"), 2: errors.New("down"),
	}}
	p, st := newTestPipeline(t, []int64{1, 2}, bc)

	err := p.Process(context.Background(), goodPayload())
	if err == nil {
		t.Fatal("expected error when no recipient was reached")
	}
	// The event stays recorded: a queue retry must not re-record it.
	if ok, _ := st.EventExists(context.Background(), "rb-1"); !ok {
		t.Fatal("event should remain recorded")
	}
	if err := p.Process(context.Background(), goodPayload()); err != nil {
		t.Fatalf("retry after recording: %v", err)
	}
	if bc.calls != 1 {
		t.Fatalf("broadcast calls = %d, want 1 (retry is a ledger no-op)", bc.calls)
	}
}

func TestProcessFormattingAbortLeavesNoTrace(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	p, st := newTestPipeline(t, []int64{1, 2}, bc)

	payload := goodPayload()
	payload.Deposit = nil // no transaction hash on either leg

	err := p.Process(context.Background(), payload)
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("err = %v, want ErrBadPayload", err)
	}
	if ok, _ := st.EventExists(context.Background(), "rb-1"); ok {
		t.Fatal("rejected payload must not be recorded")
	}
	if bc.calls != 0 {
		t.Fatalf("broadcast calls = %d, want 0", bc.calls)
	}
}

func TestProcessConcurrentDedupRace(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	p, st := newTestPipeline(t, []int64{1}, bc)

	const runs = 16
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Process(context.Background(), goodPayload()); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok, _ := st.EventExists(context.Background(), "rb-1"); !ok {
		t.Fatal("event not recorded")
	}
	bc.mu.Lock()
	calls := bc.calls
	bc.mu.Unlock()
	if calls != 1 {
		t.Fatalf("broadcast calls = %d, want exactly 1", calls)
	}
}

func TestProcessNoSubscribers(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	p, st := newTestPipeline(t, nil, bc)

	if err := p.Process(context.Background(), goodPayload()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ok, _ := st.EventExists(context.Background(), "rb-1"); !ok {
		t.Fatal("event should be recorded even with no subscribers")
	}
	if bc.calls != 0 {
		t.Fatalf("broadcast calls = %d, want 0", bc.calls)
	}
}

func TestProcessNilPayload(t *testing.T) {
	t.Parallel()
	bc := &fakeBroadcaster{}
	p, _ := newTestPipeline(t, nil, bc)
	if err := p.Process(context.Background(), nil); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("err = %v, want ErrBadPayload", err)
	}
}
