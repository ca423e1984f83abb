package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"vaultbot/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []int64
	fail  map[int64]error
	inUse atomic.Int64
	peak  atomic.Int64
}

func (f *fakeSender) SendText(ctx context.Context, chatID int64, text, mode string) error {
	cur := f.inUse.Add(1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	defer f.inUse.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[chatID]; ok {
		return err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func TestPartialFailureIsolation(t *testing.T) {
	t.Parallel()
	boom := errors.New("blocked by user")
	s := &fakeSender{fail: map[int64]error{3: boom}}
	svc := New(Config{Concurrency: 4, RatePerSec: 1000}, s, logx.Nop())

	res := svc.Send(context.Background(), []int64{1, 2, 3, 4, 5}, "hello", "")

	if res.Total != 5 || res.Sent != 4 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
	for _, o := range res.Outcomes {
		if o.ChatID == 3 {
			if !errors.Is(o.Err, boom) {
				t.Fatalf("chat 3 err = %v", o.Err)
			}
		} else if o.Err != nil {
			t.Fatalf("chat %d unexpectedly failed: %v", o.ChatID, o.Err)
		}
	}
	if len(s.sent) != 4 {
		t.Fatalf("sent = %v", s.sent)
	}
}

func TestConcurrencyBound(t *testing.T) {
	t.Parallel()
	s := &fakeSender{}
	svc := New(Config{Concurrency: 3, RatePerSec: 1000}, s, logx.Nop())

	ids := make([]int64, 40)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	res := svc.Send(context.Background(), ids, "hi", "")

	if res.Sent != 40 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if p := s.peak.Load(); p > 3 {
		t.Fatalf("peak concurrent sends = %d, want <= 3", p)
	}
}

func TestEmptyRecipientList(t *testing.T) {
	t.Parallel()
	svc := New(Config{}, &fakeSender{}, logx.Nop())
	res := svc.Send(context.Background(), nil, "hi", "")
	if res.Total != 0 || res.Sent != 0 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
}
