package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"vaultbot/pkg/logx"
)

// openTestStores returns every driver that can run without external
// services. Postgres is exercised through the same Store contract but
// needs a live server, so it is left to deployment smoke tests.
func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlitePath := filepath.Join(t.TempDir(), "test.db")
	sq, err := Open(Config{Driver: "sqlite", Path: sqlitePath}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, created, err := st.AddSubscriber(ctx, 100)
			if err != nil || !created {
				t.Fatalf("first add: created=%v err=%v", created, err)
			}
			_, created, err = st.AddSubscriber(ctx, 100)
			if err != nil || created {
				t.Fatalf("second add: created=%v err=%v", created, err)
			}
			if _, _, err := st.AddSubscriber(ctx, 200); err != nil {
				t.Fatalf("add 200: %v", err)
			}

			ids, err := st.ListSubscriberIDs(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ids) != 2 || ids[0] != 100 || ids[1] != 200 {
				t.Fatalf("ids = %v, want [100 200]", ids)
			}

			removed, err := st.RemoveSubscriber(ctx, 100)
			if err != nil || !removed {
				t.Fatalf("remove: removed=%v err=%v", removed, err)
			}
			removed, err = st.RemoveSubscriber(ctx, 100)
			if err != nil || removed {
				t.Fatalf("remove again: removed=%v err=%v", removed, err)
			}
		})
	}
}

func TestEventInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			exists, err := st.EventExists(ctx, "rb-1")
			if err != nil || exists {
				t.Fatalf("exists before insert: %v %v", exists, err)
			}

			ev, inserted, err := st.InsertEvent(ctx, "rb-1", "0xabc")
			if err != nil || !inserted {
				t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
			}
			if ev.TransactionHash != "0xabc" {
				t.Fatalf("hash = %q", ev.TransactionHash)
			}

			_, inserted, err = st.InsertEvent(ctx, "rb-1", "0xother")
			if err != nil {
				t.Fatalf("duplicate insert err: %v", err)
			}
			if inserted {
				t.Fatal("duplicate insert reported inserted=true")
			}

			got, ok, err := st.GetEvent(ctx, "rb-1")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if got.TransactionHash != "0xabc" {
				t.Fatalf("duplicate insert overwrote hash: %q", got.TransactionHash)
			}
			if got.RecordedAt.IsZero() {
				t.Fatal("recorded_at is zero")
			}
		})
	}
}

func TestEventInsertRace(t *testing.T) {
	ctx := context.Background()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			const callers = 8
			var wg sync.WaitGroup
			wins := make(chan bool, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, inserted, err := st.InsertEvent(ctx, "rb-race", "0xdef")
					if err != nil {
						t.Errorf("insert: %v", err)
						return
					}
					wins <- inserted
				}()
			}
			wg.Wait()
			close(wins)

			won := 0
			for in := range wins {
				if in {
					won++
				}
			}
			if won != 1 {
				t.Fatalf("winners = %d, want exactly 1", won)
			}
		})
	}
}
