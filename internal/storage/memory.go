package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. It backs tests and throwaway
// deployments; the mutex around the event map gives the same
// insert-if-absent atomicity the SQL drivers get from their unique key.
type Memory struct {
	mu     sync.Mutex
	subs   map[int64]Subscriber
	events map[string]Event
}

func NewMemory() *Memory {
	return &Memory{
		subs:   make(map[int64]Subscriber),
		events: make(map[string]Event),
	}
}

func (m *Memory) AddSubscriber(_ context.Context, chatID int64) (Subscriber, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[chatID]; ok {
		return s, false, nil
	}
	s := Subscriber{ChatID: chatID, SubscribedAt: time.Now().UTC()}
	m.subs[chatID] = s
	return s, true, nil
}

func (m *Memory) ListSubscriberIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[chatID]; !ok {
		return false, nil
	}
	delete(m.subs, chatID)
	return true, nil
}

func (m *Memory) EventExists(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *Memory) InsertEvent(_ context.Context, eventID, txHash string) (Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.events[eventID]; ok {
		return ev, false, nil
	}
	ev := Event{EventID: eventID, TransactionHash: txHash, RecordedAt: time.Now().UTC()}
	m.events[eventID] = ev
	return ev, true, nil
}

func (m *Memory) GetEvent(_ context.Context, eventID string) (Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	return ev, ok, nil
}

func (m *Memory) Close() error { return nil }
