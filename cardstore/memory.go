package cardstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"gocardgate/cardid"
)

// Memory is an in-process Store.
type Memory struct {
	mu     sync.RWMutex
	cards  map[cardid.ID]Card
	events []AccessEvent
	now    func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		cards: make(map[cardid.ID]Card),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Lookup(ctx context.Context, id cardid.ID) (Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return Card{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) List(ctx context.Context) ([]Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Card, 0, len(m.cards))
	for _, c := range m.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Add(ctx context.Context, c Card) (Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[c.ID]; ok {
		return Card{}, ErrExists
	}
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.cards[c.ID] = c
	return c, nil
}

func (m *Memory) Delete(ctx context.Context, id cardid.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

func (m *Memory) SetAuthorized(ctx context.Context, id cardid.ID, authorized bool) (Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok {
		return Card{}, ErrNotFound
	}
	c.Authorized = authorized
	c.UpdatedAt = m.now()
	m.cards[id] = c
	return c, nil
}

func (m *Memory) RecordAccess(ctx context.Context, ev AccessEvent) (AccessEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev = prepareEvent(ev, m.now())
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) RecentAccess(ctx context.Context, limit int) ([]AccessEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AccessEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *Memory) ClearAccess(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	s.Cards = len(m.cards)
	for _, c := range m.cards {
		if c.Authorized {
			s.AuthorizedCard++
		}
	}
	s.Accesses = len(m.events)
	for _, ev := range m.events {
		if ev.Authorized {
			s.Granted++
		} else {
			s.Denied++
		}
		if s.LastAccess == nil || ev.At.After(*s.LastAccess) {
			at := ev.At
			s.LastAccess = &at
		}
	}
	return s, nil
}

func (m *Memory) Close() error { return nil }
