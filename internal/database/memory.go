package database

import (
	"context"
	"sync"

	"frameworks/api_wattmeter/internal/models"
)

// clientRecord is the in-memory state for one client, guarded by its
// own mutex so concurrent access across different clients never
// serializes against a shared store-wide lock.
type clientRecord struct {
	mu        sync.Mutex
	tokenHash string
	readings  []models.Reading
	bills     []models.Bill
}

// InMemoryStore is the reference Port implementation: a
// reader/writer lock over a map of ids to per-client mutexes, as
// spec.md §4.A prescribes.
type InMemoryStore struct {
	mu      sync.RWMutex
	clients map[string]*clientRecord
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{clients: make(map[string]*clientRecord)}
}

func (s *InMemoryStore) lookup(id string) (*clientRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.clients[id]
	return rec, ok
}

func (s *InMemoryStore) AddClient(_ context.Context, id string, client models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[id]; exists {
		return ErrConflict
	}
	rec := &clientRecord{tokenHash: client.TokenHash}
	rec.readings = append(rec.readings, client.Readings...)
	rec.bills = append(rec.bills, client.Bills...)
	s.clients[id] = rec
	return nil
}

func (s *InMemoryStore) RemoveClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.clients[id]; !exists {
		return ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

func (s *InMemoryStore) AddReading(_ context.Context, id string, r models.Reading) error {
	rec, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.readings = append(rec.readings, r)
	return nil
}

func (s *InMemoryStore) AddBill(_ context.Context, id string, b models.Bill) error {
	rec, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.bills = append(rec.bills, b)
	return nil
}

func (s *InMemoryStore) UpdateLastBill(_ context.Context, id string, b models.Bill) error {
	rec, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.bills) == 0 {
		return ErrNoBill
	}
	rec.bills[len(rec.bills)-1] = b
	return nil
}

func (s *InMemoryStore) LastBill(_ context.Context, id string) (*models.Bill, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.bills) == 0 {
		return nil, nil
	}
	b := rec.bills[len(rec.bills)-1]
	return &b, nil
}

func (s *InMemoryStore) LastReading(_ context.Context, id string) (*models.Reading, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.readings) == 0 {
		return nil, nil
	}
	r := rec.readings[len(rec.readings)-1]
	return &r, nil
}

func (s *InMemoryStore) ClientExists(_ context.Context, id string) (string, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return "", nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.tokenHash, nil
}
