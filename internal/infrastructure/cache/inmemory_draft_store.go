package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/draft"
)

// entry is an encoded snapshot with its expiry
type entry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemoryDraftStore implements draft.Persistence using an in-memory map.
// Snapshots are stored encoded so callers never share mutable state with the store.
// Drafts do not survive a restart and are not shared across instances.
type InMemoryDraftStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDraftStore creates a new in-memory draft store.
// It starts a background goroutine to clean up expired drafts.
func NewInMemoryDraftStore(ttl time.Duration) *InMemoryDraftStore {
	store := &InMemoryDraftStore{
		entries:  make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Save writes the snapshot, replacing any previous draft under key
func (s *InMemoryDraftStore) Save(_ context.Context, key draft.Key, snapshot *draft.Snapshot) error {
	if err := key.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key.String()] = entry{payload: payload, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Load reads the draft under key. Expired drafts are reported as missing.
func (s *InMemoryDraftStore) Load(_ context.Context, key draft.Key) (*draft.Snapshot, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	e, exists := s.entries[key.String()]
	s.mu.RUnlock()
	if !exists || s.now().After(e.expiresAt) {
		return nil, false, nil
	}

	var snapshot draft.Snapshot
	if err := json.Unmarshal(e.payload, &snapshot); err != nil {
		return nil, false, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &snapshot, true, nil
}

// Delete removes the draft under key
func (s *InMemoryDraftStore) Delete(_ context.Context, key draft.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.String())
	return nil
}

// Ping always succeeds
func (s *InMemoryDraftStore) Ping(context.Context) error {
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryDraftStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDraftStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryDraftStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// Size returns the number of stored drafts, expired ones included until cleanup
func (s *InMemoryDraftStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryDraftStore implements draft.Persistence
var _ draft.Persistence = (*InMemoryDraftStore)(nil)
