// Package draft manages locally cached edit sessions for orders and invoices.
package draft

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// lockStripes bounds the per-key mutexes; keys hash onto a fixed set
const lockStripes = 64

// Resolution is what opening an edit surface found in the draft store.
// Snapshot is set only when the draft was restored.
type Resolution struct {
	Key      draft.Key       `json:"key"`
	Outcome  draft.Outcome   `json:"outcome"`
	Snapshot *draft.Snapshot `json:"snapshot,omitempty"`
}

// Restored reports whether the user should be told a draft was brought back
func (r *Resolution) Restored() bool {
	return r != nil && r.Outcome == draft.OutcomeRestored
}

// TrackResult reports what Track persisted
type TrackResult struct {
	Saved         bool     `json:"saved"`
	ChangedFields []string `json:"changed_fields"`
}

// SessionManager keeps one draft per key and decides, when a document is
// reopened, whether the draft or the server copy wins.
type SessionManager struct {
	store  draft.Persistence
	logger *zap.Logger
	now    func() time.Time
	locks  [lockStripes]sync.Mutex
}

// NewSessionManager creates a SessionManager over store
func NewSessionManager(store draft.Persistence, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:  store,
		logger: logger.Named("draft_sessions"),
		now:    time.Now,
	}
}

func (m *SessionManager) stripe(key draft.Key) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return &m.locks[h.Sum32()%lockStripes]
}

func (m *SessionManager) lock(key draft.Key) func() {
	mu := m.stripe(key)
	mu.Lock()
	return mu.Unlock
}

// Open looks up the draft for key and compares it with the server copy.
// serverUpdatedAt is nil when the server document no longer exists.
// Drafts that lose are deleted before Open returns.
func (m *SessionManager) Open(ctx context.Context, key draft.Key, serverUpdatedAt *time.Time) (*Resolution, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	unlock := m.lock(key)
	defer unlock()

	snapshot, found, err := m.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		snapshot = nil
	}

	var serverAt time.Time
	if serverUpdatedAt != nil {
		serverAt = *serverUpdatedAt
	}
	outcome := draft.Decide(snapshot, serverAt, serverUpdatedAt != nil)

	res := &Resolution{Key: key, Outcome: outcome}
	switch outcome {
	case draft.OutcomeRestored:
		res.Snapshot = snapshot
		m.logger.Info("Draft restored",
			zap.String("key", key.String()),
			zap.Time("saved_at", snapshot.SavedAt),
		)
	case draft.OutcomeDiscardedStale, draft.OutcomeDiscardedMissing:
		if err := m.store.Delete(ctx, key); err != nil {
			return nil, err
		}
		m.logger.Debug("Draft discarded",
			zap.String("key", key.String()),
			zap.String("outcome", string(outcome)),
		)
	}
	return res, nil
}

// Track persists snapshot when it differs from the stored draft in a tracked
// field. The first save of a key fixes the server baseline; later saves keep it.
// A draft of an existing document must carry that baseline, otherwise the next
// Open would treat it as older than any server copy.
func (m *SessionManager) Track(ctx context.Context, key draft.Key, snapshot *draft.Snapshot) (*TrackResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	unlock := m.lock(key)
	defer unlock()

	existing, found, err := m.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		existing = nil
	}
	if existing == nil && !key.IsTab() && snapshot.CapturedServerUpdatedAt == nil {
		return nil, shared.NewValidationError("captured_server_updated_at",
			"Draft of an existing document needs the server version it was started from")
	}

	changed := draft.ChangedFields(existing, snapshot)
	if len(changed) == 0 {
		return &TrackResult{Saved: false, ChangedFields: []string{}}, nil
	}

	next := *snapshot
	next.DocumentType = key.DocumentType
	if !key.IsTab() {
		id := key.DocumentID
		next.DocumentID = &id
	}
	if existing != nil {
		next.CapturedServerUpdatedAt = existing.CapturedServerUpdatedAt
	}
	next.SavedAt = m.now()

	if err := m.store.Save(ctx, key, &next); err != nil {
		return nil, err
	}
	return &TrackResult{Saved: true, ChangedFields: changed}, nil
}

// Load returns the stored draft for key without any server comparison
func (m *SessionManager) Load(ctx context.Context, key draft.Key) (*draft.Snapshot, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	return m.store.Load(ctx, key)
}

// Discard deletes the draft on explicit user request
func (m *SessionManager) Discard(ctx context.Context, key draft.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	unlock := m.lock(key)
	defer unlock()
	return m.store.Delete(ctx, key)
}

// CloseTab deletes the draft when the tab closes with nothing unsaved
func (m *SessionManager) CloseTab(ctx context.Context, key draft.Key, hasUnsavedChanges bool) error {
	if hasUnsavedChanges {
		return nil
	}
	return m.Discard(ctx, key)
}

// Clear drops the draft after a committed transition. The transition already
// succeeded, so a store failure is logged and not returned.
func (m *SessionManager) Clear(ctx context.Context, key draft.Key) {
	if err := m.Discard(ctx, key); err != nil {
		m.logger.Warn("Failed to clear draft after save",
			zap.String("key", key.String()),
			zap.Error(err),
		)
	}
}
