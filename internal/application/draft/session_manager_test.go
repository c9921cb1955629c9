package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/commerce"
	"github.com/erp/backoffice/internal/domain/draft"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mapStore is an in-process draft.Persistence
type mapStore struct {
	mu    sync.Mutex
	items map[string]draft.Snapshot
	saves int
}

func newMapStore() *mapStore {
	return &mapStore{items: make(map[string]draft.Snapshot)}
}

func (s *mapStore) Save(_ context.Context, key draft.Key, snapshot *draft.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key.String()] = *snapshot
	s.saves++
	return nil
}

func (s *mapStore) Load(_ context.Context, key draft.Key) (*draft.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.items[key.String()]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (s *mapStore) Delete(_ context.Context, key draft.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key.String())
	return nil
}

// MockPersistence is a mock implementation of draft.Persistence
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Save(ctx context.Context, key draft.Key, snapshot *draft.Snapshot) error {
	return m.Called(ctx, key, snapshot).Error(0)
}

func (m *MockPersistence) Load(ctx context.Context, key draft.Key) (*draft.Snapshot, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*draft.Snapshot), args.Bool(1), args.Error(2)
}

func (m *MockPersistence) Delete(ctx context.Context, key draft.Key) error {
	return m.Called(ctx, key).Error(0)
}

func orderSnapshot(qty int64, baseline *time.Time) *draft.Snapshot {
	return &draft.Snapshot{
		DocumentType: draft.DocumentTypeOrder,
		Lines: []commerce.Line{{
			ProductID: uuid.MustParse("7d9f0a8e-2a51-4f39-9f1e-0c3c6f1f7a01"),
			Quantity:  decimal.NewFromInt(qty),
			UnitPrice: decimal.NewFromInt(25),
		}},
		CapturedServerUpdatedAt: baseline,
	}
}

func TestSessionManager_DraftNewerThanServerIsRestored(t *testing.T) {
	store := newMapStore()
	mgr := NewSessionManager(store, zap.NewNop())
	ctx := context.Background()
	key := draft.DocumentKey(draft.DocumentTypeOrder, uuid.New())
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	res, err := mgr.Track(ctx, key, orderSnapshot(3, &t1))
	require.NoError(t, err)
	assert.True(t, res.Saved)

	opened, err := mgr.Open(ctx, key, &t1)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeRestored, opened.Outcome)
	assert.True(t, opened.Restored())
	require.NotNil(t, opened.Snapshot)
	assert.True(t, opened.Snapshot.Lines[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, key.DocumentID, *opened.Snapshot.DocumentID)
}

func TestSessionManager_ServerUpdatedAfterBaselineDiscardsDraft(t *testing.T) {
	store := newMapStore()
	mgr := NewSessionManager(store, nil)
	ctx := context.Background()
	key := draft.DocumentKey(draft.DocumentTypeInvoice, uuid.New())
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	_, err := mgr.Track(ctx, key, orderSnapshot(2, &t1))
	require.NoError(t, err)

	opened, err := mgr.Open(ctx, key, &t2)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeDiscardedStale, opened.Outcome)
	assert.Nil(t, opened.Snapshot)
	assert.False(t, opened.Restored())

	_, found, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionManager_MissingServerDocumentDiscardsDraft(t *testing.T) {
	store := newMapStore()
	mgr := NewSessionManager(store, nil)
	ctx := context.Background()
	key := draft.DocumentKey(draft.DocumentTypeOrder, uuid.New())
	t1 := time.Now()

	_, err := mgr.Track(ctx, key, orderSnapshot(1, &t1))
	require.NoError(t, err)

	opened, err := mgr.Open(ctx, key, nil)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeDiscardedMissing, opened.Outcome)
	assert.Empty(t, store.items)
}

func TestSessionManager_NoDraft(t *testing.T) {
	mgr := NewSessionManager(newMapStore(), nil)
	now := time.Now()
	opened, err := mgr.Open(context.Background(), draft.DocumentKey(draft.DocumentTypeOrder, uuid.New()), &now)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeNoDraft, opened.Outcome)
}

func TestSessionManager_TrackSkipsUnchangedAndKeepsBaseline(t *testing.T) {
	store := newMapStore()
	mgr := NewSessionManager(store, nil)
	ctx := context.Background()
	key := draft.DocumentKey(draft.DocumentTypeOrder, uuid.New())
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := t1.Add(time.Hour)

	_, err := mgr.Track(ctx, key, orderSnapshot(1, &t1))
	require.NoError(t, err)

	res, err := mgr.Track(ctx, key, orderSnapshot(1, &later))
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Equal(t, 1, store.saves)

	res, err = mgr.Track(ctx, key, orderSnapshot(4, &later))
	require.NoError(t, err)
	assert.True(t, res.Saved)
	assert.Equal(t, []string{"lines"}, res.ChangedFields)

	stored, _, _ := store.Load(ctx, key)
	require.NotNil(t, stored.CapturedServerUpdatedAt)
	assert.True(t, stored.CapturedServerUpdatedAt.Equal(t1))
}

func TestSessionManager_DocumentDraftNeedsBaseline(t *testing.T) {
	store := newMapStore()
	mgr := NewSessionManager(store, nil)
	ctx := context.Background()
	key := draft.DocumentKey(draft.DocumentTypeOrder, uuid.New())

	_, err := mgr.Track(ctx, key, orderSnapshot(2, nil))
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "captured_server_updated_at", verr.Field)
	assert.Zero(t, store.saves)

	// once a baseline is stored, later snapshots may omit it
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err = mgr.Track(ctx, key, orderSnapshot(2, &t1))
	require.NoError(t, err)
	res, err := mgr.Track(ctx, key, orderSnapshot(5, nil))
	require.NoError(t, err)
	assert.True(t, res.Saved)

	opened, err := mgr.Open(ctx, key, &t1)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeRestored, opened.Outcome)
	assert.True(t, opened.Snapshot.Lines[0].Quantity.Equal(decimal.NewFromInt(5)))
}

func TestSessionManager_LocksAreBounded(t *testing.T) {
	mgr := NewSessionManager(newMapStore(), nil)
	ctx := context.Background()
	at := time.Now()
	key := draft.DocumentKey(draft.DocumentTypeOrder, uuid.New())
	assert.Same(t, mgr.stripe(key), mgr.stripe(key))

	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k := draft.DocumentKey(draft.DocumentTypeInvoice, uuid.New())
			_, err := mgr.Track(ctx, k, orderSnapshot(1, &at))
			assert.NoError(t, err)
			assert.NoError(t, mgr.Discard(ctx, k))
		}()
	}
	wg.Wait()
}

func TestSessionManager_TabKeys(t *testing.T) {
	store := newMapStore()
	mgr := NewSessionManager(store, nil)
	ctx := context.Background()
	key := draft.NewTabKey(draft.DocumentTypeInvoice)

	_, err := mgr.Track(ctx, key, orderSnapshot(2, nil))
	require.NoError(t, err)

	opened, err := mgr.Open(ctx, key, nil)
	require.NoError(t, err)
	assert.Equal(t, draft.OutcomeRestored, opened.Outcome)
	assert.Equal(t, draft.DocumentTypeInvoice, opened.Snapshot.DocumentType)
	assert.Nil(t, opened.Snapshot.DocumentID)

	require.NoError(t, mgr.CloseTab(ctx, key, true))
	_, found, _ := mgr.Load(ctx, key)
	assert.True(t, found)

	require.NoError(t, mgr.CloseTab(ctx, key, false))
	_, found, _ = mgr.Load(ctx, key)
	assert.False(t, found)
}

func TestSessionManager_InvalidKey(t *testing.T) {
	mgr := NewSessionManager(newMapStore(), nil)
	ctx := context.Background()
	bad := draft.Key{DocumentType: draft.DocumentTypeOrder}

	_, err := mgr.Open(ctx, bad, nil)
	assert.Error(t, err)
	_, err = mgr.Track(ctx, bad, orderSnapshot(1, nil))
	assert.Error(t, err)
	assert.Error(t, mgr.Discard(ctx, bad))
}

func TestSessionManager_StoreFailures(t *testing.T) {
	ctx := context.Background()
	key := draft.DocumentKey(draft.DocumentTypeOrder, uuid.New())
	storeErr := errors.New("redis unavailable")

	t.Run("open surfaces load errors", func(t *testing.T) {
		store := new(MockPersistence)
		store.On("Load", ctx, key).Return(nil, false, storeErr)
		_, err := NewSessionManager(store, nil).Open(ctx, key, nil)
		assert.ErrorIs(t, err, storeErr)
		store.AssertExpectations(t)
	})

	t.Run("track surfaces save errors", func(t *testing.T) {
		store := new(MockPersistence)
		store.On("Load", ctx, key).Return(nil, false, nil)
		store.On("Save", ctx, key, mock.AnythingOfType("*draft.Snapshot")).Return(storeErr)
		at := time.Now()
		_, err := NewSessionManager(store, nil).Track(ctx, key, orderSnapshot(1, &at))
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("clear logs instead of failing", func(t *testing.T) {
		store := new(MockPersistence)
		store.On("Delete", ctx, key).Return(storeErr)
		core, logs := observer.New(zap.WarnLevel)
		NewSessionManager(store, zap.New(core)).Clear(ctx, key)
		assert.Equal(t, 1, logs.FilterMessage("Failed to clear draft after save").Len())
	})
}
