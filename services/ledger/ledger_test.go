package ledger

import (
	// Go Internal Packages
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyStore struct {
	*MemoryStore
	fail bool
}

func (s *flakyStore) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	if s.fail {
		return stderrors.New("connection refused")
	}
	return s.MemoryStore.InsertEntry(ctx, entry)
}

type memoryQueue struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

func (q *memoryQueue) Send(_ context.Context, entries []models.LedgerEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entries...)
	return nil
}

func (q *memoryQueue) Drain(_ context.Context, max int) ([]models.LedgerEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(max, len(q.entries))
	out := q.entries[:n:n]
	q.entries = q.entries[n:]
	return out, nil
}

// steppingClock returns a clock advancing one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestQueryNewestFirstAcrossCards(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(zap.NewNop(), NewMemoryStore(), nil)
	l.Now = steppingClock()

	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, 1, float64(i), nil)
		require.NoError(t, err)
		_, err = l.Append(ctx, 2, float64(100+i), &models.OperationRecord{Kind: models.OperationIncrease, Amount: 1})
		require.NoError(t, err)
	}

	entries, err := l.Query(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i := range entries {
		assert.Equal(t, float64(4-i), entries[i].Balance)
		assert.Equal(t, models.CardIdentity(1), entries[i].CardID)
		if i > 0 {
			assert.True(t, entries[i-1].Timestamp.After(entries[i].Timestamp))
		}
	}

	other, err := l.Query(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, other, 5)
	require.NotNil(t, other[0].Operation)
	assert.Equal(t, models.OperationIncrease, other[0].Operation.Kind)
}

func TestQueryEqualTimestampsKeepsInsertionRecency(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(zap.NewNop(), NewMemoryStore(), nil)
	l.Now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, 9, float64(i), nil)
		require.NoError(t, err)
	}

	entries, err := l.Query(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 0}, []float64{entries[0].Balance, entries[1].Balance, entries[2].Balance})
}

func TestQueryUnknownCard(t *testing.T) {
	l := NewLedger(zap.NewNop(), NewMemoryStore(), nil)

	entries, err := l.Query(context.Background(), 404)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestAppendFailureIsParked(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), fail: true}
	dlq := &memoryQueue{}
	l := NewLedger(zap.NewNop(), store, dlq)

	entry, err := l.Append(ctx, 3, 42, &models.OperationRecord{Kind: models.OperationDecrease, Amount: 8})
	require.Error(t, err)
	assert.True(t, errors.Is(errors.Unavailable, err))
	assert.Equal(t, 42.0, entry.Balance)
	require.Len(t, dlq.entries, 1)

	store.fail = false
	n, err := l.Replay(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, dlq.entries)

	entries, err := l.Query(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OperationDecrease, entries[0].Operation.Kind)
}

func TestReplayParksRemainderOnFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: NewMemoryStore(), fail: true}
	dlq := &memoryQueue{entries: []models.LedgerEntry{{CardID: 1}, {CardID: 2}}}
	l := NewLedger(zap.NewNop(), store, dlq)

	n, err := l.Replay(ctx, 10)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, dlq.entries, 2)
}

func TestAppendOperationIsCopied(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(zap.NewNop(), NewMemoryStore(), nil)
	op := &models.OperationRecord{Kind: models.OperationRepair, Amount: 10, Note: "init"}

	_, err := l.Append(ctx, 5, 10, op)
	require.NoError(t, err)
	op.Amount = 99

	entries, err := l.Query(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 10.0, entries[0].Operation.Amount)
}

func TestConcurrentAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(zap.NewNop(), NewMemoryStore(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = l.Append(ctx, 1, 1, nil)
		}()
		go func() {
			defer wg.Done()
			entries, err := l.Query(ctx, 1)
			assert.NoError(t, err)
			for _, e := range entries {
				assert.Equal(t, models.CardIdentity(1), e.CardID)
			}
		}()
	}
	wg.Wait()

	entries, err := l.Query(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
