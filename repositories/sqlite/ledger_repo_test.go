package sqlite

import (
	// Go Internal Packages
	"context"
	"path/filepath"
	"testing"
	"time"

	// Local Packages
	models "nfc-bank/models"
	"nfc-bank/services/ledger"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ ledger.Store = (*LedgerRepository)(nil)

func newRepo(t *testing.T) *LedgerRepository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "data", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestLedgerRepository(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

	alice := models.CardIdentity(1304277437743248)
	bob := models.CardIdentity(72057594037927935)

	t.Run("unknown card has no entries", func(t *testing.T) {
		entries, err := repo.FindEntries(ctx, alice)
		require.NoError(t, err)
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})

	t.Run("entries round trip in insertion order", func(t *testing.T) {
		first := models.LedgerEntry{CardID: alice, Balance: 250, Timestamp: ts}
		second := models.LedgerEntry{
			CardID:    alice,
			Balance:   300,
			Timestamp: ts,
			Operation: &models.OperationRecord{Kind: models.OperationIncrease, Amount: 50, Note: "pocket money"},
		}
		require.NoError(t, repo.InsertEntry(ctx, first))
		require.NoError(t, repo.InsertEntry(ctx, second))
		require.NoError(t, repo.InsertEntry(ctx, models.LedgerEntry{CardID: bob, Balance: -70, Timestamp: ts}))

		entries, err := repo.FindEntries(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []models.LedgerEntry{first, second}, entries)
	})

	t.Run("largest identity is kept apart", func(t *testing.T) {
		entries, err := repo.FindEntries(ctx, bob)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, -70.0, entries[0].Balance)
		assert.Nil(t, entries[0].Operation)
	})
}

func TestLedgerOverSQLite(t *testing.T) {
	l := ledger.NewLedger(zap.NewNop(), newRepo(t), nil)
	ctx := context.Background()
	id := models.CardIdentity(2815)

	for i, amount := range []float64{10, 20, 30} {
		op := &models.OperationRecord{Kind: models.OperationIncrease, Amount: amount}
		_, err := l.Append(ctx, id, float64(i+1)*10, op)
		require.NoError(t, err)
	}

	entries, err := l.Query(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 30.0, entries[0].Operation.Amount)
	assert.Equal(t, 10.0, entries[2].Operation.Amount)
}
