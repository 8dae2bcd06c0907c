package ledger

import (
	// Go Internal Packages
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"

	// External Packages
	"go.uber.org/zap"
)

// Store persists ledger entries. FindEntries returns entries in insertion order.
type Store interface {
	InsertEntry(ctx context.Context, entry models.LedgerEntry) error
	FindEntries(ctx context.Context, id models.CardIdentity) ([]models.LedgerEntry, error)
}

// DeadLetterQueue keeps entries the store refused so they can be replayed.
type DeadLetterQueue interface {
	Send(ctx context.Context, entries []models.LedgerEntry) error
	Drain(ctx context.Context, max int) ([]models.LedgerEntry, error)
}

type Ledger struct {
	Logger *zap.Logger
	Store  Store
	DLQ    DeadLetterQueue
	Now    func() time.Time
}

func NewLedger(logger *zap.Logger, store Store, dlq DeadLetterQueue) *Ledger {
	return &Ledger{Logger: logger, Store: store, DLQ: dlq, Now: time.Now}
}

// Append records a balance snapshot for a card. A storage failure is reported
// as an Unavailable error after the entry has been handed to the dead letter
// queue; the caller must not undo the tag write because of it.
func (l *Ledger) Append(ctx context.Context, id models.CardIdentity, balance float64, op *models.OperationRecord) (models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		CardID:    id,
		Balance:   balance,
		Timestamp: l.Now().UTC(),
	}
	if op != nil {
		cp := *op
		entry.Operation = &cp
	}

	err := l.Store.InsertEntry(ctx, entry)
	if err == nil {
		return entry, nil
	}

	l.Logger.Error("failed to persist ledger entry", zap.Uint64("card_id", uint64(id)), zap.Error(err))
	if l.DLQ != nil {
		if dlqErr := l.DLQ.Send(ctx, []models.LedgerEntry{entry}); dlqErr != nil {
			l.Logger.Error("failed to park ledger entry", zap.Uint64("card_id", uint64(id)), zap.Error(dlqErr))
		}
	}
	return entry, errors.UnavailableErr("ledger store", err)
}

// Query returns every entry of the card, most recent first.
func (l *Ledger) Query(ctx context.Context, id models.CardIdentity) ([]models.LedgerEntry, error) {
	entries, err := l.Store.FindEntries(ctx, id)
	if err != nil {
		return nil, errors.UnavailableErr("ledger store", err)
	}

	// Reverse first so equal timestamps keep newest-inserted first.
	slices.Reverse(entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

// Replay moves parked entries back into the store in batches. Entries that
// still cannot be stored are parked again.
func (l *Ledger) Replay(ctx context.Context, batch int) (int, error) {
	if l.DLQ == nil {
		return 0, nil
	}

	replayed := 0
	for {
		entries, err := l.DLQ.Drain(ctx, batch)
		if err != nil {
			return replayed, fmt.Errorf("failed to drain ledger queue: %w", err)
		}
		if len(entries) == 0 {
			return replayed, nil
		}

		for i, entry := range entries {
			if err := l.Store.InsertEntry(ctx, entry); err != nil {
				if sendErr := l.DLQ.Send(ctx, entries[i:]); sendErr != nil {
					l.Logger.Error("failed to park ledger entries", zap.Int("count", len(entries[i:])), zap.Error(sendErr))
				}
				return replayed, errors.UnavailableErr("ledger store", err)
			}
			replayed++
		}
		l.Logger.Info("replayed ledger entries", zap.Int("count", len(entries)))
	}
}
