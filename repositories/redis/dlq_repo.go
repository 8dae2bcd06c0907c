package redis

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DeadLetterQueue parks ledger entries the store refused on a redis list,
// oldest first.
type DeadLetterQueue struct {
	client   *redis.Client
	logger   *zap.Logger
	listName string
}

func NewDeadLetterQueue(client *redis.Client, logger *zap.Logger, listName string) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, logger: logger, listName: listName}
}

// Send appends entries to the tail of the list.
func (r *DeadLetterQueue) Send(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]any, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			r.logger.Error("failed to marshal ledger entry", zap.Uint64("card_id", uint64(entry.CardID)), zap.Error(err))
			continue
		}
		values = append(values, data)
	}
	if len(values) == 0 {
		return nil
	}

	if err := r.client.RPush(ctx, r.listName, values...).Err(); err != nil {
		return fmt.Errorf("failed to park ledger entries: %w", err)
	}
	r.logger.Info("parked ledger entries", zap.String("list", r.listName), zap.Int("count", len(values)))
	return nil
}

// Drain pops up to max entries from the head of the list.
func (r *DeadLetterQueue) Drain(ctx context.Context, max int) ([]models.LedgerEntry, error) {
	raw, err := r.client.LPopCount(ctx, r.listName, max).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to drain ledger entries: %w", err)
	}

	entries := make([]models.LedgerEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.LedgerEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			r.logger.Error("dropping malformed parked entry", zap.String("list", r.listName), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
