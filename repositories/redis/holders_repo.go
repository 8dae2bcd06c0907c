package redis

import (
	// Go Internal Packages
	"context"
	"fmt"
	"strconv"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"github.com/redis/go-redis/v9"
)

// HolderDirectory resolves card holders from a redis hash keyed by the
// decimal card identity.
type HolderDirectory struct {
	client *redis.Client
	key    string
}

func NewHolderDirectory(client *redis.Client, key string) *HolderDirectory {
	return &HolderDirectory{client: client, key: key}
}

func (d *HolderDirectory) Lookup(ctx context.Context, id models.CardIdentity) (string, bool, error) {
	name, err := d.client.HGet(ctx, d.key, strconv.FormatUint(uint64(id), 10)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up holder: %w", err)
	}
	return name, true, nil
}
