package mongodb

import (
	// Go Internal Packages
	"context"
	"fmt"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LedgerRepository struct {
	Client     *mongo.Client
	Database   string
	Collection string
}

func NewLedgerRepository(client *mongo.Client, database, collection string) *LedgerRepository {
	return &LedgerRepository{Client: client, Database: database, Collection: collection}
}

func (r *LedgerRepository) collection() *mongo.Collection {
	return r.Client.Database(r.Database).Collection(r.Collection)
}

// EnsureIndexes creates the per-card index history queries rely on.
func (r *LedgerRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{Keys: bson.D{{Key: "card_id", Value: 1}, {Key: "_id", Value: 1}}}
	if _, err := r.collection().Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("failed to create ledger index: %w", err)
	}
	return nil
}

// InsertEntry inserts a single ledger entry into database
func (r *LedgerRepository) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	_, err := r.collection().InsertOne(ctx, entry.Transform())
	if err != nil {
		return err
	}
	return nil
}

// FindEntries returns a card's entries in insertion order. ObjectIDs grow
// monotonically per process, so sorting on _id preserves append order.
func (r *LedgerRepository) FindEntries(ctx context.Context, id models.CardIdentity) ([]models.LedgerEntry, error) {
	filter := bson.M{"card_id": int64(id)}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.MongoLedgerEntry
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	entries := make([]models.LedgerEntry, 0, len(docs))
	for i := range docs {
		entries = append(entries, docs[i].Entry())
	}
	return entries, nil
}
