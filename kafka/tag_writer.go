package kafka

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// TagWriter publishes write requests for the reader on the write topic. A
// write is confirmed once the broker acknowledges the request.
type TagWriter struct {
	Producer Producer
	Topic    string
	Logger   *zap.Logger
}

func NewTagWriter(conf *models.ProducerConfig, metrics *kprom.Metrics, logger *zap.Logger) (*TagWriter, *kgo.Client, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.DefaultProduceTopic(conf.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &TagWriter{Producer: client, Topic: conf.Topic, Logger: logger}, client, nil
}

func (w *TagWriter) Write(ctx context.Context, fields []models.Field) error {
	req := models.WriteRequest{RequestID: uuid.NewString(), Fields: fields}
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal write request: %w", err)
	}

	record := &kgo.Record{Key: []byte(req.RequestID), Value: value, Topic: w.Topic}
	if err := w.Producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce write request: %w", err)
	}

	w.Logger.Debug("write request produced", zap.String("request_id", req.RequestID), zap.Int("fields", len(fields)))
	return nil
}
