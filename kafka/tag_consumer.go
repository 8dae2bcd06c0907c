package kafka

import (
	// Go Internal Packages
	"context"
	"errors"
	"fmt"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

type Consumer struct {
	Client    *kgo.Client
	Config    *models.ConsumerConfig
	Processor TagProcessor
	Logger    *zap.Logger
}

type TagProcessor interface {
	ProcessRecords(ctx context.Context, records []models.Record) error
}

// NewTagConsumer creates a consumer for the reader's scan topic
// (PS: Must call Poll to start consuming the records)
func NewTagConsumer(conf *models.ConsumerConfig, processor TagProcessor, metrics *kprom.Metrics, logger *zap.Logger) (*Consumer, error) {
	c := &Consumer{Config: conf, Processor: processor, Logger: logger}

	opts := []kgo.Opt{
		kgo.SeedBrokers(conf.Brokers...),
		kgo.ConsumerGroup(conf.Name),
		kgo.ConsumeTopics(conf.Topic),
		// Tags presented while the service was down are stale.
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	c.Client = client
	return c, nil
}

// Poll polls scan records and hands them to the processor until ctx ends.
func (c *Consumer) Poll(ctx context.Context) error {
	defer c.Client.Close()

	for {
		if ctx.Err() != nil {
			c.Logger.Warn("polling stopped: context canceled")
			return ctx.Err()
		}

		fetches := c.Client.PollRecords(ctx, c.Config.RecordsPerPoll)
		if fetches.IsClientClosed() {
			return errors.New("kafka client closed")
		}
		if errors.Is(fetches.Err0(), context.Canceled) {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.Logger.Error("fetch failed", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		records := make([]models.Record, 0, fetches.NumRecords())
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, models.Record{Key: r.Key, Value: r.Value, Topic: r.Topic})
		})
		if len(records) == 0 {
			c.Client.AllowRebalance()
			continue
		}

		c.Logger.Debug("scan records fetched", zap.String("consumer", c.Config.Name), zap.Int("count", len(records)))
		if err := c.Processor.ProcessRecords(ctx, records); err != nil {
			c.Logger.Error("failed to process records", zap.Error(err))
		}

		if err := c.Client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.Logger.Warn("failed to commit records", zap.Error(err))
		}
		c.Client.AllowRebalance()
	}
}
