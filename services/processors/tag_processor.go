package processors

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"

	// Local Packages
	errors "nfc-bank/errors"
	models "nfc-bank/models"

	// External Packages
	"go.uber.org/zap"
)

// TagSink receives decoded reader traffic: presented tags and reading errors.
type TagSink interface {
	Publish(ev models.TagEvent)
	Fail(err error)
}

type TagProcessor struct {
	Logger *zap.Logger
	Sink   TagSink
}

func NewTagProcessor(logger *zap.Logger, sink TagSink) *TagProcessor {
	return &TagProcessor{Sink: sink, Logger: logger}
}

// ProcessRecords dispatches a batch of reader records in order. Malformed
// records are reported to the sink as reading errors and do not fail the batch.
func (p *TagProcessor) ProcessRecords(ctx context.Context, records []models.Record) error {
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.ProcessRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (p *TagProcessor) ProcessRecord(_ context.Context, record models.Record) error {
	var ev models.TagEvent
	err := json.Unmarshal(record.Value, &ev)
	if err != nil {
		p.Logger.Error("failed to unmarshal tag event", zap.String("topic", record.Topic), zap.Error(err))
		p.Sink.Fail(errors.E(errors.Decode, "malformed reader message", err))
		return nil
	}

	if ev.Error != "" {
		p.Sink.Fail(fmt.Errorf("reader: %s", ev.Error))
		return nil
	}
	if ev.SerialNumber == "" {
		p.Logger.Warn("tag event without serial number", zap.String("topic", record.Topic))
		p.Sink.Fail(errors.E(errors.Decode, "tag event without serial number", nil))
		return nil
	}

	p.Sink.Publish(ev)
	return nil
}
