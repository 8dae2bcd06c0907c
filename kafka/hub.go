package kafka

import (
	// Go Internal Packages
	"context"
	"sync"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"go.uber.org/zap"
)

type Writer interface {
	Write(ctx context.Context, fields []models.Field) error
}

// Hub turns the consumed scan stream into per-scan subscriptions. It is the
// tag transport the engine talks to when the reader sits behind Kafka.
type Hub struct {
	Writer Writer
	Logger *zap.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan models.TagEvent
	errs   chan error
}

func NewHub(writer Writer, logger *zap.Logger) *Hub {
	return &Hub{
		Writer: writer,
		Logger: logger,
		subs:   make(map[uint64]chan models.TagEvent),
		errs:   make(chan error, 16),
	}
}

// Scan registers a subscription that receives every tag published until ctx
// ends, after which the channel is closed.
func (h *Hub) Scan(ctx context.Context) (<-chan models.TagEvent, error) {
	ch := make(chan models.TagEvent, 8)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// Publish hands a presented tag to every active scan. A subscriber that is
// not keeping up misses the tag.
func (h *Hub) Publish(ev models.TagEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		h.Logger.Debug("tag presented without an active scan", zap.String("serial_number", ev.SerialNumber))
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.Logger.Warn("scan subscriber is full, tag dropped", zap.Uint64("subscription", id))
		}
	}
}

func (h *Hub) Fail(err error) {
	select {
	case h.errs <- err:
	default:
		h.Logger.Warn("reading error dropped", zap.Error(err))
	}
}

func (h *Hub) Errors() <-chan error {
	return h.errs
}

func (h *Hub) Write(ctx context.Context, fields []models.Field) error {
	return h.Writer.Write(ctx, fields)
}

// Subscribers reports the number of active scans.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
