package engine

import (
	// Go Internal Packages
	"sync"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"go.uber.org/zap"
)

type Notifier interface {
	Notify(n models.Notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(models.Notification) {}

// ChanNotifier delivers notifications on a buffered channel. When the buffer
// is full the notification is dropped rather than stalling the engine.
type ChanNotifier struct {
	ch chan models.Notification
}

func NewChanNotifier(size int) *ChanNotifier {
	return &ChanNotifier{ch: make(chan models.Notification, size)}
}

func (c *ChanNotifier) Notify(n models.Notification) {
	select {
	case c.ch <- n:
	default:
	}
}

func (c *ChanNotifier) C() <-chan models.Notification {
	return c.ch
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Notify(n models.Notification) {
	fields := []zap.Field{zap.String("title", n.Title), zap.String("message", n.Message)}
	if n.CardID != nil {
		fields = append(fields, zap.Uint64("card_id", uint64(*n.CardID)))
	}
	if n.Err != nil {
		fields = append(fields, zap.Error(n.Err))
	}

	switch n.Level {
	case models.LevelError:
		l.Logger.Error("notification", fields...)
	case models.LevelWarning:
		l.Logger.Warn("notification", fields...)
	default:
		l.Logger.Info("notification", fields...)
	}
}

// Recorder keeps the most recent notifications for display consumers.
type Recorder struct {
	mu    sync.Mutex
	size  int
	items []models.Notification
}

func NewRecorder(size int) *Recorder {
	return &Recorder{size: size}
}

func (r *Recorder) Notify(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if len(r.items) > r.size {
		r.items = r.items[len(r.items)-r.size:]
	}
}

// Recent returns the kept notifications, newest first.
func (r *Recorder) Recent() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.items))
	for i, n := range r.items {
		out[len(r.items)-1-i] = n
	}
	return out
}

// Notifiers fans a notification out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(n models.Notification) {
	for _, x := range ns {
		x.Notify(n)
	}
}
