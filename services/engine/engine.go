// Package engine runs the card transaction state machine: it arms tag scans
// for the active mode, validates and computes the next card state, writes it
// back to the tag and records confirmed writes in the ledger.
package engine

import (
	// Go Internal Packages
	"context"
	"sync"
	"time"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"go.uber.org/zap"
)

// Transport is the tag reader. Scan delivers tag events until ctx is
// cancelled; Errors delivers reading errors independent of any scan and may
// return nil.
type Transport interface {
	Scan(ctx context.Context) (<-chan models.TagEvent, error)
	Write(ctx context.Context, fields []models.Field) error
	Errors() <-chan error
}

type Ledger interface {
	Append(ctx context.Context, id models.CardIdentity, balance float64, op *models.OperationRecord) (models.LedgerEntry, error)
	Query(ctx context.Context, id models.CardIdentity) ([]models.LedgerEntry, error)
}

type Directory interface {
	Lookup(ctx context.Context, id models.CardIdentity) (string, bool, error)
}

type Metrics interface {
	CycleCompleted(mode, outcome string)
	WriteAttempted(ok bool)
}

type nopMetrics struct{}

func (nopMetrics) CycleCompleted(string, string) {}
func (nopMetrics) WriteAttempted(bool)           {}

// RetryConfig controls the write retry loop. MaxAttempts 0 retries until the
// write succeeds or the context ends; a zero MinInterval retries immediately.
type RetryConfig struct {
	MaxAttempts int
	MinInterval time.Duration
	MaxInterval time.Duration
}

type Options struct {
	Retry RetryConfig
	// RecordReads appends an operation-less ledger entry for every registered
	// card read in Read or History mode.
	RecordReads bool
}

type Engine struct {
	Logger    *zap.Logger
	Transport Transport
	Ledger    Ledger
	Directory Directory
	Notifier  Notifier
	Metrics   Metrics
	Options   Options

	writeMu sync.Mutex

	mu         sync.RWMutex
	intent     Intent
	gen        uint64
	cancelScan context.CancelFunc
	current    *models.Card
	// repairTarget is a registered card the operator was warned about in
	// Repair; scanning it again in Repair overwrites it.
	repairTarget *models.CardIdentity
}

func NewEngine(logger *zap.Logger, transport Transport, ledger Ledger, directory Directory, notifier Notifier, metrics Metrics, opts Options) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{
		Logger:    logger,
		Transport: transport,
		Ledger:    ledger,
		Directory: directory,
		Notifier:  notifier,
		Metrics:   metrics,
		Options:   opts,
	}
}

// Apply switches the engine to the intent's mode and arms a new scan. The
// previous scan stops accepting tags; a write already in flight keeps going.
// ctx bounds the scan and any write started by this cycle.
func (e *Engine) Apply(ctx context.Context, intent Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	return e.apply(ctx, intent.normalized(), nil)
}

// apply arms the scan. With expect set, it only proceeds while the engine is
// still on that generation, so a finishing cycle cannot override a newer intent.
func (e *Engine) apply(ctx context.Context, intent Intent, expect *uint64) error {
	e.mu.Lock()
	if expect != nil && *expect != e.gen {
		e.mu.Unlock()
		return nil
	}
	if e.cancelScan != nil {
		e.cancelScan()
	}
	e.gen++
	gen := e.gen
	e.intent = intent
	scanCtx, cancel := context.WithCancel(ctx)
	e.cancelScan = cancel
	e.mu.Unlock()

	e.Logger.Debug("mode applied", zap.Stringer("mode", intent.Mode), zap.Uint64("generation", gen))

	events, err := e.Transport.Scan(scanCtx)
	if err != nil {
		cancel()
		return e.scanFailed(err)
	}
	go e.listen(ctx, scanCtx, gen, intent, events)
	return nil
}

// Run reports out-of-band reading errors until ctx ends, then stops the scan.
func (e *Engine) Run(ctx context.Context) error {
	errs := e.Transport.Errors()
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.readingError(err)
		}
	}
}

// Stop cancels the active scan subscription.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelScan != nil {
		e.cancelScan()
		e.cancelScan = nil
	}
}

func (e *Engine) Mode() Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.intent.Mode
}

func (e *Engine) Intent() Intent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.intent
}

// Current returns a copy of the card the engine holds.
func (e *Engine) Current() (models.Card, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return models.Card{}, false
	}
	return e.current.Clone(), true
}

// History returns the ledger of the held card, most recent first.
func (e *Engine) History(ctx context.Context) ([]models.LedgerEntry, error) {
	card, ok := e.Current()
	if !ok {
		return []models.LedgerEntry{}, nil
	}
	return e.Ledger.Query(ctx, card.ID)
}

func (e *Engine) setCurrent(card models.Card) {
	c := card.Clone()
	e.mu.Lock()
	e.current = &c
	e.mu.Unlock()
}

func (e *Engine) isCurrent(gen uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gen == gen
}

// stopScan cancels the scan of gen if it is still the active one.
func (e *Engine) stopScan(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen == gen && e.cancelScan != nil {
		e.cancelScan()
		e.cancelScan = nil
	}
}

// backToRead returns to Read unless another intent was applied since gen.
func (e *Engine) backToRead(ctx context.Context, gen uint64) {
	if ctx.Err() != nil {
		return
	}
	if err := e.apply(ctx, Intent{Mode: Read}, &gen); err != nil {
		e.Logger.Error("failed to return to read mode", zap.Error(err))
	}
}

func (e *Engine) notify(n models.Notification) {
	e.Notifier.Notify(n)
}
