package engine

import (
	// Go Internal Packages
	"context"
	"fmt"
	"math"

	// Local Packages
	"nfc-bank/codec"
	"nfc-bank/directory"
	errors "nfc-bank/errors"
	"nfc-bank/identity"
	models "nfc-bank/models"
	"nfc-bank/policy"
	"nfc-bank/utils"

	// External Packages
	"go.uber.org/zap"
)

const (
	outcomeRead          = "read"
	outcomeSuccess       = "success"
	outcomeNotRecognized = "not_recognized"
	outcomeNotRegistered = "not_registered"
	outcomeRejected      = "rejected"
	outcomeConflict      = "conflict"
	outcomeWriteFailed   = "write_failed"
	outcomeOutOfRange    = "out_of_range"
)

func (e *Engine) listen(ctx, scanCtx context.Context, gen uint64, intent Intent, events <-chan models.TagEvent) {
	for {
		select {
		case <-scanCtx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !e.isCurrent(gen) {
				return
			}
			if ev.Error != "" {
				e.readingError(fmt.Errorf("%s", ev.Error))
				continue
			}

			if !intent.Mode.writes() {
				e.read(ctx, ev)
				continue
			}

			// One tag per write cycle: stop listening before touching it.
			e.stopScan(gen)
			if intent.Mode == Repair {
				e.repair(ctx, gen, intent, ev)
			} else {
				e.adjust(ctx, gen, intent, ev)
			}
			return
		}
	}
}

func (e *Engine) read(ctx context.Context, ev models.TagEvent) {
	card, err := codec.DecodeCard(identity.Derive(ev.SerialNumber), ev.Fields)
	e.setCurrent(card)
	if err != nil {
		e.Metrics.CycleCompleted(Read.String(), outcomeNotRecognized)
		e.notify(models.Notification{
			Level:   models.LevelError,
			Title:   "Invalid card",
			Message: "This is not a valid card of our bank.",
			CardID:  &card.ID,
			Err:     err,
		})
		return
	}

	if e.Options.RecordReads {
		e.record(ctx, card.ID, float64(card.Data.Balance), nil)
	}

	e.Metrics.CycleCompleted(Read.String(), outcomeRead)
	e.notify(models.Notification{
		Level:   models.LevelInfo,
		Title:   card.Data.Holder,
		Message: fmt.Sprintf("Balance: %s", utils.FormatAmount(float64(card.Data.Balance))),
		CardID:  &card.ID,
	})
}

func (e *Engine) adjust(ctx context.Context, gen uint64, intent Intent, ev models.TagEvent) {
	card, err := codec.DecodeCard(identity.Derive(ev.SerialNumber), ev.Fields)
	e.setCurrent(card)
	if err != nil {
		e.abort(ctx, gen, intent.Mode, outcomeNotRegistered, models.Notification{
			Title:   "Card not registered",
			Message: "The card is not registered in the system.",
			CardID:  &card.ID,
			Err:     fmt.Errorf("%w: %w", errors.NotRegisteredErr(uint64(card.ID)), err),
		})
		return
	}

	current := float64(card.Data.Balance)
	next, outcome := current+intent.Amount, policy.Accepted
	if intent.Mode == Decrease {
		res, err := policy.Resolve(current, -intent.Amount, intent.Overdraft)
		if err != nil {
			e.abort(ctx, gen, intent.Mode, outcomeRejected, models.Notification{
				Title:   "Insufficient balance",
				Message: "The transaction cannot be made because the balance is insufficient.",
				CardID:  &card.ID,
				Err:     err,
			})
			return
		}
		next, outcome = res.Balance, res.Outcome
	}

	if b := float64(float32(next)); math.IsInf(b, 0) {
		e.abort(ctx, gen, intent.Mode, outcomeOutOfRange, models.Notification{
			Title:   "Balance out of range",
			Message: "The new balance cannot be stored on the card.",
			CardID:  &card.ID,
			Err:     errors.BalanceOutOfRangeErr(next),
		})
		return
	}

	switch outcome {
	case policy.Clamped:
		e.notify(models.Notification{
			Level:   models.LevelWarning,
			Title:   "Balance was insufficient",
			Message: "The balance was reset to zero.",
			CardID:  &card.ID,
		})
	case policy.Overdrawn:
		e.notify(models.Notification{
			Level:   models.LevelWarning,
			Title:   "Balance overdrawn",
			Message: fmt.Sprintf("The balance was overdrawn to %s.", utils.FormatAmount(next)),
			CardID:  &card.ID,
		})
	}

	updated := card.WithRecord(models.CardRecord{Holder: card.Data.Holder, Balance: float32(next)})
	op := &models.OperationRecord{Kind: intent.Mode.operation(), Amount: intent.Amount, Note: intent.Note}
	e.commit(ctx, gen, intent.Mode, updated, op, models.Notification{
		Title:   "Card updated",
		Message: fmt.Sprintf("New balance: %s", utils.FormatAmount(float64(updated.Data.Balance))),
	})
}

func (e *Engine) repair(ctx context.Context, gen uint64, intent Intent, ev models.TagEvent) {
	// An unregistered tag is the normal case here, so decode errors stay quiet.
	card, decodeErr := codec.DecodeCard(identity.Derive(ev.SerialNumber), ev.Fields)

	e.mu.Lock()
	var held *models.CardIdentity
	if e.current != nil {
		id := e.current.ID
		held = &id
	}
	conflict := decodeErr == nil &&
		(held == nil || *held != card.ID) &&
		(e.repairTarget == nil || *e.repairTarget != card.ID)
	if conflict {
		id := card.ID
		e.repairTarget = &id
	}
	e.mu.Unlock()

	if conflict {
		var heldID uint64
		if held != nil {
			heldID = uint64(*held)
		}
		e.abort(ctx, gen, intent.Mode, outcomeConflict, models.Notification{
			Title:   "Card is registered and working",
			Message: "The card already belongs to someone else. Scan it again in repair mode to overwrite it.",
			CardID:  &card.ID,
			Err:     errors.OwnershipConflictErr(uint64(card.ID), heldID),
		})
		return
	}

	e.setCurrent(card)

	holder, err := e.resolveHolder(ctx, intent, card.ID)
	if err != nil {
		e.Logger.Error("failed to look up card holder", zap.Uint64("card_id", uint64(card.ID)), zap.Error(err))
	}
	if holder == "" {
		notRegistered := errors.NotRegisteredErr(uint64(card.ID))
		if err != nil {
			notRegistered = fmt.Errorf("%w: %w", notRegistered, err)
		}
		e.abort(ctx, gen, intent.Mode, outcomeNotRegistered, models.Notification{
			Title:   "This card is not registered",
			Message: "The card is not registered in the system.",
			CardID:  &card.ID,
			Err:     notRegistered,
		})
		return
	}

	updated := card.WithRecord(models.CardRecord{Holder: holder, Balance: float32(intent.Amount)})
	op := &models.OperationRecord{Kind: models.OperationRepair, Amount: intent.Amount, Note: intent.Note}
	e.commit(ctx, gen, intent.Mode, updated, op, models.Notification{
		Title:   "Card initialised",
		Message: fmt.Sprintf("The card was repaired and now belongs to %s.", holder),
	})
}

func (e *Engine) resolveHolder(ctx context.Context, intent Intent, id models.CardIdentity) (string, error) {
	var name string
	switch intent.Source {
	case ManualEntry:
		name = intent.Holder
	default:
		if e.Directory == nil {
			return "", nil
		}
		found, ok, err := e.Directory.Lookup(ctx, id)
		if err != nil {
			return "", err
		}
		if ok {
			name = found
		}
	}
	return directory.Normalize(name), nil
}

// commit writes the updated card and, once the tag confirms, records it.
func (e *Engine) commit(ctx context.Context, gen uint64, mode Mode, updated models.Card, op *models.OperationRecord, done models.Notification) {
	fields := codec.Encode(*updated.Data)

	e.writeMu.Lock()
	attempts, err := e.write(ctx, updated.ID, fields)
	e.writeMu.Unlock()

	if err != nil {
		e.abort(ctx, gen, mode, outcomeWriteFailed, models.Notification{
			Title:   "Card write failed",
			Message: "The card was not updated.",
			CardID:  &updated.ID,
			Err:     err,
		})
		return
	}

	e.mu.Lock()
	c := updated.Clone()
	e.current = &c
	if mode == Repair {
		e.repairTarget = nil
	}
	e.mu.Unlock()

	e.Logger.Info("card written",
		zap.Uint64("card_id", uint64(updated.ID)),
		zap.Stringer("mode", mode),
		zap.Float32("balance", updated.Data.Balance),
		zap.Int("attempts", attempts),
	)
	e.record(ctx, updated.ID, float64(updated.Data.Balance), op)

	e.Metrics.CycleCompleted(mode.String(), outcomeSuccess)
	e.backToRead(ctx, gen)
	done.Level = models.LevelSuccess
	done.CardID = &updated.ID
	done.EndsCycle = true
	e.notify(done)
}

// record appends to the ledger. A failure is reported but never undoes the
// tag write that already happened.
func (e *Engine) record(ctx context.Context, id models.CardIdentity, balance float64, op *models.OperationRecord) {
	if _, err := e.Ledger.Append(ctx, id, balance, op); err != nil {
		e.Logger.Warn("ledger append failed", zap.Uint64("card_id", uint64(id)), zap.Error(err))
		e.notify(models.Notification{
			Level:   models.LevelWarning,
			Title:   "History not saved",
			Message: "The card was updated but the transaction could not be stored.",
			CardID:  &id,
			Err:     err,
		})
	}
}

// abort ends the cycle without a write and returns to Read.
func (e *Engine) abort(ctx context.Context, gen uint64, mode Mode, outcome string, n models.Notification) {
	e.Logger.Info("cycle aborted", zap.Stringer("mode", mode), zap.String("outcome", outcome), zap.Error(n.Err))
	e.Metrics.CycleCompleted(mode.String(), outcome)
	e.backToRead(ctx, gen)
	n.Level = models.LevelError
	n.EndsCycle = true
	e.notify(n)
}

func (e *Engine) scanFailed(err error) error {
	err = errors.TransportErr("scan", err)
	e.Logger.Error("failed to start scan", zap.Error(err))
	e.notify(models.Notification{
		Level:   models.LevelError,
		Title:   "NFC scan failed",
		Message: err.Error(),
		Err:     err,
	})
	return err
}

func (e *Engine) readingError(err error) {
	err = errors.TransportErr("read", err)
	e.Logger.Warn("tag reading error", zap.Error(err))
	e.notify(models.Notification{
		Level:   models.LevelError,
		Title:   "NFC reading error",
		Message: "Check that NFC is enabled and the card is placed correctly.",
		Err:     err,
	})
}
