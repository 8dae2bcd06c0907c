package main

import (
	// Go Internal Packages
	"context"
	"fmt"
	"io"

	// Local Packages
	errors "nfc-bank/errors"
	"nfc-bank/helpers"
	"nfc-bank/identity"
	models "nfc-bank/models"
	"nfc-bank/policy"
	"nfc-bank/services/engine"
	"nfc-bank/utils"

	// External Packages
	"go.uber.org/zap"
)

// await returns the first notification matching done. Warnings seen on the
// way are echoed to w.
func (a *App) await(ctx context.Context, w io.Writer, done func(models.Notification) bool) (models.Notification, error) {
	for {
		select {
		case <-ctx.Done():
			return models.Notification{}, fmt.Errorf("no card was presented: %w", ctx.Err())
		case n := <-a.Notes.C():
			if done(n) {
				return n, nil
			}
			if n.Level == models.LevelWarning || n.Level == models.LevelError {
				fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
			}
		}
	}
}

// scanned matches the notification a Read or History scan produces.
func scanned(n models.Notification) bool {
	return n.CardID != nil && (n.Level == models.LevelInfo || errors.Is(errors.Decode, n.Err))
}

func (a *App) start(ctx context.Context, intent engine.Intent) error {
	a.runOnce.Do(func() {
		go func() { _ = a.Engine.Run(ctx) }()
	})
	return a.Engine.Apply(ctx, intent)
}

func (a *App) Read(ctx context.Context, w io.Writer) error {
	if err := a.start(ctx, engine.Intent{Mode: engine.Read}); err != nil {
		return err
	}
	if _, err := a.await(ctx, w, scanned); err != nil {
		return err
	}

	card, _ := a.Engine.Current()
	return helpers.PrintCard(w, card)
}

// cycle runs one write cycle and prints the resulting card.
func (a *App) cycle(ctx context.Context, w io.Writer, intent engine.Intent) error {
	if err := a.start(ctx, intent); err != nil {
		return err
	}
	fmt.Fprintf(w, "Present a card to %s...\n", intent.Mode)

	n, err := a.await(ctx, w, func(n models.Notification) bool { return n.EndsCycle })
	if err != nil {
		return err
	}
	if n.Level == models.LevelError {
		fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
		return n.Err
	}

	fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
	card, _ := a.Engine.Current()
	return helpers.PrintCard(w, card)
}

func (a *App) Increase(ctx context.Context, w io.Writer, amount, note string) error {
	value, err := utils.ParseAmount(amount)
	if err != nil {
		return errors.InvalidParamsErr(err)
	}
	return a.cycle(ctx, w, engine.Intent{Mode: engine.Increase, Amount: value, Note: note})
}

func (a *App) Decrease(ctx context.Context, w io.Writer, amount, note, overdraft string) error {
	value, err := utils.ParseAmount(amount)
	if err != nil {
		return errors.InvalidParamsErr(err)
	}
	p, err := policy.Parse(overdraft)
	if err != nil {
		return err
	}
	return a.cycle(ctx, w, engine.Intent{Mode: engine.Decrease, Amount: value, Note: note, Overdraft: p})
}

// Repair initialises a card. An empty holder searches the directory. A card
// that already belongs to someone else needs a second scan.
func (a *App) Repair(ctx context.Context, w io.Writer, amount, holder, note string) error {
	value, err := utils.ParseAmount(amount)
	if err != nil {
		return errors.InvalidParamsErr(err)
	}
	intent := engine.Intent{Mode: engine.Repair, Amount: value, Note: note, Source: engine.SearchDirectory}
	if holder != "" {
		intent.Source, intent.Holder = engine.ManualEntry, holder
	}

	err = a.cycle(ctx, w, intent)
	if errors.Is(errors.OwnershipConflict, err) {
		fmt.Fprintln(w, "Present the same card again to overwrite it.")
		err = a.cycle(ctx, w, intent)
	}
	return err
}

func (a *App) History(ctx context.Context, w io.Writer, card string) error {
	if card != "" {
		id, ok := identity.Parse(card)
		if !ok {
			return errors.InvalidParamsErr(fmt.Errorf("%q is not a card number", card))
		}
		entries, err := a.Ledger.Query(ctx, id)
		if err != nil {
			return err
		}
		return helpers.PrintHistory(w, id, entries)
	}

	if err := a.start(ctx, engine.Intent{Mode: engine.History}); err != nil {
		return err
	}
	if _, err := a.await(ctx, w, scanned); err != nil {
		return err
	}

	held, _ := a.Engine.Current()
	entries, err := a.Engine.History(ctx)
	if err != nil {
		return err
	}
	return helpers.PrintHistory(w, held.ID, entries)
}

func (a *App) ReplayLedger(ctx context.Context) error {
	if a.Ledger.DLQ == nil {
		return errors.E(errors.Invalid, "no dead letter queue configured, enable redis", nil)
	}
	n, err := a.Ledger.Replay(ctx, a.Config.Ledger.ReplayBatch)
	a.Logger.Info("ledger replay finished", zap.Int("replayed", n))
	return err
}
