package helpers

import (
	// Go Internal Packages
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	// Local Packages
	"nfc-bank/identity"
	models "nfc-bank/models"
	"nfc-bank/utils"
)

// PrintJSON writes v in pretty format with indent
func PrintJSON(w io.Writer, v any) error {
	res, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(res))
	return err
}

// PrintHistory writes a card's ledger as an aligned table, newest first.
func PrintHistory(w io.Writer, id models.CardIdentity, entries []models.LedgerEntry) error {
	if _, err := fmt.Fprintf(w, "Card %s\n", identity.FormatCardNumber(id)); err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No transactions.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOPERATION\tAMOUNT\tBALANCE\tNOTE")
	for _, e := range entries {
		op, amount, note := "read", "", ""
		if e.Operation != nil {
			op = string(e.Operation.Kind)
			amount = utils.FormatAmount(e.Operation.Amount)
			note = e.Operation.Note
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), op, amount, utils.FormatAmount(e.Balance), note)
	}
	return tw.Flush()
}

// PrintCard writes the holder, number and balance of a card.
func PrintCard(w io.Writer, card models.Card) error {
	if !card.Registered() {
		_, err := fmt.Fprintf(w, "Card %s is not registered\n", identity.FormatCardNumber(card.ID))
		return err
	}
	_, err := fmt.Fprintf(w, "%s\nCard %s\nBalance %s\n",
		card.Data.Holder, identity.FormatCardNumber(card.ID), utils.FormatAmount(float64(card.Data.Balance)))
	return err
}
