package helpers

import (
	// Go Internal Packages
	"bytes"
	"testing"
	"time"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	entries := []models.LedgerEntry{
		{Balance: 300, Timestamp: time.Now(), Operation: &models.OperationRecord{Kind: models.OperationIncrease, Amount: 50, Note: "pocket money"}},
		{Balance: 250, Timestamp: time.Now()},
	}
	require.NoError(t, PrintHistory(&buf, 2815, entries))

	out := buf.String()
	assert.Contains(t, out, "Card 0000 0000 0000 2815")
	assert.Contains(t, out, "increase")
	assert.Contains(t, out, "50 $")
	assert.Contains(t, out, "300 $")
	assert.Contains(t, out, "pocket money")
	assert.Contains(t, out, "read")
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintHistory(&buf, 1, nil))
	assert.Contains(t, buf.String(), "No transactions.")
}

func TestPrintCard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintCard(&buf, models.Card{ID: 2815, Data: &models.CardRecord{Holder: "Bob", Balance: 1500}}))
	assert.Equal(t, "Bob\nCard 0000 0000 0000 2815\nBalance 1 500 $\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintCard(&buf, models.Card{ID: 2815}))
	assert.Equal(t, "Card 0000 0000 0000 2815 is not registered\n", buf.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
