package sqlite

import (
	// Go Internal Packages
	"database/sql"
)

// schema is applied on every open; statements must stay idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    balance REAL NOT NULL,
    timestamp INTEGER NOT NULL,
    op_kind TEXT,
    op_amount REAL,
    op_note TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_card_id ON ledger_entries(card_id, id);
`

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
