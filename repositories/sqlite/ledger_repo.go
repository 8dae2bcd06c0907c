// Package sqlite provides an embedded ledger store for single-terminal setups.
package sqlite

import (
	// Go Internal Packages
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	// Local Packages
	models "nfc-bank/models"

	// External Packages
	_ "modernc.org/sqlite"
)

type LedgerRepository struct {
	db *sql.DB
}

// New opens the database at dbPath, creating parent directories and the
// schema as needed.
func New(dbPath string) (*LedgerRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps appends serialized without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &LedgerRepository{db: db}, nil
}

func (r *LedgerRepository) Close() error {
	return r.db.Close()
}

// InsertEntry inserts a single ledger entry.
func (r *LedgerRepository) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	var kind, note sql.NullString
	var amount sql.NullFloat64
	if op := entry.Operation; op != nil {
		kind = sql.NullString{String: string(op.Kind), Valid: true}
		amount = sql.NullFloat64{Float64: op.Amount, Valid: true}
		note = sql.NullString{String: op.Note, Valid: op.Note != ""}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (card_id, balance, timestamp, op_kind, op_amount, op_note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cardKey(entry.CardID), entry.Balance, entry.Timestamp.UnixNano(), kind, amount, note,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// FindEntries returns a card's entries in insertion order.
func (r *LedgerRepository) FindEntries(ctx context.Context, id models.CardIdentity) ([]models.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT balance, timestamp, op_kind, op_amount, op_note
		 FROM ledger_entries WHERE card_id = ? ORDER BY id`,
		cardKey(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var (
			balance float64
			nanos   int64
			kind    sql.NullString
			amount  sql.NullFloat64
			note    sql.NullString
		)
		if err := rows.Scan(&balance, &nanos, &kind, &amount, &note); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry := models.LedgerEntry{
			CardID:    id,
			Balance:   balance,
			Timestamp: time.Unix(0, nanos).UTC(),
		}
		if kind.Valid {
			entry.Operation = &models.OperationRecord{
				Kind:   models.OperationKind(kind.String),
				Amount: amount.Float64,
				Note:   note.String,
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	return entries, nil
}

// cardKey stores identities as decimal text so every uint64 fits.
func cardKey(id models.CardIdentity) string {
	return strconv.FormatUint(uint64(id), 10)
}
