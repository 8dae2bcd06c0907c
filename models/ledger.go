package models

import (
	// Go Internal Packages
	"time"
)

type OperationKind string

const (
	OperationIncrease OperationKind = "increase"
	OperationDecrease OperationKind = "decrease"
	OperationRepair   OperationKind = "repair"
)

type OperationRecord struct {
	Kind   OperationKind `json:"kind" bson:"kind"`
	Amount float64       `json:"amount" bson:"amount"`
	Note   string        `json:"note,omitempty" bson:"note,omitempty"`
}

// LedgerEntry is a balance snapshot taken after a confirmed tag write.
type LedgerEntry struct {
	CardID    CardIdentity     `json:"card_id"`
	Balance   float64          `json:"balance"`
	Timestamp time.Time        `json:"timestamp"`
	Operation *OperationRecord `json:"operation,omitempty"`
}

type MongoLedgerEntry struct {
	CardID    int64            `bson:"card_id"`
	Balance   float64          `bson:"balance"`
	Timestamp time.Time        `bson:"timestamp"`
	Operation *OperationRecord `bson:"operation,omitempty"`
}

func (e *LedgerEntry) Transform() MongoLedgerEntry {
	return MongoLedgerEntry{
		CardID:    int64(e.CardID),
		Balance:   e.Balance,
		Timestamp: e.Timestamp,
		Operation: e.Operation,
	}
}

func (m *MongoLedgerEntry) Entry() LedgerEntry {
	return LedgerEntry{
		CardID:    CardIdentity(m.CardID),
		Balance:   m.Balance,
		Timestamp: m.Timestamp,
		Operation: m.Operation,
	}
}
