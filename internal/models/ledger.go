package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds. Debits are stored with a negative amount so that the
// sum of a user's entries equals their balance.
const (
	LedgerKindDebitEscrow      = "debit_escrow"
	LedgerKindCreditSettlement = "credit_settlement"
	LedgerKindRefund           = "refund"
	LedgerKindTopUp            = "top_up"
	LedgerKindWithdrawal       = "withdrawal"
)

type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	GigID        *uuid.UUID `json:"gig_id,omitempty"`
	Kind         string     `json:"kind"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Reconciliation compares a user's stored balance with the sum of their entries.
type Reconciliation struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	LedgerSum int64     `json:"ledger_sum"`
}

func (r Reconciliation) Consistent() bool { return r.Balance == r.LedgerSum }
