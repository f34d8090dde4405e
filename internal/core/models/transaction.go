package models

import (
	"time"

	"github.com/google/uuid"
)

type TxnType string

const (
	TxnCredit TxnType = "CREDIT"
	TxnDebit  TxnType = "DEBIT"
)

// WalletTransaction is one immutable ledger entry. The signed sum of a
// wallet's entries always equals its current balance.
type WalletTransaction struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	WalletID    uuid.UUID     `json:"wallet_id" db:"wallet_id"`
	TxnType     TxnType       `json:"txn_type" db:"txn_type"`
	Method      PaymentMethod `json:"method" db:"method"`
	Amount      int64         `json:"amount" db:"amount"`
	Currency    string        `json:"currency" db:"currency"`
	OrderID     *uuid.UUID    `json:"order_id,omitempty" db:"order_id"`
	ReferenceID *string       `json:"reference_id,omitempty" db:"reference_id"`
	Note        *string       `json:"note,omitempty" db:"note"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
