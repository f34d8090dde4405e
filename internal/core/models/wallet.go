package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a partner's prepaid balance in minor units of its currency.
// One wallet per partner; the balance is mutated only through the ledger
// operations in the postgres repository, never by direct assignment.
type Wallet struct {
	ID           uuid.UUID `json:"id" db:"id"`
	PartnerID    uuid.UUID `json:"partner_id" db:"partner_id"`
	Balance      int64     `json:"balance" db:"balance"`
	CurrencyCode string    `json:"currency" db:"currency_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentMethod is the closed set of ways money moves in or out.
type PaymentMethod string

const (
	MethodWallet       PaymentMethod = "WALLET"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodWallet, MethodCard, MethodBankTransfer:
		return true
	default:
		return false
	}
}
