package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderInProcess      OrderStatus = "IN_PROCESS"
	OrderCompleted      OrderStatus = "COMPLETED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

// Order is the partial view of an order this core needs: the fee snapshot
// and the cumulative amount of that fee already taken from the wallet.
type Order struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	PartnerID   uuid.UUID   `json:"partner_id" db:"partner_id"`
	TotalFee    int64       `json:"total_fee" db:"total_fee"`
	FeeCurrency *string     `json:"fee_currency,omitempty" db:"fee_currency"`
	WalletUsed  int64       `json:"wallet_used" db:"wallet_used"`
	Status      OrderStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
