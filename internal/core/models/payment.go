package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type PaymentPurpose string

const (
	PurposeTopup           PaymentPurpose = "TOPUP"
	PurposeOrderSettlement PaymentPurpose = "ORDER_SETTLEMENT"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Terminal reports whether the status may never change again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Payment is one attempt to settle money through the external gateway, or
// the bookkeeping record of a wallet-only settlement leg. A payment is
// created INITIATED and moves exactly once to SUCCESS or FAILED.
type Payment struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	PaymentCode    string         `json:"payment_code" db:"payment_code"`
	Purpose        PaymentPurpose `json:"purpose" db:"purpose"`
	PartnerID      uuid.UUID      `json:"partner_id" db:"partner_id"`
	OrderID        *uuid.UUID     `json:"order_id,omitempty" db:"order_id"`
	Method         PaymentMethod  `json:"method" db:"method"`
	Amount         int64          `json:"amount" db:"amount"`
	Currency       string         `json:"currency" db:"currency"`
	Status         PaymentStatus  `json:"status" db:"status"`
	GatewayTxnID   *string        `json:"gateway_txn_id,omitempty" db:"gateway_txn_id"`
	GatewayPayload types.JSONText `json:"gateway_payload,omitempty" db:"gateway_payload"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}
