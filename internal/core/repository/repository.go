package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/visadesk/walletcore/internal/core/models"
)

// CreditParams describes one wallet credit. ReferenceID carries the external
// correlation key (gateway transaction id for confirmed top-ups).
type CreditParams struct {
	PartnerID   uuid.UUID
	Amount      int64
	Currency    string
	Method      models.PaymentMethod
	OrderID     *uuid.UUID
	ReferenceID string
	Note        string
}

type DebitParams struct {
	PartnerID   uuid.UUID
	Amount      int64
	Currency    string
	Method      models.PaymentMethod
	OrderID     *uuid.UUID
	ReferenceID string
	Note        string
}

type WalletRepository interface {
	// GetOrCreate returns the partner's wallet, creating a zero-balance one
	// on first access. Safe under concurrent first access.
	GetOrCreate(ctx context.Context, partnerID uuid.UUID, currency string) (*models.Wallet, error)
	GetByPartnerID(ctx context.Context, partnerID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
	GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error)

	// Credit and Debit mutate the balance and append the ledger entry in one
	// database transaction. Debit fails with ErrInsufficientFunds without
	// writing anything when the balance does not cover the amount.
	Credit(ctx context.Context, p CreditParams) (int64, error)
	Debit(ctx context.Context, p DebitParams) (int64, error)
}

// GatewayResult is a verified webhook payload, as delivered by the gateway
// adapter. The raw payload is persisted on the payment for investigation.
type GatewayResult struct {
	GatewayTxnID string
	Status       models.PaymentStatus
	Amount       int64
	Currency     string
	Payload      []byte
}

type ReconcileCode string

const (
	ReconcileProcessed        ReconcileCode = "PROCESSED"
	ReconcileAlreadyProcessed ReconcileCode = "ALREADY_PROCESSED"
	ReconcileFailureRecorded  ReconcileCode = "FAILURE_RECORDED"
)

type ReconcileOutcome struct {
	Code          ReconcileCode
	Payment       *models.Payment
	WalletBalance int64 // balance after a top-up credit, 0 otherwise
	OrderAdvanced bool
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByCode(ctx context.Context, code string) (*models.Payment, error)
	SetGatewayReference(ctx context.Context, id uuid.UUID, gatewayTxnID string, payload []byte) error
	// MarkFailed moves an INITIATED payment to FAILED; terminal payments are
	// left untouched.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// ApplyGatewayResult runs the whole webhook reconciliation in a single
	// database transaction: idempotency check, amount verification, wallet
	// credit (top-ups) or order coverage recomputation (settlements), and
	// the terminal status transition.
	ApplyGatewayResult(ctx context.Context, r GatewayResult) (*ReconcileOutcome, error)
}

type SettleFromWalletParams struct {
	OrderID     uuid.UUID
	PartnerID   uuid.UUID
	Amount      int64 // requested wallet portion; capped at the outstanding fee
	Currency    string
	PaymentCode string
	Note        string
}

type WalletSettlement struct {
	Amount        int64 // actually debited, after capping
	NewBalance    int64
	Payment       *models.Payment
	OrderAdvanced bool
	Remaining     int64 // outstanding fee after this settlement leg
}

type OrderRepository interface {
	GetForPartner(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Order, error)
	// PaidTowards returns wallet_used plus the sum of SUCCESS payments.
	PaidTowards(ctx context.Context, orderID uuid.UUID) (int64, error)

	// SettleFromWallet atomically debits the wallet, appends the DEBIT ledger
	// entry, records a SUCCESS WALLET payment, bumps wallet_used, and
	// advances the order when the fee is fully covered.
	SettleFromWallet(ctx context.Context, p SettleFromWalletParams) (*WalletSettlement, error)
}

// PartnerDirectory resolves partner identity details owned by another part
// of the platform.
type PartnerDirectory interface {
	DefaultCurrency(ctx context.Context, partnerID uuid.UUID) (string, error)
}
