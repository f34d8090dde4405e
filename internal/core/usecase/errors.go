package usecase

import "errors"

var (
	// Validation errors: rejected before any mutation.
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrAmountTooLow         = errors.New("amount is below the minimum top-up")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// State errors: recoverable by the caller.
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotReady       = errors.New("order is not ready for payment")
	ErrOrderFeeNotSet      = errors.New("order has no fee snapshot")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrPartnerNotFound     = errors.New("partner not found")

	// Integrity errors: fatal for the event, logged and rejected.
	ErrAmountMismatch = errors.New("webhook amount does not match recorded payment")

	// Idempotency / lookup outcomes on the webhook path.
	ErrPaymentNotFound = errors.New("payment not found")

	ErrGatewayUnavailable = errors.New("payment gateway error")
)
