package postgres

import "errors"

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrAmountMismatch    = errors.New("webhook amount does not match recorded payment")
	ErrCurrencyMismatch  = errors.New("currency does not match")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderNotPayable   = errors.New("order is not in a payable status")
	ErrPartnerNotFound   = errors.New("partner not found")
)
