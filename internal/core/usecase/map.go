package usecase

import (
	"errors"

	"github.com/visadesk/walletcore/internal/core/repository/postgres"
)

var repoInsufficientFunds = postgres.ErrInsufficientFunds

// mapRepoError translates storage-level sentinels into the error taxonomy
// exposed to callers. Unknown errors pass through untouched.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, postgres.ErrWalletNotFound):
		return ErrWalletNotFound
	case errors.Is(err, postgres.ErrInsufficientFunds):
		return ErrInsufficientBalance
	case errors.Is(err, postgres.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, postgres.ErrPaymentNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, postgres.ErrAmountMismatch):
		return ErrAmountMismatch
	case errors.Is(err, postgres.ErrCurrencyMismatch):
		return ErrCurrencyMismatch
	case errors.Is(err, postgres.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, postgres.ErrOrderNotPayable):
		return ErrOrderNotReady
	case errors.Is(err, postgres.ErrPartnerNotFound):
		return ErrPartnerNotFound
	default:
		return err
	}
}
