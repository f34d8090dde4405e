package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/visadesk/walletcore/internal/core/events"
	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/metrics"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/repository"
)

// LedgerInput describes one credit or debit in major units; conversion to
// minor units happens against the wallet currency.
type LedgerInput struct {
	PartnerID   uuid.UUID
	Amount      decimal.Decimal
	Method      models.PaymentMethod
	OrderID     *uuid.UUID
	ReferenceID string
	Note        string
}

type WalletView struct {
	WalletID  uuid.UUID       `json:"wallet_id"`
	PartnerID uuid.UUID       `json:"partner_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
}

type LedgerUsecase interface {
	GetOrCreateWallet(ctx context.Context, partnerID uuid.UUID) (*WalletView, error)
	Credit(ctx context.Context, in LedgerInput) (*WalletView, error)
	Debit(ctx context.Context, in LedgerInput) (*WalletView, error)
	ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

type ledgerUsecase struct {
	wallets  repository.WalletRepository
	partners repository.PartnerDirectory
	pub      *events.Publisher
	log      logger.Logger
}

func NewLedgerUsecase(wallets repository.WalletRepository, partners repository.PartnerDirectory, pub *events.Publisher, log logger.Logger) LedgerUsecase {
	return &ledgerUsecase{wallets: wallets, partners: partners, pub: pub, log: log}
}

func (uc *ledgerUsecase) GetOrCreateWallet(ctx context.Context, partnerID uuid.UUID) (*WalletView, error) {
	currency, err := uc.partners.DefaultCurrency(ctx, partnerID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	wallet, err := uc.wallets.GetOrCreate(ctx, partnerID, currency)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return uc.view(ctx, wallet, wallet.Balance)
}

func (uc *ledgerUsecase) Credit(ctx context.Context, in LedgerInput) (*WalletView, error) {
	wallet, amountMinor, err := uc.resolve(ctx, in, true)
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("credit", "rejected").Inc()
		return nil, err
	}

	newBalance, err := uc.wallets.Credit(ctx, repository.CreditParams{
		PartnerID:   in.PartnerID,
		Amount:      amountMinor,
		Currency:    wallet.CurrencyCode,
		Method:      in.Method,
		OrderID:     in.OrderID,
		ReferenceID: in.ReferenceID,
		Note:        in.Note,
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("credit", "error").Inc()
		return nil, mapRepoError(err)
	}
	metrics.LedgerOperations.WithLabelValues("credit", "ok").Inc()

	uc.log.Info("wallet credited",
		logger.StringField("partner_id", in.PartnerID.String()),
		logger.Int64Field("amount", amountMinor),
		logger.Int64Field("balance", newBalance),
	)
	uc.pub.Publish(ctx, events.PaymentEvent{
		EventType:    events.EventWalletCredited,
		PartnerID:    in.PartnerID.String(),
		Amount:       amountMinor,
		Currency:     wallet.CurrencyCode,
		BalanceAfter: newBalance,
	})

	return uc.view(ctx, wallet, newBalance)
}

func (uc *ledgerUsecase) Debit(ctx context.Context, in LedgerInput) (*WalletView, error) {
	wallet, amountMinor, err := uc.resolve(ctx, in, false)
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("debit", "rejected").Inc()
		return nil, err
	}

	newBalance, err := uc.wallets.Debit(ctx, repository.DebitParams{
		PartnerID:   in.PartnerID,
		Amount:      amountMinor,
		Currency:    wallet.CurrencyCode,
		Method:      in.Method,
		OrderID:     in.OrderID,
		ReferenceID: in.ReferenceID,
		Note:        in.Note,
	})
	if err != nil {
		if errors.Is(err, repoInsufficientFunds) {
			uc.log.Warn("debit rejected for insufficient balance",
				logger.StringField("partner_id", in.PartnerID.String()),
				logger.Int64Field("requested", amountMinor),
				logger.Int64Field("balance", wallet.Balance),
			)
		}
		metrics.LedgerOperations.WithLabelValues("debit", "error").Inc()
		return nil, mapRepoError(err)
	}
	metrics.LedgerOperations.WithLabelValues("debit", "ok").Inc()

	uc.pub.Publish(ctx, events.PaymentEvent{
		EventType:    events.EventWalletDebited,
		PartnerID:    in.PartnerID.String(),
		Amount:       amountMinor,
		Currency:     wallet.CurrencyCode,
		BalanceAfter: newBalance,
	})

	return uc.view(ctx, wallet, newBalance)
}

func (uc *ledgerUsecase) ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	wallet, err := uc.wallets.GetByPartnerID(ctx, partnerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return uc.wallets.ListTransactions(ctx, wallet.ID, limit, offset)
}

// resolve validates the input and converts the amount to minor units of the
// wallet currency. Only credits create the wallet lazily: a debit against a
// partner who never had a wallet is ErrWalletNotFound, distinct from an
// existing wallet at balance zero, and must not leave a row behind.
func (uc *ledgerUsecase) resolve(ctx context.Context, in LedgerInput, createWallet bool) (*models.Wallet, int64, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, 0, ErrInvalidAmount
	}
	if !in.Method.Valid() {
		return nil, 0, ErrInvalidPaymentMethod
	}

	var wallet *models.Wallet
	var err error
	if createWallet {
		var currency string
		currency, err = uc.partners.DefaultCurrency(ctx, in.PartnerID)
		if err != nil {
			return nil, 0, mapRepoError(err)
		}
		wallet, err = uc.wallets.GetOrCreate(ctx, in.PartnerID, currency)
	} else {
		wallet, err = uc.wallets.GetByPartnerID(ctx, in.PartnerID)
	}
	if err != nil {
		return nil, 0, mapRepoError(err)
	}

	amountMinor, err := uc.toMinorUnits(ctx, in.Amount, wallet.CurrencyCode)
	if err != nil {
		return nil, 0, err
	}
	return wallet, amountMinor, nil
}

func (uc *ledgerUsecase) toMinorUnits(ctx context.Context, amount decimal.Decimal, currencyCode string) (int64, error) {
	currency, err := uc.wallets.GetCurrencyByCode(ctx, currencyCode)
	if err != nil {
		return 0, fmt.Errorf("get currency: %w", err)
	}
	multiplier := decimal.NewFromInt(10).Pow(decimal.NewFromInt(currency.MinorUnits))
	minor := amount.Mul(multiplier)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: more precision than %s allows", ErrInvalidAmount, currencyCode)
	}
	return minor.IntPart(), nil
}

func (uc *ledgerUsecase) view(ctx context.Context, wallet *models.Wallet, balanceMinor int64) (*WalletView, error) {
	currency, err := uc.wallets.GetCurrencyByCode(ctx, wallet.CurrencyCode)
	if err != nil {
		return nil, fmt.Errorf("get currency: %w", err)
	}
	divisor := decimal.NewFromInt(10).Pow(decimal.NewFromInt(currency.MinorUnits))
	return &WalletView{
		WalletID:  wallet.ID,
		PartnerID: wallet.PartnerID,
		Balance:   decimal.NewFromInt(balanceMinor).Div(divisor),
		Currency:  wallet.CurrencyCode,
	}, nil
}
