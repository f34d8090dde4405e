package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/visadesk/walletcore/internal/core/events"
	"github.com/visadesk/walletcore/internal/core/gateway"
	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/metrics"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/repository"
)

type PayOrderResult struct {
	PaidViaWallet int64              `json:"paid_via_wallet"`
	Remaining     int64              `json:"remaining"`
	PaymentCode   string             `json:"payment_code,omitempty"`
	PaymentURL    string             `json:"payment_url,omitempty"`
	OrderStatus   models.OrderStatus `json:"order_status"`
}

type SettlementUsecase interface {
	PayOrder(ctx context.Context, orderID, partnerID uuid.UUID, useWallet bool) (*PayOrderResult, error)
}

type settlementUsecase struct {
	orders   repository.OrderRepository
	wallets  repository.WalletRepository
	payments repository.PaymentRepository
	adapter  gateway.Adapter
	pub      *events.Publisher
	log      logger.Logger
}

func NewSettlementUsecase(
	orders repository.OrderRepository,
	wallets repository.WalletRepository,
	payments repository.PaymentRepository,
	adapter gateway.Adapter,
	pub *events.Publisher,
	log logger.Logger,
) SettlementUsecase {
	return &settlementUsecase{
		orders:   orders,
		wallets:  wallets,
		payments: payments,
		adapter:  adapter,
		pub:      pub,
		log:      log,
	}
}

// PayOrder settles an order's outstanding fee wallet-first: available wallet
// balance is exhausted before anything is sent to the gateway. A committed
// wallet portion is final and survives a failed gateway leg; retrying
// recomputes the remainder from scratch and only re-attempts the gateway
// part.
func (uc *settlementUsecase) PayOrder(ctx context.Context, orderID, partnerID uuid.UUID, useWallet bool) (*PayOrderResult, error) {
	order, err := uc.orders.GetForPartner(ctx, orderID, partnerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if order.TotalFee <= 0 || order.FeeCurrency == nil {
		return nil, ErrOrderFeeNotSet
	}

	switch order.Status {
	case models.OrderPendingPayment:
		// payable
	case models.OrderInProcess, models.OrderCompleted:
		// Already paid for; calling again is safe.
		return &PayOrderResult{Remaining: 0, OrderStatus: order.Status}, nil
	default:
		return nil, ErrOrderNotReady
	}

	alreadyPaid, err := uc.orders.PaidTowards(ctx, orderID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	remaining := order.TotalFee - alreadyPaid
	if remaining <= 0 {
		return &PayOrderResult{Remaining: 0, OrderStatus: order.Status}, nil
	}

	currency := *order.FeeCurrency
	result := &PayOrderResult{Remaining: remaining, OrderStatus: order.Status}

	if useWallet {
		if err := uc.settleWalletPortion(ctx, order, partnerID, currency, remaining, result); err != nil {
			return nil, err
		}
		if result.Remaining == 0 {
			return result, nil
		}
	}

	return uc.initiateGatewayLeg(ctx, order, partnerID, currency, result)
}

// settleWalletPortion debits min(balance, remaining). A partial debit is
// final: once the money has left the wallet it is settled and is never
// reversed for the sake of a later gateway failure.
func (uc *settlementUsecase) settleWalletPortion(ctx context.Context, order *models.Order, partnerID uuid.UUID, currency string, remaining int64, result *PayOrderResult) error {
	wallet, err := uc.wallets.GetOrCreate(ctx, partnerID, currency)
	if err != nil {
		return mapRepoError(err)
	}
	if wallet.CurrencyCode != currency {
		return ErrCurrencyMismatch
	}
	if wallet.Balance <= 0 {
		return nil
	}

	portion := wallet.Balance
	if portion > remaining {
		portion = remaining
	}

	settlement, err := uc.orders.SettleFromWallet(ctx, repository.SettleFromWalletParams{
		OrderID:     order.ID,
		PartnerID:   partnerID,
		Amount:      portion,
		Currency:    currency,
		PaymentCode: newPaymentCode(),
		Note:        "order settlement from wallet",
	})
	if err != nil {
		// A concurrent debit can drain the wallet between the read and the
		// settlement; the order then falls through to the gateway leg.
		if errors.Is(mapRepoError(err), ErrInsufficientBalance) {
			uc.log.Warn("wallet drained before settlement, falling back to gateway",
				logger.StringField("order_id", order.ID.String()))
			return nil
		}
		return mapRepoError(err)
	}

	metrics.LedgerOperations.WithLabelValues("debit", "ok").Inc()
	uc.log.Info("order settled from wallet",
		logger.StringField("order_id", order.ID.String()),
		logger.Int64Field("amount", settlement.Amount),
		logger.Int64Field("remaining", settlement.Remaining),
		logger.BoolField("order_advanced", settlement.OrderAdvanced),
	)
	uc.pub.Publish(ctx, events.PaymentEvent{
		EventType:    events.EventWalletDebited,
		PartnerID:    partnerID.String(),
		PaymentCode:  settlement.Payment.PaymentCode,
		OrderID:      order.ID.String(),
		Amount:       settlement.Amount,
		Currency:     currency,
		BalanceAfter: settlement.NewBalance,
	})

	result.PaidViaWallet = settlement.Amount
	result.Remaining = settlement.Remaining
	if settlement.OrderAdvanced {
		result.OrderStatus = models.OrderInProcess
	}
	return nil
}

func (uc *settlementUsecase) initiateGatewayLeg(ctx context.Context, order *models.Order, partnerID uuid.UUID, currency string, result *PayOrderResult) (*PayOrderResult, error) {
	orderID := order.ID
	payment := &models.Payment{
		ID:          uuid.New(),
		PaymentCode: newPaymentCode(),
		Purpose:     models.PurposeOrderSettlement,
		PartnerID:   partnerID,
		OrderID:     &orderID,
		Method:      models.MethodCard,
		Amount:      result.Remaining,
		Currency:    currency,
		Status:      models.PaymentInitiated,
	}
	if err := uc.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	resp, err := uc.adapter.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:      result.Remaining,
		Currency:    currency,
		PartnerID:   partnerID,
		Purpose:     string(models.PurposeOrderSettlement),
		ReferenceID: payment.PaymentCode,
		Metadata:    map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("error").Inc()
		uc.log.Error("gateway rejected order payment",
			logger.StringField("order_id", order.ID.String()),
			logger.StringField("payment_code", payment.PaymentCode),
			logger.ErrorField("error", err),
		)
		if mfErr := uc.payments.MarkFailed(ctx, payment.ID); mfErr != nil {
			uc.log.Error("failed to mark payment failed", logger.ErrorField("error", mfErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	metrics.GatewayRequests.WithLabelValues("ok").Inc()

	if err := uc.payments.SetGatewayReference(ctx, payment.ID, resp.GatewayTxnID, nil); err != nil {
		return nil, err
	}

	uc.log.Info("gateway leg initiated",
		logger.StringField("order_id", order.ID.String()),
		logger.StringField("payment_code", payment.PaymentCode),
		logger.Int64Field("amount", result.Remaining),
	)

	result.PaymentCode = payment.PaymentCode
	result.PaymentURL = resp.PaymentURL
	return result, nil
}
