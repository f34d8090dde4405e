package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/visadesk/walletcore/internal/core/events"
	"github.com/visadesk/walletcore/internal/core/gateway"
	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/metrics"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/repository"
)

type TopupReceipt struct {
	PaymentCode string               `json:"payment_code"`
	PaymentURL  string               `json:"payment_url,omitempty"`
	Status      models.PaymentStatus `json:"status"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency"`
}

type WebhookResult struct {
	Code          repository.ReconcileCode `json:"code"`
	PaymentCode   string                   `json:"payment_code"`
	OrderAdvanced bool                     `json:"order_advanced,omitempty"`
}

type PaymentStatusView struct {
	PaymentCode string               `json:"payment_code"`
	Purpose     models.PaymentPurpose `json:"purpose"`
	Status      models.PaymentStatus `json:"status"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency"`
	OrderID     *uuid.UUID           `json:"order_id,omitempty"`
}

type PaymentUsecase interface {
	InitiateWalletTopup(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, method models.PaymentMethod) (*TopupReceipt, error)
	HandlePaymentWebhook(ctx context.Context, event gateway.WebhookEvent) (*WebhookResult, error)
	GetPaymentStatus(ctx context.Context, paymentCode string) (*PaymentStatusView, error)
}

type paymentUsecase struct {
	payments       repository.PaymentRepository
	wallets        repository.WalletRepository
	partners       repository.PartnerDirectory
	adapter        gateway.Adapter
	pub            *events.Publisher
	log            logger.Logger
	minTopupAmount int64
}

func NewPaymentUsecase(
	payments repository.PaymentRepository,
	wallets repository.WalletRepository,
	partners repository.PartnerDirectory,
	adapter gateway.Adapter,
	pub *events.Publisher,
	minTopupAmount int64,
	log logger.Logger,
) PaymentUsecase {
	return &paymentUsecase{
		payments:       payments,
		wallets:        wallets,
		partners:       partners,
		adapter:        adapter,
		pub:            pub,
		log:            log,
		minTopupAmount: minTopupAmount,
	}
}

// InitiateWalletTopup creates an INITIATED payment and opens a gateway
// checkout for it. The wallet is not touched here: crediting happens only
// when the gateway confirms via webhook.
func (uc *paymentUsecase) InitiateWalletTopup(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal, method models.PaymentMethod) (*TopupReceipt, error) {
	if method == models.MethodWallet || !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	currencyCode, err := uc.partners.DefaultCurrency(ctx, partnerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	currency, err := uc.wallets.GetCurrencyByCode(ctx, currencyCode)
	if err != nil {
		return nil, fmt.Errorf("get currency: %w", err)
	}

	multiplier := decimal.NewFromInt(10).Pow(decimal.NewFromInt(currency.MinorUnits))
	minor := amount.Mul(multiplier)
	if !minor.IsInteger() {
		return nil, fmt.Errorf("%w: more precision than %s allows", ErrInvalidAmount, currencyCode)
	}
	amountMinor := minor.IntPart()
	if amountMinor < uc.minTopupAmount {
		return nil, fmt.Errorf("%w: minimum is %d", ErrAmountTooLow, uc.minTopupAmount)
	}

	payment := &models.Payment{
		ID:          uuid.New(),
		PaymentCode: newPaymentCode(),
		Purpose:     models.PurposeTopup,
		PartnerID:   partnerID,
		Method:      method,
		Amount:      amountMinor,
		Currency:    currencyCode,
		Status:      models.PaymentInitiated,
	}
	if err := uc.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	resp, err := uc.adapter.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:      amountMinor,
		Currency:    currencyCode,
		PartnerID:   partnerID,
		Purpose:     string(models.PurposeTopup),
		ReferenceID: payment.PaymentCode,
	})
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("error").Inc()
		uc.log.Error("gateway rejected top-up",
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

	uc.log.Info("wallet top-up initiated",
		logger.StringField("partner_id", partnerID.String()),
		logger.StringField("payment_code", payment.PaymentCode),
		logger.Int64Field("amount", amountMinor),
	)

	return &TopupReceipt{
		PaymentCode: payment.PaymentCode,
		PaymentURL:  resp.PaymentURL,
		Status:      models.PaymentInitiated,
		Amount:      amountMinor,
		Currency:    currencyCode,
	}, nil
}

// HandlePaymentWebhook applies one verified gateway confirmation. The whole
// decision runs inside a single database transaction in the repository, so
// a duplicate delivery can only observe the terminal state and no-op.
func (uc *paymentUsecase) HandlePaymentWebhook(ctx context.Context, event gateway.WebhookEvent) (*WebhookResult, error) {
	var status models.PaymentStatus
	switch event.Status {
	case string(models.PaymentSuccess):
		status = models.PaymentSuccess
	case string(models.PaymentFailed):
		status = models.PaymentFailed
	default:
		return nil, fmt.Errorf("unexpected webhook status %q", event.Status)
	}

	outcome, err := uc.payments.ApplyGatewayResult(ctx, repository.GatewayResult{
		GatewayTxnID: event.GatewayTxnID,
		Status:       status,
		Amount:       event.Amount,
		Currency:     event.Currency,
		Payload:      event.Payload,
	})
	if err != nil {
		mapped := mapRepoError(err)
		switch mapped {
		case ErrPaymentNotFound:
			metrics.WebhookOutcomes.WithLabelValues("payment_not_found").Inc()
			uc.log.Warn("webhook for unknown gateway transaction",
				logger.StringField("gateway_txn_id", event.GatewayTxnID))
		case ErrAmountMismatch, ErrCurrencyMismatch:
			metrics.WebhookOutcomes.WithLabelValues("amount_mismatch").Inc()
			uc.log.Error("webhook amount integrity failure",
				logger.StringField("gateway_txn_id", event.GatewayTxnID),
				logger.Int64Field("webhook_amount", event.Amount),
				logger.ErrorField("error", err),
			)
		default:
			metrics.WebhookOutcomes.WithLabelValues("error").Inc()
		}
		return nil, mapped
	}

	uc.recordOutcome(ctx, outcome)

	return &WebhookResult{
		Code:          outcome.Code,
		PaymentCode:   outcome.Payment.PaymentCode,
		OrderAdvanced: outcome.OrderAdvanced,
	}, nil
}

func (uc *paymentUsecase) recordOutcome(ctx context.Context, outcome *repository.ReconcileOutcome) {
	payment := outcome.Payment

	switch outcome.Code {
	case repository.ReconcileAlreadyProcessed:
		metrics.WebhookOutcomes.WithLabelValues("already_processed").Inc()
		uc.log.Info("duplicate webhook ignored",
			logger.StringField("payment_code", payment.PaymentCode))
		return
	case repository.ReconcileFailureRecorded:
		metrics.WebhookOutcomes.WithLabelValues("failure_recorded").Inc()
	case repository.ReconcileProcessed:
		metrics.WebhookOutcomes.WithLabelValues("processed").Inc()
	}

	eventType := events.EventPaymentFailed
	if payment.Status == models.PaymentSuccess {
		eventType = events.EventPaymentSucceeded
	}
	orderID := ""
	if payment.OrderID != nil {
		orderID = payment.OrderID.String()
	}
	uc.pub.Publish(ctx, events.PaymentEvent{
		EventType:    eventType,
		PartnerID:    payment.PartnerID.String(),
		PaymentCode:  payment.PaymentCode,
		OrderID:      orderID,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		BalanceAfter: outcome.WalletBalance,
	})

	view := PaymentStatusView{
		PaymentCode: payment.PaymentCode,
		Purpose:     payment.Purpose,
		Status:      payment.Status,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		OrderID:     payment.OrderID,
	}
	if cached, err := json.Marshal(view); err == nil {
		uc.pub.CachePayment(ctx, payment.PaymentCode, cached)
	}

	uc.log.Info("webhook reconciled",
		logger.StringField("payment_code", payment.PaymentCode),
		logger.StringField("status", string(payment.Status)),
		logger.BoolField("order_advanced", outcome.OrderAdvanced),
	)
}

func (uc *paymentUsecase) GetPaymentStatus(ctx context.Context, paymentCode string) (*PaymentStatusView, error) {
	if cached := uc.pub.CachedPayment(ctx, paymentCode); cached != nil {
		var view PaymentStatusView
		if err := json.Unmarshal(cached, &view); err == nil {
			return &view, nil
		}
	}

	payment, err := uc.payments.GetByCode(ctx, paymentCode)
	if err != nil {
		return nil, mapRepoError(err)
	}

	view := &PaymentStatusView{
		PaymentCode: payment.PaymentCode,
		Purpose:     payment.Purpose,
		Status:      payment.Status,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		OrderID:     payment.OrderID,
	}
	if payment.Status.Terminal() {
		if cached, err := json.Marshal(view); err == nil {
			uc.pub.CachePayment(ctx, payment.PaymentCode, cached)
		}
	}
	return view, nil
}

func newPaymentCode() string {
	return "PAY-" + ulid.Make().String()
}
