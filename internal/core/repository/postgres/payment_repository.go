package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/repository"
)

type postgresPaymentRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresPaymentRepo(db *sqlx.DB, log logger.Logger) repository.PaymentRepository {
	return &postgresPaymentRepo{db: db, log: log}
}

const paymentColumns = `id, payment_code, purpose, partner_id, order_id, method, amount,
	currency, status, gateway_txn_id, gateway_payload, created_at, updated_at`

func (r *postgresPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	const query = `INSERT INTO payments
		(id, payment_code, purpose, partner_id, order_id, method, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.PaymentCode, p.Purpose, p.PartnerID, p.OrderID,
		p.Method, p.Amount, p.Currency, p.Status,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *postgresPaymentRepo) GetByCode(ctx context.Context, code string) (*models.Payment, error) {
	var payment models.Payment
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE payment_code = $1`, paymentColumns)
	err := r.db.GetContext(ctx, &payment, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", ErrPaymentNotFound, code)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &payment, nil
}

func (r *postgresPaymentRepo) SetGatewayReference(ctx context.Context, id uuid.UUID, gatewayTxnID string, payload []byte) error {
	const query = `UPDATE payments
		SET gateway_txn_id = $2, gateway_payload = $3, updated_at = NOW()
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, gatewayTxnID, nullableJSON(payload)); err != nil {
		return fmt.Errorf("set gateway reference: %w", err)
	}
	return nil
}

func (r *postgresPaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	// Guarded so a late failure signal never clobbers a terminal status.
	const query = `UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`
	if _, err := r.db.ExecContext(ctx, query, id, models.PaymentFailed, models.PaymentInitiated); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// ApplyGatewayResult reconciles one verified gateway webhook. The whole
// decision and every mutation happen under the payment's row lock in one
// transaction, so a concurrent duplicate delivery serializes behind this one
// and takes the ALREADY_PROCESSED branch.
func (r *postgresPaymentRepo) ApplyGatewayResult(ctx context.Context, g repository.GatewayResult) (*repository.ReconcileOutcome, error) {
	var outcome *repository.ReconcileOutcome

	err := runTx(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		payment, err := lockPaymentByGatewayTxnID(ctx, tx, g.GatewayTxnID)
		if err != nil {
			return err
		}

		if payment.Status.Terminal() {
			outcome = &repository.ReconcileOutcome{
				Code:    repository.ReconcileAlreadyProcessed,
				Payment: payment,
			}
			return nil
		}

		switch g.Status {
		case models.PaymentSuccess:
			outcome, err = r.applySuccess(ctx, tx, payment, g)
			return err
		case models.PaymentFailed:
			if err := setPaymentStatus(ctx, tx, payment.ID, models.PaymentFailed, g.Payload); err != nil {
				return err
			}
			payment.Status = models.PaymentFailed
			outcome = &repository.ReconcileOutcome{
				Code:    repository.ReconcileFailureRecorded,
				Payment: payment,
			}
			return nil
		default:
			return fmt.Errorf("unexpected gateway status %q", g.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (r *postgresPaymentRepo) applySuccess(ctx context.Context, tx *sqlx.Tx, payment *models.Payment, g repository.GatewayResult) (*repository.ReconcileOutcome, error) {
	if g.Amount != payment.Amount {
		return nil, fmt.Errorf("%w: recorded %d, webhook %d", ErrAmountMismatch, payment.Amount, g.Amount)
	}
	if g.Currency != "" && g.Currency != payment.Currency {
		return nil, fmt.Errorf("%w: recorded %s, webhook %s", ErrCurrencyMismatch, payment.Currency, g.Currency)
	}

	outcome := &repository.ReconcileOutcome{
		Code:    repository.ReconcileProcessed,
		Payment: payment,
	}

	switch payment.Purpose {
	case models.PurposeTopup:
		if err := ensureWallet(ctx, tx, payment.PartnerID, payment.Currency); err != nil {
			return nil, err
		}
		walletID, balance, err := applyBalanceDelta(ctx, tx, payment.PartnerID, payment.Amount)
		if err != nil {
			return nil, err
		}
		err = insertLedgerEntry(ctx, tx, ledgerEntry{
			WalletID:    walletID,
			TxnType:     models.TxnCredit,
			Method:      payment.Method,
			Amount:      payment.Amount,
			Currency:    payment.Currency,
			ReferenceID: g.GatewayTxnID,
			Note:        "wallet top-up " + payment.PaymentCode,
		})
		if err != nil {
			return nil, err
		}
		outcome.WalletBalance = balance

	case models.PurposeOrderSettlement:
		if payment.OrderID == nil {
			return nil, fmt.Errorf("settlement payment %s has no order", payment.PaymentCode)
		}

	default:
		return nil, fmt.Errorf("unexpected payment purpose %q", payment.Purpose)
	}

	if err := setPaymentStatus(ctx, tx, payment.ID, models.PaymentSuccess, g.Payload); err != nil {
		return nil, err
	}
	payment.Status = models.PaymentSuccess

	if payment.Purpose == models.PurposeOrderSettlement {
		advanced, err := advanceOrderIfCovered(ctx, tx, *payment.OrderID)
		if err != nil {
			return nil, err
		}
		outcome.OrderAdvanced = advanced
	}

	return outcome, nil
}

func lockPaymentByGatewayTxnID(ctx context.Context, tx *sqlx.Tx, gatewayTxnID string) (*models.Payment, error) {
	var payment models.Payment
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE gateway_txn_id = $1 FOR UPDATE`, paymentColumns)
	err := tx.GetContext(ctx, &payment, query, gatewayTxnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: gateway txn %s", ErrPaymentNotFound, gatewayTxnID)
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	return &payment, nil
}

func setPaymentStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status models.PaymentStatus, payload []byte) error {
	const query = `UPDATE payments
		SET status = $2, gateway_payload = COALESCE($3, gateway_payload), updated_at = NOW()
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, nullableJSON(payload)); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// advanceOrderIfCovered moves the order out of PENDING_PAYMENT exactly once,
// when wallet_used plus confirmed payments cover the fee. Already-advanced
// orders no-op.
func advanceOrderIfCovered(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (bool, error) {
	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return false, err
	}

	paid, err := sumSuccessfulPayments(ctx, tx, orderID)
	if err != nil {
		return false, err
	}

	if order.WalletUsed+paid < order.TotalFee || order.Status != models.OrderPendingPayment {
		return false, nil
	}

	const query = `UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`
	res, err := tx.ExecContext(ctx, query, orderID, models.OrderInProcess, models.OrderPendingPayment)
	if err != nil {
		return false, fmt.Errorf("advance order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance order: %w", err)
	}
	return n == 1, nil
}

func lockOrder(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	const query = `SELECT id, partner_id, total_fee, fee_currency, wallet_used, status, created_at, updated_at
		FROM orders WHERE id = $1 FOR UPDATE`
	err := tx.GetContext(ctx, &order, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return &order, nil
}

// sumSuccessfulPayments totals the order's confirmed gateway money. Wallet
// legs are excluded: they are already accounted for in orders.wallet_used,
// and their SUCCESS payment rows exist only for bookkeeping symmetry.
func sumSuccessfulPayments(ctx context.Context, ext sqlx.ExtContext, orderID uuid.UUID) (int64, error) {
	var paid int64
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE order_id = $1 AND status = $2 AND method <> $3`
	err := sqlx.GetContext(ctx, ext, &paid, query, orderID, models.PaymentSuccess, models.MethodWallet)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return paid, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
