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

type postgresOrderRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresOrderRepo(db *sqlx.DB, log logger.Logger) repository.OrderRepository {
	return &postgresOrderRepo{db: db, log: log}
}

func (r *postgresOrderRepo) GetForPartner(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	const query = `SELECT id, partner_id, total_fee, fee_currency, wallet_used, status, created_at, updated_at
		FROM orders WHERE id = $1 AND partner_id = $2`
	err := r.db.GetContext(ctx, &order, query, orderID, partnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

func (r *postgresOrderRepo) PaidTowards(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var order models.Order
	const query = `SELECT id, partner_id, total_fee, fee_currency, wallet_used, status, created_at, updated_at
		FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return 0, fmt.Errorf("get order: %w", err)
	}

	paid, err := sumSuccessfulPayments(ctx, r.db, orderID)
	if err != nil {
		return 0, err
	}
	return order.WalletUsed + paid, nil
}

// SettleFromWallet executes the wallet leg of an order payment as one unit of
// work. The order row is locked first and the outstanding fee recomputed
// under that lock, so two racing settlements of the same order cannot
// overpay: the second caller sees the reduced remainder and is capped to it.
func (r *postgresOrderRepo) SettleFromWallet(ctx context.Context, p repository.SettleFromWalletParams) (*repository.WalletSettlement, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *repository.WalletSettlement
	err := runTx(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		order, err := lockOrder(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		if order.PartnerID != p.PartnerID {
			return fmt.Errorf("%w: %s", ErrOrderNotFound, p.OrderID)
		}
		if order.Status != models.OrderPendingPayment {
			return ErrOrderNotPayable
		}

		gatewayPaid, err := sumSuccessfulPayments(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		remaining := order.TotalFee - order.WalletUsed - gatewayPaid
		if remaining <= 0 {
			return ErrOrderNotPayable
		}

		amount := p.Amount
		if amount > remaining {
			amount = remaining
		}

		walletID, newBalance, err := applyBalanceDelta(ctx, tx, p.PartnerID, -amount)
		if err != nil {
			return err
		}

		orderID := p.OrderID
		err = insertLedgerEntry(ctx, tx, ledgerEntry{
			WalletID:    walletID,
			TxnType:     models.TxnDebit,
			Method:      models.MethodWallet,
			Amount:      amount,
			Currency:    p.Currency,
			OrderID:     &orderID,
			ReferenceID: p.PaymentCode,
			Note:        p.Note,
		})
		if err != nil {
			return err
		}

		payment := &models.Payment{
			ID:          uuid.New(),
			PaymentCode: p.PaymentCode,
			Purpose:     models.PurposeOrderSettlement,
			PartnerID:   p.PartnerID,
			OrderID:     &orderID,
			Method:      models.MethodWallet,
			Amount:      amount,
			Currency:    p.Currency,
			Status:      models.PaymentSuccess,
		}
		const insertPayment = `INSERT INTO payments
			(id, payment_code, purpose, partner_id, order_id, method, amount, currency, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, insertPayment,
			payment.ID, payment.PaymentCode, payment.Purpose, payment.PartnerID, payment.OrderID,
			payment.Method, payment.Amount, payment.Currency, payment.Status,
		); err != nil {
			return fmt.Errorf("record wallet settlement payment: %w", err)
		}

		const bumpWalletUsed = `UPDATE orders
			SET wallet_used = wallet_used + $2, updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, bumpWalletUsed, p.OrderID, amount); err != nil {
			return fmt.Errorf("increment wallet_used: %w", err)
		}

		advanced := false
		if order.WalletUsed+gatewayPaid+amount >= order.TotalFee {
			const advance = `UPDATE orders SET status = $2, updated_at = NOW()
				WHERE id = $1 AND status = $3`
			res, err := tx.ExecContext(ctx, advance, p.OrderID, models.OrderInProcess, models.OrderPendingPayment)
			if err != nil {
				return fmt.Errorf("advance order: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 1 {
				advanced = true
			}
		}

		result = &repository.WalletSettlement{
			Amount:        amount,
			NewBalance:    newBalance,
			Payment:       payment,
			OrderAdvanced: advanced,
			Remaining:     remaining - amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
