package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/repository"
)

type postgresWalletRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresWalletRepo(db *sqlx.DB, log logger.Logger) repository.WalletRepository {
	return &postgresWalletRepo{db: db, log: log}
}

func (r *postgresWalletRepo) GetOrCreate(ctx context.Context, partnerID uuid.UUID, currency string) (*models.Wallet, error) {
	// The uniqueness constraint on partner_id makes concurrent first access
	// safe: the loser of the race no-ops and re-reads the winner's row.
	if err := ensureWallet(ctx, r.db, partnerID, currency); err != nil {
		return nil, err
	}
	return r.GetByPartnerID(ctx, partnerID)
}

func (r *postgresWalletRepo) GetByPartnerID(ctx context.Context, partnerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT id, partner_id, balance, currency_code, created_at, updated_at
		FROM wallets WHERE partner_id = $1`
	err := r.db.GetContext(ctx, &wallet, query, partnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: partner %s", ErrWalletNotFound, partnerID)
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}
	return &wallet, nil
}

func (r *postgresWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	txns := []models.WalletTransaction{}
	query := `SELECT id, wallet_id, txn_type, method, amount, currency, order_id, reference_id, note, created_at
		FROM wallet_transactions WHERE wallet_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &txns, query, walletID, limit, offset); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

func (r *postgresWalletRepo) GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	var currency models.Currency
	query := `SELECT code, name, minor_units FROM currencies WHERE code = $1`
	err := r.db.GetContext(ctx, &currency, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("currency with code %s not found", code)
		}
		return nil, fmt.Errorf("error getting currency: %w", err)
	}
	return &currency, nil
}

func (r *postgresWalletRepo) Credit(ctx context.Context, p repository.CreditParams) (int64, error) {
	if p.Amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := runTx(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		if err := ensureWallet(ctx, tx, p.PartnerID, p.Currency); err != nil {
			return err
		}
		walletID, balance, err := applyBalanceDelta(ctx, tx, p.PartnerID, p.Amount)
		if err != nil {
			return err
		}
		newBalance = balance
		return insertLedgerEntry(ctx, tx, ledgerEntry{
			WalletID:    walletID,
			TxnType:     models.TxnCredit,
			Method:      p.Method,
			Amount:      p.Amount,
			Currency:    p.Currency,
			OrderID:     p.OrderID,
			ReferenceID: p.ReferenceID,
			Note:        p.Note,
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (r *postgresWalletRepo) Debit(ctx context.Context, p repository.DebitParams) (int64, error) {
	if p.Amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var newBalance int64
	err := runTx(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		walletID, balance, err := applyBalanceDelta(ctx, tx, p.PartnerID, -p.Amount)
		if err != nil {
			return err
		}
		newBalance = balance
		return insertLedgerEntry(ctx, tx, ledgerEntry{
			WalletID:    walletID,
			TxnType:     models.TxnDebit,
			Method:      p.Method,
			Amount:      p.Amount,
			Currency:    p.Currency,
			OrderID:     p.OrderID,
			ReferenceID: p.ReferenceID,
			Note:        p.Note,
		})
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// --- helpers shared by the ledger, payment and order repositories ---

func runTx(ctx context.Context, db *sqlx.DB, log logger.Logger, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error("Error beginning transaction", logger.ErrorField("error", err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	var isCommitted bool
	defer func() {
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("Transaction rollback failed", logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				log.Warn("Transaction rolled back due to error", logger.ErrorField("error", err))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("Error committing transaction", logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}
	isCommitted = true
	return nil
}

func ensureWallet(ctx context.Context, ext sqlx.ExtContext, partnerID uuid.UUID, currency string) error {
	query := `INSERT INTO wallets (id, partner_id, balance, currency_code)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (partner_id) DO NOTHING`
	if _, err := ext.ExecContext(ctx, query, uuid.New(), partnerID, currency); err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

// applyBalanceDelta is the single code path that moves a balance. The
// conditional check happens inside the UPDATE under the row lock, so two
// racing debits that together exceed the balance cannot both succeed.
func applyBalanceDelta(ctx context.Context, tx *sqlx.Tx, partnerID uuid.UUID, delta int64) (uuid.UUID, int64, error) {
	row := struct {
		ID      uuid.UUID `db:"id"`
		Balance int64     `db:"balance"`
	}{}

	updateQuery := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE partner_id = $2
		RETURNING id, balance
	`
	err := tx.GetContext(ctx, &row, updateQuery, delta, partnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, 0, fmt.Errorf("%w: partner %s", ErrWalletNotFound, partnerID)
		}
		// The schema backstop CHECK (balance >= 0) fires before RETURNING.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23514" {
			return uuid.Nil, 0, ErrInsufficientFunds
		}
		return uuid.Nil, 0, fmt.Errorf("update balance: %w", err)
	}

	if row.Balance < 0 {
		return uuid.Nil, 0, ErrInsufficientFunds
	}
	return row.ID, row.Balance, nil
}

type ledgerEntry struct {
	WalletID    uuid.UUID
	TxnType     models.TxnType
	Method      models.PaymentMethod
	Amount      int64
	Currency    string
	OrderID     *uuid.UUID
	ReferenceID string
	Note        string
}

func insertLedgerEntry(ctx context.Context, tx *sqlx.Tx, e ledgerEntry) error {
	const query = `INSERT INTO wallet_transactions
		(id, wallet_id, txn_type, method, amount, currency, order_id, reference_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))`

	_, err := tx.ExecContext(ctx, query,
		uuid.New(),
		e.WalletID,
		e.TxnType,
		e.Method,
		e.Amount,
		e.Currency,
		e.OrderID,
		e.ReferenceID,
		e.Note,
	)
	if err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}
	return nil
}
