package usecase_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/visadesk/walletcore/internal/core/gateway"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/repository"
	"github.com/visadesk/walletcore/internal/core/repository/postgres"
)

// In-memory doubles that honor the same invariants the postgres
// implementations enforce, so the usecases can be exercised without a
// database.

type fakePartnerDirectory struct {
	currency string
}

func (f *fakePartnerDirectory) DefaultCurrency(ctx context.Context, partnerID uuid.UUID) (string, error) {
	return f.currency, nil
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	ledger  []models.WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[uuid.UUID]*models.Wallet)}
}

func (f *fakeWalletRepo) seed(partnerID uuid.UUID, balance int64, currency string) *models.Wallet {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &models.Wallet{ID: uuid.New(), PartnerID: partnerID, Balance: balance, CurrencyCode: currency}
	f.wallets[partnerID] = w
	return w
}

func (f *fakeWalletRepo) GetOrCreate(ctx context.Context, partnerID uuid.UUID, currency string) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.wallets[partnerID]; ok {
		copied := *w
		return &copied, nil
	}
	w := &models.Wallet{ID: uuid.New(), PartnerID: partnerID, CurrencyCode: currency}
	f.wallets[partnerID] = w
	copied := *w
	return &copied, nil
}

func (f *fakeWalletRepo) GetByPartnerID(ctx context.Context, partnerID uuid.UUID) (*models.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[partnerID]
	if !ok {
		return nil, postgres.ErrWalletNotFound
	}
	copied := *w
	return &copied, nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WalletTransaction
	for _, t := range f.ledger {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeWalletRepo) GetCurrencyByCode(ctx context.Context, code string) (*models.Currency, error) {
	return &models.Currency{Code: code, Name: code, MinorUnits: 2}, nil
}

func (f *fakeWalletRepo) Credit(ctx context.Context, p repository.CreditParams) (int64, error) {
	if p.Amount <= 0 {
		return 0, postgres.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[p.PartnerID]
	if !ok {
		w = &models.Wallet{ID: uuid.New(), PartnerID: p.PartnerID, CurrencyCode: p.Currency}
		f.wallets[p.PartnerID] = w
	}
	w.Balance += p.Amount
	f.appendEntry(w.ID, models.TxnCredit, p.Method, p.Amount, p.Currency, p.OrderID, p.ReferenceID)
	return w.Balance, nil
}

func (f *fakeWalletRepo) Debit(ctx context.Context, p repository.DebitParams) (int64, error) {
	if p.Amount <= 0 {
		return 0, postgres.ErrInvalidAmount
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[p.PartnerID]
	if !ok {
		return 0, postgres.ErrWalletNotFound
	}
	if w.Balance < p.Amount {
		return 0, postgres.ErrInsufficientFunds
	}
	w.Balance -= p.Amount
	f.appendEntry(w.ID, models.TxnDebit, p.Method, p.Amount, p.Currency, p.OrderID, p.ReferenceID)
	return w.Balance, nil
}

func (f *fakeWalletRepo) appendEntry(walletID uuid.UUID, txnType models.TxnType, method models.PaymentMethod, amount int64, currency string, orderID *uuid.UUID, referenceID string) {
	ref := referenceID
	f.ledger = append(f.ledger, models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    walletID,
		TxnType:     txnType,
		Method:      method,
		Amount:      amount,
		Currency:    currency,
		OrderID:     orderID,
		ReferenceID: &ref,
	})
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
	wallets  *fakeWalletRepo
	orders   *fakeOrderRepo

	createErr error
}

func newFakePaymentRepo(wallets *fakeWalletRepo, orders *fakeOrderRepo) *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*models.Payment), wallets: wallets, orders: orders}
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	f.payments[p.ID] = &copied
	return nil
}

func (f *fakePaymentRepo) GetByCode(ctx context.Context, code string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.PaymentCode == code {
			copied := *p
			return &copied, nil
		}
	}
	return nil, postgres.ErrPaymentNotFound
}

func (f *fakePaymentRepo) byGatewayTxnID(gatewayTxnID string) *models.Payment {
	for _, p := range f.payments {
		if p.GatewayTxnID != nil && *p.GatewayTxnID == gatewayTxnID {
			return p
		}
	}
	return nil
}

func (f *fakePaymentRepo) SetGatewayReference(ctx context.Context, id uuid.UUID, gatewayTxnID string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return postgres.ErrPaymentNotFound
	}
	ref := gatewayTxnID
	p.GatewayTxnID = &ref
	return nil
}

func (f *fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return postgres.ErrPaymentNotFound
	}
	if p.Status == models.PaymentInitiated {
		p.Status = models.PaymentFailed
	}
	return nil
}

func (f *fakePaymentRepo) ApplyGatewayResult(ctx context.Context, g repository.GatewayResult) (*repository.ReconcileOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.byGatewayTxnID(g.GatewayTxnID)
	if p == nil {
		return nil, postgres.ErrPaymentNotFound
	}

	if p.Status.Terminal() {
		copied := *p
		return &repository.ReconcileOutcome{Code: repository.ReconcileAlreadyProcessed, Payment: &copied}, nil
	}

	if g.Status == models.PaymentFailed {
		p.Status = models.PaymentFailed
		copied := *p
		return &repository.ReconcileOutcome{Code: repository.ReconcileFailureRecorded, Payment: &copied}, nil
	}

	if g.Amount != p.Amount {
		return nil, postgres.ErrAmountMismatch
	}

	outcome := &repository.ReconcileOutcome{Code: repository.ReconcileProcessed}

	switch p.Purpose {
	case models.PurposeTopup:
		balance, err := f.wallets.Credit(ctx, repository.CreditParams{
			PartnerID:   p.PartnerID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Method:      p.Method,
			ReferenceID: g.GatewayTxnID,
		})
		if err != nil {
			return nil, err
		}
		outcome.WalletBalance = balance
	case models.PurposeOrderSettlement:
		if f.orders != nil && p.OrderID != nil {
			outcome.OrderAdvanced = f.orders.advanceIfCovered(*p.OrderID, p.Amount)
		}
	}

	p.Status = models.PaymentSuccess
	copied := *p
	outcome.Payment = &copied
	return outcome, nil
}

type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*models.Order
	wallets *fakeWalletRepo

	gatewayPaid map[uuid.UUID]int64
}

func newFakeOrderRepo(wallets *fakeWalletRepo) *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:      make(map[uuid.UUID]*models.Order),
		gatewayPaid: make(map[uuid.UUID]int64),
		wallets:     wallets,
	}
}

func (f *fakeOrderRepo) seed(partnerID uuid.UUID, totalFee int64, currency string, status models.OrderStatus) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := &models.Order{ID: uuid.New(), PartnerID: partnerID, TotalFee: totalFee, FeeCurrency: &currency, Status: status}
	f.orders[o.ID] = o
	return o
}

func (f *fakeOrderRepo) GetForPartner(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.PartnerID != partnerID {
		return nil, postgres.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepo) PaidTowards(ctx context.Context, orderID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return 0, postgres.ErrOrderNotFound
	}
	return o.WalletUsed + f.gatewayPaid[orderID], nil
}

func (f *fakeOrderRepo) SettleFromWallet(ctx context.Context, p repository.SettleFromWalletParams) (*repository.WalletSettlement, error) {
	f.mu.Lock()
	o, ok := f.orders[p.OrderID]
	if !ok || o.PartnerID != p.PartnerID {
		f.mu.Unlock()
		return nil, postgres.ErrOrderNotFound
	}
	if o.Status != models.OrderPendingPayment {
		f.mu.Unlock()
		return nil, postgres.ErrOrderNotPayable
	}
	remaining := o.TotalFee - o.WalletUsed - f.gatewayPaid[p.OrderID]
	if remaining <= 0 {
		f.mu.Unlock()
		return nil, postgres.ErrOrderNotPayable
	}
	amount := p.Amount
	if amount > remaining {
		amount = remaining
	}
	f.mu.Unlock()

	orderID := p.OrderID
	newBalance, err := f.wallets.Debit(ctx, repository.DebitParams{
		PartnerID:   p.PartnerID,
		Amount:      amount,
		Currency:    p.Currency,
		Method:      models.MethodWallet,
		OrderID:     &orderID,
		ReferenceID: p.PaymentCode,
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	o.WalletUsed += amount
	advanced := false
	if o.WalletUsed+f.gatewayPaid[p.OrderID] >= o.TotalFee && o.Status == models.OrderPendingPayment {
		o.Status = models.OrderInProcess
		advanced = true
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

	return &repository.WalletSettlement{
		Amount:        amount,
		NewBalance:    newBalance,
		Payment:       payment,
		OrderAdvanced: advanced,
		Remaining:     remaining - amount,
	}, nil
}

func (f *fakeOrderRepo) advanceIfCovered(orderID uuid.UUID, gatewayAmount int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false
	}
	f.gatewayPaid[orderID] += gatewayAmount
	if o.WalletUsed+f.gatewayPaid[orderID] >= o.TotalFee && o.Status == models.OrderPendingPayment {
		o.Status = models.OrderInProcess
		return true
	}
	return false
}

type fakeAdapter struct {
	mu        sync.Mutex
	calls     []gateway.CreatePaymentRequest
	nextTxnID string
	err       error
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	txnID := f.nextTxnID
	if txnID == "" {
		txnID = fmt.Sprintf("gw-%d", len(f.calls))
	}
	return &gateway.CreatePaymentResponse{GatewayTxnID: txnID, PaymentURL: "https://pay.example/" + txnID}, nil
}

func (f *fakeAdapter) VerifyWebhook(r *http.Request, body []byte) (*gateway.WebhookEvent, error) {
	return nil, fmt.Errorf("not used in usecase tests")
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
