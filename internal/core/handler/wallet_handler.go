package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/models"
	"github.com/visadesk/walletcore/internal/core/usecase"
)

// Partner identity is resolved by the platform's auth layer upstream and
// injected as a header.
const partnerHeader = "X-Partner-ID"

var amountRegexp = regexp.MustCompile(`^\s*\d{1,9}([.,]\d{1,3})?\s*$`)

type WalletHandler struct {
	ledger   usecase.LedgerUsecase
	payments usecase.PaymentUsecase
	log      logger.Logger
}

func NewWalletHandler(ledger usecase.LedgerUsecase, payments usecase.PaymentUsecase, log logger.Logger) *WalletHandler {
	return &WalletHandler{ledger: ledger, payments: payments, log: log}
}

func partnerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(partnerHeader)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s header", partnerHeader)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s header", partnerHeader)
	}
	return id, nil
}

func parseAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(amountStr, " ", ""), ",", ".")

	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", amountStr)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	pid, err := partnerID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.ledger.GetOrCreateWallet(r.Context(), pid)
	if err != nil {
		h.log.Error("failed to load wallet",
			logger.StringField("partner_id", pid.String()),
			logger.ErrorField("error", err),
		)
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	pid, err := partnerID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.ledger.ListTransactions(r.Context(), pid, limit, offset)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

type topupRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

func (h *WalletHandler) InitiateTopup(w http.ResponseWriter, r *http.Request) {
	pid, err := partnerID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req topupRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("failed to decode top-up request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.log.Warn("invalid top-up amount",
			logger.StringField("amount", req.Amount),
			logger.ErrorField("error", err),
		)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	method := models.PaymentMethod(strings.ToUpper(req.Method))

	receipt, err := h.payments.InitiateWalletTopup(r.Context(), pid, amount, method)
	if err != nil {
		h.log.Warn("top-up initiation failed",
			logger.StringField("partner_id", pid.String()),
			logger.ErrorField("error", err),
		)
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	h.log.Info("top-up initiated",
		logger.StringField("partner_id", pid.String()),
		logger.StringField("payment_code", receipt.PaymentCode),
	)
	respondWithJSON(w, http.StatusAccepted, receipt)
}
