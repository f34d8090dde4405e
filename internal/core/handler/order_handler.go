package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/usecase"
)

type OrderHandler struct {
	settlement usecase.SettlementUsecase
	log        logger.Logger
}

func NewOrderHandler(settlement usecase.SettlementUsecase, log logger.Logger) *OrderHandler {
	return &OrderHandler{settlement: settlement, log: log}
}

type payOrderRequest struct {
	UseWallet bool `json:"use_wallet"`
}

func (h *OrderHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	pid, err := partnerID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orderID, err := uuid.Parse(mux.Vars(r)["order_id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req payOrderRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	result, err := h.settlement.PayOrder(r.Context(), orderID, pid, req.UseWallet)
	if err != nil {
		h.log.Warn("order payment failed",
			logger.StringField("order_id", orderID.String()),
			logger.StringField("partner_id", pid.String()),
			logger.ErrorField("error", err),
		)
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	h.log.Info("order payment processed",
		logger.StringField("order_id", orderID.String()),
		logger.Int64Field("paid_via_wallet", result.PaidViaWallet),
		logger.Int64Field("remaining", result.Remaining),
	)
	respondWithJSON(w, http.StatusOK, result)
}
