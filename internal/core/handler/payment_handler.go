package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/usecase"
)

type PaymentHandler struct {
	payments usecase.PaymentUsecase
	log      logger.Logger
}

func NewPaymentHandler(payments usecase.PaymentUsecase, log logger.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "payment code is required")
		return
	}

	view, err := h.payments.GetPaymentStatus(r.Context(), code)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}
