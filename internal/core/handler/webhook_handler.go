package handler

import (
	"io"
	"net/http"

	"github.com/visadesk/walletcore/internal/core/gateway"
	"github.com/visadesk/walletcore/internal/core/logger"
	"github.com/visadesk/walletcore/internal/core/usecase"
)

type WebhookHandler struct {
	adapter  gateway.Adapter
	payments usecase.PaymentUsecase
	log      logger.Logger
}

func NewWebhookHandler(adapter gateway.Adapter, payments usecase.PaymentUsecase, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{adapter: adapter, payments: payments, log: log}
}

type webhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleGatewayWebhook processes asynchronous provider confirmations. After
// signature verification the delivery is always acknowledged with 200 so the
// provider stops retrying; the reconciliation outcome is reported in the
// body and recorded in metrics, and a failed outcome never claims a mutation
// happened.
func (h *WebhookHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.log.Warn("failed to read webhook body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	event, err := h.adapter.VerifyWebhook(r, body)
	if err != nil {
		h.log.Warn("webhook verification failed",
			logger.StringField("remote_addr", r.RemoteAddr),
			logger.ErrorField("error", err),
		)
		respondWithError(w, http.StatusUnauthorized, "verification failed")
		return
	}

	result, err := h.payments.HandlePaymentWebhook(r.Context(), *event)
	if err != nil {
		// Acknowledge receipt so the gateway stops retrying a delivery we
		// will never accept, but report the failure honestly.
		h.log.Error("webhook processing failed",
			logger.StringField("gateway_txn_id", event.GatewayTxnID),
			logger.ErrorField("error", err),
		)
		respondWithJSON(w, http.StatusOK, webhookAck{Received: true, Error: err.Error()})
		return
	}

	respondWithJSON(w, http.StatusOK, webhookAck{Received: true, Outcome: string(result.Code)})
}
