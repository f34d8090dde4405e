package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/visadesk/walletcore/internal/core/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// statusForError maps the usecase error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidAmount),
		errors.Is(err, usecase.ErrAmountTooLow),
		errors.Is(err, usecase.ErrInvalidPaymentMethod),
		errors.Is(err, usecase.ErrCurrencyMismatch):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrWalletNotFound),
		errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrPaymentNotFound),
		errors.Is(err, usecase.ErrPartnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInsufficientBalance),
		errors.Is(err, usecase.ErrOrderNotReady),
		errors.Is(err, usecase.ErrOrderFeeNotSet):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, usecase.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
