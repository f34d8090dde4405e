package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visadesk/walletcore/internal/core/usecase"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"100":      "100",
		"100.50":   "100.50",
		"100,50":   "100.50",
		" 250.5 ":  "250.5",
		"0.001":    "0.001",
		"999999999": "999999999",
	}
	for input, want := range valid {
		got, err := parseAmount(input)
		require.NoError(t, err, input)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s parsed to %s", input, got)
	}

	invalid := []string{"", "abc", "-5", "0", "10.1234", "1e5", "10.5.1", "1000000000"}
	for _, input := range invalid {
		_, err := parseAmount(input)
		assert.Error(t, err, input)
	}
}

func TestPartnerIDHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	_, err := partnerID(req)
	assert.Error(t, err, "missing header")

	req.Header.Set(partnerHeader, "not-a-uuid")
	_, err = partnerID(req)
	assert.Error(t, err)

	want := uuid.New()
	req.Header.Set(partnerHeader, want.String())
	got, err := partnerID(req)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStatusForError(t *testing.T) {
	cases := map[error]int{
		usecase.ErrInvalidAmount:       http.StatusBadRequest,
		usecase.ErrAmountTooLow:        http.StatusBadRequest,
		usecase.ErrCurrencyMismatch:    http.StatusBadRequest,
		usecase.ErrWalletNotFound:      http.StatusNotFound,
		usecase.ErrOrderNotFound:       http.StatusNotFound,
		usecase.ErrPaymentNotFound:     http.StatusNotFound,
		usecase.ErrInsufficientBalance: http.StatusConflict,
		usecase.ErrOrderNotReady:       http.StatusConflict,
		usecase.ErrOrderFeeNotSet:      http.StatusConflict,
		usecase.ErrAmountMismatch:      http.StatusUnprocessableEntity,
		usecase.ErrGatewayUnavailable:  http.StatusBadGateway,
		assert.AnError:                 http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusForError(err), err.Error())
	}
}
