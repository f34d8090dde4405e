package paylink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/visadesk/walletcore/internal/core/gateway"
)

const testSecret = "whsec_test"

func gatewayRequest(partnerID uuid.UUID) gateway.CreatePaymentRequest {
	return gateway.CreatePaymentRequest{
		Amount:      5000,
		Currency:    "USD",
		PartnerID:   partnerID,
		Purpose:     "TOPUP",
		ReferenceID: "PAY-TEST",
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookRequest(t *testing.T, body []byte, signature string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paylink", nil)
	if signature != "" {
		req.Header.Set("X-Paylink-Signature", signature)
	}
	return req
}

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	p := NewProvider("https://api.paylink.test", "sk_test", testSecret, zap.NewNop())
	body := []byte(`{"id":"txn_1","status":"succeeded","amount":5000,"currency":"USD"}`)

	event, err := p.VerifyWebhook(webhookRequest(t, body, sign(testSecret, body)), body)
	require.NoError(t, err)

	assert.Equal(t, "txn_1", event.GatewayTxnID)
	assert.Equal(t, "SUCCESS", event.Status)
	assert.Equal(t, int64(5000), event.Amount)
	assert.Equal(t, "USD", event.Currency)
	assert.Equal(t, body, event.Payload)
}

func TestVerifyWebhook_BadSignature(t *testing.T) {
	p := NewProvider("https://api.paylink.test", "sk_test", testSecret, zap.NewNop())
	body := []byte(`{"id":"txn_1","status":"succeeded","amount":5000,"currency":"USD"}`)

	_, err := p.VerifyWebhook(webhookRequest(t, body, sign("wrong-secret", body)), body)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = p.VerifyWebhook(webhookRequest(t, body, ""), body)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyWebhook_TamperedBody(t *testing.T) {
	p := NewProvider("https://api.paylink.test", "sk_test", testSecret, zap.NewNop())
	body := []byte(`{"id":"txn_1","status":"succeeded","amount":5000,"currency":"USD"}`)
	tampered := []byte(`{"id":"txn_1","status":"succeeded","amount":9000,"currency":"USD"}`)

	_, err := p.VerifyWebhook(webhookRequest(t, tampered, sign(testSecret, body)), tampered)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyWebhook_StatusMapping(t *testing.T) {
	p := NewProvider("https://api.paylink.test", "sk_test", testSecret, zap.NewNop())

	cases := []struct {
		provider string
		want     string
	}{
		{"succeeded", "SUCCESS"},
		{"failed", "FAILED"},
		{"expired", "FAILED"},
		{"cancelled", "FAILED"},
	}
	for _, tc := range cases {
		body := []byte(`{"id":"txn_2","status":"` + tc.provider + `","amount":100,"currency":"USD"}`)
		event, err := p.VerifyWebhook(webhookRequest(t, body, sign(testSecret, body)), body)
		require.NoError(t, err, tc.provider)
		assert.Equal(t, tc.want, event.Status, tc.provider)
	}

	body := []byte(`{"id":"txn_2","status":"processing","amount":100,"currency":"USD"}`)
	_, err := p.VerifyWebhook(webhookRequest(t, body, sign(testSecret, body)), body)
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestVerifyWebhook_MalformedPayload(t *testing.T) {
	p := NewProvider("https://api.paylink.test", "sk_test", testSecret, zap.NewNop())

	body := []byte(`not json`)
	_, err := p.VerifyWebhook(webhookRequest(t, body, sign(testSecret, body)), body)
	assert.ErrorIs(t, err, ErrBadPayload)

	body = []byte(`{"status":"succeeded","amount":100}`)
	_, err = p.VerifyWebhook(webhookRequest(t, body, sign(testSecret, body)), body)
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestCreatePayment(t *testing.T) {
	var got checkoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkouts", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(checkoutResponse{ID: "txn_abc", CheckoutURL: "https://pay.paylink.test/txn_abc"})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "sk_test", testSecret, zap.NewNop())
	partnerID := uuid.New()

	resp, err := p.CreatePayment(context.Background(), gatewayRequest(partnerID))
	require.NoError(t, err)

	assert.Equal(t, "txn_abc", resp.GatewayTxnID)
	assert.Equal(t, "https://pay.paylink.test/txn_abc", resp.PaymentURL)
	assert.Equal(t, int64(5000), got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "PAY-TEST", got.Reference)
	assert.Equal(t, partnerID.String(), got.Metadata["partner_id"])
	assert.Equal(t, "TOPUP", got.Metadata["purpose"])
}

func TestCreatePayment_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "sk_bad", testSecret, zap.NewNop())

	_, err := p.CreatePayment(context.Background(), gatewayRequest(uuid.New()))
	assert.Error(t, err)
}

func TestCreatePayment_MissingTransactionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(checkoutResponse{CheckoutURL: "https://pay.paylink.test/x"})
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "sk_test", testSecret, zap.NewNop())

	_, err := p.CreatePayment(context.Background(), gatewayRequest(uuid.New()))
	assert.Error(t, err)
}
