package paylink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/visadesk/walletcore/internal/core/gateway"
	"github.com/visadesk/walletcore/internal/core/logger"
)

const (
	signatureHeader = "X-Paylink-Signature"
	requestTimeout  = 15 * time.Second
)

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
	ErrBadPayload   = errors.New("webhook payload is malformed")
)

// Provider talks to the Paylink hosted-checkout API. Checkout creation is a
// synchronous JSON call; confirmations arrive later as signed webhooks.
type Provider struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
	log           logger.Logger
}

func NewProvider(baseURL, apiKey, webhookSecret string, log logger.Logger) *Provider {
	return &Provider{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: requestTimeout},
		log:           log,
	}
}

func (p *Provider) Name() string { return "paylink" }

type checkoutRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type checkoutResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
}

func (p *Provider) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResponse, error) {
	metadata := map[string]string{
		"partner_id": req.PartnerID.String(),
		"purpose":    req.Purpose,
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	body, err := json.Marshal(checkoutRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.ReferenceID,
		Description: req.Purpose,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read checkout response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		p.log.Error("paylink checkout rejected",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("reference", req.ReferenceID),
			logger.StringField("body", string(respBody)),
		)
		return nil, fmt.Errorf("paylink returned status %d", resp.StatusCode)
	}

	var checkout checkoutResponse
	if err := json.Unmarshal(respBody, &checkout); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}
	if checkout.ID == "" {
		return nil, fmt.Errorf("paylink response has no transaction id")
	}

	return &gateway.CreatePaymentResponse{
		GatewayTxnID: checkout.ID,
		PaymentURL:   checkout.CheckoutURL,
	}, nil
}

type webhookPayload struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // "succeeded" | "failed"
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifyWebhook authenticates a delivery with the shared-secret HMAC and maps
// the provider's status vocabulary onto the core's. Anything that fails
// verification is rejected before the core sees it.
func (p *Provider) VerifyWebhook(r *http.Request, body []byte) (*gateway.WebhookEvent, error) {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrBadSignature, signatureHeader)
	}

	mac := hmac.New(sha256.New, []byte(p.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return nil, ErrBadSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrBadPayload)
	}

	var status string
	switch payload.Status {
	case "succeeded":
		status = "SUCCESS"
	case "failed", "expired", "cancelled":
		status = "FAILED"
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadPayload, payload.Status)
	}

	return &gateway.WebhookEvent{
		GatewayTxnID: payload.ID,
		Status:       status,
		Amount:       payload.Amount,
		Currency:     payload.Currency,
		Payload:      body,
	}, nil
}
