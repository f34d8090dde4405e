package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CreatePaymentRequest asks the external provider to open a hosted checkout
// for the given amount. ReferenceID is our payment code and comes back in
// the provider's webhook metadata.
type CreatePaymentRequest struct {
	Amount      int64 // minor units
	Currency    string
	PartnerID   uuid.UUID
	Purpose     string
	ReferenceID string
	Metadata    map[string]string
}

type CreatePaymentResponse struct {
	GatewayTxnID string
	PaymentURL   string
}

// WebhookEvent is a verified provider notification. Status is the provider's
// terminal outcome mapped onto SUCCESS/FAILED; Payload is the raw body kept
// for the payment record.
type WebhookEvent struct {
	GatewayTxnID string
	Status       string // "SUCCESS" or "FAILED"
	Amount       int64
	Currency     string
	Payload      []byte
}

// Adapter abstracts the external settlement provider. The provider is an
// untrusted, retrying event source: VerifyWebhook must authenticate every
// delivery before the core acts on it.
type Adapter interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (*WebhookEvent, error)
}
