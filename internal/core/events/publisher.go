package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/visadesk/walletcore/internal/core/logger"
)

const PaymentEventsChannel = "payment_events"

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventWalletCredited   = "wallet.credited"
	EventWalletDebited    = "wallet.debited"
)

type PaymentEvent struct {
	EventType    string    `json:"event_type"`
	PartnerID    string    `json:"partner_id"`
	PaymentCode  string    `json:"payment_code,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	BalanceAfter int64     `json:"balance_after,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher fans payment lifecycle events out over a Redis pub/sub channel
// for downstream consumers (notifications, reporting). A nil Publisher or a
// Publisher without a client is a no-op, so event publishing never becomes a
// hard dependency of the money path.
type Publisher struct {
	rdb *redis.Client
	log logger.Logger
}

func NewPublisher(rdb *redis.Client, log logger.Logger) *Publisher {
	return &Publisher{rdb: rdb, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event PaymentEvent) {
	if p == nil || p.rdb == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal payment event", logger.ErrorField("error", err))
		return
	}

	if err := p.rdb.Publish(ctx, PaymentEventsChannel, payload).Err(); err != nil {
		// Losing an event is acceptable; losing the request is not.
		p.log.Warn("failed to publish payment event",
			logger.StringField("event_type", event.EventType),
			logger.ErrorField("error", err),
		)
		return
	}

	p.log.Debug("published payment event",
		logger.StringField("event_type", event.EventType),
		logger.StringField("partner_id", event.PartnerID),
	)
}

// CachePayment remembers a payment's terminal view so status polls skip the
// database. Best effort.
func (p *Publisher) CachePayment(ctx context.Context, paymentCode string, view []byte) {
	if p == nil || p.rdb == nil {
		return
	}
	key := fmt.Sprintf("payment:status:%s", paymentCode)
	if err := p.rdb.Set(ctx, key, view, 24*time.Hour).Err(); err != nil {
		p.log.Warn("failed to cache payment status", logger.ErrorField("error", err))
	}
}

// CachedPayment returns the cached terminal view, or nil on miss.
func (p *Publisher) CachedPayment(ctx context.Context, paymentCode string) []byte {
	if p == nil || p.rdb == nil {
		return nil
	}
	key := fmt.Sprintf("payment:status:%s", paymentCode)
	view, err := p.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	return view
}
