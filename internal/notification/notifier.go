// Package notification dispatches fire-and-forget customer events after the
// owning transaction commits. Delivery failure never rolls anything back.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types
const (
	EventPaymentVerified = "payment.verified"
	EventPaymentRejected = "payment.rejected"
	EventDeviceLocked    = "device.locked"
	EventDeviceUnlocked  = "device.unlocked"
)

type Event struct {
	Type       string     `json:"type"`
	LoanID     uuid.UUID  `json:"loan_id,omitempty"`
	PaymentID  *uuid.UUID `json:"payment_id,omitempty"`
	DeviceID   *uuid.UUID `json:"device_id,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Dispatcher delivers events to downstream channels (SMS, WhatsApp, push)
// owned by other systems.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

type redisDispatcher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisDispatcher publishes events on a Redis channel the delivery
// workers subscribe to.
func NewRedisDispatcher(client *redis.Client, channel string, logger *zap.Logger) Dispatcher {
	return &redisDispatcher{client: client, channel: channel, logger: logger}
}

func (d *redisDispatcher) Dispatch(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Warn("notification dropped", zap.String("type", event.Type), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.client.Publish(ctx, d.channel, payload).Err(); err != nil {
		d.logger.Warn("notification publish failed",
			zap.String("type", event.Type),
			zap.String("channel", d.channel),
			zap.Error(err),
		)
	}
}

// NopDispatcher discards events; used in tests.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}
