package push

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// DeliverSubject is the subject the push gateway subscribes on.
const DeliverSubject = "push.deliver"

// NatsSink publishes push notifications to NATS for the gateway workers to
// deliver. Fire-and-forget: the publish either lands in the broker or the
// caller logs the error.
type NatsSink struct {
	nc *nats.Conn
}

// NewNatsSink wraps an established NATS connection.
func NewNatsSink(nc *nats.Conn) *NatsSink {
	return &NatsSink{nc: nc}
}

// Push publishes one notification.
func (s *NatsSink) Push(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.nc.Publish(DeliverSubject, data)
}
