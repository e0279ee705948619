package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"tablequeue/internal/events"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSNotifier publishes events on subject "<prefix>.<channel>".
type NATSNotifier struct {
	conn   natsConn
	prefix string
}

func NewNATSNotifier(url, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("tablequeue"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn, prefix: prefix}, nil
}

func (n *NATSNotifier) Subject(channel string) string {
	if n.prefix == "" {
		return channel
	}
	return n.prefix + "." + channel
}

func (n *NATSNotifier) Publish(_ context.Context, channel, eventType string, payload any) error {
	event, err := events.NewJSONEvent(channel, eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.Subject(channel), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", n.Subject(channel), err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	n.conn.Close()
	return nil
}
