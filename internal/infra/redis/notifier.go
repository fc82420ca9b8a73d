package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/payroll/internal/core/domain"
)

// DefaultChannel is the pub/sub channel notifications go to when none is configured.
const DefaultChannel = "payroll:notifications"

// Notifier publishes payment outcomes as JSON on a Redis channel.
type Notifier struct {
	client  *Client
	channel string
}

func NewNotifier(client *Client, channel string) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Notifier{client: client, channel: channel}
}

func (n *Notifier) Notify(ctx context.Context, note domain.Notification) error {
	payload, err := encodeNotification(note)
	if err != nil {
		return err
	}
	if err := n.client.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

func encodeNotification(note domain.Notification) ([]byte, error) {
	payload, err := json.Marshal(note)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return payload, nil
}
