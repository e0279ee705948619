package notify

import (
	"context"
	"errors"
	"fmt"

	"tablequeue/internal/config"
	"tablequeue/internal/events"

	pubnubgo "github.com/pubnub/go/v7"
)

type pubnubSend func(ctx context.Context, channel string, message any) error

// PubNubNotifier publishes events to browser dashboards on "channel-<channel>".
type PubNubNotifier struct {
	send pubnubSend
}

func NewPubNubNotifier(cfg config.PubNubConfig) (*PubNubNotifier, error) {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		return nil, errors.New("pubnub publish_key and subscribe_key are required")
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "tablequeue-server"
	}

	pnCfg := pubnubgo.NewConfigWithUserId(pubnubgo.UserId(userID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey
	pn := pubnubgo.NewPubNub(pnCfg)

	return &PubNubNotifier{
		send: func(ctx context.Context, channel string, message any) error {
			_, _, err := pn.PublishWithContext(ctx).Channel(channel).Message(message).Execute()
			return err
		},
	}, nil
}

func PubNubChannel(channel string) string {
	return "channel-" + channel
}

func (n *PubNubNotifier) Publish(ctx context.Context, channel, eventType string, payload any) error {
	event, err := events.NewJSONEvent(channel, eventType, payload)
	if err != nil {
		return err
	}
	if err := n.send(ctx, PubNubChannel(channel), event); err != nil {
		return fmt.Errorf("pubnub publish %s: %w", PubNubChannel(channel), err)
	}
	return nil
}
