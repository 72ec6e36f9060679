package services

import (
	"context"
	"fmt"

	pubnub "github.com/pubnub/go"
)

// Notifier pushes realtime messages to a buyer's personal channel.
type Notifier interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

type pubnubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) Notifier {
	return &pubnubNotifier{pn: pn}
}

func (n *pubnubNotifier) Publish(_ context.Context, channel string, message map[string]any) error {
	_, _, err := n.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("pubnub publish to %q: %w", channel, err)
	}
	return nil
}

// UserChannel is the per-user notification channel name.
func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}
