package slackbot

import (
	"context"
	"errors"

	"github.com/slack-go/slack"
)

// Notifier posts digests to one Slack channel.
type Notifier struct {
	api       *slack.Client
	channelID string
}

func NewNotifier(token, channelID string, options ...slack.Option) *Notifier {
	return &Notifier{api: slack.New(token, options...), channelID: channelID}
}

func (n *Notifier) Name() string { return "slack" }

func (n *Notifier) Notify(ctx context.Context, text string) error {
	if n.channelID == "" {
		return errors.New("slack channel is not configured")
	}
	_, _, err := n.api.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	return err
}
