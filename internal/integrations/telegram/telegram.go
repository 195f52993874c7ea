// Package telegram posts digests to a chat through the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"fiksareport/internal/httpx"
)

// maxMessageRunes is the Bot API limit for one text message.
const maxMessageRunes = 4096

type Notifier struct {
	api    *bot.Bot
	token  string
	chatID string
}

// NewNotifier builds a send-only bot on the shared external HTTP client. opts
// are applied last, so callers may override the server URL or client.
func NewNotifier(token, chatID string, opts ...bot.Option) (*Notifier, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}
	options := append([]bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(0, httpx.ExternalHTTPClient()),
	}, opts...)
	api, err := bot.New(token, options...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Notifier{api: api, token: token, chatID: chatID}, nil
}

func (n *Notifier) Name() string { return "telegram" }

// Notify sends text, split into several messages when it exceeds the limit.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, maxMessageRunes) {
		_, err := n.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:             n.chatID,
			Text:               part,
			LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
		})
		if err != nil {
			// transport errors quote the request URL, which carries the token
			return errors.New(strings.ReplaceAll(err.Error(), n.token, "<redacted>"))
		}
	}
	return nil
}

// splitMessage cuts text on line boundaries into chunks of at most limit runes.
// A single line longer than limit is cut mid-line.
func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	var parts []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.TrimRight(string(cur), "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		if len(cur)+len(r) > limit {
			flush()
		}
		for len(r) > limit {
			parts = append(parts, string(r[:limit]))
			r = r[limit:]
		}
		cur = append(cur, r...)
	}
	flush()
	return parts
}
