// Package notify fans a rendered digest out to chat sinks.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Notifier delivers a pre-formatted text to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}

// Result lists which sinks accepted the message and what failed.
type Result struct {
	Sent   []string
	Errors []error
}

func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Dispatch sends text to every notifier once. Failures are collected and
// logged; nothing is retried and one failing sink never blocks the others.
func Dispatch(ctx context.Context, logger *zap.Logger, text string, notifiers ...Notifier) Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, text); err != nil {
			logger.Warn("notification failed", zap.String("sink", n.Name()), zap.Error(err))
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		logger.Info("notification sent", zap.String("sink", n.Name()), zap.Int("chars", len(text)))
		res.Sent = append(res.Sent, n.Name())
	}
	return res
}
