package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name string
	err  error
	got  []string
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, text string) error {
	r.got = append(r.got, text)
	return r.err
}

func TestDispatchContinuesPastFailures(t *testing.T) {
	down := &recordingNotifier{name: "slack", err: errors.New("channel_not_found")}
	up := &recordingNotifier{name: "telegram"}

	res := Dispatch(context.Background(), nil, "digest", down, nil, up)

	assert.Equal(t, []string{"telegram"}, res.Sent)
	require.Len(t, res.Errors, 1)
	assert.EqualError(t, res.Errors[0], "slack: channel_not_found")
	assert.Equal(t, []string{"digest"}, down.got, "failed sinks are not retried")
	assert.Equal(t, []string{"digest"}, up.got)
	assert.Error(t, res.Err())
}

func TestDispatchWithoutNotifiers(t *testing.T) {
	res := Dispatch(context.Background(), nil, "digest")
	assert.Empty(t, res.Sent)
	assert.NoError(t, res.Err())
}
