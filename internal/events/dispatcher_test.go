package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublishLogsHandlerErrorAndContinues(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := NewInMemoryDispatcher(zap.New(core))

	var order []string
	dispatcher.Subscribe(EventTokenStored, func(context.Context, Event) error {
		order = append(order, "first")
		return errors.New("handler blew up")
	})
	dispatcher.Subscribe(EventTokenStored, func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	})

	err := dispatcher.Publish(context.Background(), Event{ID: "evt-1", Type: EventTokenStored})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)

	entries := logs.FilterMessage("event handler failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(EventTokenStored), fields["event"])
	assert.Equal(t, "evt-1", fields["event_id"])
}

func TestPublishWithNilLogger(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	dispatcher.Subscribe(EventCacheInvalidated, func(context.Context, Event) error {
		return errors.New("still fine")
	})

	assert.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventCacheInvalidated}))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	assert.NoError(t, dispatcher.Publish(context.Background(), Event{Type: EventTokenRefreshed}))
}
