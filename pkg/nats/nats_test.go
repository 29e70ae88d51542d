package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"rag-chatbot-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "chat.TURN_RECORDED", Subject(events.TypeTurnRecorded))
}

func TestPublishSubscribe_Integration(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	pub, err := NewPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := NewSubscriber(url)
	require.NoError(t, err)
	defer sub.Close()

	marker := uuid.NewString()
	received := make(chan events.Event, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sub.Subscribe(ctx, Subject(events.TypeSessionCreated), "test-"+marker[:8],
		func(ctx context.Context, e events.Event) error {
			received <- e
			return nil
		}))

	require.NoError(t, pub.Publish(ctx, events.New(events.TypeSessionCreated, map[string]interface{}{"marker": marker})))

	for {
		select {
		case e := <-received:
			if e.Payload()["marker"] == marker {
				assert.Equal(t, events.TypeSessionCreated, e.EventType())
				return
			}
		case <-ctx.Done():
			t.Fatal("event not received")
		}
	}
}
