package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	topic := ConversationsTopic("dist-1")

	t.Run("subscriber receives events on its topic", func(t *testing.T) {
		ch, cancel := hub.Subscribe(topic)
		defer cancel()

		require.NoError(t, hub.Publish(Event{Topic: topic, Kind: KindMessageCreated, At: time.Now()}))

		select {
		case ev := <-ch:
			assert.Equal(t, KindMessageCreated, ev.Kind)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	})

	t.Run("other topics are not delivered", func(t *testing.T) {
		ch, cancel := hub.Subscribe(ThreadTopic("conv-1"))
		defer cancel()

		require.NoError(t, hub.Publish(Event{Topic: topic, Kind: KindConversationUpdated}))

		select {
		case ev := <-ch:
			t.Fatalf("unexpected event: %+v", ev)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("all subscribers of a topic receive the event", func(t *testing.T) {
		a, cancelA := hub.Subscribe(topic)
		b, cancelB := hub.Subscribe(topic)
		defer cancelA()
		defer cancelB()

		require.NoError(t, hub.Publish(Event{Topic: topic, Kind: KindThreadRead}))

		for _, ch := range []<-chan Event{a, b} {
			select {
			case ev := <-ch:
				assert.Equal(t, KindThreadRead, ev.Kind)
			case <-time.After(time.Second):
				t.Fatal("event not delivered to every subscriber")
			}
		}
	})
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	topic := ThreadTopic("conv-2")

	ch, cancel := hub.Subscribe(topic)
	assert.Equal(t, 1, hub.Subscribers(topic))

	cancel()
	assert.Equal(t, 0, hub.Subscribers(topic))

	_, open := <-ch
	assert.False(t, open, "channel closes on unsubscribe")

	// Calling cancel again must not panic.
	cancel()

	require.NoError(t, hub.Publish(Event{Topic: topic, Kind: KindMessageCreated}))
}

func TestHub_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	hub := NewHub()
	topic := ConversationsTopic("dist-2")

	_, cancel := hub.Subscribe(topic)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody drains the channel; publishes beyond the buffer drop.
		for i := 0; i < subscriberBuffer*4; i++ {
			_ = hub.Publish(Event{Topic: topic, Kind: KindMessageCreated})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
