package notify

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/pkg/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestBridge_DeliversAcrossHubs(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	// Two hubs standing in for two processes sharing one Redis.
	hubA := NewHub()
	hubB := NewHub()

	bridgeA := NewBridge(hubA, adapter)
	bridgeB := NewBridge(hubB, adapter)
	bridgeA.Run()
	bridgeB.Run()
	defer bridgeA.Stop()
	defer bridgeB.Stop()

	topic := ThreadTopic("conv-42")
	chA, cancelA := hubA.Subscribe(topic)
	chB, cancelB := hubB.Subscribe(topic)
	defer cancelA()
	defer cancelB()

	// Subscriptions race Run's SUBSCRIBE round trip; give it a beat.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, bridgeA.Publish(Event{Topic: topic, Kind: KindMessageCreated, At: time.Now()}))

	for name, ch := range map[string]<-chan Event{"local": chA, "remote": chB} {
		select {
		case ev := <-ch:
			assert.Equal(t, KindMessageCreated, ev.Kind, name)
			assert.Equal(t, topic, ev.Topic, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s hub never saw the event", name)
		}
	}
}

func TestBridge_StopClosesCleanly(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	bridge := NewBridge(NewHub(), adapter)
	bridge.Run()

	done := make(chan struct{})
	go func() {
		bridge.Stop()
		bridge.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}
