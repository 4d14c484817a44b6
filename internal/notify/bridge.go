package notify

import (
	"encoding/json"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
	"github.com/tamosreddi/orders-sub001/pkg/redis"
)

// notifyChannel is the single pub/sub channel all change events travel
// on. Topic routing happens in the hub, not in Redis.
const notifyChannel = "notify:events"

// Bridge extends the in-process hub across processes over Redis
// pub/sub. Published events take one path: out to Redis, back through
// every process's subscription (this one included), into its local
// hub. If Redis drops an event, subscriber polling covers the gap.
type Bridge struct {
	hub    *Hub
	rdb    redis.RedisAdapter
	pubsub *goredis.PubSub

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewBridge(hub *Hub, rdb redis.RedisAdapter) *Bridge {
	return &Bridge{
		hub: hub,
		rdb: rdb,
	}
}

// Publish sends the event to Redis. Local delivery happens when the
// event loops back through Run.
func (b *Bridge) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(notifyChannel, payload)
}

// Run subscribes to the shared channel and forwards incoming events
// into the local hub until Stop is called.
func (b *Bridge) Run() {
	b.pubsub = b.rdb.Subscribe(notifyChannel)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range b.pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("notify: dropping undecodable event", "error", err)
				continue
			}
			b.hub.Publish(ev)
		}
	}()
}

// Stop closes the subscription and waits for the forwarding loop to
// drain.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.pubsub != nil {
			if err := b.pubsub.Close(); err != nil {
				logger.Warn("notify: pubsub close failed", "error", err)
			}
		}
		b.wg.Wait()
	})
}
