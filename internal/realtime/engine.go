package realtime

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/notify"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

// DefaultPollInterval is the safety-net poll for open surfaces. Push
// normally lands first; the poll catches whatever a dropped event
// missed.
const DefaultPollInterval = 30 * time.Second

// FetchFunc pulls the authoritative snapshot for the watched topic.
type FetchFunc func(ctx context.Context) (any, error)

type Subscriber interface {
	Subscribe(topic string) (<-chan notify.Event, func())
}

// Update is one delivery to the surface: a fresh snapshot, or the
// error that kept the engine from producing one.
type Update struct {
	Snapshot any
	Err      error
	At       time.Time
}

// Engine keeps one client surface in sync with the store. Two
// producers feed it, push events on the topic and a foreground-only
// poll tick, and both funnel into the same reconcile step: re-fetch,
// compare, emit only when something changed.
type Engine struct {
	topic    string
	fetch    FetchFunc
	sub      Subscriber
	interval time.Duration

	mu         sync.Mutex
	foreground bool
	seeded     bool
	dirty      bool
	last       any

	updates   chan Update
	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewEngine(topic string, fetch FetchFunc, sub Subscriber, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		topic:      topic,
		fetch:      fetch,
		sub:        sub,
		interval:   interval,
		foreground: true,
		updates:    make(chan Update, 8),
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start launches the sync loop. The first snapshot is fetched right
// away, then Updates() delivers changes until Close.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.run(ctx)
}

func (e *Engine) Updates() <-chan Update { return e.updates }

// SetForeground switches the poll producer on and off. Push stays
// subscribed either way. Coming back to the foreground forces an
// immediate reconcile so the surface never renders a stale view.
func (e *Engine) SetForeground(v bool) {
	e.mu.Lock()
	wake := v && !e.foreground
	e.foreground = v
	e.mu.Unlock()

	if wake {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) Foreground() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.foreground
}

// Close tears the engine down: unsubscribes, stops both producers and
// closes Updates(). Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.updates)

	events, cancel := e.sub.Subscribe(e.topic)
	defer cancel()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.reconcile(ctx)

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			e.reconcile(ctx)
		case <-e.kick:
			e.reconcile(ctx)
		case <-ticker.C:
			if e.Foreground() {
				e.reconcile(ctx)
			}
		}
	}
}

// reconcile is the single convergence point for every producer. A
// failed fetch becomes an error update and marks the state dirty, so
// the next good snapshot always goes out even if it matches the last
// one delivered.
func (e *Engine) reconcile(ctx context.Context) {
	snapshot, err := e.fetch(ctx)
	if err != nil {
		logger.Warn("sync fetch failed", "topic", e.topic, "error", err)
		e.mu.Lock()
		e.dirty = true
		e.mu.Unlock()
		e.emit(Update{Err: err, At: time.Now()})
		return
	}

	e.mu.Lock()
	same := e.seeded && !e.dirty && reflect.DeepEqual(e.last, snapshot)
	if !same {
		e.last = snapshot
		e.seeded = true
		e.dirty = false
	}
	e.mu.Unlock()

	if same {
		return
	}
	e.emit(Update{Snapshot: snapshot, At: time.Now()})
}

func (e *Engine) emit(u Update) {
	select {
	case e.updates <- u:
	case <-e.done:
	}
}
