package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/config"
	gateway "github.com/tamosreddi/orders-sub001/internal/gateways"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/queue"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
	"github.com/tamosreddi/orders-sub001/pkg/prom"
	"github.com/tamosreddi/orders-sub001/pkg/redis"
	"github.com/tamosreddi/orders-sub001/pkg/worker"
)

const ProcessingTimeout = 15 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

const workerQueueDepth = 1024
const workerPoolSize = 32

// degradedFailStreak is the consecutive-failure count past which the
// health check flags the AI service.
const degradedFailStreak = 5

// Processor consumes one queue task.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// UnprocessedSource is the scan query: customer messages the AI service
// has not annotated yet.
type UnprocessedSource interface {
	ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]*model.Message, error)
}

// StatsSource exposes the AI client's rolling health numbers.
type StatsSource interface {
	Stats() gateway.ClientStats
}

// ReconcilerService is the recovery half of AI processing. The webhook
// dispatches best effort and never retries, so a message that slips
// through stays ai_processed=false in Postgres. This service scans for
// those rows, queues them and replays the handover with a bounded
// attempt budget.
type ReconcilerService struct {
	adapter  redis.RedisAdapter
	messages UnprocessedSource
	ledger   *DispatchLedger
	gateway  StatsSource

	queues    []*queue.Queue
	tasks     *queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewReconcilerService(adapter redis.RedisAdapter, messages UnprocessedSource, ledger *DispatchLedger) (*ReconcilerService, error) {
	if ledger == nil {
		return nil, fmt.Errorf("dispatch ledger is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ReconcilerService{
		adapter:  adapter,
		messages: messages,
		ledger:   ledger,
		queues:   make([]*queue.Queue, 0),
		metrics:  NewServiceMetrics(),
		worker:   worker.NewWorkerManager(workerQueueDepth, workerPoolSize, nil),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (s *ReconcilerService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("registered processor", "type", processor.GetType())
}

// WatchGateway wires the AI client's stats into the health report.
func (s *ReconcilerService) WatchGateway(stats StatsSource) {
	s.gateway = stats
}

func (s *ReconcilerService) Start() error {
	logger.Info("starting reconciler service")

	s.worker.SetWorker(s.workerHandler)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Error("worker manager stopped", "error", err)
		}
	}()

	cfg := config.Get()

	consumers := cfg.WorkerCount
	if consumers <= 0 {
		consumers = 1
	}
	base := cfg.QueueConsumerName
	if base == "" {
		base = cfg.AppName
	}

	for i := 0; i < consumers; i++ {
		queueConfig := queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      fmt.Sprintf("%s-instance-%d", base, i),
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		}

		q, err := queue.NewQueue(s.adapter, queueConfig)
		if err != nil {
			return fmt.Errorf("failed to create queue %d: %w", i, err)
		}

		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}

		s.queues = append(s.queues, q)
	}

	// The scanner publishes on its own handle so publishing and consumer
	// shutdown stay independent.
	tasks, err := queue.NewQueue(s.adapter, queue.QueueConfig{
		Name:          cfg.QueueName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		MaxLen:        cfg.QueueMaxLen,
	})
	if err != nil {
		return fmt.Errorf("failed to create task publisher: %w", err)
	}
	s.tasks = tasks

	s.wg.Add(3)
	go s.scanLoop()
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("reconciler service started",
		"consumers", len(s.queues),
		"workers", workerPoolSize,
		"scan_interval", cfg.ReconcilerScanInterval)
	return nil
}

func (s *ReconcilerService) scanLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(config.Get().ReconcilerScanInterval)
	defer ticker.Stop()

	// One pass up front so a backlog does not wait out the first tick.
	s.scanOnce(s.ctx)

	for {
		select {
		case <-ticker.C:
			s.scanOnce(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

// scanOnce finds customer messages the AI never acknowledged and queues
// a dispatch task for each. Messages whose handover was accepted but
// whose write-back is still pending are skipped via the ledger.
func (s *ReconcilerService) scanOnce(ctx context.Context) {
	cfg := config.Get()

	cutoff := time.Now().Add(-cfg.ReconcilerMinAge)
	msgs, err := s.messages.ListUnprocessed(ctx, cutoff, cfg.ReconcilerBatchLimit)
	if err != nil {
		logger.Error("reconciler scan failed", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	prom.AddReconcilerScanned(float64(len(msgs)))

	enqueued := 0
	for _, m := range msgs {
		if done, err := s.ledger.IsDispatched(ctx, m.ID); err == nil && done {
			continue
		}

		task := DispatchTask{MessageID: m.ID, ConversationID: m.ConversationID}
		if _, err := s.tasks.PublishJSON(ctx, task, map[string]string{"source": "reconciler"}); err != nil {
			logger.Error("failed to enqueue dispatch task", "message_id", m.ID, "error", err)
			continue
		}
		enqueued++
	}

	prom.AddReconcilerEnqueued(float64(enqueued))
	logger.Info("reconciler scan complete", "unprocessed", len(msgs), "enqueued", enqueued)
}

func (s *ReconcilerService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ReconcilerService) reportMetrics() {
	snap := s.metrics.Snapshot()
	logger.Info("reconciler metrics",
		"processed", snap.Processed,
		"failed", snap.Failed,
		"rate_per_second", snap.RatePerSecond,
		"avg_duration_ms", snap.AvgDurationMs,
		"uptime_seconds", snap.UptimeSeconds)

	for i, q := range s.queues {
		if qStats, err := q.GetStats(); err == nil {
			logger.Info("queue stats", "consumer", i, "total", qStats.TotalMessages, "pending", qStats.PendingMessages)
		}
	}
}

func (s *ReconcilerService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ReconcilerService) performHealthCheck() {
	if err := s.adapter.Client().Ping(context.Background()).Err(); err != nil {
		logger.Error("health check failed, redis unreachable", "error", err)
		return
	}

	for i, q := range s.queues {
		stats, err := q.GetStats()
		if err != nil {
			logger.Warn("queue stats unavailable", "consumer", i, "error", err)
			continue
		}
		if stats.PendingMessages > 10_000 {
			logger.Warn("queue lag is high", "consumer", i, "pending", stats.PendingMessages)
		}
	}

	if s.gateway != nil {
		stats := s.gateway.Stats()
		if stats.ConsecutiveFails >= degradedFailStreak {
			logger.Warn("ai service looks degraded",
				"consecutive_fails", stats.ConsecutiveFails,
				"success_rate", stats.SuccessRate,
				"p95_latency_ms", stats.P95LatencyMs)
		}
	}
}

// Stop drains the consumers, stops the worker pool and waits for the
// background loops.
func (s *ReconcilerService) Stop() {
	logger.Info("shutting down reconciler service")

	s.cancel()

	timeout := ShutdownTimeout
	stopped := make(chan bool, len(s.queues))

	for i, q := range s.queues {
		go func(index int, q *queue.Queue) {
			if err := q.Stop(timeout); err != nil {
				logger.Error("error stopping queue", "consumer", index, "error", err)
			}
			stopped <- true
		}(i, q)
	}

	for range s.queues {
		select {
		case <-stopped:
		case <-time.After(timeout + 5*time.Second):
			logger.Warn("timeout waiting for consumers to stop")
		}
	}

	if s.tasks != nil {
		_ = s.tasks.Stop(time.Second)
	}

	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()

	logger.Info("reconciler service stopped")
}

type jobResult struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler bridges queue consumption into the worker pool and
// blocks until the pool settles the message, so ack semantics stay with
// the queue.
func (s *ReconcilerService) messageHandler(ctx context.Context, msg *queue.Message) error {
	resultChan := make(chan error, 1)

	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout+time.Second)
	defer cancel()

	job := &jobResult{
		msg:        msg,
		resultChan: resultChan,
		ctx:        msgCtx,
	}

	s.worker.Enqueue(job)

	select {
	case err := <-resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", msgCtx.Err())
	}
}

func (s *ReconcilerService) workerHandler(workerIndex int, job interface{}) {
	jobRes, ok := job.(*jobResult)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}

	msg := jobRes.msg
	start := time.Now()
	var resultErr error

	select {
	case <-jobRes.ctx.Done():
		logger.Warn("job expired before a worker picked it up", "worker", workerIndex)
		return
	default:
	}

	if s.processor == nil {
		logger.Warn("no processor registered, dropping task", "worker", workerIndex)
		s.metrics.RecordFailure()
		resultErr = nil
	} else if err := s.processor.Process(jobRes.ctx, msg); err != nil {
		s.metrics.RecordFailure()
		logger.Error("failed to process task", "worker", workerIndex, "error", err)
		resultErr = err
	} else {
		s.metrics.RecordSuccess(time.Since(start))
		resultErr = nil
	}

	select {
	case jobRes.resultChan <- resultErr:
	case <-jobRes.ctx.Done():
		logger.Warn("message handler gave up before the result arrived", "worker", workerIndex)
	}
}
