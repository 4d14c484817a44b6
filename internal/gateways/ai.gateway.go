package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

const processPath = "/v1/messages/process"

// ProcessRequest is the enrichment payload sent for every inbound
// customer message.
type ProcessRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	CustomerID     string `json:"customer_id"`
	DistributorID  string `json:"distributor_id"`
	Channel        string `json:"channel"`
	Content        string `json:"content"`
}

// ProcessResponse is what the AI service answers with. Beyond logging
// it carries no business effect here; annotations come back later
// through the write-back endpoint.
type ProcessResponse struct {
	Accepted  bool   `json:"accepted"`
	RequestID string `json:"request_id,omitempty"`
}

type ClientMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64 // Last N latencies for percentile calculation
	maxHistorySize int
}

func NewClientMetrics() *ClientMetrics {
	return &ClientMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *ClientMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *ClientMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *ClientMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *ClientMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *ClientMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p95Index := int(float64(len(sorted)) * 0.95)
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	return sorted[p95Index]
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// AIClient talks to the external AI processing service. It keeps its
// own rolling metrics so the reconciler's health reporting can expose
// how the dependency behaves.
type AIClient struct {
	http    *resty.Client
	metrics *ClientMetrics
}

func NewAIClient(config Config) (*AIClient, error) {
	if config.BaseURL == "" {
		return nil, errors.New("ai service base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Content-Type", "application/json")

	logger.Info("AI client initialized", "base_url", config.BaseURL, "timeout", config.Timeout)

	return &AIClient{
		http:    httpClient,
		metrics: NewClientMetrics(),
	}, nil
}

// ProcessMessage posts one message for enrichment. Timeouts, transport
// errors and non-2xx answers all come back as errors; callers decide
// whether that matters.
func (c *AIClient) ProcessMessage(ctx context.Context, req *ProcessRequest) error {
	startTime := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&ProcessResponse{}).
		Post(processPath)

	latency := time.Since(startTime).Milliseconds()

	if err != nil {
		c.metrics.RecordFailure()
		return fmt.Errorf("ai request failed: %w", err)
	}
	if resp.IsError() {
		c.metrics.RecordFailure()
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.Body())
	}

	c.metrics.RecordSuccess(latency)
	logger.Debug("ai processing accepted", "message_id", req.MessageID, "latency_ms", latency)

	return nil
}

// Stats snapshots the client's rolling metrics.
func (c *AIClient) Stats() ClientStats {
	return ClientStats{
		TotalRequests:    c.metrics.TotalRequests.Load(),
		SuccessfulReqs:   c.metrics.SuccessfulReqs.Load(),
		FailedReqs:       c.metrics.FailedReqs.Load(),
		SuccessRate:      c.metrics.SuccessRate(),
		AvgLatencyMs:     c.metrics.AvgLatencyMs(),
		P95LatencyMs:     c.metrics.P95LatencyMs(),
		LastLatencyMs:    c.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: c.metrics.ConsecutiveFails.Load(),
	}
}

type ClientStats struct {
	TotalRequests    int64
	SuccessfulReqs   int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	P95LatencyMs     int64
	LastLatencyMs    int64
	ConsecutiveFails int32
}
