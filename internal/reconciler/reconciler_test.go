package reconciler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/config"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/queue"
)

type MockUnprocessedSource struct {
	mock.Mock
}

func (m *MockUnprocessedSource) ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]*model.Message, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Message), args.Error(1)
}

func TestReconcilerService_ScanOnce(t *testing.T) {
	require.NoError(t, config.Load(""))

	adapter := setupTestAdapter(t)
	ledger := NewDispatchLedger(adapter, DefaultLedgerConfig())
	ctx := context.Background()

	tasks, err := queue.NewQueue(adapter, queue.QueueConfig{
		Name:          "test:ai_dispatch",
		ConsumerGroup: "reconciler",
		PollInterval:  100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer tasks.Stop(time.Second)

	msgs := []*model.Message{
		{ID: "msg-1", ConversationID: "conv-1", IsFromCustomer: true},
		{ID: "msg-2", ConversationID: "conv-2", IsFromCustomer: true},
	}

	source := new(MockUnprocessedSource)
	source.On("ListUnprocessed", mock.Anything, mock.Anything, mock.Anything).Return(msgs, nil)

	// msg-2 was already handed over; only msg-1 should be queued.
	attempt, err := ledger.Begin(ctx, "msg-2")
	require.NoError(t, err)
	require.NoError(t, ledger.MarkSuccess(ctx, attempt))

	svc, err := NewReconcilerService(adapter, source, ledger)
	require.NoError(t, err)
	svc.tasks = tasks

	svc.scanOnce(ctx)

	stats, err := tasks.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMessages)

	received := make(chan DispatchTask, 1)
	require.NoError(t, tasks.Consume(func(ctx context.Context, m *queue.Message) error {
		var task DispatchTask
		if err := json.Unmarshal(m.Data, &task); err != nil {
			return err
		}
		received <- task
		return nil
	}))

	select {
	case task := <-received:
		assert.Equal(t, "msg-1", task.MessageID)
		assert.Equal(t, "conv-1", task.ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch task never arrived")
	}
}

func TestReconcilerService_ScanOnce_SourceFailure(t *testing.T) {
	require.NoError(t, config.Load(""))

	adapter := setupTestAdapter(t)
	ledger := NewDispatchLedger(adapter, DefaultLedgerConfig())

	source := new(MockUnprocessedSource)
	source.On("ListUnprocessed", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)

	svc, err := NewReconcilerService(adapter, source, ledger)
	require.NoError(t, err)

	// The scan logs the failure and waits for the next tick; no panic,
	// nothing queued.
	assert.NotPanics(t, func() { svc.scanOnce(context.Background()) })
}

func TestNewReconcilerService_RequiresLedger(t *testing.T) {
	adapter := setupTestAdapter(t)

	svc, err := NewReconcilerService(adapter, new(MockUnprocessedSource), nil)
	assert.Error(t, err)
	assert.Nil(t, svc)
}

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics()

	m.RecordSuccess(100 * time.Millisecond)
	m.RecordSuccess(300 * time.Millisecond)
	m.RecordFailure()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(200), snap.AvgDurationMs)
	assert.Greater(t, snap.RatePerSecond, 0.0)

	m.Reset()
	snap = m.Snapshot()
	assert.Equal(t, int64(0), snap.Processed)
	assert.Equal(t, int64(0), snap.Failed)
	assert.Equal(t, int64(0), snap.AvgDurationMs)
}
