package services

import (
	"context"
	"errors"
	"time"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/pkg/logger"
)

type OrderSessionRepository interface {
	GetActive(ctx context.Context, conversationID string, now time.Time) (*model.OrderSession, error)
}

// OrderSessionReader decorates thread views with the order the AI is
// currently collecting for that conversation, when there is one.
type OrderSessionReader struct {
	repo OrderSessionRepository
}

func NewOrderSessionReader(repo OrderSessionRepository) *OrderSessionReader {
	return &OrderSessionReader{repo: repo}
}

// Read returns the unexpired in-progress session or nil. The session is
// an overlay on the thread, so every failure collapses to nil instead
// of breaking the thread fetch; real errors still get logged.
func (r *OrderSessionReader) Read(ctx context.Context, conversationID string) *model.OrderSession {
	if r == nil || r.repo == nil {
		return nil
	}

	session, err := r.repo.GetActive(ctx, conversationID, time.Now())
	if err != nil {
		if !errors.Is(err, repository.ErrNoActiveSession) {
			logger.Warn("order session read failed",
				"conversation_id", conversationID,
				"error", err)
		}
		return nil
	}

	return session
}
