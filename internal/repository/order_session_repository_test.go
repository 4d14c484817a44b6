package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/model"
)

func TestOrderSessionRepository_GetActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderSessionRepository(db.DB)
	ctx := context.Background()
	now := time.Now()

	conv := seedConversation(t, db, "+15554440001")

	t.Run("no session", func(t *testing.T) {
		_, err := repo.GetActive(ctx, conv.ID, now)
		assert.ErrorIs(t, err, ErrNoActiveSession)
	})

	t.Run("collecting session with ordered items", func(t *testing.T) {
		expires := now.Add(30 * time.Minute)
		session := &OrderSessionEntity{
			ConversationID: conv.ID,
			Status:         string(model.OrderSessionStatusCollecting),
			ExpiresAt:      &expires,
		}
		require.NoError(t, db.rawDB.Create(session).Error)

		// Inserted out of position order on purpose.
		for _, item := range []*OrderSessionItemEntity{
			{OrderSessionID: session.ID, Position: 2, ProductName: "leche", Quantity: 6, Unit: "litro"},
			{OrderSessionID: session.ID, Position: 1, ProductName: "agua", Quantity: 10, Unit: "caja"},
		} {
			require.NoError(t, db.rawDB.Create(item).Error)
		}

		got, err := repo.GetActive(ctx, conv.ID, now)
		require.NoError(t, err)
		assert.Equal(t, model.OrderSessionStatusCollecting, got.Status)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "agua", got.Items[0].ProductName)
		assert.Equal(t, "leche", got.Items[1].ProductName)
	})

	t.Run("expired session is invisible", func(t *testing.T) {
		other := seedConversation(t, db, "+15554440002")
		expired := now.Add(-time.Minute)
		session := &OrderSessionEntity{
			ConversationID: other.ID,
			Status:         string(model.OrderSessionStatusActive),
			ExpiresAt:      &expired,
		}
		require.NoError(t, db.rawDB.Create(session).Error)

		_, err := repo.GetActive(ctx, other.ID, now)
		assert.ErrorIs(t, err, ErrNoActiveSession)
	})

	t.Run("terminal states are invisible", func(t *testing.T) {
		other := seedConversation(t, db, "+15554440003")
		session := &OrderSessionEntity{
			ConversationID: other.ID,
			Status:         string(model.OrderSessionStatusConfirmed),
		}
		require.NoError(t, db.rawDB.Create(session).Error)

		_, err := repo.GetActive(ctx, other.ID, now)
		assert.ErrorIs(t, err, ErrNoActiveSession)
	})

	t.Run("session without expiry never expires", func(t *testing.T) {
		other := seedConversation(t, db, "+15554440004")
		session := &OrderSessionEntity{
			ConversationID: other.ID,
			Status:         string(model.OrderSessionStatusActive),
		}
		require.NoError(t, db.rawDB.Create(session).Error)

		got, err := repo.GetActive(ctx, other.ID, now)
		require.NoError(t, err)
		assert.Empty(t, got.Items)
		assert.Nil(t, got.ExpiresAt)
	})
}
