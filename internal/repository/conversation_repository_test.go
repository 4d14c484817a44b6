package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/model"
)

func seedCustomer(t *testing.T, db *testDB, phone string) *CustomerEntity {
	t.Helper()
	entity := &CustomerEntity{
		DistributorID: testDistributorID,
		Phone:         phone,
		Name:          phone,
	}
	require.NoError(t, db.rawDB.Create(entity).Error)
	return entity
}

func TestConversationRepository_CreateAndResolve(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db.DB)
	ctx := context.Background()

	customer := seedCustomer(t, db, "+15552220001")

	t.Run("create then get", func(t *testing.T) {
		created, err := repo.Create(ctx, &model.Conversation{
			CustomerID:    customer.ID,
			DistributorID: testDistributorID,
			Channel:       model.ChannelWhatsApp,
			Status:        model.ConversationStatusActive,
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ChannelWhatsApp, got.Channel)
		assert.Equal(t, model.ConversationStatusActive, got.Status)
		assert.Equal(t, 0, got.UnreadCount)
	})

	t.Run("get unknown id", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "2da9a6d3-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})

	t.Run("second active conversation for the pair is rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Conversation{
			CustomerID:    customer.ID,
			DistributorID: testDistributorID,
			Channel:       model.ChannelWhatsApp,
			Status:        model.ConversationStatusActive,
		})
		assert.ErrorIs(t, err, ErrActiveConversationExists)
	})

	t.Run("archived rows do not block a new active one", func(t *testing.T) {
		other := seedCustomer(t, db, "+15552220002")

		archived, err := repo.Create(ctx, &model.Conversation{
			CustomerID:    other.ID,
			DistributorID: testDistributorID,
			Channel:       model.ChannelWhatsApp,
			Status:        model.ConversationStatusArchived,
		})
		require.NoError(t, err)

		active, err := repo.Create(ctx, &model.Conversation{
			CustomerID:    other.ID,
			DistributorID: testDistributorID,
			Channel:       model.ChannelWhatsApp,
			Status:        model.ConversationStatusActive,
		})
		require.NoError(t, err)
		assert.NotEqual(t, archived.ID, active.ID)
	})

	t.Run("same customer on another channel gets its own active conversation", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Conversation{
			CustomerID:    customer.ID,
			DistributorID: testDistributorID,
			Channel:       model.ChannelSMS,
			Status:        model.ConversationStatusActive,
		})
		assert.NoError(t, err)
	})
}

func TestConversationRepository_ListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db.DB)
	ctx := context.Background()

	customer := seedCustomer(t, db, "+15552220003")

	// Drop the uniqueness guard to model a store that accumulated
	// duplicates before the index existed.
	require.NoError(t, db.rawDB.Exec(`DROP INDEX uniq_conversations_active`).Error)

	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-5 * time.Minute)

	first := &ConversationEntity{
		CustomerID:    customer.ID,
		DistributorID: testDistributorID,
		Channel:       string(model.ChannelWhatsApp),
		Status:        string(model.ConversationStatusActive),
		LastMessageAt: &older,
	}
	second := &ConversationEntity{
		CustomerID:    customer.ID,
		DistributorID: testDistributorID,
		Channel:       string(model.ChannelWhatsApp),
		Status:        string(model.ConversationStatusActive),
		LastMessageAt: &newer,
	}
	require.NoError(t, db.rawDB.Create(first).Error)
	require.NoError(t, db.rawDB.Create(second).Error)

	got, err := repo.ListActive(ctx, customer.ID, model.ChannelWhatsApp)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID, "most recently active first")
	assert.Equal(t, first.ID, got[1].ID)
}

func TestConversationRepository_TouchInboundAndResetUnread(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db.DB)
	ctx := context.Background()

	customer := seedCustomer(t, db, "+15552220004")
	conv, err := repo.Create(ctx, &model.Conversation{
		CustomerID:    customer.ID,
		DistributorID: testDistributorID,
		Channel:       model.ChannelWhatsApp,
		Status:        model.ConversationStatusActive,
	})
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, repo.TouchInbound(ctx, conv.ID, now))
	require.NoError(t, repo.TouchInbound(ctx, conv.ID, now.Add(time.Minute)))

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UnreadCount)
	require.NotNil(t, got.LastMessageAt)
	assert.WithinDuration(t, now.Add(time.Minute), *got.LastMessageAt, time.Second)

	require.NoError(t, repo.ResetUnread(ctx, conv.ID))
	got, err = repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount)

	t.Run("unknown conversation", func(t *testing.T) {
		err := repo.TouchInbound(ctx, "6f370be1-0000-0000-0000-000000000000", time.Now())
		assert.ErrorIs(t, err, ErrConversationNotFound)
		err = repo.ResetUnread(ctx, "6f370be1-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})
}

func TestConversationRepository_Archive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db.DB)
	ctx := context.Background()

	customer := seedCustomer(t, db, "+15552220007")
	conv, err := repo.Create(ctx, &model.Conversation{
		CustomerID:    customer.ID,
		DistributorID: testDistributorID,
		Channel:       model.ChannelWhatsApp,
		Status:        model.ConversationStatusActive,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Archive(ctx, conv.ID))

	got, err := repo.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationStatusArchived, got.Status)

	t.Run("frees the active slot for the pair", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Conversation{
			CustomerID:    customer.ID,
			DistributorID: testDistributorID,
			Channel:       model.ChannelWhatsApp,
			Status:        model.ConversationStatusActive,
		})
		assert.NoError(t, err)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		err := repo.Archive(ctx, "9ab31337-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})
}

func TestConversationRepository_ListSummaries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db.DB)
	msgRepo := NewMessageRepository(db.DB)
	ctx := context.Background()

	maria := seedCustomer(t, db, "+15552220005")
	pedro := seedCustomer(t, db, "+15552220006")

	quiet, err := repo.Create(ctx, &model.Conversation{
		CustomerID:    maria.ID,
		DistributorID: testDistributorID,
		Channel:       model.ChannelWhatsApp,
		Status:        model.ConversationStatusActive,
	})
	require.NoError(t, err)

	busy, err := repo.Create(ctx, &model.Conversation{
		CustomerID:    pedro.ID,
		DistributorID: testDistributorID,
		Channel:       model.ChannelWhatsApp,
		Status:        model.ConversationStatusActive,
	})
	require.NoError(t, err)

	// A conversation under another distributor must never leak in.
	stranger := &CustomerEntity{DistributorID: "11f0354c-aaaa-bbbb-cccc-000000000001", Phone: "+15559990000", Name: "x"}
	require.NoError(t, db.rawDB.Create(stranger).Error)
	_, err = repo.Create(ctx, &model.Conversation{
		CustomerID:    stranger.ID,
		DistributorID: stranger.DistributorID,
		Channel:       model.ChannelWhatsApp,
		Status:        model.ConversationStatusActive,
	})
	require.NoError(t, err)

	for _, content := range []string{"hola", "necesito 10 cajas de agua"} {
		_, err := msgRepo.Create(ctx, &model.Message{
			ConversationID: busy.ID,
			Content:        content,
			IsFromCustomer: true,
			Type:           model.MessageTypeText,
			Status:         model.MessageStatusDelivered,
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.TouchInbound(ctx, busy.ID, time.Now()))
	require.NoError(t, repo.TouchInbound(ctx, busy.ID, time.Now()))

	summaries, total, err := repo.ListSummaries(ctx, model.ConversationFilter{DistributorID: testDistributorID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, summaries, 2)

	assert.Equal(t, busy.ID, summaries[0].ID, "touched conversation sorts first")
	assert.Equal(t, pedro.Phone, summaries[0].CustomerPhone)
	assert.Equal(t, "necesito 10 cajas de agua", summaries[0].LastMessage)
	assert.Equal(t, 2, summaries[0].UnreadCount)

	assert.Equal(t, quiet.ID, summaries[1].ID)
	assert.Equal(t, "", summaries[1].LastMessage)

	t.Run("status filter", func(t *testing.T) {
		summaries, total, err := repo.ListSummaries(ctx, model.ConversationFilter{
			DistributorID: testDistributorID,
			Statuses:      []model.ConversationStatus{model.ConversationStatusArchived},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, summaries)
	})
}
