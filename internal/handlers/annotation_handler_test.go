package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/repository"
)

type MockAnnotationService struct {
	mock.Mock
}

func (m *MockAnnotationService) Annotate(ctx context.Context, messageID string, req model.AnnotationRequest) (*model.Message, error) {
	args := m.Called(ctx, messageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func TestAnnotationHandler_ApplyAnnotations(t *testing.T) {
	confidence := 0.9

	t.Run("stores the write-back", func(t *testing.T) {
		svc := new(MockAnnotationService)
		handler := NewAnnotationHandler(svc)

		req := model.AnnotationRequest{
			Confidence:      &confidence,
			ExtractedIntent: "ORDER",
			ExtractedProducts: []model.ExtractedProduct{
				{Name: "agua 1L", Quantity: 10, Unit: "cases"},
			},
			SuggestedResponses: []string{"¿Confirmo tu pedido?"},
		}
		body, _ := json.Marshal(req)

		annotated := &model.Message{ID: "msg-1", AIProcessed: true, AIExtractedIntent: "ORDER"}
		svc.On("Annotate", mock.Anything, "msg-1", req).Return(annotated, nil)

		ctx := setupTestContext("POST", "/api/messages/msg-1/annotations", body)
		ctx.SetUserValue("id", "msg-1")
		handler.ApplyAnnotations(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.Message
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.True(t, response.AIProcessed)
		assert.Equal(t, "ORDER", response.AIExtractedIntent)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockAnnotationService)
		handler := NewAnnotationHandler(svc)

		ctx := setupTestContext("POST", "/api/messages/msg-1/annotations", []byte("not json"))
		ctx.SetUserValue("id", "msg-1")
		handler.ApplyAnnotations(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Annotate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown message", func(t *testing.T) {
		svc := new(MockAnnotationService)
		handler := NewAnnotationHandler(svc)

		svc.On("Annotate", mock.Anything, "nope", mock.Anything).
			Return(nil, repository.ErrMessageNotFound)

		ctx := setupTestContext("POST", "/api/messages/nope/annotations", []byte("{}"))
		ctx.SetUserValue("id", "nope")
		handler.ApplyAnnotations(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("validation failure from the service", func(t *testing.T) {
		svc := new(MockAnnotationService)
		handler := NewAnnotationHandler(svc)

		svc.On("Annotate", mock.Anything, "msg-1", mock.Anything).
			Return(nil, assert.AnError)

		ctx := setupTestContext("POST", "/api/messages/msg-1/annotations", []byte(`{"confidence": 1.5}`))
		ctx.SetUserValue("id", "msg-1")
		handler.ApplyAnnotations(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}
