package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/internal/notify"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/internal/twilio"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetOrCreate(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListActive(ctx context.Context, customerID string, channel model.Channel) ([]*model.Conversation, error) {
	args := m.Called(ctx, customerID, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *MockConversationRepository) TouchInbound(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockConversationRepository) ResetUnread(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConversationRepository) Archive(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConversationRepository) ListSummaries(ctx context.Context, f model.ConversationFilter) ([]*model.ConversationSummary, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.ConversationSummary), args.Get(1).(int64), args.Error(2)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) GetByExternalID(ctx context.Context, conversationID, externalID string) (*model.Message, error) {
	args := m.Called(ctx, conversationID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

func (m *MockMessageRepository) MarkThreadRead(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) ApplyAnnotations(ctx context.Context, id string, req model.AnnotationRequest) (*model.Message, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ev notify.Event) error {
	args := m.Called(ev)
	return args.Error(0)
}

const testDistributorID = "8f14e45f-ea0a-4a3c-bd15-1d5b0a1c2d3e"

func inboundFixture() *twilio.InboundMessage {
	return &twilio.InboundMessage{
		From:        "+5215550001111",
		To:          "+14155238886",
		Body:        "quiero 5 cajas de agua",
		ExternalID:  "SM0001",
		ProfileName: "Maria",
		Channel:     model.ChannelWhatsApp,
	}
}

func TestIngestService_Ingest_FirstContact(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	pub := new(MockPublisher)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, pub)
	in := inboundFixture()

	customer := &model.Customer{ID: "cust-1", DistributorID: testDistributorID, Phone: in.From, Name: "Maria"}
	conversation := &model.Conversation{ID: "conv-1", CustomerID: "cust-1", DistributorID: testDistributorID, Channel: model.ChannelWhatsApp, Status: model.ConversationStatusActive}
	created := &model.Message{ID: "msg-1", ConversationID: "conv-1", Content: in.Body, IsFromCustomer: true, CreatedAt: time.Now()}

	custRepo.On("GetOrCreate", ctx, mock.MatchedBy(func(c *model.Customer) bool {
		return c.DistributorID == testDistributorID && c.Phone == in.From && c.Name == "Maria"
	})).Return(customer, nil)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{}, nil)
	convRepo.On("Create", ctx, mock.MatchedBy(func(c *model.Conversation) bool {
		return c.CustomerID == "cust-1" && c.Status == model.ConversationStatusActive && c.Channel == model.ChannelWhatsApp
	})).Return(conversation, nil)
	msgRepo.On("GetByExternalID", ctx, "conv-1", "SM0001").Return(nil, repository.ErrMessageNotFound)
	msgRepo.On("Create", ctx, mock.MatchedBy(func(msg *model.Message) bool {
		return msg.ConversationID == "conv-1" && msg.IsFromCustomer && msg.ExternalMessageID == "SM0001"
	})).Return(created, nil)
	convRepo.On("TouchInbound", ctx, "conv-1", created.CreatedAt).Return(nil)

	var published []notify.Event
	pub.On("Publish", mock.AnythingOfType("notify.Event")).Run(func(args mock.Arguments) {
		published = append(published, args.Get(0).(notify.Event))
	}).Return(nil)

	result, err := service.Ingest(ctx, testDistributorID, in)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, "cust-1", result.Customer.ID)
	assert.Equal(t, "msg-1", result.Message.ID)
	assert.Equal(t, 1, result.Conversation.UnreadCount)
	require.NotNil(t, result.Conversation.LastMessageAt)

	require.Len(t, published, 2)
	assert.Equal(t, notify.ThreadTopic("conv-1"), published[0].Topic)
	assert.Equal(t, notify.KindMessageCreated, published[0].Kind)
	assert.Equal(t, notify.ConversationsTopic(testDistributorID), published[1].Topic)
	assert.Equal(t, notify.KindConversationUpdated, published[1].Kind)

	custRepo.AssertExpectations(t)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestIngestService_Ingest_NameFallsBackToPhone(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, nil)
	in := inboundFixture()
	in.ProfileName = "  "

	custRepo.On("GetOrCreate", ctx, mock.MatchedBy(func(c *model.Customer) bool {
		return c.Name == in.From
	})).Return(nil, errors.New("db down"))

	_, err := service.Ingest(ctx, testDistributorID, in)
	assert.Error(t, err)
	custRepo.AssertExpectations(t)
}

func TestIngestService_Ingest_DuplicateDelivery(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	pub := new(MockPublisher)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, pub)
	in := inboundFixture()

	customer := &model.Customer{ID: "cust-1"}
	conversation := &model.Conversation{ID: "conv-1", UnreadCount: 3}
	stored := &model.Message{ID: "msg-old", ConversationID: "conv-1", ExternalMessageID: "SM0001"}

	custRepo.On("GetOrCreate", ctx, mock.Anything).Return(customer, nil)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{conversation}, nil)
	msgRepo.On("GetByExternalID", ctx, "conv-1", "SM0001").Return(stored, nil)

	result, err := service.Ingest(ctx, testDistributorID, in)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, "msg-old", result.Message.ID)
	assert.Equal(t, 3, result.Conversation.UnreadCount)

	msgRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	convRepo.AssertNotCalled(t, "TouchInbound", mock.Anything, mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestIngestService_Ingest_InsertRaceResolvesToWinner(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	pub := new(MockPublisher)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, pub)
	in := inboundFixture()

	customer := &model.Customer{ID: "cust-1"}
	conversation := &model.Conversation{ID: "conv-1"}
	winner := &model.Message{ID: "msg-winner", ConversationID: "conv-1", ExternalMessageID: "SM0001"}

	custRepo.On("GetOrCreate", ctx, mock.Anything).Return(customer, nil)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{conversation}, nil)
	msgRepo.On("GetByExternalID", ctx, "conv-1", "SM0001").Return(nil, repository.ErrMessageNotFound).Once()
	msgRepo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicateMessage)
	msgRepo.On("GetByExternalID", ctx, "conv-1", "SM0001").Return(winner, nil).Once()

	result, err := service.Ingest(ctx, testDistributorID, in)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, "msg-winner", result.Message.ID)

	pub.AssertNotCalled(t, "Publish", mock.Anything)
	msgRepo.AssertExpectations(t)
}

func TestIngestService_Ingest_PicksMostRecentOnAnomaly(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, nil)
	in := inboundFixture()

	customer := &model.Customer{ID: "cust-1"}
	newer := &model.Conversation{ID: "conv-newer"}
	older := &model.Conversation{ID: "conv-older"}
	created := &model.Message{ID: "msg-1", ConversationID: "conv-newer", CreatedAt: time.Now()}

	custRepo.On("GetOrCreate", ctx, mock.Anything).Return(customer, nil)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{newer, older}, nil)
	msgRepo.On("GetByExternalID", ctx, "conv-newer", "SM0001").Return(nil, repository.ErrMessageNotFound)
	msgRepo.On("Create", ctx, mock.Anything).Return(created, nil)
	convRepo.On("TouchInbound", ctx, "conv-newer", created.CreatedAt).Return(nil)

	result, err := service.Ingest(ctx, testDistributorID, in)
	require.NoError(t, err)
	assert.Equal(t, "conv-newer", result.Conversation.ID)

	convRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngestService_Ingest_ConversationCreateRace(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, nil)
	in := inboundFixture()

	customer := &model.Customer{ID: "cust-1"}
	winner := &model.Conversation{ID: "conv-winner"}
	created := &model.Message{ID: "msg-1", ConversationID: "conv-winner", CreatedAt: time.Now()}

	custRepo.On("GetOrCreate", ctx, mock.Anything).Return(customer, nil)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{}, nil).Once()
	convRepo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrActiveConversationExists)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{winner}, nil).Once()
	msgRepo.On("GetByExternalID", ctx, "conv-winner", "SM0001").Return(nil, repository.ErrMessageNotFound)
	msgRepo.On("Create", ctx, mock.Anything).Return(created, nil)
	convRepo.On("TouchInbound", ctx, "conv-winner", created.CreatedAt).Return(nil)

	result, err := service.Ingest(ctx, testDistributorID, in)
	require.NoError(t, err)
	assert.Equal(t, "conv-winner", result.Conversation.ID)

	convRepo.AssertExpectations(t)
}

func TestIngestService_Ingest_TouchFailureIsAbsorbed(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	pub := new(MockPublisher)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, pub)
	in := inboundFixture()

	customer := &model.Customer{ID: "cust-1"}
	conversation := &model.Conversation{ID: "conv-1"}
	created := &model.Message{ID: "msg-1", ConversationID: "conv-1", CreatedAt: time.Now()}

	custRepo.On("GetOrCreate", ctx, mock.Anything).Return(customer, nil)
	convRepo.On("ListActive", ctx, "cust-1", model.ChannelWhatsApp).Return([]*model.Conversation{conversation}, nil)
	msgRepo.On("GetByExternalID", ctx, "conv-1", "SM0001").Return(nil, repository.ErrMessageNotFound)
	msgRepo.On("Create", ctx, mock.Anything).Return(created, nil)
	convRepo.On("TouchInbound", ctx, "conv-1", created.CreatedAt).Return(errors.New("deadlock"))
	pub.On("Publish", mock.AnythingOfType("notify.Event")).Return(nil)

	result, err := service.Ingest(ctx, testDistributorID, in)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, result.Conversation.UnreadCount)
}

func TestIngestService_Ingest_CustomerFailureStopsPipeline(t *testing.T) {
	custRepo := new(MockCustomerRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	ctx := context.Background()

	service := NewIngestService(custRepo, convRepo, msgRepo, nil)

	custRepo.On("GetOrCreate", ctx, mock.Anything).Return(nil, errors.New("db down"))

	result, err := service.Ingest(ctx, testDistributorID, inboundFixture())
	assert.Error(t, err)
	assert.Nil(t, result)

	convRepo.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
	msgRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
