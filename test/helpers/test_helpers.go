package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/repository"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
	"github.com/tamosreddi/orders-sub001/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.CustomerEntity{},
		&repository.ConversationEntity{},
		&repository.MessageEntity{},
		&repository.OrderSessionEntity{},
		&repository.OrderSessionItemEntity{},
	)
	require.NoError(t, err)

	// Partial unique indexes that AutoMigrate cannot express.
	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_conversations_active
            ON conversations (customer_id, channel) WHERE status = 'ACTIVE'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_messages_external_id
            ON messages (conversation_id, external_message_id) WHERE external_message_id <> ''`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per call: the adapter caches by name.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCustomer(t *testing.T, db *pg.DB, distributorID, phone, name string) *repository.CustomerEntity {
	ctx := context.Background()
	customer := &repository.CustomerEntity{
		DistributorID: distributorID,
		Phone:         phone,
		Name:          name,
	}
	err := db.Write(ctx).Create(customer).Error
	require.NoError(t, err)
	return customer
}

func CreateTestConversation(t *testing.T, db *pg.DB, customerID, distributorID, channel string) *repository.ConversationEntity {
	ctx := context.Background()
	conversation := &repository.ConversationEntity{
		CustomerID:    customerID,
		DistributorID: distributorID,
		Channel:       channel,
		Status:        "ACTIVE",
	}
	err := db.Write(ctx).Create(conversation).Error
	require.NoError(t, err)
	return conversation
}

func CreateTestMessage(t *testing.T, db *pg.DB, conversationID, content, externalID string) *repository.MessageEntity {
	ctx := context.Background()
	msg := &repository.MessageEntity{
		ConversationID:    conversationID,
		Content:           content,
		IsFromCustomer:    true,
		Type:              "TEXT",
		Status:            "DELIVERED",
		ExternalMessageID: externalID,
	}
	err := db.Write(ctx).Create(msg).Error
	require.NoError(t, err)
	return msg
}

func CreateTestOrderSession(t *testing.T, db *pg.DB, conversationID, status string) *repository.OrderSessionEntity {
	ctx := context.Background()
	session := &repository.OrderSessionEntity{
		ConversationID: conversationID,
		Status:         status,
	}
	err := db.Write(ctx).Create(session).Error
	require.NoError(t, err)
	return session
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
