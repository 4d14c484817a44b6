package repository

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&CustomerEntity{},
		&ConversationEntity{},
		&MessageEntity{},
		&OrderSessionEntity{},
		&OrderSessionItemEntity{},
	)
	require.NoError(t, err)

	// Partial unique indexes that AutoMigrate cannot express. Kept in
	// lockstep with the SQL migrations.
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

	return &testDB{
		DB:    pgDB,
		rawDB: db,
	}
}
