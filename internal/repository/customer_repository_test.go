package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tamosreddi/orders-sub001/internal/model"
	"gorm.io/gorm"
)

const testDistributorID = "d7f5a1be-9c2e-4a57-8f7d-2f1f3f1c9b11"

func TestCustomerRepository_GetOrCreate(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	t.Run("creates on first contact", func(t *testing.T) {
		created, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: testDistributorID,
			Phone:         "+15551230001",
			Name:          "+15551230001",
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, "+15551230001", created.Phone)
		assert.Equal(t, testDistributorID, created.DistributorID)
	})

	t.Run("resolves existing instead of duplicating", func(t *testing.T) {
		first, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: testDistributorID,
			Phone:         "+15551230002",
			Name:          "Maria",
		})
		require.NoError(t, err)

		second, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: testDistributorID,
			Phone:         "+15551230002",
			Name:          "someone else entirely",
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Maria", second.Name)

		var count int64
		err = db.Read(ctx).Model(&CustomerEntity{}).
			Where("distributor_id = ? AND phone = ?", testDistributorID, "+15551230002").
			Count(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("same phone under another distributor is a new customer", func(t *testing.T) {
		const otherDistributor = "0b9d3c44-6a1f-41dd-95a7-7cf1e0a2d502"

		a, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: testDistributorID,
			Phone:         "+15551230003",
		})
		require.NoError(t, err)

		b, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: otherDistributor,
			Phone:         "+15551230003",
		})
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("unique index rejects raw duplicate inserts", func(t *testing.T) {
		_, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: testDistributorID,
			Phone:         "+15551230004",
		})
		require.NoError(t, err)

		err = db.Write(ctx).Create(&CustomerEntity{
			DistributorID: testDistributorID,
			Phone:         "+15551230004",
			Name:          "dup",
		}).Error
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})
}

func TestCustomerRepository_GetByPhone(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewCustomerRepository(db)
	ctx := context.Background()

	t.Run("unknown address", func(t *testing.T) {
		_, err := repo.GetByPhone(ctx, testDistributorID, "+15550000000")
		assert.ErrorIs(t, err, ErrCustomerNotFound)
	})

	t.Run("found", func(t *testing.T) {
		created, err := repo.GetOrCreate(ctx, &model.Customer{
			DistributorID: testDistributorID,
			Phone:         "+15551230005",
			Name:          "Pedro",
			Code:          "C-0005",
		})
		require.NoError(t, err)

		got, err := repo.GetByPhone(ctx, testDistributorID, "+15551230005")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Pedro", got.Name)
		assert.Equal(t, "C-0005", got.Code)
	})
}
