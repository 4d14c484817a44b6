package repository

import (
	"context"
	"errors"

	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

// GetByPhone resolves a customer by channel address inside one
// distributor's namespace.
func (r *CustomerRepository) GetByPhone(ctx context.Context, distributorID, phone string) (*model.Customer, error) {
	var entity CustomerEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("distributor_id = ? AND phone = ?", distributorID, phone).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	return toCustomerModel(&entity), nil
}

// GetOrCreate resolves an existing customer by (distributor, phone) or
// creates one from the given prototype. Concurrent creates race on the
// unique index; the loser retries as a fetch instead of propagating
// the constraint violation.
func (r *CustomerRepository) GetOrCreate(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	existing, err := r.GetByPhone(ctx, c.DistributorID, c.Phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	entity := toCustomerEntity(c)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.GetByPhone(ctx, c.DistributorID, c.Phone)
		}
		return nil, err
	}

	return toCustomerModel(entity), nil
}
