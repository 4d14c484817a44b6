package repository

import (
	"github.com/tamosreddi/orders-sub001/internal/model"
	"github.com/tamosreddi/orders-sub001/pkg/pg"
)

type CustomerEntity struct {
	pg.Model
	DistributorID string `db:"distributor_id" gorm:"column:distributor_id;type:uuid;not null;uniqueIndex:uniq_customers_distributor_phone"`
	Phone         string `db:"phone"          gorm:"column:phone;not null;uniqueIndex:uniq_customers_distributor_phone"`
	Name          string `db:"name"           gorm:"column:name;not null"`
	Code          string `db:"code"           gorm:"column:code"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		Model: pg.Model{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		DistributorID: m.DistributorID,
		Phone:         m.Phone,
		Name:          m.Name,
		Code:          m.Code,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:            e.ID,
		DistributorID: e.DistributorID,
		Phone:         e.Phone,
		Name:          e.Name,
		Code:          e.Code,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
