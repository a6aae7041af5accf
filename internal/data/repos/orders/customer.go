package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mercadomm/orders-backend/internal/domain"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type CustomerRepo interface {
	GetOrCreateByPhone(ctx context.Context, tx *gorm.DB, phoneE164, name string) (*types.Customer, error)
	GetByID(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.Customer, error)
	GetByPhone(ctx context.Context, tx *gorm.DB, phoneE164 string) (*types.Customer, error)
	LockByID(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.Customer, error)
	UpdateDefaultAddress(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, address string) error
	RecordOrderCommitted(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, at time.Time) error
	List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Customer, error)
}

type customerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCustomerRepo(db *gorm.DB, baseLog *logger.Logger) CustomerRepo {
	return &customerRepo{db: db, log: baseLog.With("repo", "CustomerRepo")}
}

func (cr *customerRepo) GetOrCreateByPhone(ctx context.Context, tx *gorm.DB, phoneE164, name string) (*types.Customer, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	customer := &types.Customer{Name: name, Phone: phoneE164, PhoneE164: phoneE164}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_e164"}},
			DoNothing: true,
		}).
		Create(customer).Error; err != nil {
		return nil, err
	}

	var result types.Customer
	if err := transaction.WithContext(ctx).
		Where("phone_e164 = ?", phoneE164).
		First(&result).Error; err != nil {
		return nil, err
	}

	// Keep the name fresh when the provider sends a better one.
	if name != "" && result.Name != name {
		if err := transaction.WithContext(ctx).
			Model(&types.Customer{}).
			Where("id = ?", result.ID).
			Update("name", name).Error; err != nil {
			return nil, err
		}
		result.Name = name
	}
	return &result, nil
}

func (cr *customerRepo) GetByID(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.Customer, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Customer
	if err := transaction.WithContext(ctx).
		Where("id = ?", customerID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (cr *customerRepo) GetByPhone(ctx context.Context, tx *gorm.DB, phoneE164 string) (*types.Customer, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Customer
	if err := transaction.WithContext(ctx).
		Where("phone_e164 = ?", phoneE164).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// LockByID takes a row lock on the customer, serializing concurrent message
// ingestion for the same conversation. Callers must pass the enclosing
// transaction.
func (cr *customerRepo) LockByID(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.Customer, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var result types.Customer
	if err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", customerID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (cr *customerRepo) UpdateDefaultAddress(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, address string) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Customer{}).
		Where("id = ?", customerID).
		Update("default_delivery_address", address).Error
}

func (cr *customerRepo) RecordOrderCommitted(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{
			"total_orders":   gorm.Expr("total_orders + 1"),
			"first_order_at": gorm.Expr("COALESCE(first_order_at, ?)", at),
			"last_order_at":  at,
		}).Error
}

func (cr *customerRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Customer, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var results []*types.Customer
	if err := transaction.WithContext(ctx).
		Order("last_order_at DESC NULLS LAST, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
