package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mercadomm/orders-backend/internal/domain"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type OrderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, order *types.Order) (*types.Order, error)
	GetByID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Order, error)
	Save(ctx context.Context, tx *gorm.DB, order *types.Order) error
	List(ctx context.Context, tx *gorm.DB, status string, customerID *uuid.UUID, limit, offset int) ([]*types.Order, error)
	// FindLatestWithAddress returns the customer's newest non-canceled order
	// that carries a delivery address, for the address fallback chain.
	FindLatestWithAddress(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.Order, error)
	AddItems(ctx context.Context, tx *gorm.DB, items []*types.OrderItem) error
	AppendHistory(ctx context.Context, tx *gorm.DB, entry *types.OrderStatusHistory) error
	ListHistory(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]*types.OrderStatusHistory, error)
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.With("repo", "OrderRepo")}
}

func (or *orderRepo) Create(ctx context.Context, tx *gorm.DB, order *types.Order) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	if err := transaction.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (or *orderRepo) GetByID(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	var result types.Order
	if err := transaction.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (or *orderRepo) Save(ctx context.Context, tx *gorm.DB, order *types.Order) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	return transaction.WithContext(ctx).Omit("Items").Save(order).Error
}

func (or *orderRepo) List(ctx context.Context, tx *gorm.DB, status string, customerID *uuid.UUID, limit, offset int) ([]*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := transaction.WithContext(ctx).Preload("Items")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}

	var results []*types.Order
	if err := q.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (or *orderRepo) FindLatestWithAddress(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.Order, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	var result types.Order
	if err := transaction.WithContext(ctx).
		Where("customer_id = ? AND status <> ? AND delivery_address IS NOT NULL", customerID, types.OrderStatusCanceled).
		Order("created_at DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (or *orderRepo) AddItems(ctx context.Context, tx *gorm.DB, items []*types.OrderItem) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	if len(items) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&items).Error
}

func (or *orderRepo) AppendHistory(ctx context.Context, tx *gorm.DB, entry *types.OrderStatusHistory) error {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}
	return transaction.WithContext(ctx).Create(entry).Error
}

func (or *orderRepo) ListHistory(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]*types.OrderStatusHistory, error) {
	transaction := tx
	if transaction == nil {
		transaction = or.db
	}

	var results []*types.OrderStatusHistory
	if err := transaction.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
