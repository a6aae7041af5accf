package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mercadomm/orders-backend/internal/domain"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type InboundMessageRepo interface {
	// CreateIfAbsent inserts the message unless its provider id was already
	// seen. It returns the stored row and whether this call inserted it.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, msg *types.InboundMessage) (*types.InboundMessage, bool, error)
	GetByProviderID(ctx context.Context, tx *gorm.DB, providerMessageID string) (*types.InboundMessage, error)
	ListByCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, limit int) ([]*types.InboundMessage, error)
}

type inboundMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInboundMessageRepo(db *gorm.DB, baseLog *logger.Logger) InboundMessageRepo {
	return &inboundMessageRepo{db: db, log: baseLog.With("repo", "InboundMessageRepo")}
}

func (mr *inboundMessageRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, msg *types.InboundMessage) (*types.InboundMessage, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_message_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return msg, true, nil
	}

	var existing types.InboundMessage
	if err := transaction.WithContext(ctx).
		Where("provider_message_id = ?", msg.ProviderMessageID).
		First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (mr *inboundMessageRepo) GetByProviderID(ctx context.Context, tx *gorm.DB, providerMessageID string) (*types.InboundMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}

	var result types.InboundMessage
	if err := transaction.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (mr *inboundMessageRepo) ListByCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, limit int) ([]*types.InboundMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = mr.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []*types.InboundMessage
	if err := transaction.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
