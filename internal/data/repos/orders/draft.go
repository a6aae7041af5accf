package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mercadomm/orders-backend/internal/domain"
	pkgerrors "github.com/mercadomm/orders-backend/internal/pkg/errors"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type DraftRepo interface {
	Create(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft) (*types.OrderDraft, error)
	GetByID(ctx context.Context, tx *gorm.DB, draftID uuid.UUID) (*types.OrderDraft, error)
	// FindOpenByCustomer returns the customer's most recent OPEN draft.
	FindOpenByCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.OrderDraft, error)
	// FindAwaitingReply returns the customer's most recent non-final draft
	// whose aggregate is pinned on a customer answer.
	FindAwaitingReply(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.OrderDraft, error)
	// FindLatestCommitted returns the customer's most recently committed
	// draft, with its order loaded.
	FindLatestCommitted(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.OrderDraft, error)
	// ListDue returns OPEN drafts whose commit deadline is at or before now.
	ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.OrderDraft, error)
	Save(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft) error
	List(ctx context.Context, tx *gorm.DB, status string, customerID *uuid.UUID, limit, offset int) ([]*types.OrderDraft, error)
}

type draftRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftRepo(db *gorm.DB, baseLog *logger.Logger) DraftRepo {
	return &draftRepo{db: db, log: baseLog.With("repo", "DraftRepo")}
}

func (dr *draftRepo) Create(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft) (*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if err := transaction.WithContext(ctx).Create(draft).Error; err != nil {
		return nil, err
	}
	return draft, nil
}

func (dr *draftRepo) GetByID(ctx context.Context, tx *gorm.DB, draftID uuid.UUID) (*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.OrderDraft
	if err := transaction.WithContext(ctx).
		Preload("Order").
		Where("id = ?", draftID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (dr *draftRepo) FindOpenByCustomer(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.OrderDraft
	if err := transaction.WithContext(ctx).
		Preload("Order").
		Where("customer_id = ? AND status = ?", customerID, types.DraftStatusOpen).
		Order("last_message_at DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (dr *draftRepo) FindAwaitingReply(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.OrderDraft
	if err := transaction.WithContext(ctx).
		Preload("Order").
		Where("customer_id = ? AND status IN ?", customerID, []string{types.DraftStatusOpen, types.DraftStatusReadyForReview}).
		Where(datatypes.JSONQuery("aggregated_data").Equals(true, "control", "awaiting_customer_reply")).
		Order("last_message_at DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (dr *draftRepo) FindLatestCommitted(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) (*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var result types.OrderDraft
	if err := transaction.WithContext(ctx).
		Preload("Order").
		Where("customer_id = ? AND status = ?", customerID, types.DraftStatusCommitted).
		Order("committed_at DESC").
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (dr *draftRepo) ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var results []*types.OrderDraft
	if err := transaction.WithContext(ctx).
		Where("status = ? AND commit_deadline_at IS NOT NULL AND commit_deadline_at <= ?", types.DraftStatusOpen, now).
		Order("commit_deadline_at ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *draftRepo) Save(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).Save(draft).Error
}

func (dr *draftRepo) List(ctx context.Context, tx *gorm.DB, status string, customerID *uuid.UUID, limit, offset int) ([]*types.OrderDraft, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := transaction.WithContext(ctx).Preload("Order")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if customerID != nil {
		q = q.Where("customer_id = ?", *customerID)
	}

	var results []*types.OrderDraft
	if err := q.
		Order("last_message_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
