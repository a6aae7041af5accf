package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type DraftMessageRepo interface {
	// CreateIfAbsent links a message to its draft. The unique index on
	// inbound_message_id makes a replay a no-op; the returned bool reports
	// whether this call created the link.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, link *types.DraftMessage) (bool, error)
	ListByDraft(ctx context.Context, tx *gorm.DB, draftID uuid.UUID) ([]*types.DraftMessage, error)
	NextSequence(ctx context.Context, tx *gorm.DB, draftID uuid.UUID) (int, error)
}

type draftMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDraftMessageRepo(db *gorm.DB, baseLog *logger.Logger) DraftMessageRepo {
	return &draftMessageRepo{db: db, log: baseLog.With("repo", "DraftMessageRepo")}
}

func (dr *draftMessageRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, link *types.DraftMessage) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "inbound_message_id"}},
			DoNothing: true,
		}).
		Create(link)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (dr *draftMessageRepo) ListByDraft(ctx context.Context, tx *gorm.DB, draftID uuid.UUID) ([]*types.DraftMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var results []*types.DraftMessage
	if err := transaction.WithContext(ctx).
		Where("order_draft_id = ?", draftID).
		Order("sequence ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (dr *draftMessageRepo) NextSequence(ctx context.Context, tx *gorm.DB, draftID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}

	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.DraftMessage{}).
		Where("order_draft_id = ?", draftID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}
