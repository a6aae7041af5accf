package repos

import (
	"gorm.io/gorm"

	"github.com/mercadomm/orders-backend/internal/data/repos/orders"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type CustomerRepo = orders.CustomerRepo
type InboundMessageRepo = orders.InboundMessageRepo
type DraftRepo = orders.DraftRepo
type DraftMessageRepo = orders.DraftMessageRepo
type OrderRepo = orders.OrderRepo

func NewCustomerRepo(db *gorm.DB, baseLog *logger.Logger) CustomerRepo {
	return orders.NewCustomerRepo(db, baseLog)
}

func NewInboundMessageRepo(db *gorm.DB, baseLog *logger.Logger) InboundMessageRepo {
	return orders.NewInboundMessageRepo(db, baseLog)
}

func NewDraftRepo(db *gorm.DB, baseLog *logger.Logger) DraftRepo {
	return orders.NewDraftRepo(db, baseLog)
}

func NewDraftMessageRepo(db *gorm.DB, baseLog *logger.Logger) DraftMessageRepo {
	return orders.NewDraftMessageRepo(db, baseLog)
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return orders.NewOrderRepo(db, baseLog)
}
