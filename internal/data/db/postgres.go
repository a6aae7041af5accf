package db

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/pkg/envutil"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewPostgresService connects with DATABASE_URL or the POSTGRES_* parts
// and enables uuid-ossp, which the model defaults rely on.
func NewPostgresService(baseLog *logger.Logger) (*PostgresService, error) {
	log := baseLog.With("service", "PostgresService")

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		host := envutil.String("POSTGRES_HOST", "localhost")
		port := envutil.String("POSTGRES_PORT", "5432")
		user := envutil.String("POSTGRES_USER", "postgres")
		password := strings.TrimSpace(os.Getenv("POSTGRES_PASSWORD"))
		name := envutil.String("POSTGRES_NAME", "orders")
		sslmode := envutil.String("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			url.QueryEscape(user), url.QueryEscape(password), host, port, name, sslmode)
	}

	log.Info("connecting to postgres")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(envutil.Int("POSTGRES_MAX_OPEN_CONNS", 25))
	sqlDB.SetMaxIdleConns(envutil.Int("POSTGRES_MAX_IDLE_CONNS", 5))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: log}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("running auto migration")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("auto migration failed", "error", err)
		return err
	}
	return nil
}

// AutoMigrate creates or updates every table the backend owns. The test
// harness calls it directly against its own database.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Customer{},
		&types.InboundMessage{},
		&types.OrderDraft{},
		&types.DraftMessage{},
		&types.Order{},
		&types.OrderItem{},
		&types.OrderStatusHistory{},
	)
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
