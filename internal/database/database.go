package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/simmer-app/backend/config"
	"github.com/simmer-app/backend/internal/model"
)

// DB bundles the gorm handle used by the stores with a plain sql.DB used for
// health checks and pool settings.
type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// New connects to Postgres and verifies the connection.
func New(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	logger.Info("connecting to database",
		zap.String("host", cfg.DBHost),
		zap.String("port", cfg.DBPort),
		zap.String("user", cfg.DBUser),
	)

	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing gorm: %w", err)
	}

	logger.Info("database connection established")
	return &DB{Gorm: gormDB, SQL: sqlDB}, nil
}

// Migrate creates or updates the schema for all models.
func (db *DB) Migrate() error {
	return db.Gorm.AutoMigrate(
		&model.UserAccount{},
		&model.Unit{},
		&model.Recipe{},
		&model.Ingredient{},
		&model.AuditRecord{},
		&model.AIJob{},
	)
}

// HealthCheck checks if the database is accessible.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.SQL.Close()
}
