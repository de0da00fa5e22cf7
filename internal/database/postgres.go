package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/saferoute/service-navigation/internal/config"
)

const (
	defaultMaxRetries = 30
	retryInterval     = 2 * time.Second
)

// Connect opens a PostgreSQL connection, retrying while the database starts.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	return ConnectDSN(ctx, cfg.DSN(), defaultMaxRetries, log)
}

// ConnectDSN opens a connection for an explicit DSN.
func ConnectDSN(ctx context.Context, dsn string, maxRetries int, log *zap.Logger) (*gorm.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err := open(ctx, dsn)
		if err == nil {
			log.Info("connected to database", zap.Int("attempt", attempt))
			return db, nil
		}
		lastErr = err

		log.Warn("waiting for database",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}

func open(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
