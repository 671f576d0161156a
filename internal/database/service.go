/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db     *sqlx.DB
	driver string
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
		// immediate transactions take the write lock up front so concurrent credits queue on busy_timeout
		dsn = cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate"
	case DriverPostgres:
		zap.L().Info("Opening Postgres database")
		dsn = cfg.Path
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, driver: driver}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully", zap.String("driver", driver))
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) initSchema(ctx context.Context) error {
	timestampType := "TIMESTAMP"
	if s.driver == DriverPostgres {
		timestampType = "TIMESTAMPTZ"
	}
	_, err := s.db.ExecContext(ctx, strings.ReplaceAll(schema, "{{timestamp}}", timestampType))
	return err
}

// withTx runs fn inside a database transaction and commits when fn returns nil.
func (s *Service) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: commit rejected by unique constraint", store.ErrDuplicateTransaction)
		}
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", store.ErrConcurrentModification, err)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) rebind(query string) string {
	return s.db.Rebind(query)
}

func now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
