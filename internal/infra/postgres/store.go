// Package postgres is the hosted store: the same repositories as the SQLite
// store, on Postgres through gorm, with goose-managed schema migrations.
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/starpath-app/starpath/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements domain.Store on Postgres.
type Store struct {
	db *gorm.DB
}

var _ domain.Store = (*Store)(nil)

// Open connects to dsn and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	return goose.UpContext(ctx, sqlDB, "migrations")
}

// WithTx runs fn in one gorm transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(g *gorm.DB) error {
		return fn(&tx{db: g})
	})
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
