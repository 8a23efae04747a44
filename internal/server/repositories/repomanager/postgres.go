package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hyoshida/estatesync/internal/dbx"
	"github.com/hyoshida/estatesync/internal/server/migrations"
	"github.com/hyoshida/estatesync/internal/server/repositories/staff"
	"github.com/hyoshida/estatesync/internal/server/repositories/storedata"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// StoreData returns a storedata.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) StoreData(db dbx.DBTX) storedata.Repository {
	return storedata.NewPostgresRepository(db)
}

// Staff returns a staff.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Staff(db dbx.DBTX) staff.Repository {
	return staff.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
