// Package repomanager vends repository implementations bound to a database
// handle, so services can use the same repository inside and outside a
// transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/hyoshida/estatesync/internal/dbx"
	"github.com/hyoshida/estatesync/internal/server/repositories/staff"
	"github.com/hyoshida/estatesync/internal/server/repositories/storedata"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	StoreData(db dbx.DBTX) storedata.Repository
	Staff(db dbx.DBTX) staff.Repository
}
