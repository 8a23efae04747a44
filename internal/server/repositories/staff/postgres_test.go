package staff

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hyoshida/estatesync/internal/common"
	"github.com/hyoshida/estatesync/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const staffCols = "store_id, staff_id, name, role, password_hash, active, created_at"

func staffRows(members ...models.Staff) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"store_id", "staff_id", "name", "role", "password_hash", "active", "created_at"})
	for _, m := range members {
		rows.AddRow(m.StoreID, m.StaffID, m.Name, m.Role, m.PasswordHash, m.Active, m.CreatedAt)
	}
	return rows
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	want := models.Staff{
		StoreID: "store-1", StaffID: "staff-1", Name: "Tanaka",
		Role: "manager", PasswordHash: "$2a$10$hash", Active: true, CreatedAt: time.Now(),
	}
	mock.ExpectQuery(`(?s)SELECT\s+` + staffCols + `\s+FROM\s+staff_auth\s+WHERE\s+store_id\s*=\s*\$1\s+AND\s+staff_id\s*=\s*\$2`).
		WithArgs("store-1", "staff-1").
		WillReturnRows(staffRows(want))

	got, err := repo.Get(context.Background(), "store-1", "staff-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.StaffID != "staff-1" || got.Role != "manager" || !got.Active {
		t.Fatalf("unexpected staff: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+staff_auth`).
		WithArgs("store-1", "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "store-1", "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected common.ErrNotFound, got %v", err)
	}
}

func TestListActive_OrdersByStaffID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := models.Staff{StoreID: "store-1", StaffID: "staff-1", Name: "Abe", Role: "staff", Active: true, CreatedAt: time.Now()}
	b := models.Staff{StoreID: "store-1", StaffID: "staff-2", Name: "Baba", Role: "staff", Active: true, CreatedAt: time.Now()}
	mock.ExpectQuery(`(?s)FROM\s+staff_auth\s+WHERE\s+store_id\s*=\s*\$1\s+AND\s+active\s+ORDER\s+BY\s+staff_id`).
		WithArgs("store-1").
		WillReturnRows(staffRows(a, b))

	got, err := repo.ListActive(context.Background(), "store-1")
	if err != nil {
		t.Fatalf("ListActive error: %v", err)
	}
	if len(got) != 2 || got[0].StaffID != "staff-1" || got[1].StaffID != "staff-2" {
		t.Fatalf("unexpected roster: %+v", got)
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+staff_auth`).
		WithArgs("store-1", "staff-9", "Sato", "staff", "$2a$10$hash", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Staff{
		StoreID: "store-1", StaffID: "staff-9", Name: "Sato",
		Role: "staff", PasswordHash: "$2a$10$hash", Active: true,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}
