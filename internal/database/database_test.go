package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestMigrate(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer raw.Close()

	mock.ExpectBegin()
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	if err := Wrap(raw).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer raw.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = Wrap(raw).Transaction(context.Background(), func(tx *sql.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Transaction() error = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTruncateQuery(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	if got := truncateQuery(string(long)); len(got) != 203 {
		t.Errorf("len = %d, want 203", len(got))
	}
	if got := truncateQuery("SELECT 1"); got != "SELECT 1" {
		t.Errorf("short query changed: %q", got)
	}
}
