package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/hr-api/internal/core/employee"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestVersionTable_SQL(t *testing.T) {
	t.Parallel()

	addr := versionTables[employee.KindAddress]
	want := "INSERT INTO employee_addresses (employee_id, is_active, start_date, street_address, city, state, zip) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, employee_id, is_active, start_date, created_at, street_address, city, state, zip"
	if got := addr.insertSQL(); got != want {
		t.Fatalf("unexpected insert SQL:\nwant %s\ngot  %s", want, got)
	}

	salary := versionTables[employee.KindSalary]
	if got := salary.deactivateSQL(); got != "UPDATE employee_salaries SET is_active = FALSE WHERE id = $1 AND is_active" {
		t.Fatalf("unexpected deactivate SQL: %s", got)
	}
}

func TestVersionRepository_FindActive(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, employee_id, is_active, start_date, created_at, street_address, city, state, zip FROM employee_addresses WHERE employee_id = $1 AND is_active LIMIT 1`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "employee_id", "is_active", "start_date", "created_at", "street_address", "city", "state", "zip"}).
			AddRow(int64(10), int64(1), true, start, now, "0200 Main St.", "Springfield", "IL", "62701"))

	v, err := repo.FindActive(context.Background(), 1, employee.KindAddress)
	if err != nil {
		t.Fatalf("FindActive returned error: %v", err)
	}
	if v.ID != 10 || v.Kind != employee.KindAddress || v.Display() != "0200 Main St., Springfield, IL 62701" {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestVersionRepository_FindActive_Missing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM employee_titles WHERE employee_id = $1 AND is_active`)).
		WithArgs(int64(1)).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.FindActive(context.Background(), 1, employee.KindTitle); !errors.Is(err, employee.ErrActiveVersionNotFound) {
		t.Fatalf("expected ErrActiveVersionNotFound, got %v", err)
	}
}

func TestVersionRepository_Insert(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO employee_salaries (employee_id, is_active, start_date, amount)`)).
		WithArgs(int64(1), true, start, int64(91000)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "employee_id", "is_active", "start_date", "created_at", "amount"}).
			AddRow(int64(20), int64(1), true, start, now, int64(91000)))

	v, err := repo.Insert(context.Background(), &employee.Version{
		EmployeeID: 1,
		Kind:       employee.KindSalary,
		Active:     true,
		StartDate:  start.Add(9 * time.Hour),
		Amount:     91000,
	})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if v.ID != 20 || v.Amount != 91000 {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestVersionRepository_Insert_SecondActiveVersion(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO employee_titles`)).
		WithArgs(int64(1), true, pgxmock.AnyArg(), "Lead").
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "employee_titles_active_key"})

	_, err = repo.Insert(context.Background(), &employee.Version{EmployeeID: 1, Kind: employee.KindTitle, Active: true, Name: "Lead"})
	if !errors.Is(err, employee.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVersionRepository_Deactivate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)
	query := regexp.QuoteMeta(`UPDATE employee_departments SET is_active = FALSE WHERE id = $1 AND is_active`)

	mock.ExpectExec(query).WithArgs(int64(5)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(query).WithArgs(int64(5)).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Deactivate(context.Background(), employee.KindDepartment, 5); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}
	if err := repo.Deactivate(context.Background(), employee.KindDepartment, 5); !errors.Is(err, employee.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict on second deactivate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestVersionRepository_UpdateStartDate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)
	start := time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE employee_titles SET start_date = $1 WHERE id = $2 AND is_active RETURNING`)).
		WithArgs(start, int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "employee_id", "is_active", "start_date", "created_at", "name"}).
			AddRow(int64(3), int64(1), true, start, now, "Engineer"))

	v, err := repo.UpdateStartDate(context.Background(), employee.KindTitle, 3, start)
	if err != nil {
		t.Fatalf("UpdateStartDate returned error: %v", err)
	}
	if !v.StartDate.Equal(start) || v.Name != "Engineer" {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestVersionRepository_ListByEmployee(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewVersionRepository(mock)
	d1 := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM employee_titles WHERE employee_id = $1 ORDER BY id`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "employee_id", "is_active", "start_date", "created_at", "name"}).
			AddRow(int64(1), int64(1), false, d1, now, "Engineer").
			AddRow(int64(2), int64(1), true, d2, now, "Senior Engineer"))

	history, err := repo.ListByEmployee(context.Background(), 1, employee.KindTitle)
	if err != nil {
		t.Fatalf("ListByEmployee returned error: %v", err)
	}
	if len(history) != 2 || history[0].Active || !history[1].Active {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestVersionRepository_UnknownKind(t *testing.T) {
	t.Parallel()

	repo := NewVersionRepository(nil)
	if _, err := repo.FindActive(context.Background(), 1, employee.Kind("badge")); !errors.Is(err, employee.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestTranslateVersionPgError(t *testing.T) {
	t.Parallel()

	fkErr := &pgconn.PgError{Code: foreignKeyViolationCode}
	if !errors.Is(translateVersionPgError(fkErr), employee.ErrEmployeeNotFound) {
		t.Fatalf("expected fk violation to map to ErrEmployeeNotFound")
	}

	other := errors.New("timeout")
	if !errors.Is(translateVersionPgError(other), employee.ErrStore) {
		t.Fatalf("expected unknown errors to map to ErrStore")
	}
}
