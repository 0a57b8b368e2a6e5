package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/hr-api/internal/core/employee"
	pgdb "github.com/ogurasousui/hr-api/internal/platform/db/postgres"
)

// versionTable は属性ごとの履歴テーブルとその固有カラムです。
type versionTable struct {
	table   string
	payload []string
}

var versionTables = map[employee.Kind]versionTable{
	employee.KindAddress:    {table: "employee_addresses", payload: []string{"street_address", "city", "state", "zip"}},
	employee.KindTitle:      {table: "employee_titles", payload: []string{"name"}},
	employee.KindDepartment: {table: "employee_departments", payload: []string{"name"}},
	employee.KindSalary:     {table: "employee_salaries", payload: []string{"amount"}},
}

func (t versionTable) columns() string {
	cols := append([]string{"id", "employee_id", "is_active", "start_date", "created_at"}, t.payload...)
	return strings.Join(cols, ", ")
}

func (t versionTable) findActiveSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE employee_id = $1 AND is_active LIMIT 1", t.columns(), t.table)
}

func (t versionTable) insertSQL() string {
	cols := append([]string{"employee_id", "is_active", "start_date"}, t.payload...)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), t.columns())
}

func (t versionTable) deactivateSQL() string {
	return fmt.Sprintf("UPDATE %s SET is_active = FALSE WHERE id = $1 AND is_active", t.table)
}

func (t versionTable) updateStartDateSQL() string {
	return fmt.Sprintf("UPDATE %s SET start_date = $1 WHERE id = $2 AND is_active RETURNING %s", t.table, t.columns())
}

func (t versionTable) listSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE employee_id = $1 ORDER BY id", t.columns(), t.table)
}

// VersionRepository は属性の版を PostgreSQL に永続化します。
type VersionRepository struct {
	pool pgdb.Queryer
}

// NewVersionRepository は VersionRepository を生成します。
func NewVersionRepository(pool pgdb.Queryer) *VersionRepository {
	return &VersionRepository{pool: pool}
}

// FindActive は有効な版を取得します。
func (r *VersionRepository) FindActive(ctx context.Context, employeeID int64, kind employee.Kind) (*employee.Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	v, err := scanVersion(kind, exec.QueryRow(ctx, t.findActiveSQL(), employeeID))
	if err != nil {
		return nil, translateVersionPgError(err)
	}
	return v, nil
}

// Insert は版を登録します。
func (r *VersionRepository) Insert(ctx context.Context, v *employee.Version) (*employee.Version, error) {
	t, err := tableFor(v.Kind)
	if err != nil {
		return nil, err
	}

	args := append([]any{v.EmployeeID, v.Active, toDate(v.StartDate)}, payloadArgs(v)...)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	inserted, err := scanVersion(v.Kind, exec.QueryRow(ctx, t.insertSQL(), args...))
	if err != nil {
		return nil, translateVersionPgError(err)
	}
	return inserted, nil
}

// Deactivate は有効な版を無効化します。対象が既に無効であれば ErrVersionConflict を返します。
func (r *VersionRepository) Deactivate(ctx context.Context, kind employee.Kind, versionID int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, t.deactivateSQL(), versionID)
	if err != nil {
		return translateVersionPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return employee.ErrVersionConflict
	}
	return nil
}

// UpdateStartDate は有効な版の開始日を変更します。
func (r *VersionRepository) UpdateStartDate(ctx context.Context, kind employee.Kind, versionID int64, startDate time.Time) (*employee.Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	updated, err := scanVersion(kind, exec.QueryRow(ctx, t.updateStartDateSQL(), toDate(startDate), versionID))
	if err != nil {
		return nil, translateVersionPgError(err)
	}
	return updated, nil
}

// ListByEmployee は社員の指定属性の全ての版を古い順に取得します。
func (r *VersionRepository) ListByEmployee(ctx context.Context, employeeID int64, kind employee.Kind) ([]*employee.Version, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, t.listSQL(), employeeID)
	if err != nil {
		return nil, translateVersionPgError(err)
	}
	defer rows.Close()

	versions := make([]*employee.Version, 0)
	for rows.Next() {
		v, err := scanVersion(kind, rows)
		if err != nil {
			return nil, translateVersionPgError(err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, translateVersionPgError(err)
	}
	return versions, nil
}

func tableFor(kind employee.Kind) (versionTable, error) {
	t, ok := versionTables[kind]
	if !ok {
		return versionTable{}, fmt.Errorf("%w: %q", employee.ErrInvalidKind, kind)
	}
	return t, nil
}

func payloadArgs(v *employee.Version) []any {
	switch v.Kind {
	case employee.KindAddress:
		return []any{v.Address.Street, v.Address.City, v.Address.State, v.Address.Zip}
	case employee.KindSalary:
		return []any{v.Amount}
	default:
		return []any{v.Name}
	}
}

func scanVersion(kind employee.Kind, row pgx.Row) (*employee.Version, error) {
	v := employee.Version{Kind: kind}
	dest := []any{&v.ID, &v.EmployeeID, &v.Active, &v.StartDate, &v.CreatedAt}

	switch kind {
	case employee.KindAddress:
		dest = append(dest, &v.Address.Street, &v.Address.City, &v.Address.State, &v.Address.Zip)
	case employee.KindSalary:
		dest = append(dest, &v.Amount)
	default:
		dest = append(dest, &v.Name)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	v.StartDate = toDate(v.StartDate)
	return &v, nil
}

func translateVersionPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrActiveVersionNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			// 部分一意インデックス (employee_id) WHERE is_active への違反。
			return employee.ErrVersionConflict
		case foreignKeyViolationCode:
			return employee.ErrEmployeeNotFound
		case checkViolationCode:
			return fmt.Errorf("%w: %s", employee.ErrValidation, pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%w: %w", employee.ErrStore, err)
}
