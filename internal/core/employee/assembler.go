package employee

import (
	"context"
	"errors"
	"fmt"
)

// Assembler は社員と有効な属性を読み取りモデルにまとめます。
type Assembler struct {
	versions *VersionStore
}

// NewAssembler は Assembler を生成します。
func NewAssembler(versions *VersionStore) *Assembler {
	return &Assembler{versions: versions}
}

// Assemble は 4 種類の有効な版を取得して View を組み立てます。
// いずれかが欠けている場合は ErrMissingActiveVersion を返します。
func (a *Assembler) Assemble(ctx context.Context, emp *Employee) (*View, error) {
	active := make(map[Kind]*Version, len(Kinds))
	for _, kind := range Kinds {
		v, err := a.versions.Active(ctx, emp.ID, kind)
		if err != nil {
			if errors.Is(err, ErrActiveVersionNotFound) {
				return nil, fmt.Errorf("employee %d %s: %w", emp.ID, kind, ErrMissingActiveVersion)
			}
			return nil, err
		}
		active[kind] = v
	}

	address := active[KindAddress]
	title := active[KindTitle]
	department := active[KindDepartment]
	salary := active[KindSalary]

	return &View{
		EmployeeID:       emp.ID,
		Active:           emp.Active,
		FirstName:        emp.FirstName,
		LastName:         emp.LastName,
		Name:             emp.FullName(),
		Email:            emp.Email,
		BirthDate:        emp.BirthDate,
		StartDate:        emp.StartDate,
		Address:          address.Display(),
		AddressStartDate: address.StartDate,
		Department:       department.Display(),
		TeamStartDate:    department.StartDate,
		Role:             title.Display(),
		RoleStartDate:    title.StartDate,
		Salary:           salary.Display(),
		SalaryAmount:     salary.Amount,
		SalaryStartDate:  salary.StartDate,
	}, nil
}
