package employee

import (
	"errors"
	"fmt"
)

// エラー分類。個別のエラーはいずれかを %w で包みます。
var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrValidation = errors.New("validation failed")
	ErrIntegrity  = errors.New("integrity violation")
	ErrStore      = errors.New("store failure")
)

var (
	ErrEmployeeNotFound      = fmt.Errorf("employee: %w", ErrNotFound)
	ErrNoEmployees           = fmt.Errorf("employee: no employees exist: %w", ErrNotFound)
	ErrActiveVersionNotFound = fmt.Errorf("employee: active version %w", ErrNotFound)
	ErrEmployeeAlreadyExists = fmt.Errorf("employee: already exists: %w", ErrDuplicate)
	ErrMissingActiveVersion  = fmt.Errorf("employee: missing active version: %w", ErrIntegrity)
	ErrVersionConflict       = fmt.Errorf("employee: active version changed concurrently: %w", ErrStore)

	ErrInvalidID         = fmt.Errorf("employee: invalid id: %w", ErrValidation)
	ErrInvalidFirstName  = fmt.Errorf("employee: invalid first name: %w", ErrValidation)
	ErrInvalidLastName   = fmt.Errorf("employee: invalid last name: %w", ErrValidation)
	ErrInvalidEmail      = fmt.Errorf("employee: invalid email: %w", ErrValidation)
	ErrInvalidDate       = fmt.Errorf("employee: invalid date: %w", ErrValidation)
	ErrInvalidAddress    = fmt.Errorf("employee: invalid address: %w", ErrValidation)
	ErrInvalidRole       = fmt.Errorf("employee: invalid role: %w", ErrValidation)
	ErrInvalidDepartment = fmt.Errorf("employee: invalid department: %w", ErrValidation)
	ErrInvalidSalary     = fmt.Errorf("employee: invalid salary: %w", ErrValidation)
	ErrInvalidKind       = fmt.Errorf("employee: invalid kind: %w", ErrValidation)
	ErrNoChanges         = fmt.Errorf("employee: no fields to update: %w", ErrValidation)
)

// NotFoundError は指定 ID の社員が存在しないことを表します。
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("An employee with the id of %d does not exist", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEmployeeNotFound
}

// Operation は StepError を発生させた処理の種類です。
type Operation string

const (
	OpCreate Operation = "importing"
	OpUpdate Operation = "modifying"
)

// Step は作成・更新処理内の個々の書き込み手順です。
type Step string

const (
	StepEmployee   Step = "employee"
	StepAddress    Step = "address"
	StepTitle      Step = "title"
	StepDepartment Step = "department"
	StepSalary     Step = "salary"
)

func stepForKind(kind Kind) Step {
	switch kind {
	case KindAddress:
		return StepAddress
	case KindTitle:
		return StepTitle
	case KindDepartment:
		return StepDepartment
	default:
		return StepSalary
	}
}

// StepError は作成・更新のどの手順で失敗したかを保持します。
type StepError struct {
	Op         Operation
	Step       Step
	EmployeeID int64
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Summary(), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Summary は利用者に返してよい手順単位のメッセージを返します。
func (e *StepError) Summary() string {
	if e.Step == StepEmployee {
		return fmt.Sprintf("Error while %s employee", e.Op)
	}
	return fmt.Sprintf("Error while %s employee %s", e.Op, e.Step)
}
