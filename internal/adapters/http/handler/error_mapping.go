package handler

import (
	"errors"

	"github.com/ogurasousui/hr-api/internal/core/employee"
)

var validationMessages = []struct {
	err error
	msg string
}{
	{employee.ErrInvalidID, "Employee id must be a positive integer"},
	{employee.ErrInvalidFirstName, "First name is required"},
	{employee.ErrInvalidLastName, "Last name is required"},
	{employee.ErrInvalidEmail, "Email address is not valid"},
	{employee.ErrInvalidDate, "Dates must be in YYYY-MM-DD format"},
	{employee.ErrInvalidAddress, "Address must look like '<street>, <city>, <state> <zip>'"},
	{employee.ErrInvalidRole, "Role is required"},
	{employee.ErrInvalidDepartment, "Department is required"},
	{employee.ErrInvalidSalary, "Salary must be a positive amount"},
	{employee.ErrInvalidKind, "History kind must be one of address, title, department, salary"},
	{employee.ErrNoChanges, "No fields to update were supplied"},
}

// errorMessage はユースケースのエラーを利用者に返すメッセージへ変換します。
// ストア由来のエラー詳細は返さず、失敗した手順のみを伝えます。
func errorMessage(err error) string {
	var (
		notFound *employee.NotFoundError
		step     *employee.StepError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, employee.ErrNoEmployees):
		return "No employees exist in the system"
	case errors.Is(err, employee.ErrDuplicate):
		return "An employee with the same name, email, birth date and start date already exists"
	case errors.Is(err, employee.ErrValidation):
		for _, m := range validationMessages {
			if errors.Is(err, m.err) {
				return m.msg
			}
		}
		return "Request is not valid"
	case errors.As(err, &step):
		return step.Summary()
	case errors.Is(err, employee.ErrIntegrity):
		return "Employee record is incomplete"
	default:
		return "Unexpected error while processing the request"
	}
}
