package handler

import (
	"time"

	"github.com/ogurasousui/hr-api/internal/core/employee"
)

const dateLayout = "2006-01-02"

type createEmployeeRequest struct {
	FirstName  string `json:"fname" binding:"required"`
	LastName   string `json:"lname" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	BirthDate  string `json:"birth_date" binding:"required,isodate"`
	StartDate  string `json:"start_date" binding:"required,isodate"`
	IsActive   *bool  `json:"is_active" binding:"required"`
	Address    string `json:"address" binding:"required"`
	Department string `json:"department" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Salary     *int64 `json:"salary,omitempty" binding:"omitempty,gt=0,lte=10000000"`
}

type createEmployeeResponse struct {
	EmployeeID int64  `json:"employee_id"`
	FirstName  string `json:"fname"`
	LastName   string `json:"lname"`
	Email      string `json:"email"`
	BirthDate  string `json:"birth_date"`
	StartDate  string `json:"start_date"`
	IsActive   bool   `json:"is_active"`
	Address    string `json:"address"`
	Department string `json:"department"`
	Role       string `json:"role"`
	Salary     int64  `json:"salary"`
}

type updateEmployeeRequest struct {
	EmployeeID          int64   `json:"employee_id" binding:"required,gt=0"`
	FirstName           *string `json:"fname"`
	LastName            *string `json:"lname"`
	Email               *string `json:"email" binding:"omitempty,email"`
	BirthDate           *string `json:"birth_date" binding:"omitempty,isodate"`
	StartDate           *string `json:"start_date" binding:"omitempty,isodate"`
	IsActive            *bool   `json:"is_active"`
	Address             *string `json:"address"`
	AddressStartDate    *string `json:"address_start_date" binding:"omitempty,isodate"`
	Role                *string `json:"role"`
	RoleStartDate       *string `json:"role_start_date" binding:"omitempty,isodate"`
	Department          *string `json:"department"`
	DepartmentStartDate *string `json:"department_start_date" binding:"omitempty,isodate"`
	Salary              *int64  `json:"salary" binding:"omitempty,gt=0,lte=10000000"`
}

type employeeResponse struct {
	IsActive      bool   `json:"is_active"`
	EmployeeID    int64  `json:"employee_id"`
	Name          string `json:"name"`
	BirthDate     string `json:"birth_date"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	Department    string `json:"department"`
	Role          string `json:"role"`
	TeamStartDate string `json:"team_start_date"`
	StartDate     string `json:"start_date"`
	Salary        string `json:"salary"`
}

type versionResponse struct {
	VersionID int64  `json:"version_id"`
	Kind      string `json:"kind"`
	IsActive  bool   `json:"is_active"`
	StartDate string `json:"start_date"`
	Value     string `json:"value"`
}

type errorResponse struct {
	ErrorMessage string `json:"error_message"`
}

func toEmployeeResponse(v *employee.View) employeeResponse {
	return employeeResponse{
		IsActive:      v.Active,
		EmployeeID:    v.EmployeeID,
		Name:          v.Name,
		BirthDate:     formatDate(v.BirthDate),
		Email:         v.Email,
		Address:       v.Address,
		Department:    v.Department,
		Role:          v.Role,
		TeamStartDate: formatDate(v.TeamStartDate),
		StartDate:     formatDate(v.StartDate),
		Salary:        v.Salary,
	}
}

func toEmployeeResponses(views []*employee.View) []employeeResponse {
	out := make([]employeeResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toEmployeeResponse(v))
	}
	return out
}

func toVersionResponses(versions []*employee.Version) []versionResponse {
	out := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionResponse{
			VersionID: v.ID,
			Kind:      string(v.Kind),
			IsActive:  v.Active,
			StartDate: formatDate(v.StartDate),
			Value:     v.Display(),
		})
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, employee.ErrInvalidDate
	}
	return t, nil
}

func parseOptionalDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseDate(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
