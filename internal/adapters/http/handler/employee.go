package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ogurasousui/hr-api/internal/core/employee"
	"github.com/ogurasousui/hr-api/internal/platform/logger"
	"go.uber.org/zap"
)

// EmployeeHandler は社員 API の HTTP 実装です。
type EmployeeHandler struct {
	svc    employee.UseCase
	demo   DemoSource
	logger *zap.Logger
}

// NewEmployeeHandler は EmployeeHandler を生成します。demo が nil の場合 static モードは無効です。
func NewEmployeeHandler(svc employee.UseCase, demo DemoSource, l *zap.Logger) *EmployeeHandler {
	RegisterValidators()
	if l == nil {
		l = zap.NewNop()
	}
	return &EmployeeHandler{svc: svc, demo: demo, logger: l.Named("employee.handler")}
}

// Register はルーティングを登録します。
func (h *EmployeeHandler) Register(r gin.IRouter) {
	r.GET("/employees", h.ListEmployees)
	r.GET("/employees/:ids", h.GetEmployees)
	r.GET("/employees/:ids/history/:kind", h.EmployeeHistory)
	r.POST("/employees", h.CreateEmployee)
	r.PATCH("/employees", h.UpdateEmployee)
	r.DELETE("/employees/:ids", h.DeleteEmployee)
}

// ListEmployees は全社員を返します。
func (h *EmployeeHandler) ListEmployees(c *gin.Context) {
	if h.staticRequested(c) {
		h.writeDemo(c, nil)
		return
	}

	views, err := h.svc.ListEmployees(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"employee_array": toEmployeeResponses(views)})
}

// GetEmployees はカンマ区切りで指定された ID の社員を返します。
func (h *EmployeeHandler) GetEmployees(c *gin.Context) {
	ids, err := parseIDs(c.Param("ids"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	if h.staticRequested(c) {
		h.writeDemo(c, ids)
		return
	}

	views, err := h.svc.GetEmployees(c.Request.Context(), employee.GetEmployeesInput{IDs: ids})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"employee_array": toEmployeeResponses(views)})
}

// EmployeeHistory は指定属性の版の履歴を返します。
func (h *EmployeeHandler) EmployeeHistory(c *gin.Context) {
	id, err := parseID(c.Param("ids"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	kind, err := employee.ParseKind(c.Param("kind"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	history, err := h.svc.EmployeeHistory(c.Request.Context(), employee.EmployeeHistoryInput{ID: id, Kind: kind})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": toVersionResponses(history)})
}

// CreateEmployee は社員を作成し、受け付けた内容に採番 ID と給与を加えて返します。
func (h *EmployeeHandler) CreateEmployee(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindingError(c, err)
		return
	}

	birthDate, err := parseDate(req.BirthDate)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	view, err := h.svc.CreateEmployee(c.Request.Context(), employee.CreateEmployeeInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		BirthDate:  birthDate,
		StartDate:  startDate,
		IsActive:   *req.IsActive,
		Address:    req.Address,
		Department: req.Department,
		Role:       req.Role,
		Salary:     req.Salary,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"employee": createEmployeeResponse{
		EmployeeID: view.EmployeeID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		BirthDate:  req.BirthDate,
		StartDate:  formatDate(view.StartDate),
		IsActive:   *req.IsActive,
		Address:    req.Address,
		Department: req.Department,
		Role:       req.Role,
		Salary:     view.SalaryAmount,
	}})
}

// UpdateEmployee は指定されたフィールドだけを更新し、更新前後の社員を返します。
func (h *EmployeeHandler) UpdateEmployee(c *gin.Context) {
	var req updateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeBindingError(c, err)
		return
	}

	in := employee.UpdateEmployeeInput{
		ID:         req.EmployeeID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		IsActive:   req.IsActive,
		Address:    req.Address,
		Role:       req.Role,
		Department: req.Department,
		Salary:     req.Salary,
	}

	dates := []struct {
		raw *string
		dst **time.Time
	}{
		{req.BirthDate, &in.BirthDate},
		{req.StartDate, &in.StartDate},
		{req.AddressStartDate, &in.AddressStartDate},
		{req.RoleStartDate, &in.RoleStartDate},
		{req.DepartmentStartDate, &in.DepartmentStartDate},
	}
	for _, d := range dates {
		parsed, err := parseOptionalDate(d.raw)
		if err != nil {
			h.writeServiceError(c, err)
			return
		}
		*d.dst = parsed
	}

	res, err := h.svc.UpdateEmployee(c.Request.Context(), in)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"old_employee": toEmployeeResponse(res.Previous),
		"new_employee": toEmployeeResponse(res.Current),
	})
}

// DeleteEmployee は社員を削除し、削除前の内容を返します。
func (h *EmployeeHandler) DeleteEmployee(c *gin.Context) {
	id, err := parseID(c.Param("ids"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	deleted, err := h.svc.DeleteEmployee(c.Request.Context(), employee.DeleteEmployeeInput{ID: id})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted_employee": toEmployeeResponse(deleted)})
}

func (h *EmployeeHandler) staticRequested(c *gin.Context) bool {
	raw := c.Query("static")
	if raw == "" {
		return false
	}
	static, err := strconv.ParseBool(raw)
	return err == nil && static
}

// writeDemo は固定データを返します。ids を指定した場合は 1 始まりの位置で要素を選び、
// 固定データの件数を超える ID があれば全件を返します。
func (h *EmployeeHandler) writeDemo(c *gin.Context, ids []int64) {
	if h.demo == nil {
		c.JSON(http.StatusBadRequest, errorResponse{ErrorMessage: "Static data is not configured"})
		return
	}

	all, err := h.demo.Employees()
	if err != nil {
		logger.FromContext(c.Request.Context(), h.logger).Error("load static employees failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{ErrorMessage: "Static data is unavailable"})
		return
	}

	if ids == nil {
		c.JSON(http.StatusOK, gin.H{"employee_array": all})
		return
	}

	picked := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if id > int64(len(all)) {
			// 範囲外の ID を含む場合は固定データ全体を返す
			c.JSON(http.StatusOK, gin.H{"employee_array": all})
			return
		}
		picked = append(picked, all[id-1])
	}
	c.JSON(http.StatusOK, gin.H{"employee_array": picked})
}

func (h *EmployeeHandler) writeBindingError(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context(), h.logger).Debug("request binding failed", zap.Error(err))
	c.JSON(http.StatusBadRequest, errorResponse{ErrorMessage: bindingErrorMessage(err)})
}

func (h *EmployeeHandler) writeServiceError(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context(), h.logger)
	switch {
	case errors.Is(err, employee.ErrValidation), errors.Is(err, employee.ErrNotFound), errors.Is(err, employee.ErrDuplicate):
		log.Info("request rejected", zap.Error(err))
	default:
		log.Error("request failed", zap.Error(err))
	}
	c.JSON(http.StatusBadRequest, errorResponse{ErrorMessage: errorMessage(err)})
}

func parseIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := parseID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, employee.ErrInvalidID
	}
	return id, nil
}
