package employee

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/hr-api/internal/platform/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*View, error)                   { return nil, nil }
func (noopCache) Generation(context.Context, int64) (int64, error)            { return 0, nil }
func (noopCache) SetIfGeneration(context.Context, *View, int64) (bool, error) { return false, nil }
func (noopCache) Invalidate(context.Context, ...int64) error                  { return nil }

const (
	maxNameLength  = 100
	maxLabelLength = 100

	minRandomSalary  = 50000
	salaryStep       = 1000
	randomSalarySpan = 50
)

// SalaryPicker は給与未指定時の初期給与を決定します。
type SalaryPicker func() int64

func randomSalary() int64 {
	return int64(minRandomSalary + rand.IntN(randomSalarySpan)*salaryStep)
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*View, error)
	GetEmployees(ctx context.Context, in GetEmployeesInput) ([]*View, error)
	ListEmployees(ctx context.Context) ([]*View, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*UpdateEmployeeResult, error)
	DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) (*View, error)
	EmployeeHistory(ctx context.Context, in EmployeeHistoryInput) ([]*Version, error)
}

// Service は社員の作成・更新・削除を、属性の版管理と合わせて実行します。
type Service struct {
	repo      Repository
	versions  *VersionStore
	assembler *Assembler
	clock     Clock
	tx        TransactionManager
	cache     ViewCache
	salary    SalaryPicker
	logger    *zap.Logger
	group     singleflight.Group
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithCache はビューキャッシュを設定します。
func WithCache(cache ViewCache) Option {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("employee.service")
		}
	}
}

// WithSalaryPicker は初期給与の決定方法を差し替えます。
func WithSalaryPicker(p SalaryPicker) Option {
	return func(s *Service) {
		if p != nil {
			s.salary = p
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, versions VersionRepository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	store := NewVersionStore(versions)
	s := &Service{
		repo:      repo,
		versions:  store,
		assembler: NewAssembler(store),
		clock:     clock,
		tx:        tx,
		cache:     noopCache{},
		salary:    randomSalary,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEmployeeInput は社員作成時の入力です。
type CreateEmployeeInput struct {
	FirstName  string
	LastName   string
	Email      string
	BirthDate  time.Time
	StartDate  time.Time
	IsActive   bool
	Address    string
	Department string
	Role       string
	Salary     *int64
}

// UpdateEmployeeInput は社員更新時の入力です。nil のフィールドは変更しません。
type UpdateEmployeeInput struct {
	ID                  int64
	FirstName           *string
	LastName            *string
	Email               *string
	BirthDate           *time.Time
	StartDate           *time.Time
	IsActive            *bool
	Address             *string
	AddressStartDate    *time.Time
	Role                *string
	RoleStartDate       *time.Time
	Department          *string
	DepartmentStartDate *time.Time
	Salary              *int64
}

// UpdateEmployeeResult は更新前後のビューです。
type UpdateEmployeeResult struct {
	Previous *View
	Current  *View
}

// DeleteEmployeeInput は社員削除時の入力です。
type DeleteEmployeeInput struct {
	ID int64
}

// GetEmployeesInput は ID 指定での取得時の入力です。
type GetEmployeesInput struct {
	IDs []int64
}

// EmployeeHistoryInput は属性履歴の取得時の入力です。
type EmployeeHistoryInput struct {
	ID   int64
	Kind Kind
}

// versionChange は履歴属性 1 種類分の変更要求です。
type versionChange struct {
	kind      Kind
	next      *Version
	startDate *time.Time
}

func (c versionChange) requested() bool {
	return c.next != nil || c.startDate != nil
}

// CreateEmployee は社員と 4 種類の属性の初版を 1 つのトランザクションで登録します。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*View, error) {
	log := logger.FromContext(ctx, s.logger)

	first, err := normalizeName(in.FirstName, ErrInvalidFirstName)
	if err != nil {
		return nil, err
	}
	last, err := normalizeName(in.LastName, ErrInvalidLastName)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.BirthDate.IsZero() || in.StartDate.IsZero() {
		return nil, ErrInvalidDate
	}
	address, err := ParseAddress(in.Address)
	if err != nil {
		return nil, err
	}
	department, err := normalizeLabel(in.Department, ErrInvalidDepartment)
	if err != nil {
		return nil, err
	}
	role, err := normalizeLabel(in.Role, ErrInvalidRole)
	if err != nil {
		return nil, err
	}

	var amount int64
	if in.Salary != nil {
		if !validSalary(*in.Salary) {
			return nil, ErrInvalidSalary
		}
		amount = *in.Salary
	} else {
		amount = s.salary()
	}

	now := s.clock.Now()
	today := dateOf(now)
	startDate := dateOf(in.StartDate)
	if in.IsActive && startDate.After(today) {
		log.Info("active employee start date moved to today",
			zap.String("submitted_start_date", startDate.Format(time.DateOnly)),
			zap.String("start_date", today.Format(time.DateOnly)),
		)
		startDate = today
	}

	emp := &Employee{
		FirstName: first,
		LastName:  last,
		Email:     email,
		BirthDate: dateOf(in.BirthDate),
		StartDate: startDate,
		Active:    in.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var view *View
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureNotDuplicate(txCtx, emp); err != nil {
			return err
		}

		created, err := s.repo.Create(txCtx, emp)
		if err != nil {
			return &StepError{Op: OpCreate, Step: StepEmployee, Err: err}
		}

		initial := []Version{
			{Kind: KindAddress, Address: address},
			{Kind: KindDepartment, Name: department},
			{Kind: KindTitle, Name: role},
			{Kind: KindSalary, Amount: amount},
		}
		for _, v := range initial {
			v.EmployeeID = created.ID
			v.StartDate = startDate
			if _, err := s.versions.Open(txCtx, v); err != nil {
				return &StepError{Op: OpCreate, Step: stepForKind(v.Kind), EmployeeID: created.ID, Err: err}
			}
		}

		assembled, err := s.assembler.Assemble(txCtx, created)
		if err != nil {
			return err
		}
		view = assembled
		return nil
	}); err != nil {
		log.Error("create employee failed",
			zap.String("first_name", first),
			zap.String("last_name", last),
			zap.String("email", email),
			zap.String("start_date", startDate.Format(time.DateOnly)),
			zap.Error(err),
		)
		return nil, err
	}

	log.Info("employee created",
		zap.Int64("employee_id", view.EmployeeID),
		zap.String("name", view.Name),
		zap.Int64("salary", view.SalaryAmount),
	)
	return view, nil
}

// UpdateEmployee は基本情報をその場で更新し、履歴属性は版を切り替えて更新します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*UpdateEmployeeResult, error) {
	log := logger.FromContext(ctx, s.logger).With(zap.Int64("employee_id", in.ID))

	if in.ID <= 0 {
		return nil, ErrInvalidID
	}

	changes, err := s.versionChanges(in)
	if err != nil {
		return nil, err
	}

	var (
		firstName, lastName, email *string
	)
	if in.FirstName != nil {
		v, err := normalizeName(*in.FirstName, ErrInvalidFirstName)
		if err != nil {
			return nil, err
		}
		firstName = &v
	}
	if in.LastName != nil {
		v, err := normalizeName(*in.LastName, ErrInvalidLastName)
		if err != nil {
			return nil, err
		}
		lastName = &v
	}
	if in.Email != nil {
		v, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		email = &v
	}
	if (in.BirthDate != nil && in.BirthDate.IsZero()) || (in.StartDate != nil && in.StartDate.IsZero()) {
		return nil, ErrInvalidDate
	}

	baseChanged := firstName != nil || lastName != nil || email != nil ||
		in.BirthDate != nil || in.StartDate != nil || in.IsActive != nil

	anyVersion := false
	for _, c := range changes {
		anyVersion = anyVersion || c.requested()
	}
	if !baseChanged && !anyVersion {
		if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
			_, err := s.findEmployee(txCtx, in.ID)
			return err
		}); err != nil {
			return nil, err
		}
		return nil, ErrNoChanges
	}

	now := s.clock.Now()
	today := dateOf(now)

	result := &UpdateEmployeeResult{}
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.findEmployee(txCtx, in.ID)
		if err != nil {
			return err
		}

		previous, err := s.assembler.Assemble(txCtx, existing)
		if err != nil {
			return err
		}
		result.Previous = previous

		if baseChanged {
			if firstName != nil {
				existing.FirstName = *firstName
			}
			if lastName != nil {
				existing.LastName = *lastName
			}
			if email != nil {
				existing.Email = *email
			}
			if in.BirthDate != nil {
				existing.BirthDate = dateOf(*in.BirthDate)
			}
			if in.StartDate != nil {
				existing.StartDate = dateOf(*in.StartDate)
			}
			if in.IsActive != nil {
				existing.Active = *in.IsActive
			}
			existing.UpdatedAt = now

			updated, err := s.repo.Update(txCtx, existing)
			if err != nil {
				return &StepError{Op: OpUpdate, Step: StepEmployee, EmployeeID: in.ID, Err: err}
			}
			existing = updated
		}

		for _, c := range changes {
			if !c.requested() {
				continue
			}
			if err := s.applyVersionChange(txCtx, existing.ID, c, today); err != nil {
				return &StepError{Op: OpUpdate, Step: stepForKind(c.kind), EmployeeID: in.ID, Err: err}
			}
		}

		current, err := s.assembler.Assemble(txCtx, existing)
		if err != nil {
			return err
		}
		result.Current = current
		return nil
	}); err != nil {
		log.Error("update employee failed", append(updateFields(in), zap.Error(err))...)
		return nil, err
	}

	s.invalidate(ctx, in.ID)

	log.Info("employee updated",
		zap.Any("old_employee", result.Previous),
		zap.Any("new_employee", result.Current),
	)
	return result, nil
}

// DeleteEmployee は社員を削除します。属性の履歴も合わせて削除され、削除前のビューを返します。
func (s *Service) DeleteEmployee(ctx context.Context, in DeleteEmployeeInput) (*View, error) {
	log := logger.FromContext(ctx, s.logger).With(zap.Int64("employee_id", in.ID))

	if in.ID <= 0 {
		return nil, ErrInvalidID
	}

	var snapshot *View
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		view, err := s.loadView(txCtx, in.ID)
		if err != nil {
			return err
		}

		if err := s.repo.Delete(txCtx, in.ID); err != nil {
			if errors.Is(err, ErrEmployeeNotFound) {
				return &NotFoundError{ID: in.ID}
			}
			return err
		}
		snapshot = view
		return nil
	}); err != nil {
		log.Error("delete employee failed", zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, in.ID)

	log.Info("employee deleted", zap.Any("deleted_employee", snapshot))
	return snapshot, nil
}

// GetEmployees は指定 ID の社員を順に返します。1 件でも存在しなければ失敗します。
func (s *Service) GetEmployees(ctx context.Context, in GetEmployeesInput) ([]*View, error) {
	if len(in.IDs) == 0 {
		return nil, ErrInvalidID
	}
	for _, id := range in.IDs {
		if id <= 0 {
			return nil, ErrInvalidID
		}
	}

	views := make([]*View, 0, len(in.IDs))
	for _, id := range in.IDs {
		view, err := s.cachedView(ctx, id)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// ListEmployees は全社員のビューを返します。社員が 1 人もいなければ ErrNoEmployees を返します。
func (s *Service) ListEmployees(ctx context.Context) ([]*View, error) {
	var views []*View
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		employees, err := s.repo.List(txCtx)
		if err != nil {
			return err
		}
		if len(employees) == 0 {
			return ErrNoEmployees
		}

		views = make([]*View, 0, len(employees))
		for _, emp := range employees {
			view, err := s.assembler.Assemble(txCtx, emp)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	}); err != nil {
		if !errors.Is(err, ErrNoEmployees) {
			logger.FromContext(ctx, s.logger).Error("list employees failed", zap.Error(err))
		}
		return nil, err
	}
	return views, nil
}

// EmployeeHistory は指定属性の全ての版を古い順に返します。
func (s *Service) EmployeeHistory(ctx context.Context, in EmployeeHistoryInput) ([]*Version, error) {
	if in.ID <= 0 {
		return nil, ErrInvalidID
	}
	if _, err := ParseKind(string(in.Kind)); err != nil {
		return nil, err
	}

	var history []*Version
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		if _, err := s.findEmployee(txCtx, in.ID); err != nil {
			return err
		}
		versions, err := s.versions.History(txCtx, in.ID, in.Kind)
		if err != nil {
			return err
		}
		history = versions
		return nil
	}); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Service) versionChanges(in UpdateEmployeeInput) ([]versionChange, error) {
	address := versionChange{kind: KindAddress, startDate: in.AddressStartDate}
	if in.Address != nil {
		parsed, err := ParseAddress(*in.Address)
		if err != nil {
			return nil, err
		}
		address.next = &Version{Address: parsed}
	}

	title := versionChange{kind: KindTitle, startDate: in.RoleStartDate}
	if in.Role != nil {
		role, err := normalizeLabel(*in.Role, ErrInvalidRole)
		if err != nil {
			return nil, err
		}
		title.next = &Version{Name: role}
	}

	department := versionChange{kind: KindDepartment, startDate: in.DepartmentStartDate}
	if in.Department != nil {
		name, err := normalizeLabel(*in.Department, ErrInvalidDepartment)
		if err != nil {
			return nil, err
		}
		department.next = &Version{Name: name}
	}

	salary := versionChange{kind: KindSalary}
	if in.Salary != nil {
		if !validSalary(*in.Salary) {
			return nil, ErrInvalidSalary
		}
		salary.next = &Version{Amount: *in.Salary}
	}

	for _, c := range []versionChange{address, title, department} {
		if c.startDate != nil && c.startDate.IsZero() {
			return nil, ErrInvalidDate
		}
	}

	return []versionChange{address, title, department, salary}, nil
}

// applyVersionChange は開始日のみの変更なら有効な版の開始日を書き換え、
// 値の変更を含む場合は現在の版を無効化して新しい版を登録します。
func (s *Service) applyVersionChange(ctx context.Context, employeeID int64, c versionChange, today time.Time) error {
	current, err := s.versions.Active(ctx, employeeID, c.kind)
	if err != nil {
		return err
	}

	if c.next == nil {
		_, err := s.versions.Reschedule(ctx, current, *c.startDate)
		return err
	}

	next := *c.next
	next.StartDate = today
	if c.startDate != nil {
		next.StartDate = *c.startDate
	}
	_, err = s.versions.RetireAndReplace(ctx, current, next)
	return err
}

func (s *Service) ensureNotDuplicate(ctx context.Context, emp *Employee) error {
	found, err := s.repo.FindByIdentity(ctx, Identity{
		FirstName: emp.FirstName,
		LastName:  emp.LastName,
		Email:     emp.Email,
		BirthDate: emp.BirthDate,
		StartDate: emp.StartDate,
	})
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return &StepError{Op: OpCreate, Step: StepEmployee, Err: err}
	}
	if found != nil {
		return ErrEmployeeAlreadyExists
	}
	return nil
}

func (s *Service) findEmployee(ctx context.Context, id int64) (*Employee, error) {
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}
	return emp, nil
}

func (s *Service) loadView(ctx context.Context, id int64) (*View, error) {
	var view *View
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		emp, err := s.findEmployee(txCtx, id)
		if err != nil {
			return err
		}
		assembled, err := s.assembler.Assemble(txCtx, emp)
		if err != nil {
			return err
		}
		view = assembled
		return nil
	})
	return view, err
}

// cachedView はキャッシュを参照し、未登録なら同一 ID・同一世代の読み込みを 1 回にまとめて取得します。
// 世代番号は読み込み前に取得し、その間に更新・削除があった場合は古いビューを保存しません。
func (s *Service) cachedView(ctx context.Context, id int64) (*View, error) {
	log := logger.FromContext(ctx, s.logger).With(zap.Int64("employee_id", id))

	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		log.Warn("employee view cache get failed", zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	gen, genErr := s.cache.Generation(ctx, id)
	if genErr != nil {
		log.Warn("employee view cache generation failed", zap.Error(genErr))
	}

	key := strconv.FormatInt(id, 10) + ":" + strconv.FormatInt(gen, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		view, err := s.loadView(ctx, id)
		if err != nil {
			return nil, err
		}
		if genErr != nil {
			return view, nil
		}
		stored, err := s.cache.SetIfGeneration(ctx, view, gen)
		switch {
		case err != nil:
			log.Warn("employee view cache set failed", zap.Error(err))
		case !stored:
			log.Debug("employee view changed while loading, cache write skipped", zap.Int64("generation", gen))
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		logger.FromContext(ctx, s.logger).Warn("employee view cache invalidation failed",
			zap.Int64s("employee_ids", ids),
			zap.Error(err),
		)
	}
}

func updateFields(in UpdateEmployeeInput) []zap.Field {
	fields := make([]zap.Field, 0, 8)
	if in.FirstName != nil {
		fields = append(fields, zap.String("first_name", *in.FirstName))
	}
	if in.LastName != nil {
		fields = append(fields, zap.String("last_name", *in.LastName))
	}
	if in.Email != nil {
		fields = append(fields, zap.String("email", *in.Email))
	}
	if in.Address != nil {
		fields = append(fields, zap.String("address", *in.Address))
	}
	if in.Role != nil {
		fields = append(fields, zap.String("role", *in.Role))
	}
	if in.Department != nil {
		fields = append(fields, zap.String("department", *in.Department))
	}
	if in.Salary != nil {
		fields = append(fields, zap.Int64("salary", *in.Salary))
	}
	return fields
}

func normalizeName(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxNameLength {
		return "", invalid
	}
	return trimmed, nil
}

func normalizeLabel(raw string, invalid error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxLabelLength {
		return "", invalid
	}
	return trimmed, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, trimmed)
	}

	return strings.ToLower(addr.Address), nil
}

// dateOf は時刻を UTC の日付に切り詰めます。
func dateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
