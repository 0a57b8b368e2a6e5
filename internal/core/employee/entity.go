package employee

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
)

// Employee は社員の基本情報です。履歴管理の対象外で、更新はその場で行われます。
type Employee struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	BirthDate time.Time
	StartDate time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName は表示用の氏名を返します。
func (e *Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Identity は重複判定に用いる社員の識別情報です。
type Identity struct {
	FirstName string
	LastName  string
	Email     string
	BirthDate time.Time
	StartDate time.Time
}

// Kind は履歴管理される属性の種類です。
type Kind string

const (
	KindAddress    Kind = "address"
	KindTitle      Kind = "title"
	KindDepartment Kind = "department"
	KindSalary     Kind = "salary"
)

// MaxSalary は受け付ける年額給与 (ドル単位) の上限です。
const MaxSalary int64 = 10_000_000

// validSalary は給与が 1 以上 MaxSalary 以下かを返します。
func validSalary(amount int64) bool {
	return amount > 0 && amount <= MaxSalary
}

// Kinds は社員が必ず 1 件ずつ有効な版を持つ属性の一覧です。
var Kinds = []Kind{KindAddress, KindTitle, KindDepartment, KindSalary}

// ParseKind は文字列を Kind に変換します。role は title の別名として扱います。
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(KindAddress):
		return KindAddress, nil
	case string(KindTitle), "role":
		return KindTitle, nil
	case string(KindDepartment):
		return KindDepartment, nil
	case string(KindSalary):
		return KindSalary, nil
	default:
		return "", ErrInvalidKind
	}
}

// Address は構造化された住所です。
type Address struct {
	Street string
	City   string
	State  string
	Zip    string
}

func (a Address) String() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.Zip)
}

// Version は履歴管理される属性の 1 版です。Kind によって使用するフィールドが異なります。
type Version struct {
	ID         int64
	EmployeeID int64
	Kind       Kind
	Active     bool
	StartDate  time.Time
	Address    Address
	Name       string
	Amount     int64
	CreatedAt  time.Time
}

// Display は版の表示用文字列を返します。
func (v *Version) Display() string {
	switch v.Kind {
	case KindAddress:
		return v.Address.String()
	case KindSalary:
		return formatSalary(v.Amount)
	default:
		return v.Name
	}
}

// formatSalary は年額 (ドル単位) を "$85,000.00" の形式に整形します。
func formatSalary(amount int64) string {
	return money.New(amount*100, money.USD).Display()
}

// View は社員と有効な各属性をまとめた読み取りモデルです。
type View struct {
	EmployeeID       int64
	Active           bool
	FirstName        string
	LastName         string
	Name             string
	Email            string
	BirthDate        time.Time
	StartDate        time.Time
	Address          string
	AddressStartDate time.Time
	Department       string
	TeamStartDate    time.Time
	Role             string
	RoleStartDate    time.Time
	Salary           string
	SalaryAmount     int64
	SalaryStartDate  time.Time
}
