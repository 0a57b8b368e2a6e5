package employee

import (
	"context"
	"fmt"
	"time"
)

// VersionStore は属性の有効な版の参照と、版の切り替えを扱います。
// 書き込みは呼び出し元の作業単位 (トランザクション) 内で行われる前提です。
type VersionStore struct {
	repo VersionRepository
}

// NewVersionStore は VersionStore を生成します。
func NewVersionStore(repo VersionRepository) *VersionStore {
	return &VersionStore{repo: repo}
}

// Active は社員の指定属性で有効な版を返します。
func (s *VersionStore) Active(ctx context.Context, employeeID int64, kind Kind) (*Version, error) {
	return s.repo.FindActive(ctx, employeeID, kind)
}

// Open は社員作成時の最初の版を有効な状態で登録します。
func (s *VersionStore) Open(ctx context.Context, v Version) (*Version, error) {
	v.Active = true
	v.StartDate = dateOf(v.StartDate)
	return s.repo.Insert(ctx, &v)
}

// RetireAndReplace は current を無効化し、next を有効な版として登録します。
func (s *VersionStore) RetireAndReplace(ctx context.Context, current *Version, next Version) (*Version, error) {
	if current == nil {
		return nil, ErrActiveVersionNotFound
	}
	if err := s.repo.Deactivate(ctx, current.Kind, current.ID); err != nil {
		return nil, fmt.Errorf("retire %s version %d: %w", current.Kind, current.ID, err)
	}

	next.EmployeeID = current.EmployeeID
	next.Kind = current.Kind
	next.Active = true
	next.StartDate = dateOf(next.StartDate)

	inserted, err := s.repo.Insert(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("insert %s version: %w", current.Kind, err)
	}
	return inserted, nil
}

// Reschedule は新しい版を作らず、有効な版の開始日だけを変更します。
func (s *VersionStore) Reschedule(ctx context.Context, current *Version, startDate time.Time) (*Version, error) {
	if current == nil {
		return nil, ErrActiveVersionNotFound
	}
	return s.repo.UpdateStartDate(ctx, current.Kind, current.ID, dateOf(startDate))
}

// History は属性の全ての版を古い順に返します。
func (s *VersionStore) History(ctx context.Context, employeeID int64, kind Kind) ([]*Version, error) {
	return s.repo.ListByEmployee(ctx, employeeID, kind)
}
