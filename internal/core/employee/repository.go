package employee

import (
	"context"
	"time"
)

// Repository は社員基本情報の永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Employee, error)
	FindByIdentity(ctx context.Context, identity Identity) (*Employee, error)
	List(ctx context.Context) ([]*Employee, error)
}

// VersionRepository は履歴管理される属性の永続化の抽象です。
type VersionRepository interface {
	// FindActive は有効な版を返します。存在しなければ ErrActiveVersionNotFound を返します。
	FindActive(ctx context.Context, employeeID int64, kind Kind) (*Version, error)
	Insert(ctx context.Context, version *Version) (*Version, error)
	// Deactivate は有効な版を無効化します。既に無効であれば ErrVersionConflict を返します。
	Deactivate(ctx context.Context, kind Kind, versionID int64) error
	UpdateStartDate(ctx context.Context, kind Kind, versionID int64, startDate time.Time) (*Version, error)
	ListByEmployee(ctx context.Context, employeeID int64, kind Kind) ([]*Version, error)
}

// ViewCache は組み立て済みビューのキャッシュです。未登録の場合 Get は nil, nil を返します。
// 世代番号は Invalidate のたびに進み、読み込み開始時の世代と一致する場合だけ保存されます。
type ViewCache interface {
	Get(ctx context.Context, id int64) (*View, error)
	Generation(ctx context.Context, id int64) (int64, error)
	SetIfGeneration(ctx context.Context, view *View, gen int64) (bool, error)
	Invalidate(ctx context.Context, ids ...int64) error
}
