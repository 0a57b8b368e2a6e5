package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ogurasousui/hr-api/internal/core/employee"
	goredis "github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix は社員ビューのキャッシュキーの接頭辞です。
	KeyPrefix = "employees:view:"
	// GenerationKeyPrefix は社員ごとの世代番号キーの接頭辞です。
	GenerationKeyPrefix = "employees:gen:"

	generationTTL = 24 * time.Hour
)

// setIfGeneration は世代番号が読み込み時点から変わっていない場合だけビューを保存します。
var setIfGeneration = goredis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// ViewKey は社員 ID に対応するキャッシュキーを返します。
func ViewKey(id int64) string {
	return KeyPrefix + strconv.FormatInt(id, 10)
}

// GenerationKey は社員 ID に対応する世代番号キーを返します。
func GenerationKey(id int64) string {
	return GenerationKeyPrefix + strconv.FormatInt(id, 10)
}

var _ employee.ViewCache = (*ViewCache)(nil)

// ViewCache は組み立て済みの社員ビューを Redis に保持します。
type ViewCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// NewViewCache は ViewCache を生成します。
func NewViewCache(client goredis.Cmdable, ttl time.Duration) *ViewCache {
	return &ViewCache{client: client, ttl: ttl}
}

// Get はキャッシュ済みビューを返します。未登録の場合は nil, nil を返します。
func (c *ViewCache) Get(ctx context.Context, id int64) (*employee.View, error) {
	raw, err := c.client.Get(ctx, ViewKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get %s: %w", ViewKey(id), err)
	}

	var view employee.View
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", ViewKey(id), err)
	}
	return &view, nil
}

// Generation は社員の世代番号を返します。未登録は 0 です。
func (c *ViewCache) Generation(ctx context.Context, id int64) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(id)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: get %s: %w", GenerationKey(id), err)
	}
	return gen, nil
}

// SetIfGeneration は世代番号が gen のままであればビューを TTL 付きで保存し、保存したかを返します。
func (c *ViewCache) SetIfGeneration(ctx context.Context, view *employee.View, gen int64) (bool, error) {
	if view == nil {
		return false, nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("redis: encode view %d: %w", view.EmployeeID, err)
	}

	keys := []string{GenerationKey(view.EmployeeID), ViewKey(view.EmployeeID)}
	stored, err := setIfGeneration.Run(ctx, c.client, keys, gen, string(raw), c.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: set %s: %w", ViewKey(view.EmployeeID), err)
	}
	return stored == 1, nil
}

// Invalidate は世代番号を進めてからビューを削除します。読み込み中の古いビューはこれ以降保存されません。
func (c *ViewCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	viewKeys := make([]string, 0, len(ids))
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, GenerationKey(id))
			pipe.Expire(ctx, GenerationKey(id), generationTTL)
			viewKeys = append(viewKeys, ViewKey(id))
		}
		pipe.Del(ctx, viewKeys...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: invalidate %v: %w", ids, err)
	}
	return nil
}

// NewClient は設定値から Redis クライアントを生成し疎通確認を行います。
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return client, nil
}
