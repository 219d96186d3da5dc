package core

import "context"

// Store 推荐结果缓存的键值后端：store.MemoryStore（单进程、测试）与 store.RedisStore（生产）。
//
// 约定：key 不存在时 Get 返回 ErrStoreNotFound，其他错误都视为后端故障。
// 缓存层据此区分未命中和不可用，两者都不会让推荐失败。
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)

	// Set ttl 单位为秒，省略或 <=0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	Delete(ctx context.Context, key string) error
	Close() error
}

var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 只认 store 模块的 NOT_FOUND。
func IsStoreNotFound(err error) bool {
	return IsNotFound(err) && GetDomainError(err).Module == ModuleStore
}
