// Package store 提供 core 中存储类接口的实现：
//
//   - MemoryStore / RedisStore：core.Store，推荐结果缓存的后端
//   - MemoryEmbeddingStore：core.EmbeddingStore
//   - MemoryGeoStore：core.GeoStore + core.BrandResolver
//   - MemoryEventSource：core.EventLogSource + core.ProfileSource
//
// Postgres 实现在子包 store/postgres。
package store

import "github.com/rushteam/venuerec/core"

var (
	_ core.Store          = (*MemoryStore)(nil)
	_ core.Store          = (*RedisStore)(nil)
	_ core.EmbeddingStore = (*MemoryEmbeddingStore)(nil)
	_ core.GeoStore       = (*MemoryGeoStore)(nil)
	_ core.BrandResolver  = (*MemoryGeoStore)(nil)
	_ core.EventLogSource = (*MemoryEventSource)(nil)
	_ core.ProfileSource  = (*MemoryEventSource)(nil)
)
