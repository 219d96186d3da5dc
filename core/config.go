package core

import "time"

// 推荐默认参数。应用配置（config.AppConfig）未显式设置时使用。
const (
	DefaultTopK                = 10
	DefaultRadiusKm            = 2.0
	DefaultCandidateMultiplier = 2
	DefaultCacheTTL            = time.Hour
	DefaultSourceTimeout       = 2 * time.Second
)
