package recommend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/rushteam/venuerec/core"
	"github.com/rushteam/venuerec/pkg/metrics"
)

// ComputeFunc 缓存未命中时计算结果。
type ComputeFunc func(ctx context.Context) (*core.RecommendationResult, error)

// ResultCache 推荐结果缓存，以 core.Store 为后端。
//
// 缓存是尽力而为的：读失败按未命中处理，写失败只记日志，调用方总能拿到结果。
// 命中时直接解码缓存的字节，不重新计算；同一份字节再次编码得到相同的输出。
// 没有失效机制，TTL 内允许返回旧结果。
type ResultCache struct {
	Store   core.Store
	TTL     time.Duration
	Timeout time.Duration // 单次缓存读写的超时，<=0 不限制
	Logger  zerolog.Logger
}

func NewResultCache(store core.Store, ttl time.Duration, logger zerolog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = core.DefaultCacheTTL
	}
	return &ResultCache{
		Store:  store,
		TTL:    ttl,
		Logger: logger.With().Str("component", "recommend.cache").Logger(),
	}
}

// ttlSeconds 向上取整到秒，至少 1 秒；后端把 0 当作永不过期。
func (c *ResultCache) ttlSeconds() int {
	secs := int((c.TTL + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// CacheKey rec:{userId}:{lat}:{lng}:{radiusKm}:{topK}
//
// 位置、半径与 TopK 都参与 key，不同参数的请求不会互相覆盖。
func CacheKey(userID string, lat, lng, radiusKm float64, topK int) string {
	return fmt.Sprintf("rec:%s:%s:%s:%s:%d",
		userID,
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64),
		strconv.FormatFloat(radiusKm, 'f', -1, 64),
		topK,
	)
}

// GetOrCompute 命中时返回缓存结果（CacheHit=true），否则调用 compute 并回写。
// compute 的错误原样返回，错误结果不缓存。
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*core.RecommendationResult, error) {
	if c == nil || c.Store == nil {
		return compute(ctx)
	}

	if res, ok := c.get(ctx, key); ok {
		metrics.CacheHits.Inc()
		res.CacheHit = true
		return res, nil
	}
	metrics.CacheMisses.Inc()

	res, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, res)
	return res, nil
}

func (c *ResultCache) get(ctx context.Context, key string) (*core.RecommendationResult, bool) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, err := c.Store.Get(ctx, key)
	if err != nil {
		if !core.IsStoreNotFound(err) {
			metrics.CacheErrors.WithLabelValues("get").Inc()
			c.Logger.Warn().Err(err).Str("key", key).Msg("cache read failed, computing")
		}
		return nil, false
	}

	var res core.RecommendationResult
	if err := json.Unmarshal(data, &res); err != nil {
		metrics.CacheErrors.WithLabelValues("decode").Inc()
		c.Logger.Warn().Err(err).Str("key", key).Msg("cache entry undecodable, computing")
		return nil, false
	}
	return &res, true
}

func (c *ResultCache) set(ctx context.Context, key string, res *core.RecommendationResult) {
	data, err := json.Marshal(res)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("encode").Inc()
		c.Logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}

	// 请求已结束或被取消时仍尽量写入
	ctx, cancel := c.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := c.Store.Set(ctx, key, data, c.ttlSeconds()); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		c.Logger.Warn().Err(core.ErrCacheUnavailable.Wrap(err)).Str("key", key).Msg("cache write failed")
	}
}

func (c *ResultCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}
