package feature

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	"github.com/rushteam/venuerec/core"
)

// VectorCache 是内存向量缓存，TTL 过期 + 超过容量时淘汰最久未访问的条目。
// 用于本地缓存编码结果，减少对远程编码服务的访问。
type VectorCache struct {
	mu          sync.Mutex
	entries     map[[32]byte]*cacheEntry
	maxSize     int
	ttl         time.Duration
	stopCleanup chan struct{}
	once        sync.Once
}

type cacheEntry struct {
	vec        []float64
	expireTime time.Time
	accessTime time.Time
}

// NewVectorCache 创建向量缓存。
func NewVectorCache(maxSize int, ttl time.Duration) *VectorCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	c := &VectorCache{
		entries:     make(map[[32]byte]*cacheEntry),
		maxSize:     maxSize,
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanup(time.Minute)
	return c
}

func (c *VectorCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanExpired(time.Now())
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *VectorCache) cleanExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expireTime) {
			delete(c.entries, k)
		}
	}
}

// evictLRU 调用方持有锁。
func (c *VectorCache) evictLRU() {
	var (
		oldestKey  [32]byte
		oldestTime time.Time
		first      = true
	)
	for k, e := range c.entries {
		if first || e.accessTime.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.accessTime
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

func (c *VectorCache) Get(text string) ([]float64, bool) {
	key := sha256.Sum256([]byte(text))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || now.After(e.expireTime) {
		return nil, false
	}
	e.accessTime = now
	return e.vec, true
}

func (c *VectorCache) Set(text string, vec []float64) {
	key := sha256.Sum256([]byte(text))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{vec: vec, expireTime: now.Add(c.ttl), accessTime: now}
}

func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close 停止清理协程
func (c *VectorCache) Close() {
	c.once.Do(func() { close(c.stopCleanup) })
}

// CachedEncoder 以文本内容为 key 缓存编码结果。
// 画像文本变化时 key 随之变化，不会返回过期画像的向量。
type CachedEncoder struct {
	Encoder core.TextEncoder
	Cache   *VectorCache
}

func (e *CachedEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	if v, ok := e.Cache.Get(text); ok {
		return v, nil
	}
	v, err := e.Encoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	e.Cache.Set(text, v)
	return v, nil
}
