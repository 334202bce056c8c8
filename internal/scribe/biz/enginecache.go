package biz

import (
	"context"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/scribe/metrics"
)

// BuildFunc 在缓存未命中时构建查询引擎。
type BuildFunc func(ctx context.Context) (*QueryEngine, error)

// EngineCache 查询引擎缓存,键为 (session_id, filename)。
// 同一键的未命中加构建是临界区:并发请求同键时只有一个 BuildFunc 执行,
// 其余请求等待并拿到同一个句柄。构建失败不产生缓存项,允许重试。
// 条目没有淘汰策略,随会话结束一并清理。
type EngineCache struct {
	mu      sync.Mutex
	engines map[string]*QueryEngine
	locks   map[string]*sync.Mutex
}

// NewEngineCache 创建查询引擎缓存。
func NewEngineCache() *EngineCache {
	return &EngineCache{
		engines: make(map[string]*QueryEngine),
		locks:   make(map[string]*sync.Mutex),
	}
}

// cacheKey 与原始会话缓存一致的 "session-filename" 键。
func cacheKey(sessionID, filename string) string {
	return sessionID + "-" + filename
}

// keyLock 返回键对应的互斥锁,首次访问时创建。
func (c *EngineCache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// GetOrBuild 返回键对应的引擎,未命中时执行 build 并缓存结果。
// 返回值第二项表示是否命中缓存。
func (c *EngineCache) GetOrBuild(ctx context.Context, sessionID, filename string, build BuildFunc) (*QueryEngine, bool, error) {
	key := cacheKey(sessionID, filename)

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	engine, ok := c.engines[key]
	c.mu.Unlock()

	if ok {
		metrics.GetScribeMetrics().RecordEngineCache(true)
		return engine, true, nil
	}
	metrics.GetScribeMetrics().RecordEngineCache(false)

	engine, err := build(ctx)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	c.engines[key] = engine
	c.mu.Unlock()

	logger.Infow("query engine cached", "key", key, "chunks", engine.ChunkCount())
	return engine, false, nil
}

// Get 返回键对应的引擎,不触发构建。
func (c *EngineCache) Get(sessionID, filename string) (*QueryEngine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	engine, ok := c.engines[cacheKey(sessionID, filename)]
	return engine, ok
}

// Len 返回缓存的引擎数量。
func (c *EngineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.engines)
}

// TeardownSession 清理会话的所有引擎并删除其向量集合。
func (c *EngineCache) TeardownSession(ctx context.Context, sessionID string) {
	prefix := sessionID + "-"

	c.mu.Lock()
	var doomed []*QueryEngine
	for key, engine := range c.engines {
		if strings.HasPrefix(key, prefix) {
			doomed = append(doomed, engine)
			delete(c.engines, key)
			delete(c.locks, key)
		}
	}
	c.mu.Unlock()

	for _, engine := range doomed {
		if err := engine.Teardown(ctx); err != nil {
			logger.Warnw("failed to drop engine collection", "collection", engine.Collection(), "error", err.Error())
		}
	}

	if len(doomed) > 0 {
		logger.Infow("session engines torn down", "session_id", sessionID, "count", len(doomed))
	}
}
