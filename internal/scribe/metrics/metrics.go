// Package metrics 提供 scribe 服务的业务指标收集。
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ScribeMetrics scribe 服务业务指标。
type ScribeMetrics struct {
	// 生成指标
	generationsTotal     uint64 // 总生成次数
	generationsPipeline  uint64 // 流水线策略成功次数
	generationsSingle    uint64 // 单次生成策略成功次数
	generationsFallbacks uint64 // 流水线降级次数
	generationsErrors    uint64 // 生成失败次数

	// 问答指标
	answersTotal   uint64 // 总问答次数
	answersErrors  uint64 // 问答失败次数
	streamsStarted uint64 // 流式回答开始次数
	streamsErrors  uint64 // 流式回答中断次数

	// 索引指标
	documentsIndexed uint64 // 已索引文档数
	chunksIndexed    uint64 // 已索引分块数
	indexErrors      uint64 // 索引错误次数

	// 引擎缓存指标
	engineCacheHits   uint64 // 问答引擎缓存命中次数
	engineCacheMisses uint64 // 问答引擎缓存未命中次数

	// LLM 调用指标
	llmCallsTotal    uint64  // LLM 总调用次数
	llmCallsErrors   uint64  // LLM 调用错误次数
	llmCallsDuration float64 // LLM 调用总耗时（秒）

	// 联网搜索指标
	searchesTotal  uint64 // 联网搜索次数
	searchesErrors uint64 // 联网搜索失败次数

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalMetrics *ScribeMetrics
	metricsOnce   sync.Once
)

// GetScribeMetrics 获取全局指标实例。
func GetScribeMetrics() *ScribeMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &ScribeMetrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordGeneration 记录一次内容生成。fallback 表示流水线降级为单次生成。
func (m *ScribeMetrics) RecordGeneration(strategy string, fallback bool, err error) {
	atomic.AddUint64(&m.generationsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.generationsErrors, 1)
		return
	}
	if fallback {
		atomic.AddUint64(&m.generationsFallbacks, 1)
	}
	switch strategy {
	case "pipeline":
		atomic.AddUint64(&m.generationsPipeline, 1)
	case "single":
		atomic.AddUint64(&m.generationsSingle, 1)
	}
}

// RecordAnswer 记录一次文档问答。
func (m *ScribeMetrics) RecordAnswer(err error) {
	atomic.AddUint64(&m.answersTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.answersErrors, 1)
	}
}

// RecordStreamStart 记录流式回答开始。
func (m *ScribeMetrics) RecordStreamStart() {
	atomic.AddUint64(&m.streamsStarted, 1)
}

// RecordStreamError 记录流式回答中断。
func (m *ScribeMetrics) RecordStreamError() {
	atomic.AddUint64(&m.streamsErrors, 1)
}

// RecordIndexing 记录索引操作。
func (m *ScribeMetrics) RecordIndexing(documents, chunks int, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIndexed, uint64(documents))
	atomic.AddUint64(&m.chunksIndexed, uint64(chunks))
}

// RecordEngineCache 记录问答引擎缓存命中情况。
func (m *ScribeMetrics) RecordEngineCache(hit bool) {
	if hit {
		atomic.AddUint64(&m.engineCacheHits, 1)
	} else {
		atomic.AddUint64(&m.engineCacheMisses, 1)
	}
}

// RecordLLMCall 记录 LLM 调用。
func (m *ScribeMetrics) RecordLLMCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordSearch 记录联网搜索。
func (m *ScribeMetrics) RecordSearch(err error) {
	atomic.AddUint64(&m.searchesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.searchesErrors, 1)
	}
}

// Stats 返回当前统计信息（用于 API）。
func (m *ScribeMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	cacheHits := atomic.LoadUint64(&m.engineCacheHits)
	cacheMisses := atomic.LoadUint64(&m.engineCacheMisses)
	cacheTotal := cacheHits + cacheMisses
	cacheHitRate := 0.0
	if cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	return map[string]interface{}{
		"generations": map[string]interface{}{
			"total":       atomic.LoadUint64(&m.generationsTotal),
			"pipeline":    atomic.LoadUint64(&m.generationsPipeline),
			"single_shot": atomic.LoadUint64(&m.generationsSingle),
			"fallbacks":   atomic.LoadUint64(&m.generationsFallbacks),
			"errors":      atomic.LoadUint64(&m.generationsErrors),
		},
		"answers": map[string]interface{}{
			"total":           atomic.LoadUint64(&m.answersTotal),
			"errors":          atomic.LoadUint64(&m.answersErrors),
			"streams_started": atomic.LoadUint64(&m.streamsStarted),
			"streams_errors":  atomic.LoadUint64(&m.streamsErrors),
		},
		"indexing": map[string]interface{}{
			"documents": atomic.LoadUint64(&m.documentsIndexed),
			"chunks":    atomic.LoadUint64(&m.chunksIndexed),
			"errors":    atomic.LoadUint64(&m.indexErrors),
		},
		"engine_cache": map[string]interface{}{
			"hits":     cacheHits,
			"misses":   cacheMisses,
			"hit_rate": cacheHitRate,
		},
		"llm": map[string]interface{}{
			"total":               llmTotal,
			"errors":              atomic.LoadUint64(&m.llmCallsErrors),
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
		},
		"search": map[string]interface{}{
			"total":  atomic.LoadUint64(&m.searchesTotal),
			"errors": atomic.LoadUint64(&m.searchesErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标,仅用于测试。
func (m *ScribeMetrics) Reset() {
	atomic.StoreUint64(&m.generationsTotal, 0)
	atomic.StoreUint64(&m.generationsPipeline, 0)
	atomic.StoreUint64(&m.generationsSingle, 0)
	atomic.StoreUint64(&m.generationsFallbacks, 0)
	atomic.StoreUint64(&m.generationsErrors, 0)
	atomic.StoreUint64(&m.answersTotal, 0)
	atomic.StoreUint64(&m.answersErrors, 0)
	atomic.StoreUint64(&m.streamsStarted, 0)
	atomic.StoreUint64(&m.streamsErrors, 0)
	atomic.StoreUint64(&m.documentsIndexed, 0)
	atomic.StoreUint64(&m.chunksIndexed, 0)
	atomic.StoreUint64(&m.indexErrors, 0)
	atomic.StoreUint64(&m.engineCacheHits, 0)
	atomic.StoreUint64(&m.engineCacheMisses, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.searchesTotal, 0)
	atomic.StoreUint64(&m.searchesErrors, 0)

	m.durationMu.Lock()
	m.llmCallsDuration = 0
	m.durationMu.Unlock()
}
