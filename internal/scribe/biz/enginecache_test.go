package biz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/scribe-x/internal/scribe/store"
)

func buildTestEngine(t *testing.T, collection string) (*QueryEngine, *store.MemoryStore) {
	t.Helper()

	builder, vectors := newTestBuilder(&mockChat{})
	engine, err := builder.Build(context.Background(), collection, FileTypeCSV, testDocs())
	require.NoError(t, err)
	return engine, vectors
}

func TestEngineCacheIdempotentLookup(t *testing.T) {
	cache := NewEngineCache()
	engine, _ := buildTestEngine(t, "qa_a")

	var builds atomic.Int32
	build := func(context.Context) (*QueryEngine, error) {
		builds.Add(1)
		return engine, nil
	}

	first, hit, err := cache.GetOrBuild(context.Background(), "sess", "data.csv", build)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := cache.GetOrBuild(context.Background(), "sess", "data.csv", build)
	require.NoError(t, err)
	assert.True(t, hit)

	// 同键两次调用返回同一句柄,构建函数只执行一次
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), builds.Load())
}

func TestEngineCacheConcurrentBuildSerialized(t *testing.T) {
	cache := NewEngineCache()
	engine, _ := buildTestEngine(t, "qa_b")

	var builds atomic.Int32
	build := func(context.Context) (*QueryEngine, error) {
		builds.Add(1)
		return engine, nil
	}

	var wg sync.WaitGroup
	handles := make([]*QueryEngine, 16)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, _, err := cache.GetOrBuild(context.Background(), "sess", "data.csv", build)
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, h := range handles {
		assert.Same(t, engine, h)
	}
}

func TestEngineCacheDistinctKeys(t *testing.T) {
	cache := NewEngineCache()
	engineA, _ := buildTestEngine(t, "qa_c1")
	engineB, _ := buildTestEngine(t, "qa_c2")

	a, _, err := cache.GetOrBuild(context.Background(), "sess", "a.csv", func(context.Context) (*QueryEngine, error) {
		return engineA, nil
	})
	require.NoError(t, err)

	b, _, err := cache.GetOrBuild(context.Background(), "sess", "b.csv", func(context.Context) (*QueryEngine, error) {
		return engineB, nil
	})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, cache.Len())
}

func TestEngineCacheBuildFailureNotCached(t *testing.T) {
	cache := NewEngineCache()
	engine, _ := buildTestEngine(t, "qa_d")

	_, _, err := cache.GetOrBuild(context.Background(), "sess", "data.csv", func(context.Context) (*QueryEngine, error) {
		return nil, assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	// 失败不留缓存项,后续构建可以重试成功
	h, hit, err := cache.GetOrBuild(context.Background(), "sess", "data.csv", func(context.Context) (*QueryEngine, error) {
		return engine, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Same(t, engine, h)
}

func TestEngineCacheTeardownSession(t *testing.T) {
	cache := NewEngineCache()
	engine, vectors := buildTestEngine(t, "qa_e")
	other, _ := buildTestEngine(t, "qa_f")

	_, _, err := cache.GetOrBuild(context.Background(), "sess-1", "data.csv", func(context.Context) (*QueryEngine, error) {
		return engine, nil
	})
	require.NoError(t, err)
	_, _, err = cache.GetOrBuild(context.Background(), "sess-2", "data.csv", func(context.Context) (*QueryEngine, error) {
		return other, nil
	})
	require.NoError(t, err)

	cache.TeardownSession(context.Background(), "sess-1")

	// 目标会话的引擎被移除,集合被删除;其他会话不受影响
	_, ok := cache.Get("sess-1", "data.csv")
	assert.False(t, ok)
	_, ok = cache.Get("sess-2", "data.csv")
	assert.True(t, ok)

	_, err = vectors.Search(context.Background(), "qa_e", make([]float32, testDim), 1)
	assert.Error(t, err)
}
