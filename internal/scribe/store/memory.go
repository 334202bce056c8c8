package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/scribe-x/internal/pkg/textutil"
)

// MemoryStore 实现基于进程内存的向量存储。
// 集合与会话同生命周期,适合单实例部署与测试;
// 多实例部署应使用 Milvus 后端。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	config *CollectionConfig
	chunks []*Chunk
	nextID int
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存向量存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

// CreateCollection 创建集合,重复创建为空操作。
func (s *MemoryStore) CreateCollection(_ context.Context, config *CollectionConfig) error {
	if config == nil || config.Name == "" {
		return fmt.Errorf("集合配置无效")
	}
	if config.Dimension <= 0 {
		return fmt.Errorf("向量维度无效: %d", config.Dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[config.Name]; ok {
		return nil
	}
	s.collections[config.Name] = &memoryCollection{config: config}
	return nil
}

// Insert 批量插入文档块。
func (s *MemoryStore) Insert(_ context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("集合不存在: %s", collection)
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if coll.config.Dimension > 0 && len(chunk.Embedding) != coll.config.Dimension {
			return nil, fmt.Errorf("向量维度不匹配: 期望 %d, 实际 %d", coll.config.Dimension, len(chunk.Embedding))
		}

		stored := *chunk
		if stored.ID == "" {
			stored.ID = fmt.Sprintf("%s-%d", collection, coll.nextID)
		}
		coll.nextID++
		coll.chunks = append(coll.chunks, &stored)
		ids[i] = stored.ID
	}

	return ids, nil
}

// Search 暴力余弦相似度搜索。
func (s *MemoryStore) Search(_ context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("集合不存在: %s", collection)
	}

	results := make([]*SearchResult, 0, len(coll.chunks))
	for _, chunk := range coll.chunks {
		score := textutil.CosineSimilarity(embedding, chunk.Embedding)
		results = append(results, &SearchResult{
			ID:           chunk.ID,
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			Content:      chunk.Content,
			Score:        float32(score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DropCollection 丢弃集合。
func (s *MemoryStore) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// GetStats 返回集合中的向量数量。
func (s *MemoryStore) GetStats(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("集合不存在: %s", collection)
	}
	return int64(len(coll.chunks)), nil
}

// Close 释放全部集合。
func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]*memoryCollection)
	return nil
}
