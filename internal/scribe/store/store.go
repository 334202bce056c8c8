// Package store 提供 scribe 服务的存储层:历史记录与会话向量索引。
package store

import (
	"context"
	"time"

	"github.com/kart-io/scribe-x/internal/model"
)

// SortOrder 历史查询的排序方式。
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortRelevance SortOrder = "relevance"
)

// HistoryLimit 历史查询单次返回的最大行数。
const HistoryLimit = 10

// HistoryFilter 历史查询的过滤条件。
// 各条件之间为 AND 关系;零值字段表示不过滤。
type HistoryFilter struct {
	// Search 对查询文本与输出标题做大小写不敏感的子串匹配。
	Search string

	// StartDate/EndDate 按创建日期过滤,边界日期包含在内。
	StartDate *time.Time
	EndDate   *time.Time

	// Sort 排序方式,默认 SortNewest。
	// SortRelevance 在 Search 为空时退化为 SortNewest。
	Sort SortOrder
}

// HistoryStore 定义历史记录存储接口。
type HistoryStore interface {
	// SaveQuery 记录一次用户请求,返回查询 ID。
	SaveQuery(ctx context.Context, queryText, queryType string) (uint64, error)

	// SaveOutput 为查询附加一条输出,返回输出 ID。失败时查询行保持不变。
	SaveOutput(ctx context.Context, queryID uint64, title string, payload *model.ContentPayload, contentType string) (uint64, error)

	// SaveSources 为输出附加来源列表。
	SaveSources(ctx context.Context, outputID uint64, sources []model.Source) error

	// FilteredHistory 按条件检索历史,最多返回 HistoryLimit 行。
	FilteredHistory(ctx context.Context, filter *HistoryFilter) ([]model.HistoryEntry, error)

	// Detail 返回单条查询的完整视图(含输出与来源)。
	Detail(ctx context.Context, queryID uint64) (*model.QueryDetail, error)

	// Count 返回历史查询总数。
	Count(ctx context.Context) (int64, error)
}

// Factory 定义存储工厂接口。
type Factory interface {
	History() HistoryStore
	Ping(ctx context.Context) error
	Close() error
}

// Chunk 表示文档块。
type Chunk struct {
	// ID 文档块 ID。
	ID string
	// DocumentID 所属文档 ID。
	DocumentID string
	// DocumentName 文档名称。
	DocumentName string
	// Content 文档内容。
	Content string
	// Embedding 嵌入向量。
	Embedding []float32
}

// SearchResult 表示向量检索结果。
type SearchResult struct {
	ID           string
	DocumentID   string
	DocumentName string
	Content      string
	Score        float32
}

// CollectionConfig 集合配置。
type CollectionConfig struct {
	// Name 集合名称。
	Name string
	// Description 集合描述。
	Description string
	// Dimension 向量维度。
	Dimension int
}

// VectorStore 定义向量存储接口。
// 每个会话的每个文档对应一个集合,会话重置时集合被丢弃。
type VectorStore interface {
	// CreateCollection 创建集合。
	CreateCollection(ctx context.Context, config *CollectionConfig) error

	// Insert 批量插入文档块。
	Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error)

	// Search 向量相似度搜索。
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// DropCollection 丢弃集合及其全部向量。
	DropCollection(ctx context.Context, collection string) error

	// GetStats 获取集合中的向量数量。
	GetStats(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
