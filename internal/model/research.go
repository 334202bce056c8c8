// Package model provides data models for the scribe content service.
package model

import (
	"time"
)

// Query types stored in research_queries.query_type.
const (
	QueryTypeArticle = "article_generation"
	QueryTypeFileQA  = "file_qa"
)

// Content types stored in research_outputs.content_type.
const (
	ContentTypeArticle = "article"
	ContentTypeAnswer  = "answer"
)

// Query represents a single user request recorded in history.
// A Query row is written as soon as the request is accepted; its outputs
// and sources are attached afterwards and may be absent when a generation
// failed mid-way.
type Query struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement;comment:查询ID"`
	QueryText string    `json:"query_text" gorm:"type:text;not null;comment:查询文本"`
	QueryType string    `json:"query_type" gorm:"type:varchar(32);not null;index:idx_query_type;comment:查询类型"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_created_at;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (Query) TableName() string {
	return "research_queries"
}

// Output represents a generated result tied to a Query.
// Content holds a serialized ContentPayload.
type Output struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement;comment:输出ID"`
	QueryID     uint64    `json:"query_id" gorm:"index:idx_output_query;not null;comment:所属查询ID"`
	Title       string    `json:"title" gorm:"type:varchar(512);not null;comment:标题"`
	Content     string    `json:"content" gorm:"type:text;not null;comment:内容负载(JSON)"`
	ContentType string    `json:"content_type" gorm:"type:varchar(32);not null;comment:内容类型"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (Output) TableName() string {
	return "research_outputs"
}

// Source represents a web source consulted while producing an output.
type Source struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement;comment:来源ID"`
	OutputID  uint64    `json:"output_id" gorm:"index:idx_source_output;not null;comment:所属输出ID"`
	URL       string    `json:"url" gorm:"type:varchar(1024);comment:来源URL"`
	Title     string    `json:"title" gorm:"type:varchar(512);comment:来源标题"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (Source) TableName() string {
	return "research_sources"
}

// ContentPayload 是 Output.Content 的结构化形式。
// 序列化为 JSON 存储,向后兼容仅含 final_content 的旧记录。
type ContentPayload struct {
	FinalContent string `json:"final_content"`
	RawResearch  string `json:"raw_research,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// HistoryEntry 是历史列表中的一行,由查询与其最新输出拼合而成。
// Content 为最新输出的序列化负载,查询尚无输出时为 nil。
type HistoryEntry struct {
	ID        uint64    `json:"id"`
	QueryText string    `json:"query_text"`
	QueryType string    `json:"query_type"`
	Content   *string   `json:"content"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// QueryDetail 是单条历史记录的完整视图。
type QueryDetail struct {
	Query   Query    `json:"query"`
	Outputs []Output `json:"outputs"`
	Sources []Source `json:"sources"`
}

// ChatMessage 表示会话转录中的一条消息。
type ChatMessage struct {
	Role      string    `json:"role"` // user / assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
