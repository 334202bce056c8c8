package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/pkg/textutil"
	"github.com/kart-io/scribe-x/internal/scribe/metrics"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/llm"
)

var (
	// ErrLLMUnavailable 嵌入或生成服务调用失败。
	ErrLLMUnavailable = errors.New("llm provider unavailable")
	// ErrEngineBuild 向量集合创建或写入失败,查询引擎未产出。
	ErrEngineBuild = errors.New("engine build failed")
)

// 分块参数。CSV 摘要通常落在单块内,Excel 工作表按此切分。
const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// EngineBuilderConfig 查询引擎构建配置。
type EngineBuilderConfig struct {
	// TopK 每次问答检索的分块数。
	TopK int
	// EmbeddingDim 向量维度。
	EmbeddingDim int
	// QAPrompt 问答提示词模板,占位符 {{file_type}}/{{context}}/{{question}}。
	QAPrompt string
}

// EngineBuilder 查询引擎构建器:嵌入文档、建向量集合、产出引擎句柄。
type EngineBuilder struct {
	embedder llm.EmbeddingProvider
	chat     llm.ChatProvider
	vectors  store.VectorStore
	config   *EngineBuilderConfig
}

// NewEngineBuilder 创建查询引擎构建器。
func NewEngineBuilder(embedder llm.EmbeddingProvider, chat llm.ChatProvider, vectors store.VectorStore, config *EngineBuilderConfig) *EngineBuilder {
	return &EngineBuilder{
		embedder: embedder,
		chat:     chat,
		vectors:  vectors,
		config:   config,
	}
}

// Build 为一组归一化文档构建查询引擎:
// 分块、嵌入、写入以 collection 命名的向量集合,返回可问答的句柄。
func (b *EngineBuilder) Build(ctx context.Context, collection, fileType string, docs []Document) (*QueryEngine, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to index")
	}

	var chunks []*store.Chunk
	for _, doc := range docs {
		docID := textutil.HashString(doc.Name)
		for _, piece := range textutil.SplitIntoChunks(doc.Text, chunkSize, chunkOverlap) {
			chunks = append(chunks, &store.Chunk{
				DocumentID:   docID,
				DocumentName: doc.Name,
				Content:      piece,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("documents produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		metrics.GetScribeMetrics().RecordIndexing(0, 0, err)
		return nil, fmt.Errorf("%w: embed documents: %w", ErrLLMUnavailable, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count %d does not match chunk count %d", len(embeddings), len(chunks))
	}
	for i, emb := range embeddings {
		chunks[i].Embedding = emb
	}

	if err := b.vectors.CreateCollection(ctx, &store.CollectionConfig{
		Name:        collection,
		Description: fmt.Sprintf("document index for %s", docs[0].Name),
		Dimension:   b.config.EmbeddingDim,
	}); err != nil {
		metrics.GetScribeMetrics().RecordIndexing(0, 0, err)
		return nil, fmt.Errorf("%w: create collection: %w", ErrEngineBuild, err)
	}

	if _, err := b.vectors.Insert(ctx, collection, chunks); err != nil {
		metrics.GetScribeMetrics().RecordIndexing(0, 0, err)
		return nil, fmt.Errorf("%w: insert chunks: %w", ErrEngineBuild, err)
	}

	metrics.GetScribeMetrics().RecordIndexing(len(docs), len(chunks), nil)
	logger.Infow("query engine built", "collection", collection, "documents", len(docs), "chunks", len(chunks))

	return &QueryEngine{
		collection: collection,
		fileType:   fileType,
		chunkCount: len(chunks),
		embedder:   b.embedder,
		chat:       b.chat,
		vectors:    b.vectors,
		config:     b.config,
	}, nil
}

// QueryEngine 绑定单个向量集合的问答句柄。
type QueryEngine struct {
	collection string
	fileType   string
	chunkCount int

	embedder llm.EmbeddingProvider
	chat     llm.ChatProvider
	vectors  store.VectorStore
	config   *EngineBuilderConfig
}

// Collection 返回引擎绑定的向量集合名。
func (e *QueryEngine) Collection() string {
	return e.collection
}

// ChunkCount 返回索引中的分块数。
func (e *QueryEngine) ChunkCount() int {
	return e.chunkCount
}

// Answer 对问题生成完整答案(非流式)。
func (e *QueryEngine) Answer(ctx context.Context, question string) (string, error) {
	prompt, err := e.buildPrompt(ctx, question)
	if err != nil {
		return "", err
	}
	return e.chat.Generate(ctx, prompt, llm.DefaultGenerateOptions())
}

// AnswerStream 对问题生成流式答案。
// 返回的序列是有限且不可重启的;中途出错时调用方应丢弃已收到的部分。
func (e *QueryEngine) AnswerStream(ctx context.Context, question string) (llm.Stream, error) {
	prompt, err := e.buildPrompt(ctx, question)
	if err != nil {
		return nil, err
	}

	metrics.GetScribeMetrics().RecordStreamStart()
	stream, err := e.chat.GenerateStream(ctx, prompt, llm.DefaultGenerateOptions())
	if err != nil {
		metrics.GetScribeMetrics().RecordStreamError()
		return nil, fmt.Errorf("%w: start answer stream: %w", ErrLLMUnavailable, err)
	}
	return stream, nil
}

// buildPrompt 嵌入问题、检索 top-k 分块并填充问答模板。
func (e *QueryEngine) buildPrompt(ctx context.Context, question string) (string, error) {
	embedding, err := e.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return "", fmt.Errorf("%w: embed question: %w", ErrLLMUnavailable, err)
	}

	results, err := e.vectors.Search(ctx, e.collection, embedding, e.config.TopK)
	if err != nil {
		return "", fmt.Errorf("failed to search collection: %w", err)
	}

	var contextBuilder strings.Builder
	for i, r := range results {
		if i > 0 {
			contextBuilder.WriteString("\n\n")
		}
		contextBuilder.WriteString(r.Content)
	}

	prompt := strings.ReplaceAll(e.config.QAPrompt, "{{file_type}}", e.fileType)
	prompt = strings.ReplaceAll(prompt, "{{context}}", contextBuilder.String())
	prompt = strings.ReplaceAll(prompt, "{{question}}", question)
	return prompt, nil
}

// Teardown 删除引擎绑定的向量集合。
func (e *QueryEngine) Teardown(ctx context.Context) error {
	return e.vectors.DropCollection(ctx, e.collection)
}
