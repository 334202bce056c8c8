package handler_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/internal/scribe/biz"
	"github.com/kart-io/scribe-x/internal/scribe/handler"
	"github.com/kart-io/scribe-x/internal/scribe/router"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/llm"
	docqaopts "github.com/kart-io/scribe-x/pkg/options/docqa"
	"github.com/kart-io/scribe-x/pkg/websearch"
)

const testEmbeddingDim = 8

// fakeChat 按脚本顺序返回响应,流式生成按 4 字符分片。
type fakeChat struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (f *fakeChat) next() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls >= len(f.responses) {
		f.calls++
		return "scripted response"
	}
	r := f.responses[f.calls]
	f.calls++
	return r
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) {
	return f.next(), nil
}

func (f *fakeChat) Generate(_ context.Context, _ string, _ *llm.GenerateOptions) (string, error) {
	return f.next(), nil
}

func (f *fakeChat) GenerateStream(_ context.Context, _ string, _ *llm.GenerateOptions) (llm.Stream, error) {
	return &fakeStream{content: []rune(f.next())}, nil
}

func (f *fakeChat) Name() string { return "fake" }

type fakeStream struct {
	content []rune
	pos     int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.content) {
		return "", io.EOF
	}
	end := s.pos + 4
	if end > len(s.content) {
		end = len(s.content)
	}
	fragment := string(s.content[s.pos:end])
	s.pos = end
	return fragment, nil
}

func (s *fakeStream) Close() error { return nil }

// fakeEmbedder 基于文本内容生成确定性向量;err 非空时所有调用失败。
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	v := make([]float32, testEmbeddingDim)
	for i, r := range text {
		v[i%testEmbeddingDim] += float32(r % 13)
	}
	return v
}

func (f *fakeEmbedder) Name() string { return "fake" }

type savedQuery struct {
	text      string
	queryType string
}

type savedOutput struct {
	queryID uint64
	title   string
	payload *model.ContentPayload
}

// fakeHistory 记录所有写入,读取返回预置数据。
type fakeHistory struct {
	mu         sync.Mutex
	nextID     uint64
	queries    []savedQuery
	outputs    []savedOutput
	sources    [][]model.Source
	entries    []model.HistoryEntry
	details    map[uint64]*model.QueryDetail
	lastFilter *store.HistoryFilter
}

func (f *fakeHistory) SaveQuery(_ context.Context, queryText, queryType string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.queries = append(f.queries, savedQuery{text: queryText, queryType: queryType})
	return f.nextID, nil
}

func (f *fakeHistory) SaveOutput(_ context.Context, queryID uint64, title string, payload *model.ContentPayload, _ string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.outputs = append(f.outputs, savedOutput{queryID: queryID, title: title, payload: payload})
	return f.nextID, nil
}

func (f *fakeHistory) SaveSources(_ context.Context, _ uint64, sources []model.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, sources)
	return nil
}

func (f *fakeHistory) FilteredHistory(_ context.Context, filter *store.HistoryFilter) ([]model.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return f.entries, nil
}

func (f *fakeHistory) Detail(_ context.Context, queryID uint64) (*model.QueryDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	detail, ok := f.details[queryID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return detail, nil
}

func (f *fakeHistory) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.queries)), nil
}

func (f *fakeHistory) savedQueries() []savedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]savedQuery, len(f.queries))
	copy(out, f.queries)
	return out
}

// newTestServer 按生产装配顺序搭建完整路由,LLM 与历史存储为测试替身。
func newTestServer(t *testing.T, chatResponses []string) (*gin.Engine, *fakeHistory) {
	return newTestServerWithEmbedder(t, chatResponses, &fakeEmbedder{})
}

func newTestServerWithEmbedder(t *testing.T, chatResponses []string, embedder llm.EmbeddingProvider) (*gin.Engine, *fakeHistory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hist := &fakeHistory{details: make(map[uint64]*model.QueryDetail)}
	chat := &fakeChat{responses: chatResponses}

	searchTool := websearch.NewTool(websearch.NewMockEngine(), 3)
	pipeline := biz.NewPipeline(chat, searchTool)
	singleShot := biz.NewSingleShot(chat, 2000)
	generation := biz.NewGenerationService(pipeline, singleShot, hist, 0.7)

	builder := biz.NewEngineBuilder(embedder, chat, store.NewMemoryStore(), &biz.EngineBuilderConfig{
		TopK:         2,
		EmbeddingDim: testEmbeddingDim,
		QAPrompt:     docqaopts.DefaultQAPrompt,
	})
	sessions := biz.NewSessionManager(biz.NewEngineCache())
	docqaService := biz.NewDocQAService(biz.NewIndexer(10), builder, sessions, hist, t.TempDir())

	engine := gin.New()
	router.Register(engine,
		handler.NewGenerateHandler(generation),
		handler.NewSessionHandler(sessions, docqaService),
		handler.NewHistoryHandler(hist),
		handler.NewOpsHandler(sessions, hist),
	)
	return engine, hist
}
