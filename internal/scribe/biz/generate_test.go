package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/pkg/websearch"
)

func newTestGenerationService(chat *mockChat, history *fakeHistory, hits []websearch.Result) *GenerationService {
	engine := websearch.NewMockEngine()
	engine.AddResponse("ai safety", hits)
	tool := websearch.NewTool(engine, 5)

	pipeline := NewPipeline(chat, tool)
	singleShot := NewSingleShot(chat, 2000)
	return NewGenerationService(pipeline, singleShot, history, 0.7)
}

func TestGeneratePipelineStrategy(t *testing.T) {
	hits := []websearch.Result{{Title: "Alignment overview", URL: "https://example.com/a", Snippet: "s"}}
	chat := &mockChat{responses: []string{"research notes", "final article"}}
	history := newFakeHistory()
	svc := newTestGenerationService(chat, history, hits)

	result, err := svc.Generate(context.Background(), &GenerateRequest{
		Topic:       "ai safety",
		Strategy:    StrategyPipeline,
		Temperature: -1,
	})
	require.NoError(t, err)

	assert.Equal(t, "final article", result.Content)
	assert.Equal(t, StrategyPipeline, result.Strategy)
	assert.False(t, result.Fallback)
	assert.True(t, result.Persisted)
	assert.Equal(t, uint64(1), result.QueryID)

	// 两步持久化:查询行、输出行和来源行
	require.Len(t, history.queries, 1)
	assert.Equal(t, "ai safety", history.queries[0].QueryText)
	assert.Equal(t, model.QueryTypeArticle, history.queries[0].QueryType)
	require.Len(t, history.outputs, 1)
	assert.Equal(t, "ai safety", history.outputs[0].Title)
	require.Len(t, history.sources, 1)
	assert.Equal(t, "https://example.com/a", history.sources[0].URL)
}

func TestGenerateSingleStrategy(t *testing.T) {
	chat := &mockChat{responses: []string{"direct article"}}
	history := newFakeHistory()
	svc := newTestGenerationService(chat, history, nil)

	result, err := svc.Generate(context.Background(), &GenerateRequest{
		Topic:       "ai safety",
		Strategy:    StrategySingle,
		Temperature: 0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "direct article", result.Content)
	assert.Equal(t, StrategySingle, result.Strategy)
	assert.False(t, result.Fallback)

	// 单次生成只调用一次,且没有来源
	assert.Len(t, chat.prompts, 1)
	assert.Empty(t, history.sources)
}

func TestGenerateFallbackToSingleShot(t *testing.T) {
	// 第一次调用(研究任务)失败后,降级的单次生成成功
	chat := &mockChat{responses: []string{"", "fallback article"}}
	history := newFakeHistory()
	svc := newTestGenerationService(chat, history, nil)

	result, err := svc.Generate(context.Background(), &GenerateRequest{
		Topic:       "ai safety",
		Strategy:    StrategyPipeline,
		Temperature: -1,
	})
	require.NoError(t, err)

	assert.Equal(t, "fallback article", result.Content)
	assert.Equal(t, StrategySingle, result.Strategy)
	assert.True(t, result.Fallback)
	assert.True(t, result.Persisted)

	// 降级产出同样走完整持久化
	require.Len(t, history.outputs, 1)
	assert.Equal(t, "fallback article", history.outputs[0].Content)
}

func TestGenerateBothStrategiesFail(t *testing.T) {
	chat := &mockChat{err: assert.AnError}
	history := newFakeHistory()
	svc := newTestGenerationService(chat, history, nil)

	_, err := svc.Generate(context.Background(), &GenerateRequest{
		Topic:    "ai safety",
		Strategy: StrategyPipeline,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both failed")

	// 终态失败不写任何历史
	assert.Empty(t, history.queries)
}

func TestGenerateOutputSaveFailureKeepsQueryRow(t *testing.T) {
	chat := &mockChat{responses: []string{"article"}}
	history := newFakeHistory()
	history.outputErr = assert.AnError
	svc := newTestGenerationService(chat, history, nil)

	result, err := svc.Generate(context.Background(), &GenerateRequest{
		Topic:       "ai safety",
		Strategy:    StrategySingle,
		Temperature: -1,
	})
	require.NoError(t, err)

	// 内容仍然返回,查询行保留,但未完成持久化
	assert.Equal(t, "article", result.Content)
	assert.False(t, result.Persisted)
	assert.NotZero(t, result.QueryID)
	require.Len(t, history.queries, 1)
	assert.Empty(t, history.outputs)
}

func TestGenerateUnknownStrategy(t *testing.T) {
	svc := newTestGenerationService(&mockChat{}, newFakeHistory(), nil)

	_, err := svc.Generate(context.Background(), &GenerateRequest{Topic: "x", Strategy: "quantum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestGenerateEmptyTopic(t *testing.T) {
	svc := newTestGenerationService(&mockChat{}, newFakeHistory(), nil)

	_, err := svc.Generate(context.Background(), &GenerateRequest{Topic: ""})
	assert.Error(t, err)
}
