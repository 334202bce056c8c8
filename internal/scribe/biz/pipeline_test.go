package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/scribe-x/pkg/websearch"
)

func newTestSearchTool(results []websearch.Result, err error) *websearch.Tool {
	engine := websearch.NewMockEngine()
	if err != nil {
		engine.SetError(err)
	} else {
		engine.AddResponse("go generics", results)
	}
	return websearch.NewTool(engine, 5)
}

func TestPipelineGenerate(t *testing.T) {
	hits := []websearch.Result{
		{Title: "Go 1.18 Release Notes", URL: "https://go.dev/doc/go1.18", Snippet: "Generics added to the language"},
		{Title: "Type Parameters Proposal", URL: "https://go.dev/design", Snippet: "Design of type parameters"},
	}
	chat := &mockChat{responses: []string{
		"research findings about generics",
		"# Generics in Go\n\nFinal article.",
	}}

	p := NewPipeline(chat, newTestSearchTool(hits, nil))
	result, err := p.Generate(context.Background(), "go generics")
	require.NoError(t, err)

	assert.Equal(t, "# Generics in Go\n\nFinal article.", result.Content)
	assert.Equal(t, "research findings about generics", result.RawResearch)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "https://go.dev/doc/go1.18", result.Sources[0].URL)

	// 研究任务的提示词包含搜索结果,写作任务的提示词包含研究产出
	require.Len(t, chat.prompts, 2)
	assert.Contains(t, chat.prompts[0], "Generics added to the language")
	assert.Contains(t, chat.prompts[0], "Researcher")
	assert.Contains(t, chat.prompts[1], "research findings about generics")
	assert.Contains(t, chat.prompts[1], "Writer")
}

func TestPipelineSearchFailureIsNonFatal(t *testing.T) {
	chat := &mockChat{responses: []string{"findings", "article"}}

	p := NewPipeline(chat, newTestSearchTool(nil, assert.AnError))
	result, err := p.Generate(context.Background(), "go generics")
	require.NoError(t, err)

	// 工具失败以内联文本进入研究提示词,流水线继续推进
	assert.Contains(t, chat.prompts[0], "Search error:")
	assert.Equal(t, "article", result.Content)
	assert.Empty(t, result.Sources)
}

func TestPipelineResearchFailureAborts(t *testing.T) {
	chat := &mockChat{err: assert.AnError}

	p := NewPipeline(chat, newTestSearchTool(nil, nil))
	_, err := p.Generate(context.Background(), "go generics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research task failed")
}

func TestPipelineEmptyOutputIsError(t *testing.T) {
	chat := &mockChat{responses: []string{"   ", "unused"}}

	p := NewPipeline(chat, newTestSearchTool(nil, nil))
	_, err := p.Generate(context.Background(), "go generics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty output")
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chat := &mockChat{responses: []string{"findings", "article"}}
	p := NewPipeline(chat, newTestSearchTool(nil, nil))

	_, err := p.Generate(ctx, "go generics")
	assert.Error(t, err)
}
