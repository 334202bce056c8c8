package websearch

import (
	"context"
	"fmt"
	"strings"
)

// Tool 将搜索引擎包装为可供 Agent 调用的工具。
// 工具的输出始终是文本:搜索失败时返回内联错误描述而非 error,
// 让 Agent 能够感知失败并继续推理。
type Tool struct {
	name        string
	description string
	engine      Engine
	maxResults  int
}

// NewTool 创建搜索工具。
func NewTool(engine Engine, maxResults int) *Tool {
	return &Tool{
		name:        "search_web",
		description: "Searches the web for current information on a topic",
		engine:      engine,
		maxResults:  maxResults,
	}
}

// Name 返回工具名称。
func (t *Tool) Name() string {
	return t.name
}

// Description 返回工具描述,供 Agent 的任务提示引用。
func (t *Tool) Description() string {
	return t.description
}

// Run 执行搜索并渲染为行列表,每条结果一行 "- {摘要}"。
func (t *Tool) Run(ctx context.Context, query string) string {
	text, _, _ := t.Invoke(ctx, query)
	return text
}

// Invoke 执行搜索,除渲染文本外还返回原始命中,供调用方记录来源。
// 搜索失败时命中为 nil,文本为内联错误描述,error 仅用于观测。
func (t *Tool) Invoke(ctx context.Context, query string) (string, []Result, error) {
	results, err := t.engine.Search(ctx, query, t.maxResults)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err), nil, err
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, "- "+r.Snippet)
	}
	return strings.Join(lines, "\n"), results, nil
}
