// Package websearch 提供网页搜索引擎抽象与 DuckDuckGo 实现。
package websearch

import (
	"context"
	"strings"
)

// Result 单条搜索结果。
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Engine 搜索引擎接口。
type Engine interface {
	// Search 执行搜索,最多返回 maxResults 条结果。
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// MockEngine 模拟搜索引擎,用于测试。
type MockEngine struct {
	responses map[string][]Result
	err       error
}

// NewMockEngine 创建模拟搜索引擎。
func NewMockEngine() *MockEngine {
	return &MockEngine{
		responses: make(map[string][]Result),
	}
}

// AddResponse 添加预设响应。
func (m *MockEngine) AddResponse(query string, results []Result) {
	m.responses[strings.ToLower(query)] = results
}

// SetError 让后续所有搜索返回指定错误。
func (m *MockEngine) SetError(err error) {
	m.err = err
}

// Search 执行模拟搜索。
func (m *MockEngine) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	if m.err != nil {
		return nil, m.err
	}

	results := m.responses[strings.ToLower(query)]
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
