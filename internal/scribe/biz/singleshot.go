package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/scribe/metrics"
	"github.com/kart-io/scribe-x/pkg/llm"
)

// articlePromptTemplate 单次生成的固定文章提示词。
const articlePromptTemplate = `Write a comprehensive article about %s.
The article should:
- Be well-structured with clear sections
- Include relevant information and insights
- Be written in markdown format
- Be engaging and informative

Article:`

// SingleShot 单次直出生成器。
// 一次请求一个完成,服务出错直接上报,从不自动重试。
type SingleShot struct {
	chatProvider llm.ChatProvider
	maxTokens    int
}

// NewSingleShot 创建单次生成器。
func NewSingleShot(chatProvider llm.ChatProvider, maxTokens int) *SingleShot {
	return &SingleShot{
		chatProvider: chatProvider,
		maxTokens:    maxTokens,
	}
}

// Generate 按固定模板生成文章。temperature 取值范围 [0, 1]。
func (s *SingleShot) Generate(ctx context.Context, topic string, temperature float64) (string, error) {
	if temperature < 0 || temperature > 1 {
		return "", fmt.Errorf("temperature %.2f out of range [0, 1]", temperature)
	}

	prompt := fmt.Sprintf(articlePromptTemplate, topic)
	opts := &llm.GenerateOptions{
		Temperature: temperature,
		MaxTokens:   s.maxTokens,
	}

	logger.Infow("single-shot generation started", "topic", topic, "temperature", temperature)
	start := time.Now()
	content, err := s.chatProvider.Generate(ctx, prompt, opts)
	metrics.GetScribeMetrics().RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("generation returned empty content")
	}
	return content, nil
}
