package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleShotGenerate(t *testing.T) {
	chat := &mockChat{responses: []string{"# Article\n\ncontent"}}
	g := NewSingleShot(chat, 2000)

	content, err := g.Generate(context.Background(), "quantum computing", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "# Article\n\ncontent", content)

	// 固定模板嵌入主题
	assert.Contains(t, chat.lastPrompt(), "Write a comprehensive article about quantum computing.")
	assert.Contains(t, chat.lastPrompt(), "markdown format")
}

func TestSingleShotTemperatureRange(t *testing.T) {
	g := NewSingleShot(&mockChat{responses: []string{"x"}}, 2000)

	_, err := g.Generate(context.Background(), "topic", -0.1)
	assert.Error(t, err)

	_, err = g.Generate(context.Background(), "topic", 1.1)
	assert.Error(t, err)
}

func TestSingleShotNoRetry(t *testing.T) {
	chat := &mockChat{err: assert.AnError}
	g := NewSingleShot(chat, 2000)

	_, err := g.Generate(context.Background(), "topic", 0.5)
	require.Error(t, err)

	// 单次尝试,不自动重试
	assert.Len(t, chat.prompts, 1)
}

func TestSingleShotEmptyContent(t *testing.T) {
	g := NewSingleShot(&mockChat{responses: []string{"  \n "}}, 2000)

	_, err := g.Generate(context.Background(), "topic", 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
}
