package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/scribe/metrics"
	"github.com/kart-io/scribe-x/pkg/llm"
	"github.com/kart-io/scribe-x/pkg/websearch"
)

// Role 表示流水线中的一个智能体角色。
// 角色是固定的:研究员绑定搜索工具,写作者没有工具。
type Role struct {
	// Name 角色名称,如 "Researcher"。
	Name string
	// Goal 角色目标,嵌入任务提示词。
	Goal string
	// Backstory 角色背景设定。
	Backstory string
	// Tool 绑定的工具,写作者为 nil。
	Tool *websearch.Tool
}

// Task 表示流水线中的一个有序任务。
type Task struct {
	// Description 任务描述。
	Description string
	// ExpectedOutput 期望产出的描述,嵌入提示词。
	ExpectedOutput string
	// Role 执行任务的角色。
	Role *Role
}

// PipelineResult 流水线执行结果。
type PipelineResult struct {
	// Content 写作者任务的最终产出。
	Content string
	// RawResearch 研究员任务的原始产出。
	RawResearch string
	// Sources 研究阶段的搜索命中,用于持久化来源记录。
	Sources []websearch.Result
}

// Pipeline 研究员→写作者两步生成流水线。
// 任务严格按声明顺序执行,写作者任务以研究员产出为上下文;
// 任何一步失败都会中止整条流水线,由编排层降级处理。
type Pipeline struct {
	chatProvider llm.ChatProvider
	searchTool   *websearch.Tool
}

// NewPipeline 创建流水线实例。
func NewPipeline(chatProvider llm.ChatProvider, searchTool *websearch.Tool) *Pipeline {
	return &Pipeline{
		chatProvider: chatProvider,
		searchTool:   searchTool,
	}
}

// Generate 执行两步流水线并返回写作者产出。
func (p *Pipeline) Generate(ctx context.Context, topic string) (*PipelineResult, error) {
	researcher := &Role{
		Name:      "Researcher",
		Goal:      fmt.Sprintf("Research about %s", topic),
		Backstory: "Expert researcher with vast knowledge",
		Tool:      p.searchTool,
	}
	writer := &Role{
		Name:      "Writer",
		Goal:      "Write engaging content",
		Backstory: "Professional content writer",
	}

	research := &Task{
		Description:    fmt.Sprintf("Research about %s", topic),
		ExpectedOutput: "Comprehensive research findings",
		Role:           researcher,
	}
	write := &Task{
		Description:    "Write a markdown article using the research",
		ExpectedOutput: "Well-structured article in markdown format",
		Role:           writer,
	}

	// 第一步:研究。工具调用失败以内联文本呈现,不中断任务。
	logger.Infow("pipeline research task started", "topic", topic)
	searchText, hits, searchErr := p.searchTool.Invoke(ctx, topic)
	metrics.GetScribeMetrics().RecordSearch(searchErr)

	researchOutput, err := p.runTask(ctx, research, searchText)
	if err != nil {
		return nil, fmt.Errorf("research task failed: %w", err)
	}

	// 第二步:写作,研究产出整体作为上下文。
	logger.Infow("pipeline write task started", "topic", topic, "research_length", len(researchOutput))
	content, err := p.runTask(ctx, write, researchOutput)
	if err != nil {
		return nil, fmt.Errorf("write task failed: %w", err)
	}

	return &PipelineResult{
		Content:     content,
		RawResearch: researchOutput,
		Sources:     hits,
	}, nil
}

// runTask 执行单个任务:由角色设定和上下文构建提示词,调用 LLM。
func (p *Pipeline) runTask(ctx context.Context, task *Task, taskContext string) (string, error) {
	if ctx.Err() != nil {
		return "", fmt.Errorf("context cancelled before task: %w", ctx.Err())
	}

	prompt := buildTaskPrompt(task, taskContext)

	start := time.Now()
	output, err := p.chatProvider.Generate(ctx, prompt, llm.DefaultGenerateOptions())
	metrics.GetScribeMetrics().RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(output) == "" {
		return "", fmt.Errorf("role %s produced empty output", task.Role.Name)
	}
	return output, nil
}

// buildTaskPrompt 将角色设定、任务描述和上下文拼装为提示词。
func buildTaskPrompt(task *Task, taskContext string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are %s. %s\n", task.Role.Name, task.Role.Backstory))
	sb.WriteString(fmt.Sprintf("Your goal: %s\n\n", task.Role.Goal))

	if task.Role.Tool != nil && taskContext != "" {
		sb.WriteString(fmt.Sprintf("Results from the %s tool (%s):\n", task.Role.Tool.Name(), task.Role.Tool.Description()))
		sb.WriteString(taskContext)
		sb.WriteString("\n\n")
	} else if taskContext != "" {
		sb.WriteString("Context from the previous task:\n")
		sb.WriteString(taskContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString(fmt.Sprintf("Task: %s\n", task.Description))
	sb.WriteString(fmt.Sprintf("Expected output: %s\n", task.ExpectedOutput))
	return sb.String()
}
