package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/internal/scribe/metrics"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/websearch"
)

// 生成策略。
const (
	StrategyPipeline = "pipeline"
	StrategySingle   = "single"
)

// GenerateRequest 一次内容生成请求。
type GenerateRequest struct {
	// Topic 生成主题。
	Topic string
	// Strategy 生成策略,StrategyPipeline 或 StrategySingle。
	Strategy string
	// Temperature 采样温度,仅单次生成使用;负数表示用默认值。
	Temperature float64
}

// GenerateResult 一次内容生成的结果。
type GenerateResult struct {
	// QueryID 持久化后的查询行 ID,未持久化成功时可能为 0。
	QueryID uint64 `json:"query_id"`
	// Topic 生成主题。
	Topic string `json:"topic"`
	// Content 最终生成内容。
	Content string `json:"content"`
	// Strategy 实际产出内容的策略。
	Strategy string `json:"strategy"`
	// Fallback 流水线失败后是否降级为单次生成。
	Fallback bool `json:"fallback"`
	// Persisted 结果是否已写入历史存储。
	Persisted bool `json:"persisted"`
}

// GenerationService 内容生成编排层:策略分发、降级与两步持久化。
type GenerationService struct {
	pipeline           *Pipeline
	singleShot         *SingleShot
	history            store.HistoryStore
	defaultTemperature float64
}

// NewGenerationService 创建生成编排服务。
func NewGenerationService(pipeline *Pipeline, singleShot *SingleShot, history store.HistoryStore, defaultTemperature float64) *GenerationService {
	return &GenerationService{
		pipeline:           pipeline,
		singleShot:         singleShot,
		history:            history,
		defaultTemperature: defaultTemperature,
	}
}

// Generate 执行一次生成:先分发策略,流水线失败时降级为单次生成,
// 全部失败作为终态错误上报。成功后两步持久化,输出写入失败保留查询行,
// 已生成的内容仍然返回给调用方。
func (s *GenerationService) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	if req == nil || req.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyPipeline
	}
	temperature := req.Temperature
	if temperature < 0 {
		temperature = s.defaultTemperature
	}

	m := metrics.GetScribeMetrics()

	var (
		content     string
		rawResearch string
		sources     []websearch.Result
		used        = strategy
		fallback    bool
	)

	switch strategy {
	case StrategyPipeline:
		result, err := s.pipeline.Generate(ctx, req.Topic)
		if err == nil {
			content = result.Content
			rawResearch = result.RawResearch
			sources = result.Sources
			break
		}

		// 流水线失败降级为单次生成,同一主题,不再重试
		logger.Warnw("pipeline failed, falling back to single-shot", "topic", req.Topic, "error", err.Error())
		fallback = true
		used = StrategySingle

		content, err = s.singleShot.Generate(ctx, req.Topic, temperature)
		if err != nil {
			m.RecordGeneration(strategy, fallback, err)
			return nil, fmt.Errorf("pipeline and fallback both failed: %w", err)
		}
	case StrategySingle:
		var err error
		content, err = s.singleShot.Generate(ctx, req.Topic, temperature)
		if err != nil {
			m.RecordGeneration(strategy, false, err)
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}

	m.RecordGeneration(used, fallback, nil)

	result := &GenerateResult{
		Topic:    req.Topic,
		Content:  content,
		Strategy: used,
		Fallback: fallback,
	}

	s.persist(ctx, req.Topic, content, rawResearch, sources, result)
	return result, nil
}

// persist 两步持久化:查询行、输出行加来源行。
// 输出写入失败时查询行有意保留,主题本身可供审计。
func (s *GenerationService) persist(ctx context.Context, topic, content, rawResearch string, sources []websearch.Result, result *GenerateResult) {
	queryID, err := s.history.SaveQuery(ctx, topic, model.QueryTypeArticle)
	if err != nil {
		logger.Errorw("failed to save query", "topic", topic, "error", err.Error())
		return
	}
	result.QueryID = queryID

	payload := &model.ContentPayload{
		FinalContent: content,
		RawResearch:  rawResearch,
		Topic:        topic,
		Timestamp:    time.Now().Format("2006-01-02 15:04:05"),
	}
	outputID, err := s.history.SaveOutput(ctx, queryID, topic, payload, model.ContentTypeArticle)
	if err != nil {
		logger.Errorw("failed to save output, query row kept", "query_id", queryID, "error", err.Error())
		return
	}

	if len(sources) > 0 {
		rows := make([]model.Source, 0, len(sources))
		for _, hit := range sources {
			rows = append(rows, model.Source{URL: hit.URL, Title: hit.Title})
		}
		if err := s.history.SaveSources(ctx, outputID, rows); err != nil {
			// 来源是附加的出处记录,写入失败不影响输出本身
			logger.Warnw("failed to save sources", "output_id", outputID, "error", err.Error())
		}
	}

	result.Persisted = true
}
