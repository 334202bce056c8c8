// Package handler provides HTTP handlers for the scribe service.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/scribe-x/internal/pkg/httputils"
	"github.com/kart-io/scribe-x/internal/scribe/biz"
	"github.com/kart-io/scribe-x/pkg/utils/errors"
)

// generateTimeout 限制单次生成请求的总时长,
// 流水线策略包含网络搜索与两次 LLM 调用。
const generateTimeout = 5 * time.Minute

// GenerateHandler handles content generation requests.
type GenerateHandler struct {
	svc *biz.GenerationService
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(svc *biz.GenerationService) *GenerateHandler {
	return &GenerateHandler{svc: svc}
}

// GenerateRequest is the request body for content generation.
type GenerateRequest struct {
	// Topic is the subject to write about.
	Topic string `json:"topic" binding:"required"`
	// Strategy selects the generation path, "pipeline" (default) or "single".
	Strategy string `json:"strategy"`
	// Temperature overrides the configured sampling temperature, [0,1].
	Temperature *float64 `json:"temperature"`
}

// Generate handles POST /v1/generate.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	switch req.Strategy {
	case "", biz.StrategyPipeline, biz.StrategySingle:
	default:
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessagef("unknown strategy %q", req.Strategy), nil)
		return
	}

	temperature := -1.0
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 1 {
			httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessage("temperature must be in [0,1]"), nil)
			return
		}
		temperature = *req.Temperature
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), generateTimeout)
	defer cancel()

	result, err := h.svc.Generate(ctx, &biz.GenerateRequest{
		Topic:       req.Topic,
		Strategy:    req.Strategy,
		Temperature: temperature,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteResponse(c, errors.ErrTimeout.WithMessage("generation took too long, try again or simplify the topic"), nil)
			return
		}
		httputils.WriteResponse(c, errors.ErrScribeGenerateFailed.WithMessage(err.Error()), nil)
		return
	}

	httputils.WriteResponse(c, nil, result)
}
