package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/scribe-x/internal/pkg/httputils"
	"github.com/kart-io/scribe-x/internal/scribe/biz"
	"github.com/kart-io/scribe-x/internal/scribe/metrics"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/utils/errors"
)

// OpsHandler handles health and stats requests.
type OpsHandler struct {
	sessions *biz.SessionManager
	history  store.HistoryStore
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(sessions *biz.SessionManager, history store.HistoryStore) *OpsHandler {
	return &OpsHandler{
		sessions: sessions,
		history:  history,
	}
}

// Healthz handles GET /healthz.
// 历史存储不可达时返回 503,存活的会话数随响应带出。
func (h *OpsHandler) Healthz(c *gin.Context) {
	queries, err := h.history.Count(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeStoreUnavailable.WithMessage(err.Error()), nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"status":          "ok",
		"active_sessions": h.sessions.Count(),
		"total_queries":   queries,
	})
}

// Stats handles GET /v1/stats.
func (h *OpsHandler) Stats(c *gin.Context) {
	httputils.WriteResponse(c, nil, metrics.GetScribeMetrics().Stats())
}
