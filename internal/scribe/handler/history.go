package handler

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kart-io/scribe-x/internal/pkg/httputils"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/utils/errors"
)

// dateLayout 历史过滤的日期格式,边界按整天解释。
const dateLayout = "2006-01-02"

// HistoryHandler handles research history requests.
type HistoryHandler struct {
	history store.HistoryStore
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(history store.HistoryStore) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List handles GET /v1/history.
// 支持 search、start_date、end_date(YYYY-MM-DD,闭区间)与 sort
// (newest/oldest/relevance)查询参数,最多返回 store.HistoryLimit 行。
func (h *HistoryHandler) List(c *gin.Context) {
	filter := &store.HistoryFilter{
		Search: c.Query("search"),
	}

	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httputils.WriteResponse(c, errors.ErrScribeInvalidDateRange.WithMessagef("invalid start_date %q, expected YYYY-MM-DD", raw), nil)
			return
		}
		filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			httputils.WriteResponse(c, errors.ErrScribeInvalidDateRange.WithMessagef("invalid end_date %q, expected YYYY-MM-DD", raw), nil)
			return
		}
		filter.EndDate = &t
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		httputils.WriteResponse(c, errors.ErrScribeInvalidDateRange.WithMessage("end_date is before start_date"), nil)
		return
	}

	switch sort := store.SortOrder(c.Query("sort")); sort {
	case "", store.SortNewest:
		filter.Sort = store.SortNewest
	case store.SortOldest, store.SortRelevance:
		filter.Sort = sort
	default:
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessagef("unknown sort %q", sort), nil)
		return
	}

	entries, err := h.history.FilteredHistory(c.Request.Context(), filter)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeStoreUnavailable.WithMessage(err.Error()), nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// Detail handles GET /v1/history/:id.
func (h *HistoryHandler) Detail(c *gin.Context) {
	queryID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessagef("invalid query id %q", c.Param("id")), nil)
		return
	}

	detail, err := h.history.Detail(c.Request.Context(), queryID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			httputils.WriteResponse(c, errors.ErrScribeQueryNotFound, nil)
			return
		}
		httputils.WriteResponse(c, errors.ErrScribeStoreUnavailable.WithMessage(err.Error()), nil)
		return
	}

	httputils.WriteResponse(c, nil, detail)
}
