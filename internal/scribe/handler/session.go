package handler

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/pkg/httputils"
	"github.com/kart-io/scribe-x/internal/scribe/biz"
	"github.com/kart-io/scribe-x/pkg/utils/errors"
)

// askTimeout 限制一次流式问答的总时长,包含检索与流式生成。
const askTimeout = 2 * time.Minute

// SessionHandler handles document Q&A session requests.
type SessionHandler struct {
	sessions *biz.SessionManager
	docqa    *biz.DocQAService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *biz.SessionManager, docqa *biz.DocQAService) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		docqa:    docqa,
	}
}

// Create handles POST /v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	session := h.sessions.Create()
	httputils.WriteResponse(c, nil, gin.H{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
	})
}

// Upload handles POST /v1/sessions/:id/documents.
// 接收 multipart 表单中的 file 字段,索引并缓存查询引擎。
func (h *SessionHandler) Upload(c *gin.Context) {
	sessionID := c.Param("id")

	file, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessage("missing multipart field \"file\""), nil)
		return
	}

	src, err := file.Open()
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessage(err.Error()), nil)
		return
	}
	defer func() {
		_ = src.Close()
	}()

	result, err := h.docqa.Upload(c.Request.Context(), sessionID, file.Filename, src)
	if err != nil {
		httputils.WriteResponse(c, mapDocQAErr(err, errors.ErrScribeIndexFailed), nil)
		return
	}

	httputils.WriteResponse(c, nil, result)
}

// AskRequest is the request body for a streaming question.
type AskRequest struct {
	// Question about the uploaded document.
	Question string `json:"question" binding:"required"`
	// Filename selects which uploaded document to ask; defaults to the
	// most recently uploaded one.
	Filename string `json:"filename"`
}

// Ask handles POST /v1/sessions/:id/ask.
// 以 SSE 流式返回回答片段:delta 事件携带文本增量,done 事件表示完成,
// 中途出错发送 error 事件后断流。
func (h *SessionHandler) Ask(c *gin.Context) {
	sessionID := c.Param("id")

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrScribeInvalidRequest.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), askTimeout)
	defer cancel()

	stream, err := h.docqa.AskStream(ctx, sessionID, req.Filename, req.Question)
	if err != nil {
		httputils.WriteResponse(c, mapDocQAErr(err, errors.ErrScribeStreamFailed), nil)
		return
	}
	defer func() {
		_ = stream.Close()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// 首个事件之后状态码已经发出,后续错误只能通过 error 事件上报
	c.Stream(func(w io.Writer) bool {
		fragment, err := stream.Recv()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				c.SSEvent("done", gin.H{"session_id": sessionID})
				return false
			}
			logger.Errorw("answer stream interrupted", "session_id", sessionID, "error", err.Error())
			c.SSEvent("error", gin.H{"message": err.Error()})
			return false
		}
		c.SSEvent("delta", fragment)
		return true
	})
}

// Reset handles POST /v1/sessions/:id/reset.
// 清空对话记录,已索引的文档与引擎保留。
func (h *SessionHandler) Reset(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeSessionNotFound.WithMessage(err.Error()), nil)
		return
	}

	session.Reset()
	httputils.WriteResponse(c, nil, gin.H{"session_id": session.ID})
}

// Transcript handles GET /v1/sessions/:id/transcript.
func (h *SessionHandler) Transcript(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		httputils.WriteResponse(c, errors.ErrScribeSessionNotFound.WithMessage(err.Error()), nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{
		"session_id": session.ID,
		"messages":   session.Transcript(),
		"files":      session.Files(),
	})
}

// End handles DELETE /v1/sessions/:id.
// 结束会话并释放其全部查询引擎与向量集合。
func (h *SessionHandler) End(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.sessions.End(c.Request.Context(), sessionID); err != nil {
		httputils.WriteResponse(c, errors.ErrScribeSessionNotFound.WithMessage(err.Error()), nil)
		return
	}

	httputils.WriteResponse(c, nil, gin.H{"session_id": sessionID})
}

// mapDocQAErr 将文档问答层错误映射为对外错误码,未识别的错误落在 fallback 上。
func mapDocQAErr(err error, fallback *errors.Errno) *errors.Errno {
	switch {
	case stderrors.Is(err, biz.ErrSessionNotFound):
		return errors.ErrScribeSessionNotFound.WithMessage(err.Error())
	case stderrors.Is(err, biz.ErrUnsupportedFile):
		return errors.ErrScribeUnsupportedFile.WithMessage(err.Error())
	case stderrors.Is(err, biz.ErrNoDocument), stderrors.Is(err, biz.ErrNotIndexed):
		return errors.ErrScribeDocumentMissing.WithMessage(err.Error())
	case stderrors.Is(err, biz.ErrLLMUnavailable):
		return errors.ErrScribeLLMUnavailable.WithMessage(err.Error())
	case stderrors.Is(err, biz.ErrEngineBuild):
		return errors.ErrScribeEngineFailed.WithMessage(err.Error())
	default:
		return fallback.WithMessage(err.Error())
	}
}
