package biz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/internal/pkg/textutil"
	"github.com/kart-io/scribe-x/internal/scribe/metrics"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/llm"
)

var (
	// ErrNoDocument 会话中尚无任何上传文件。
	ErrNoDocument = errors.New("no document uploaded")
	// ErrNotIndexed 指定文件在会话中没有对应的查询引擎。
	ErrNotIndexed = errors.New("document not indexed")
)

// UploadResult 文档上传与索引的结果。
type UploadResult struct {
	// Filename 上传的文件名。
	Filename string `json:"filename"`
	// Cached 是否命中已有引擎(同会话同文件名不重复索引)。
	Cached bool `json:"cached"`
	// Chunks 索引的分块数。
	Chunks int `json:"chunks"`
	// Info 文件预览元数据。
	Info *FileInfo `json:"info,omitempty"`
}

// DocQAService 文档问答编排层:上传→索引→缓存→流式问答。
type DocQAService struct {
	indexer   *Indexer
	builder   *EngineBuilder
	sessions  *SessionManager
	history   store.HistoryStore
	uploadDir string
}

// NewDocQAService 创建文档问答服务。
func NewDocQAService(indexer *Indexer, builder *EngineBuilder, sessions *SessionManager, history store.HistoryStore, uploadDir string) *DocQAService {
	return &DocQAService{
		indexer:   indexer,
		builder:   builder,
		sessions:  sessions,
		history:   history,
		uploadDir: uploadDir,
	}
}

// collectionFor 由 (session, filename) 派生向量集合名。
// 哈希保证集合名只含合法字符且同键恒定。
func collectionFor(sessionID, filename string) string {
	return "qa_" + textutil.HashString(cacheKey(sessionID, filename))
}

// Upload 接收上传文件并构建查询引擎。
// 扩展名在落盘前校验;同会话同文件名直接复用缓存的引擎,不再走索引。
func (s *DocQAService) Upload(ctx context.Context, sessionID, filename string, src io.Reader) (*UploadResult, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	fileType, err := DetectFileType(filename)
	if err != nil {
		return nil, err
	}

	// 已有引擎时不落盘不索引
	if engine, ok := s.sessions.Cache().Get(sessionID, filename); ok {
		metrics.GetScribeMetrics().RecordEngineCache(true)
		return &UploadResult{Filename: filename, Cached: true, Chunks: engine.ChunkCount()}, nil
	}

	path, err := s.stageFile(sessionID, filename, src)
	if err != nil {
		return nil, err
	}

	var info *FileInfo
	engine, cached, err := s.sessions.Cache().GetOrBuild(ctx, sessionID, filename, func(ctx context.Context) (*QueryEngine, error) {
		docs, fileInfo, err := s.indexer.Index(path)
		if err != nil {
			return nil, err
		}
		info = fileInfo
		return s.builder.Build(ctx, collectionFor(sessionID, filename), fileType, docs)
	})
	if err != nil {
		return nil, err
	}

	session.RecordFile(filename)
	logger.Infow("document ready", "session_id", sessionID, "file", filename, "cached", cached)

	return &UploadResult{
		Filename: filename,
		Cached:   cached,
		Chunks:   engine.ChunkCount(),
		Info:     info,
	}, nil
}

// stageFile 将上传内容写入会话暂存目录。
func (s *DocQAService) stageFile(sessionID, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(s.uploadDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer func() {
		_ = dst.Close()
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, nil
}

// AskStream 对会话中已索引的文件发起流式问答。
// 用户消息立即进入对话记录;助手消息在流完整结束后追加并持久化,
// 中途出错丢弃部分累积,不产生任何持久化记录。
func (s *DocQAService) AskStream(ctx context.Context, sessionID, filename, question string) (llm.Stream, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if filename == "" {
		files := session.Files()
		if len(files) == 0 {
			return nil, fmt.Errorf("%w in session %s", ErrNoDocument, sessionID)
		}
		filename = files[len(files)-1]
	}

	engine, ok := s.sessions.Cache().Get(sessionID, filename)
	if !ok {
		return nil, fmt.Errorf("document %s in session %s: %w", filename, sessionID, ErrNotIndexed)
	}

	stream, err := engine.AnswerStream(ctx, question)
	if err != nil {
		metrics.GetScribeMetrics().RecordAnswer(err)
		return nil, err
	}

	session.Append("user", question)

	return &recordedStream{
		inner:    stream,
		service:  s,
		session:  session,
		filename: filename,
		question: question,
	}, nil
}

// recordedStream 包装底层流:完整读尽后记录助手消息并持久化问答。
type recordedStream struct {
	inner    llm.Stream
	service  *DocQAService
	session  *Session
	filename string
	question string

	answer strings.Builder
	done   bool
}

// Recv 读取下一段增量文本。
func (r *recordedStream) Recv() (string, error) {
	fragment, err := r.inner.Recv()
	if err == io.EOF {
		if !r.done {
			r.done = true
			r.finish()
		}
		return "", io.EOF
	}
	if err != nil {
		// 中途失败:丢弃部分累积,只记指标
		metrics.GetScribeMetrics().RecordStreamError()
		metrics.GetScribeMetrics().RecordAnswer(err)
		return "", err
	}

	r.answer.WriteString(fragment)
	return fragment, nil
}

// Close 关闭底层流。未读尽即关闭视为放弃,不做持久化。
func (r *recordedStream) Close() error {
	return r.inner.Close()
}

// finish 流正常结束:追加助手消息,写入历史存储。
func (r *recordedStream) finish() {
	answer := r.answer.String()
	r.session.Append("assistant", answer)
	metrics.GetScribeMetrics().RecordAnswer(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queryID, err := r.service.history.SaveQuery(ctx, r.question, model.QueryTypeFileQA)
	if err != nil {
		logger.Errorw("failed to save question", "session_id", r.session.ID, "error", err.Error())
		return
	}

	payload := &model.ContentPayload{
		FinalContent: answer,
		Topic:        r.question,
		Timestamp:    time.Now().Format("2006-01-02 15:04:05"),
	}
	if _, err := r.service.history.SaveOutput(ctx, queryID, r.filename, payload, model.ContentTypeAnswer); err != nil {
		logger.Errorw("failed to save answer, query row kept", "query_id", queryID, "error", err.Error())
	}
}
