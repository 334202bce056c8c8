package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/pkg/id"
)

// ErrSessionNotFound 会话不存在或已结束。
var ErrSessionNotFound = errors.New("session not found")

// Session 一次文档问答会话的显式上下文:
// 会话标识、对话记录和已上传文件列表。引擎句柄由 EngineCache 持有。
type Session struct {
	// ID 会话标识,ULID。
	ID string `json:"id"`
	// CreatedAt 会话创建时间。
	CreatedAt time.Time `json:"created_at"`

	mu         sync.Mutex
	transcript []model.ChatMessage
	files      []string
}

// Append 追加一条对话消息,顺序严格为追加序。
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, model.ChatMessage{
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// Transcript 返回对话记录的副本。
func (s *Session) Transcript() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Reset 清空对话记录,已上传文件和引擎不受影响。
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}

// RecordFile 记录会话内上传的文件名。
func (s *Session) RecordFile(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f == filename {
			return
		}
	}
	s.files = append(s.files, filename)
}

// Files 返回会话内上传的文件名副本。
func (s *Session) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// SessionManager 会话生命周期管理。
// 创建时分配 ULID,结束时连同引擎缓存一并清理。
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cache    *EngineCache
}

// NewSessionManager 创建会话管理器。
func NewSessionManager(cache *EngineCache) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		cache:    cache,
	}
}

// Create 创建新会话。
func (m *SessionManager) Create() *Session {
	session := &Session{
		ID:        id.New(),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	logger.Infow("session created", "session_id", session.ID)
	return session
}

// Get 按 ID 查找会话。
func (m *SessionManager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return session, nil
}

// End 结束会话:删除会话状态并拆除其全部查询引擎。
func (m *SessionManager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	m.cache.TeardownSession(ctx, sessionID)
	logger.Infow("session ended", "session_id", sessionID)
	return nil
}

// Count 返回在线会话数。
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cache 返回会话共享的引擎缓存。
func (m *SessionManager) Cache() *EngineCache {
	return m.cache
}
