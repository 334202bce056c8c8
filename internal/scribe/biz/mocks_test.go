package biz

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/llm"
)

// mockChat 脚本化的 ChatProvider:按调用顺序返回预置回复。
type mockChat struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	err       error
	streamErr error // 流式生成中途返回的错误
}

func (m *mockChat) next(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("no scripted response for call %d", m.calls+1)
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *mockChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return m.next(last)
}

func (m *mockChat) Generate(_ context.Context, prompt string, _ *llm.GenerateOptions) (string, error) {
	return m.next(prompt)
}

func (m *mockChat) GenerateStream(_ context.Context, prompt string, _ *llm.GenerateOptions) (llm.Stream, error) {
	content, err := m.next(prompt)
	if err != nil {
		return nil, err
	}
	stream := &mockStream{content: []rune(content), chunk: 4, failAfter: -1}
	if m.streamErr != nil {
		stream.err = m.streamErr
		stream.failAfter = 1
	}
	return stream, nil
}

func (m *mockChat) Name() string { return "mock" }

func (m *mockChat) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// mockStream 把内容按固定大小切片吐出;err 非空时在中途返回该错误。
type mockStream struct {
	content   []rune
	chunk     int
	offset    int
	failAfter int // 吐出多少段后失败,-1 表示不失败
	emitted   int
	err       error
	closed    bool
}

func (s *mockStream) Recv() (string, error) {
	if s.failAfter >= 0 && s.emitted >= s.failAfter {
		return "", s.err
	}
	if s.offset >= len(s.content) {
		return "", io.EOF
	}

	end := s.offset + s.chunk
	if end > len(s.content) {
		end = len(s.content)
	}
	fragment := string(s.content[s.offset:end])
	s.offset = end
	s.emitted++
	return fragment, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

// mockEmbedder 确定性嵌入:由文本长度和首字符生成向量。
type mockEmbedder struct {
	dim int
	err error
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	v := make([]float32, m.dim)
	for i := range v {
		v[i] = float32((len(text)+i)%7) + 1
	}
	if len(text) > 0 {
		v[0] = float32(text[0])
	}
	return v, nil
}

func (m *mockEmbedder) Name() string { return "mock-embed" }

// fakeHistory 记录调用的 HistoryStore 假实现。
type fakeHistory struct {
	mu          sync.Mutex
	nextID      uint64
	queries     []model.Query
	outputs     []model.Output
	sources     []model.Source
	queryErr    error
	outputErr   error
	sourcesErr  error
	savedTitles []string
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{}
}

func (f *fakeHistory) SaveQuery(_ context.Context, text, queryType string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queryErr != nil {
		return 0, f.queryErr
	}
	f.nextID++
	f.queries = append(f.queries, model.Query{ID: f.nextID, QueryText: text, QueryType: queryType})
	return f.nextID, nil
}

func (f *fakeHistory) SaveOutput(_ context.Context, queryID uint64, title string, payload *model.ContentPayload, contentType string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.outputErr != nil {
		return 0, f.outputErr
	}
	f.nextID++
	f.outputs = append(f.outputs, model.Output{ID: f.nextID, QueryID: queryID, Title: title, Content: payload.FinalContent, ContentType: contentType})
	f.savedTitles = append(f.savedTitles, title)
	return f.nextID, nil
}

func (f *fakeHistory) SaveSources(_ context.Context, outputID uint64, sources []model.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sourcesErr != nil {
		return f.sourcesErr
	}
	for _, s := range sources {
		s.OutputID = outputID
		f.sources = append(f.sources, s)
	}
	return nil
}

func (f *fakeHistory) FilteredHistory(_ context.Context, _ *store.HistoryFilter) ([]model.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistory) Detail(_ context.Context, _ uint64) (*model.QueryDetail, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeHistory) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.queries)), nil
}
