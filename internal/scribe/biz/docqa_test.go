package biz

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/pkg/options/docqa"
)

func newTestDocQA(t *testing.T, chat *mockChat, history *fakeHistory) (*DocQAService, *SessionManager) {
	t.Helper()

	builder, _ := newTestBuilder(chat)
	sessions := NewSessionManager(NewEngineCache())
	svc := NewDocQAService(NewIndexer(10), builder, sessions, history, t.TempDir())
	return svc, sessions
}

func TestDocQAUpload(t *testing.T) {
	svc, sessions := newTestDocQA(t, &mockChat{}, newFakeHistory())
	session := sessions.Create()

	result, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	assert.Equal(t, "sales.csv", result.Filename)
	assert.False(t, result.Cached)
	assert.Greater(t, result.Chunks, 0)
	require.NotNil(t, result.Info)
	assert.Equal(t, FileTypeCSV, result.Info.Type)
	assert.Equal(t, 3, result.Info.Rows)

	assert.Equal(t, []string{"sales.csv"}, session.Files())
}

func TestDocQAUploadCachedOnSecondCall(t *testing.T) {
	svc, sessions := newTestDocQA(t, &mockChat{}, newFakeHistory())
	session := sessions.Create()

	first, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	// 同会话同文件名直接命中,不重新索引
	second, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Chunks, second.Chunks)
}

func TestDocQAUploadRejectsUnsupportedExtension(t *testing.T) {
	svc, sessions := newTestDocQA(t, &mockChat{}, newFakeHistory())
	session := sessions.Create()

	_, err := svc.Upload(context.Background(), session.ID, "notes.txt", strings.NewReader("hi"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.Empty(t, session.Files())
}

func TestDocQAUploadUnknownSession(t *testing.T) {
	svc, _ := newTestDocQA(t, &mockChat{}, newFakeHistory())

	_, err := svc.Upload(context.Background(), "missing", "sales.csv", strings.NewReader(salesCSV))
	assert.Error(t, err)
}

func TestDocQAAskStream(t *testing.T) {
	chat := &mockChat{responses: []string{"The table holds three records in total."}}
	history := newFakeHistory()
	svc, sessions := newTestDocQA(t, chat, history)
	session := sessions.Create()

	_, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	stream, err := svc.AskStream(context.Background(), session.ID, "sales.csv", "How many records?")
	require.NoError(t, err)
	defer func() {
		_ = stream.Close()
	}()

	var answer string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		answer += fragment
	}
	assert.Equal(t, "The table holds three records in total.", answer)

	// 完整读尽后:对话记录含用户与助手两条,问答写入历史
	transcript := session.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "How many records?", transcript[0].Content)
	assert.Equal(t, "assistant", transcript[1].Role)
	assert.Equal(t, answer, transcript[1].Content)

	require.Len(t, history.queries, 1)
	assert.Equal(t, "How many records?", history.queries[0].QueryText)
	assert.Equal(t, model.QueryTypeFileQA, history.queries[0].QueryType)
	require.Len(t, history.outputs, 1)
	assert.Equal(t, "sales.csv", history.outputs[0].Title)
	assert.Equal(t, answer, history.outputs[0].Content)
}

func TestDocQAAskStreamDefaultsToLastFile(t *testing.T) {
	chat := &mockChat{responses: []string{"answer"}}
	svc, sessions := newTestDocQA(t, chat, newFakeHistory())
	session := sessions.Create()

	_, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	stream, err := svc.AskStream(context.Background(), session.ID, "", "question?")
	require.NoError(t, err)
	_ = stream.Close()
}

func TestDocQAAskStreamMidStreamErrorDiscardsPartial(t *testing.T) {
	chat := &mockChat{
		responses: []string{"partial answer that will fail"},
		streamErr: assert.AnError,
	}
	history := newFakeHistory()
	svc, sessions := newTestDocQA(t, chat, history)
	session := sessions.Create()

	_, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	stream, err := svc.AskStream(context.Background(), session.ID, "sales.csv", "question?")
	require.NoError(t, err)
	defer func() {
		_ = stream.Close()
	}()

	var streamErr error
	for {
		_, err := stream.Recv()
		if err != nil {
			streamErr = err
			break
		}
	}
	require.Error(t, streamErr)
	assert.NotErrorIs(t, streamErr, io.EOF)

	// 部分累积被丢弃:没有助手消息,没有持久化记录
	transcript := session.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Empty(t, history.queries)
}

func TestDocQAAskStreamWithoutDocument(t *testing.T) {
	svc, sessions := newTestDocQA(t, &mockChat{}, newFakeHistory())
	session := sessions.Create()

	_, err := svc.AskStream(context.Background(), session.ID, "", "question?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no document uploaded")
}

func TestDocQAPromptUsesConfiguredTemplate(t *testing.T) {
	chat := &mockChat{responses: []string{"answer"}}
	svc, sessions := newTestDocQA(t, chat, newFakeHistory())
	session := sessions.Create()

	_, err := svc.Upload(context.Background(), session.ID, "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	stream, err := svc.AskStream(context.Background(), session.ID, "sales.csv", "How many records?")
	require.NoError(t, err)
	for {
		if _, err := stream.Recv(); err != nil {
			break
		}
	}

	prompt := chat.lastPrompt()
	assert.Contains(t, prompt, docqa.DefaultQAPrompt[:20])
	assert.Contains(t, prompt, "Question: How many records?")
}
