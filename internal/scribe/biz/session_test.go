package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/scribe-x/pkg/id"
)

func TestSessionManagerCreateAndGet(t *testing.T) {
	m := NewSessionManager(NewEngineCache())

	session := m.Create()
	assert.True(t, id.IsValid(session.ID))
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = m.Get("01UNKNOWNSESSIONID00000000")
	assert.Error(t, err)
}

func TestSessionTranscriptOrder(t *testing.T) {
	m := NewSessionManager(NewEngineCache())
	session := m.Create()

	session.Append("user", "how many rows?")
	session.Append("assistant", "three")
	session.Append("user", "which is largest?")

	transcript := session.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, "user", transcript[0].Role)
	assert.Equal(t, "how many rows?", transcript[0].Content)
	assert.Equal(t, "assistant", transcript[1].Role)
	assert.Equal(t, "which is largest?", transcript[2].Content)
}

func TestSessionReset(t *testing.T) {
	m := NewSessionManager(NewEngineCache())
	session := m.Create()

	session.Append("user", "q")
	session.Append("assistant", "a")
	session.RecordFile("data.csv")

	session.Reset()

	// 对话清空,文件记录保留
	assert.Empty(t, session.Transcript())
	assert.Equal(t, []string{"data.csv"}, session.Files())
}

func TestSessionRecordFileDeduplicates(t *testing.T) {
	m := NewSessionManager(NewEngineCache())
	session := m.Create()

	session.RecordFile("data.csv")
	session.RecordFile("data.csv")
	session.RecordFile("other.xlsx")

	assert.Equal(t, []string{"data.csv", "other.xlsx"}, session.Files())
}

func TestSessionEndTearsDownEngines(t *testing.T) {
	cache := NewEngineCache()
	m := NewSessionManager(cache)
	session := m.Create()

	engine, vectors := buildTestEngine(t, "qa_sess")
	_, _, err := cache.GetOrBuild(context.Background(), session.ID, "data.csv", func(context.Context) (*QueryEngine, error) {
		return engine, nil
	})
	require.NoError(t, err)

	require.NoError(t, m.End(context.Background(), session.ID))

	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, cache.Len())

	_, err = vectors.Search(context.Background(), "qa_sess", make([]float32, testDim), 1)
	assert.Error(t, err)

	// 重复结束同一会话报错
	assert.Error(t, m.End(context.Background(), session.ID))
}
