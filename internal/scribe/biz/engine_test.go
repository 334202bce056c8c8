package biz

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/options/docqa"
)

const testDim = 8

func newTestBuilder(chat *mockChat) (*EngineBuilder, *store.MemoryStore) {
	vectors := store.NewMemoryStore()
	builder := NewEngineBuilder(&mockEmbedder{dim: testDim}, chat, vectors, &EngineBuilderConfig{
		TopK:         3,
		EmbeddingDim: testDim,
		QAPrompt:     docqa.DefaultQAPrompt,
	})
	return builder, vectors
}

func testDocs() []Document {
	return []Document{{Name: "sales.csv", Text: "Total Records: 3\nColumns: region, units"}}
}

func TestEngineBuild(t *testing.T) {
	builder, vectors := newTestBuilder(&mockChat{})

	engine, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, testDocs())
	require.NoError(t, err)

	assert.Equal(t, "qa_test", engine.Collection())
	assert.Equal(t, 1, engine.ChunkCount())

	count, err := vectors.GetStats(context.Background(), "qa_test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEngineBuildNoDocuments(t *testing.T) {
	builder, _ := newTestBuilder(&mockChat{})

	_, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, nil)
	assert.Error(t, err)
}

func TestEngineBuildEmbedFailure(t *testing.T) {
	vectors := store.NewMemoryStore()
	builder := NewEngineBuilder(&mockEmbedder{dim: testDim, err: assert.AnError}, &mockChat{}, vectors, &EngineBuilderConfig{
		TopK:         3,
		EmbeddingDim: testDim,
		QAPrompt:     docqa.DefaultQAPrompt,
	})

	_, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, testDocs())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMUnavailable)
}

// failingVectors 建集合恒定失败的向量存储。
type failingVectors struct {
	store.VectorStore
}

func (f *failingVectors) CreateCollection(context.Context, *store.CollectionConfig) error {
	return assert.AnError
}

func TestEngineBuildVectorStoreFailure(t *testing.T) {
	builder := NewEngineBuilder(&mockEmbedder{dim: testDim}, &mockChat{}, &failingVectors{}, &EngineBuilderConfig{
		TopK:         3,
		EmbeddingDim: testDim,
		QAPrompt:     docqa.DefaultQAPrompt,
	})

	_, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, testDocs())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngineBuild)
}

func TestEngineAnswerPromptTemplate(t *testing.T) {
	chat := &mockChat{responses: []string{"There are 3 records."}}
	builder, _ := newTestBuilder(chat)

	engine, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, testDocs())
	require.NoError(t, err)

	answer, err := engine.Answer(context.Background(), "How many records?")
	require.NoError(t, err)
	assert.Equal(t, "There are 3 records.", answer)

	// 模板占位符被实际内容替换
	prompt := chat.lastPrompt()
	assert.Contains(t, prompt, "data from a CSV file")
	assert.Contains(t, prompt, "Total Records: 3")
	assert.Contains(t, prompt, "Question: How many records?")
	assert.NotContains(t, prompt, "{{")
}

func TestEngineAnswerStreamReconstruction(t *testing.T) {
	full := "The data contains exactly three records in total."
	chat := &mockChat{responses: []string{full, full}}
	builder, _ := newTestBuilder(chat)

	engine, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, testDocs())
	require.NoError(t, err)

	// 流式拼接结果与非流式完整回答一致
	stream, err := engine.AnswerStream(context.Background(), "How many records?")
	require.NoError(t, err)
	defer func() {
		_ = stream.Close()
	}()

	var assembled string
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assembled += fragment
	}

	answer, err := engine.Answer(context.Background(), "How many records?")
	require.NoError(t, err)
	assert.Equal(t, answer, assembled)
}

func TestEngineTeardown(t *testing.T) {
	builder, vectors := newTestBuilder(&mockChat{})

	engine, err := builder.Build(context.Background(), "qa_test", FileTypeCSV, testDocs())
	require.NoError(t, err)

	require.NoError(t, engine.Teardown(context.Background()))

	_, err = vectors.Search(context.Background(), "qa_test", make([]float32, testDim), 1)
	assert.Error(t, err)
}
