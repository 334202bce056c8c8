package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/scribe-x/internal/model"
)

// newTestHistories 在内存 SQLite 上构建历史存储。
func newTestHistories(t *testing.T) *histories {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&model.Query{}, &model.Output{}, &model.Source{}))
	return &histories{db: db}
}

// seedQuery 写入一条带输出的历史记录并指定创建时间。
func seedQuery(t *testing.T, s *histories, text, title string, createdAt time.Time) uint64 {
	t.Helper()
	ctx := context.Background()

	id, err := s.SaveQuery(ctx, text, model.QueryTypeArticle)
	require.NoError(t, err)

	if title != "" {
		_, err := s.SaveOutput(ctx, id, title, &model.ContentPayload{FinalContent: "content of " + title}, model.ContentTypeArticle)
		require.NoError(t, err)
	}

	// 回填创建时间,使日期过滤可控
	require.NoError(t, s.db.Model(&model.Query{}).Where("id = ?", id).Update("created_at", createdAt).Error)
	return id
}

func TestSaveQueryAndDetail(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	id, err := s.SaveQuery(ctx, "quantum computing", model.QueryTypeArticle)
	require.NoError(t, err)
	require.NotZero(t, id)

	payload := &model.ContentPayload{
		FinalContent: "final article",
		RawResearch:  "- research note",
		Topic:        "quantum computing",
	}
	outputID, err := s.SaveOutput(ctx, id, "Article: quantum computing", payload, model.ContentTypeArticle)
	require.NoError(t, err)
	require.NotZero(t, outputID)
	require.NoError(t, s.SaveSources(ctx, outputID, []model.Source{
		{URL: "https://example.com/a", Title: "Source A"},
		{URL: "https://example.com/b", Title: "Source B"},
	}))

	detail, err := s.Detail(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "quantum computing", detail.Query.QueryText)
	require.Len(t, detail.Outputs, 1)
	assert.Equal(t, "Article: quantum computing", detail.Outputs[0].Title)
	assert.Contains(t, detail.Outputs[0].Content, "final article")
	require.Len(t, detail.Sources, 2)
	assert.Equal(t, "https://example.com/a", detail.Sources[0].URL)
	assert.Equal(t, outputID, detail.Sources[0].OutputID)
}

func TestDetailNotFound(t *testing.T) {
	s := newTestHistories(t)

	_, err := s.Detail(context.Background(), 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestQueryRowSurvivesWithoutOutput(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	// 只保存查询,不保存输出:模拟生成中途失败的部分保存
	id, err := s.SaveQuery(ctx, "failed generation", model.QueryTypeArticle)
	require.NoError(t, err)

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{Search: "failed generation"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Empty(t, entries[0].Title)
	assert.Nil(t, entries[0].Content)
}

func TestFilteredHistoryCarriesContent(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	seedQuery(t, s, "machine learning trends", "ML Article", time.Now().UTC())

	entries, err := s.FilteredHistory(ctx, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Content)
	assert.Contains(t, *entries[0].Content, "content of ML Article")
}

func TestFilteredHistorySearchMatchesQueryAndTitle(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedQuery(t, s, "machine learning trends", "ML Article", now)
	seedQuery(t, s, "cooking recipes", "Guide to Machine Learning", now)
	seedQuery(t, s, "gardening tips", "Plants", now)

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{Search: "machine learning"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFilteredHistorySearchCaseInsensitive(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	seedQuery(t, s, "Machine Learning Trends", "", time.Now().UTC())

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{Search: "mAcHiNe"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFilteredHistoryDateBoundsInclusive(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	day := func(offset int) time.Time {
		return time.Date(2026, 8, 10+offset, 15, 30, 0, 0, time.UTC)
	}

	seedQuery(t, s, "before range", "", day(-1))
	inStart := seedQuery(t, s, "on start date", "", day(0))
	inEnd := seedQuery(t, s, "on end date", "", day(2))
	seedQuery(t, s, "after range", "", day(3))

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ids := []uint64{entries[0].ID, entries[1].ID}
	assert.Contains(t, ids, inStart)
	assert.Contains(t, ids, inEnd)
}

func TestFilteredHistoryDateBoundsSecondGranularity(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	// 起始日零点整包含,前一秒排除;结束日最后一秒包含,次日零点排除
	seedQuery(t, s, "one second early", "", time.Date(2026, 8, 9, 23, 59, 59, 0, time.UTC))
	atMidnight := seedQuery(t, s, "at start midnight", "", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	lastSecond := seedQuery(t, s, "last second of end date", "", time.Date(2026, 8, 12, 23, 59, 59, 0, time.UTC))
	seedQuery(t, s, "next midnight", "", time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC))

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC)

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ids := []uint64{entries[0].ID, entries[1].ID}
	assert.Contains(t, ids, atMidnight)
	assert.Contains(t, ids, lastSecond)
}

func TestFilteredHistoryCombinedFilters(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	target := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	other := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	matched := seedQuery(t, s, "golang generics", "", target)
	seedQuery(t, s, "golang channels", "", other) // 文本匹配但日期不符
	seedQuery(t, s, "python asyncio", "", target) // 日期匹配但文本不符

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{
		Search:    "golang",
		StartDate: &start,
		EndDate:   &end,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, matched, entries[0].ID)
}

func TestFilteredHistorySortNewestAndOldest(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	early := seedQuery(t, s, "first", "", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	late := seedQuery(t, s, "second", "", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	newest, err := s.FilteredHistory(ctx, &HistoryFilter{Sort: SortNewest})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, late, newest[0].ID)

	oldest, err := s.FilteredHistory(ctx, &HistoryFilter{Sort: SortOldest})
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, early, oldest[0].ID)
}

func TestFilteredHistoryRelevanceOrdering(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// 较早但更相关的记录应排在前面
	exact := seedQuery(t, s, "quantum computing basics", "", now.Add(-48*time.Hour))
	partial := seedQuery(t, s, "quantum computing history overview with extra context", "", now)

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{
		Search: "quantum computing",
		Sort:   SortRelevance,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, exact, entries[0].ID)
	assert.Equal(t, partial, entries[1].ID)
}

func TestFilteredHistoryRelevanceWithoutSearchFallsBack(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	seedQuery(t, s, "first", "", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	late := seedQuery(t, s, "second", "", time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	entries, err := s.FilteredHistory(ctx, &HistoryFilter{Sort: SortRelevance})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, late, entries[0].ID)
}

func TestFilteredHistoryLimit(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < HistoryLimit+5; i++ {
		seedQuery(t, s, "topic", "", base.Add(time.Duration(i)*time.Hour))
	}

	entries, err := s.FilteredHistory(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, entries, HistoryLimit)
}

func TestCount(t *testing.T) {
	s := newTestHistories(t)
	ctx := context.Background()

	seedQuery(t, s, "a", "", time.Now().UTC())
	seedQuery(t, s, "b", "", time.Now().UTC())

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
