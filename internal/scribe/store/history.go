package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/scribe-x/internal/model"
	"github.com/kart-io/scribe-x/internal/pkg/textutil"
	"github.com/kart-io/scribe-x/pkg/utils/json"
)

// relevanceCandidateLimit 相关度排序时参与打分的候选行数上限。
// 相关度在应用层计算,需要先取出一批候选再排序截断。
const relevanceCandidateLimit = 200

var (
	once    sync.Once
	factory *datastore
)

// datastore 基于 GORM 的存储工厂实现。
type datastore struct {
	db *gorm.DB
}

var _ Factory = (*datastore)(nil)

// NewStore 创建存储工厂并完成表结构迁移。
// 进程内只初始化一次,后续调用返回同一实例。
func NewStore(db *gorm.DB) (Factory, error) {
	var migrateErr error
	once.Do(func() {
		migrateErr = db.AutoMigrate(
			&model.Query{},
			&model.Output{},
			&model.Source{},
		)
		if migrateErr == nil {
			factory = &datastore{db: db}
		}
	})

	if migrateErr != nil {
		return nil, fmt.Errorf("迁移历史表失败: %w", migrateErr)
	}
	if factory == nil {
		return nil, fmt.Errorf("存储工厂未初始化")
	}
	return factory, nil
}

// History 返回历史记录存储。
func (ds *datastore) History() HistoryStore {
	return &histories{db: ds.db}
}

// Ping 检查数据库连通性。
func (ds *datastore) Ping(ctx context.Context) error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接。
func (ds *datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// histories 实现 HistoryStore。
type histories struct {
	db *gorm.DB
}

var _ HistoryStore = (*histories)(nil)

// SaveQuery 记录一次用户请求。
func (s *histories) SaveQuery(ctx context.Context, queryText, queryType string) (uint64, error) {
	query := &model.Query{
		QueryText: queryText,
		QueryType: queryType,
	}
	if err := s.db.WithContext(ctx).Create(query).Error; err != nil {
		return 0, fmt.Errorf("保存查询记录失败: %w", err)
	}
	return query.ID, nil
}

// SaveOutput 为查询附加一条输出并返回输出 ID。
// 输出写入失败时已提交的查询行保持不变,调用方可据此发现部分保存。
func (s *histories) SaveOutput(ctx context.Context, queryID uint64, title string, payload *model.ContentPayload, contentType string) (uint64, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("序列化输出内容失败: %w", err)
	}

	output := &model.Output{
		QueryID:     queryID,
		Title:       title,
		Content:     string(content),
		ContentType: contentType,
	}
	if err := s.db.WithContext(ctx).Create(output).Error; err != nil {
		return 0, fmt.Errorf("保存输出记录失败: %w", err)
	}
	return output.ID, nil
}

// SaveSources 为输出附加来源列表。
func (s *histories) SaveSources(ctx context.Context, outputID uint64, sources []model.Source) error {
	if len(sources) == 0 {
		return nil
	}

	for i := range sources {
		sources[i].ID = 0
		sources[i].OutputID = outputID
	}
	if err := s.db.WithContext(ctx).Create(&sources).Error; err != nil {
		return fmt.Errorf("保存来源记录失败: %w", err)
	}
	return nil
}

// titleSubquery 取查询最新一条输出的标题。
const titleSubquery = `COALESCE((SELECT o.title FROM research_outputs o WHERE o.query_id = research_queries.id ORDER BY o.id DESC LIMIT 1), '')`

// contentSubquery 取查询最新一条输出的内容负载;无输出时保持 NULL。
const contentSubquery = `(SELECT o.content FROM research_outputs o WHERE o.query_id = research_queries.id ORDER BY o.id DESC LIMIT 1)`

// FilteredHistory 按条件检索历史。
// 过滤条件之间为 AND;文本匹配同时作用于查询文本与输出标题;
// 日期边界包含在内;最多返回 HistoryLimit 行。
func (s *histories) FilteredHistory(ctx context.Context, filter *HistoryFilter) ([]model.HistoryEntry, error) {
	if filter == nil {
		filter = &HistoryFilter{}
	}

	tx := s.db.WithContext(ctx).
		Table("research_queries").
		Select("research_queries.id, research_queries.query_text, research_queries.query_type, research_queries.created_at, " + contentSubquery + " AS content, " + titleSubquery + " AS title")

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		tx = tx.Where(
			"LOWER(research_queries.query_text) LIKE ? OR EXISTS (SELECT 1 FROM research_outputs o WHERE o.query_id = research_queries.id AND LOWER(o.title) LIKE ?)",
			pattern, pattern,
		)
	}
	if filter.StartDate != nil {
		tx = tx.Where("research_queries.created_at >= ?", startOfDay(*filter.StartDate))
	}
	if filter.EndDate != nil {
		tx = tx.Where("research_queries.created_at < ?", startOfDay(*filter.EndDate).Add(24*time.Hour))
	}

	sortOrder := filter.Sort
	if sortOrder == "" || (sortOrder == SortRelevance && filter.Search == "") {
		sortOrder = SortNewest
	}

	switch sortOrder {
	case SortOldest:
		tx = tx.Order("research_queries.created_at ASC, research_queries.id ASC").Limit(HistoryLimit)
	case SortRelevance:
		tx = tx.Order("research_queries.created_at DESC, research_queries.id DESC").Limit(relevanceCandidateLimit)
	default:
		tx = tx.Order("research_queries.created_at DESC, research_queries.id DESC").Limit(HistoryLimit)
	}

	var entries []model.HistoryEntry
	if err := tx.Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("检索历史记录失败: %w", err)
	}

	if sortOrder == SortRelevance {
		entries = rankByRelevance(entries, filter.Search)
	}

	return entries, nil
}

// rankByRelevance 按三元组相似度对候选排序并截断。
// 相似度取查询文本与标题两者中的较大值;排序稳定,同分保持时间序。
func rankByRelevance(entries []model.HistoryEntry, search string) []model.HistoryEntry {
	type scored struct {
		entry model.HistoryEntry
		score float64
	}

	scoredEntries := make([]scored, len(entries))
	for i, e := range entries {
		score := textutil.TrigramSimilarity(search, e.QueryText)
		if titleScore := textutil.TrigramSimilarity(search, e.Title); titleScore > score {
			score = titleScore
		}
		scoredEntries[i] = scored{entry: e, score: score}
	}

	sort.SliceStable(scoredEntries, func(i, j int) bool {
		return scoredEntries[i].score > scoredEntries[j].score
	})

	limit := HistoryLimit
	if len(scoredEntries) < limit {
		limit = len(scoredEntries)
	}

	result := make([]model.HistoryEntry, limit)
	for i := 0; i < limit; i++ {
		result[i] = scoredEntries[i].entry
	}
	return result
}

// Detail 返回单条查询的完整视图。
func (s *histories) Detail(ctx context.Context, queryID uint64) (*model.QueryDetail, error) {
	var query model.Query
	if err := s.db.WithContext(ctx).First(&query, queryID).Error; err != nil {
		return nil, err
	}

	var outputs []model.Output
	if err := s.db.WithContext(ctx).
		Where("query_id = ?", queryID).
		Order("id ASC").
		Find(&outputs).Error; err != nil {
		return nil, fmt.Errorf("加载输出记录失败: %w", err)
	}

	var sources []model.Source
	if err := s.db.WithContext(ctx).
		Where("output_id IN (SELECT id FROM research_outputs WHERE query_id = ?)", queryID).
		Order("id ASC").
		Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("加载来源记录失败: %w", err)
	}

	return &model.QueryDetail{
		Query:   query,
		Outputs: outputs,
		Sources: sources,
	}, nil
}

// Count 返回历史查询总数。
func (s *histories) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Query{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计历史记录失败: %w", err)
	}
	return count, nil
}

// startOfDay 返回时间所在自然日的零点。
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
