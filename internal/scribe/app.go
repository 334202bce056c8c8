package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"gorm.io/gorm"

	"github.com/kart-io/scribe-x/internal/scribe/biz"
	"github.com/kart-io/scribe-x/internal/scribe/handler"
	"github.com/kart-io/scribe-x/internal/scribe/router"
	"github.com/kart-io/scribe-x/internal/scribe/store"
	"github.com/kart-io/scribe-x/pkg/app"
	"github.com/kart-io/scribe-x/pkg/component/milvus"
	"github.com/kart-io/scribe-x/pkg/component/postgres"
	"github.com/kart-io/scribe-x/pkg/component/sqlite"
	"github.com/kart-io/scribe-x/pkg/llm"
	"github.com/kart-io/scribe-x/pkg/websearch"

	// Register LLM providers
	_ "github.com/kart-io/scribe-x/pkg/llm/ollama"
	_ "github.com/kart-io/scribe-x/pkg/llm/openai"
)

const (
	serviceName    = "scribe"
	appDescription = `Scribe Content Service

AI content generation and document question-answering service.

This server provides:
  - Topic research and article generation with web search
  - Document upload with per-session Q&A over Excel/CSV files
  - Searchable history of generated content and answers`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(serviceName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the scribe service with the given options.
func Run(opts *Options) error {
	printBanner(opts)

	// 1. 初始化日志
	opts.Log.AddInitialField("service.name", serviceName)
	opts.Log.AddInitialField("service.version", app.GetVersion())
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting scribe service...")

	// 2. 初始化历史存储
	db, backend, err := openDatabase(opts)
	if err != nil {
		return err
	}
	factory, err := store.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	defer func() {
		_ = factory.Close()
	}()

	// 启动时验证数据库连通性
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := factory.Ping(pingCtx); err != nil {
		return fmt.Errorf("history database unreachable: %w", err)
	}
	history := factory.History()
	logger.Infow("History store initialized", "backend", backend)

	// 3. 初始化向量存储
	var vectors store.VectorStore
	if opts.Milvus.Enabled {
		milvusClient, err := milvus.New(opts.Milvus)
		if err != nil {
			return fmt.Errorf("failed to initialize milvus: %w", err)
		}
		vectors = store.NewMilvusStore(milvusClient)
		logger.Infow("Vector store initialized", "backend", "milvus", "address", opts.Milvus.Address)
	} else {
		vectors = store.NewMemoryStore()
		logger.Infow("Vector store initialized", "backend", "memory")
	}
	defer func() {
		_ = vectors.Close(context.Background())
	}()

	// 4. 初始化 LLM 供应商
	embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	chat, err := llm.NewChatProvider(opts.Chat.Provider, opts.Chat.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("LLM providers initialized",
		"embedding", opts.Embedding.Provider, "embedding_model", opts.Embedding.Model,
		"chat", opts.Chat.Provider, "chat_model", opts.Chat.Model)

	// 5. 初始化网络搜索
	searchEngine := websearch.NewDuckDuckGoEngine(opts.Generate.SearchTimeout)
	searchTool := websearch.NewTool(searchEngine, opts.Generate.SearchMaxResults)

	// 6. 初始化 Biz 层
	pipeline := biz.NewPipeline(chat, searchTool)
	singleShot := biz.NewSingleShot(chat, opts.Generate.MaxTokens)
	generation := biz.NewGenerationService(pipeline, singleShot, history, opts.Generate.DefaultTemperature)

	indexer := biz.NewIndexer(opts.DocQA.SampleRows)
	builder := biz.NewEngineBuilder(embedder, chat, vectors, &biz.EngineBuilderConfig{
		TopK:         opts.DocQA.TopK,
		EmbeddingDim: opts.DocQA.EmbeddingDim,
		QAPrompt:     opts.DocQA.QAPrompt,
	})
	sessions := biz.NewSessionManager(biz.NewEngineCache())
	docqaService := biz.NewDocQAService(indexer, builder, sessions, history, opts.DocQA.UploadDir)
	logger.Info("Biz layer initialized")

	// 7. 初始化 Handler 层并注册路由
	srv := NewServer(opts.HTTP)
	router.Register(srv.Engine(),
		handler.NewGenerateHandler(generation),
		handler.NewSessionHandler(sessions, docqaService),
		handler.NewHistoryHandler(history),
		handler.NewOpsHandler(sessions, history),
	)

	// 8. 启动服务器
	logger.Info("Scribe service is ready")
	return srv.Run()
}

// openDatabase 打开历史数据库,未配置 Postgres 时退回内嵌 SQLite。
func openDatabase(opts *Options) (*gorm.DB, string, error) {
	if opts.UsePostgres() {
		client, err := postgres.New(opts.Postgres)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize postgres: %w", err)
		}
		return client.DB(), client.Name(), nil
	}

	client, err := sqlite.New(opts.SQLitePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize sqlite: %w", err)
	}
	return client.DB(), client.Name(), nil
}

func printBanner(_ *Options) {
	fmt.Printf("Starting %s...\n", serviceName)
}
