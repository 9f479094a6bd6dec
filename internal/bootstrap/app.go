// Package bootstrap is the composition root shared by the API and worker
// binaries. It chooses concrete repositories, search strategies, storage and
// model backends from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"

	"leaselens-backend/internal/account"
	"leaselens-backend/internal/chat"
	"leaselens-backend/internal/documents"
	"leaselens-backend/internal/leases"
	"leaselens-backend/internal/llm"
	"leaselens-backend/internal/llm/ollama"
	"leaselens-backend/internal/llm/openai"
	"leaselens-backend/internal/portfolio"
	"leaselens-backend/internal/queue"
	"leaselens-backend/internal/search"
	"leaselens-backend/internal/services/health"
	"leaselens-backend/internal/shared/config"
	"leaselens-backend/internal/shared/server"
	"leaselens-backend/internal/shared/storage/db"
	"leaselens-backend/internal/shared/storage/object"
	localstore "leaselens-backend/internal/shared/storage/object/local"
	s3store "leaselens-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	LLM    llm.Client

	DocumentsRepo documents.DocumentsRepo
	TermsRepo     leases.Repo
	ChatRepo      chat.Repo
	Search        *search.Engine
	Indexer       search.Indexer
	Elastic       *elasticsearch.Client

	DocumentsService *documents.Service
	ChatService      *chat.Service
	PortfolioService *portfolio.Service
	AccountService   *account.Service
	Health           *health.Service

	DocumentsHandler *documents.Handler
	ChatHandler      *chat.Handler
	PortfolioHandler *portfolio.Handler
	AccountHandler   *account.Handler
}

// Build prepares every dependency and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		LLM:    llmClient,
		Health: health.NewService(),
	}

	buildRepos(app)
	if err := buildSearch(ctx, app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		DocumentHandler:  app.DocumentsHandler,
		ChatHandler:      app.ChatHandler,
		PortfolioHandler: app.PortfolioHandler,
		AccountHandler:   app.AccountHandler,
		Health:           app.Health,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		// Warm invocations reuse the pool opened on cold start.
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultWorkerOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

// buildLLM selects the model backend. Every backend is wrapped with a single
// retry for transient extraction failures.
func buildLLM(cfg config.Config) (llm.Client, error) {
	var base llm.Client
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		base = client
	case "ollama":
		client, err := ollama.NewClient(cfg.OllamaHost, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		base = client
	default:
		base = llm.PlaceholderClient{}
	}
	return llm.WithRetry(base), nil
}

func buildRepos(app *App) {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.TermsRepo = &leases.PGRepo{DB: app.DB}
		app.ChatRepo = &chat.PGRepo{DB: app.DB}
		app.Health.Register("database", app.DB.PingContext)
		return
	}
	docRepo := documents.NewMemoryRepo()
	app.DocumentsRepo = docRepo
	app.TermsRepo = leases.NewMemoryRepo(docRepo.LeaseDocument)
	app.ChatRepo = chat.NewMemoryRepo()
}

// buildSearch wires the ranked and substring strategies. Elasticsearch, when
// configured, serves ranked search while chunks stay authoritative in the
// document store, which also answers the substring fallback.
func buildSearch(ctx context.Context, app *App) error {
	var ranked, substring search.Strategy
	if app.DB != nil {
		ranked = &search.PGRanked{DB: app.DB}
		substring = &search.PGSubstring{DB: app.DB}
	} else {
		corpus, ok := app.DocumentsRepo.(search.Corpus)
		if !ok {
			return errors.New("in-memory documents repo cannot serve search")
		}
		ranked = &search.MemoryRanked{Corpus: corpus}
		substring = &search.MemorySubstring{Corpus: corpus}
	}
	app.Indexer = search.NopIndexer{}

	if url := strings.TrimSpace(app.Config.ElasticsearchURL); url != "" {
		client, err := search.NewElasticClient(url)
		if err == nil {
			indexer := &search.ElasticIndexer{Client: client, Index: app.Config.ElasticsearchIndex}
			err = indexer.EnsureIndex(ctx)
			if err == nil {
				app.Elastic = client
				app.Indexer = indexer
				elastic := &search.ElasticRanked{Client: client, Index: app.Config.ElasticsearchIndex}
				if docs, ok := app.DocumentsRepo.(search.DocumentSet); ok {
					elastic.Documents = docs
				}
				ranked = elastic
				app.Health.Register("elasticsearch", elasticPing(client))
			}
		}
		if err != nil {
			if !isDevLike(app.Config.Env) {
				return fmt.Errorf("elasticsearch: %w", err)
			}
			log.Printf("bootstrap: elasticsearch unavailable; using %s: %v", ranked.Name(), err)
		}
	}

	app.Search = search.NewEngine(ranked, substring)
	return nil
}

func elasticPing(client *elasticsearch.Client) health.Check {
	return func(ctx context.Context) error {
		res, err := client.Ping(client.Ping.WithContext(ctx))
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch ping: %s", res.Status())
		}
		return nil
	}
}

func buildServices(app *App) error {
	docSvc := &documents.Service{
		Repo:          app.DocumentsRepo,
		Terms:         app.TermsRepo,
		Store:         app.Store,
		LLM:           app.LLM,
		Index:         app.Indexer,
		EnrichTimeout: app.Config.EnrichTimeout,
		Concurrency:   app.Config.UploadConcurrency,
		Queue:         app.Queue,
	}

	chatSvc := &chat.Service{
		Repo: app.ChatRepo,
		Context: &chat.Assembler{
			Search: app.Search,
			Terms:  app.TermsRepo,
		},
		LLM: app.LLM,
	}

	accountSvc := &account.Service{DB: app.DB}
	if app.DB == nil {
		docClaimer, ok := app.DocumentsRepo.(account.Claimer)
		if !ok {
			return errors.New("documents repo cannot claim guest data")
		}
		chatClaimer, ok := app.ChatRepo.(account.Claimer)
		if !ok {
			return errors.New("chat repo cannot claim guest data")
		}
		accountSvc.Documents = docClaimer
		accountSvc.Conversations = chatClaimer
	}
	if reassigner, ok := app.Indexer.(search.OwnerReassigner); ok {
		accountSvc.Index = reassigner
	}

	app.DocumentsService = docSvc
	app.ChatService = chatSvc
	app.PortfolioService = portfolio.NewService(docSvc)
	app.AccountService = accountSvc

	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.ChatHandler = chat.NewHandler(chatSvc)
	app.PortfolioHandler = portfolio.NewHandler(app.PortfolioService)
	app.AccountHandler = account.NewHandler(accountSvc)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
