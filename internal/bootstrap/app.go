package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jlorenzo681/documind/internal/agents"
	"github.com/jlorenzo681/documind/internal/analyses"
	"github.com/jlorenzo681/documind/internal/documents"
	"github.com/jlorenzo681/documind/internal/extract"
	"github.com/jlorenzo681/documind/internal/llm"
	"github.com/jlorenzo681/documind/internal/llm/anthropic"
	"github.com/jlorenzo681/documind/internal/llm/gemini"
	"github.com/jlorenzo681/documind/internal/llm/openai"
	"github.com/jlorenzo681/documind/internal/queue"
	"github.com/jlorenzo681/documind/internal/services/health"
	"github.com/jlorenzo681/documind/internal/shared/config"
	"github.com/jlorenzo681/documind/internal/shared/server"
	"github.com/jlorenzo681/documind/internal/shared/server/middleware"
	"github.com/jlorenzo681/documind/internal/shared/storage/db"
	"github.com/jlorenzo681/documind/internal/shared/storage/object"
	azblobstore "github.com/jlorenzo681/documind/internal/shared/storage/object/azblob"
	localstore "github.com/jlorenzo681/documind/internal/shared/storage/object/local"
	s3store "github.com/jlorenzo681/documind/internal/shared/storage/object/s3"
	"github.com/jlorenzo681/documind/internal/shared/telemetry"
	"github.com/jlorenzo681/documind/internal/shared/tracing"
	"github.com/jlorenzo681/documind/internal/tasks"
	"github.com/jlorenzo681/documind/internal/workflow"
)

// Version is reported by /health and the CLI. Overridden at link time.
var Version = "1.0.0"

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Dialect      db.Dialect
	Store        object.ObjectStore
	Queue        queue.Client
	LLM          llm.Client
	Tracing      *tracing.Provider
	Documents    *documents.Service
	Tasks        tasks.Repo
	Orchestrator *workflow.Orchestrator
	Runner       *tasks.Runner
	Sweeper      *tasks.Sweeper
	Health       *health.Service

	closers []func() error
}

// Options lets callers replace external dependencies, mainly in tests.
type Options struct {
	LLM    llm.Client
	Source agents.DocumentSource
}

// Build prepares every dependency and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildWith(context.Background(), cfg, Options{})
}

// BuildWith is Build with overrides.
func BuildWith(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.SetLevel(cfg.LogLevel)

	app := &App{Config: cfg}

	sqlDB, dialect, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB, app.Dialect = sqlDB, dialect
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		return nil, err
	}

	var ocr extract.Recognizer
	if opts.LLM != nil {
		app.LLM = opts.LLM
	} else {
		client, recognizer, closer, err := buildLLM(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.LLM, ocr = client, recognizer
		if closer != nil {
			app.closers = append(app.closers, closer)
		}
	}

	app.Tracing = tracing.Setup("documind", cfg.TracingEnabled)

	var docRepo documents.DocumentsRepo
	if app.DB != nil {
		docRepo = &documents.SQLRepo{DB: app.DB, Dialect: app.Dialect}
		app.Tasks = &tasks.SQLRepo{DB: app.DB, Dialect: app.Dialect}
	} else {
		docRepo = documents.NewMemoryRepo()
		app.Tasks = tasks.NewMemoryRepo()
	}
	app.Documents = &documents.Service{Store: app.Store, Repo: docRepo}

	source := opts.Source
	if source == nil {
		source = app.Documents
	}
	if app.Orchestrator, err = buildOrchestrator(cfg, app.LLM, source, ocr, app.Tracing); err != nil {
		return nil, err
	}

	app.Runner = tasks.NewRunner(app.Tasks, app.Orchestrator, app.Documents, tasks.Options{
		Concurrency: cfg.WorkerConcurrency,
		Queue:       app.Queue,
		Reports:     app.Store,
	})
	app.Sweeper = &tasks.Sweeper{
		Tasks:       app.Tasks,
		Documents:   app.Documents,
		Reports:     app.Store,
		TaskTTL:     cfg.TaskTTL,
		DocumentTTL: cfg.DocumentTTL,
		Interval:    cfg.SweepInterval,
	}
	app.Health = &health.Service{
		Store:       app.Store,
		Version:     Version,
		LLMProvider: cfg.LLMProvider,
	}
	if app.DB != nil {
		app.Health.DB = app.DB
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		DocumentHandler: documents.NewHandler(app.Documents),
		AnalysisHandler: analyses.NewHandler(app.Runner, server.APIPrefix),
		Health:          app.Health,
		Verifier:        verifier,
	})

	return app, nil
}

// Close waits for in-process tasks and releases connections.
func (a *App) Close(ctx context.Context) error {
	if a.Runner != nil {
		a.Runner.Wait()
	}
	var firstErr error
	if a.Tracing != nil {
		firstErr = a.Tracing.Shutdown(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, db.Dialect, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.database", map[string]any{"mode": "memory"})
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("DATABASE_URL is required")
	}
	_, _, dialect, err := db.ParseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}

	var sqlDB *sql.DB
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database", map[string]any{"mode": "memory", "error": err.Error()})
			return nil, "", nil
		}
		return nil, "", err
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
			sqlDB.Close()
			return nil, "", fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, dialect, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "azblob":
		store, err := azblobstore.New(cfg.AzureConnectionString, cfg.AzureContainer)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureContainer(ctx); err != nil {
			return nil, fmt.Errorf("ensure azure container: %w", err)
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
}

// buildLLM returns the instrumented client, an OCR recognizer when the
// provider has one, and a closer for providers holding connections.
func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, extract.Recognizer, func() error, error) {
	provider := cfg.LLMProvider
	if provider == "google" {
		provider = "gemini"
	}
	router := llm.ProviderDefaults(provider).Override(llm.Router{
		SimpleModel:   cfg.LLMModelSimple,
		StandardModel: cfg.LLMModelStandard,
		ComplexModel:  cfg.LLMModelComplex,
	})

	var (
		client   llm.Client
		ocr      extract.Recognizer
		closer   func() error
		apiKey   string
		buildErr error
	)
	switch provider {
	case "none":
		telemetry.Warn("bootstrap.llm", map[string]any{"provider": provider, "mode": "placeholder"})
		return llm.PlaceholderClient{}, nil, nil, nil
	case "anthropic":
		apiKey = cfg.AnthropicAPIKey
		if apiKey != "" {
			client, buildErr = anthropic.NewClient(apiKey, router)
		}
	case "gemini":
		apiKey = cfg.GoogleAPIKey
		if apiKey != "" {
			var c *gemini.Client
			c, buildErr = gemini.NewClient(ctx, apiKey, router, cfg.EmbeddingModel)
			if buildErr == nil {
				client, closer = c, c.Close
			}
		}
	default:
		provider = "openai"
		apiKey = cfg.OpenAIAPIKey
		if apiKey != "" {
			var c *openai.Client
			c, buildErr = openai.NewClient(apiKey, router, cfg.EmbeddingModel)
			if buildErr == nil {
				client, ocr = c, c
			}
		}
	}
	if buildErr != nil {
		return nil, nil, nil, fmt.Errorf("build %s client: %w", provider, buildErr)
	}
	if client == nil {
		if !isDevLike(cfg.Env) {
			return nil, nil, nil, fmt.Errorf("no API key configured for LLM provider %q", provider)
		}
		telemetry.Warn("bootstrap.llm", map[string]any{"provider": provider, "mode": "placeholder"})
		return llm.PlaceholderClient{}, nil, nil, nil
	}
	return llm.Instrument(client, provider), ocr, closer, nil
}

func buildOrchestrator(cfg config.Config, client llm.Client, source agents.DocumentSource, ocr extract.Recognizer, tp *tracing.Provider) (*workflow.Orchestrator, error) {
	parser := agents.NewParser(source, ocr)
	if cfg.ChunkSize > 0 {
		parser.ChunkSize = cfg.ChunkSize
		parser.Overlap = cfg.ChunkOverlap
	}

	var retriever agents.Retriever = agents.KeywordRetriever{}
	if cfg.Retriever == "embedding" {
		if cfg.LLMProvider == "anthropic" {
			telemetry.Warn("bootstrap.retriever", map[string]any{"requested": "embedding", "using": "keyword", "reason": "provider has no embeddings"})
		} else {
			retriever = &agents.EmbeddingRetriever{LLM: client}
		}
	}

	emitters := workflow.Emitters{workflow.LogEmitter{}}
	if cfg.TracingEnabled && tp != nil {
		emitters = append(emitters, workflow.OTelEmitter{Tracer: tp.Tracer()})
	}

	return workflow.NewOrchestrator(workflow.Agents{
		Parser:     parser,
		Summarizer: &agents.Summarizer{LLM: client, MapConcurrency: cfg.WorkerConcurrency},
		QA:         &agents.QA{LLM: client, Retriever: retriever},
		Compliance: &agents.Compliance{LLM: client},
		Reporter:   &agents.Reporter{Dir: cfg.ReportDir},
	}, workflow.Options{Emitter: emitters})
}

func buildVerifier(ctx context.Context, cfg config.Config) (middleware.TokenVerifier, error) {
	if strings.TrimSpace(cfg.OIDCIssuer) == "" {
		return nil, nil
	}
	v, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return v, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

// BuildPipeline wires only the agent graph, reading documents from source.
// The returned close func releases the model client.
func BuildPipeline(ctx context.Context, cfg config.Config, source agents.DocumentSource) (*workflow.Orchestrator, func() error, error) {
	telemetry.SetLevel(cfg.LogLevel)
	client, ocr, closer, err := buildLLM(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	orch, err := buildOrchestrator(cfg, client, source, ocr, nil)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return orch, closer, nil
}
