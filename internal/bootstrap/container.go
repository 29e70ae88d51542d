package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"rag-chatbot-be/internal/config"
	"rag-chatbot-be/internal/controller"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/internal/repository/implementation"
	"rag-chatbot-be/internal/repository/memory"
	"rag-chatbot-be/internal/repository/mongostore"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/internal/service"
	"rag-chatbot-be/pkg/embedding"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/llm/factory"
	pktNats "rag-chatbot-be/pkg/nats"
	"rag-chatbot-be/pkg/rag/assembler"
	"rag-chatbot-be/pkg/rag/executor"
	"rag-chatbot-be/pkg/rag/history"
	"rag-chatbot-be/pkg/rag/lock"
	"rag-chatbot-be/pkg/rag/prompt"
	"rag-chatbot-be/pkg/rag/response"
	"rag-chatbot-be/pkg/rag/search"
	"rag-chatbot-be/pkg/rag/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	SessionController  controller.ISessionController
	IdentityController controller.IIdentityController
	HealthController   controller.IHealthController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Exposed for cmd/chat-cli, which drives the pipeline without HTTP.
	ChatService    service.IChatService
	SessionService service.ISessionService

	Logger  logger.ILogger
	closers []func()
}

// Close releases pools and connections in reverse creation order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func (c *Container) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// NewContainer wires every component. db may be nil when neither the message
// log nor the chunk store is backed by Postgres.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Container, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	// 1. Loggers
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)
	eventLogger := logger.NewIsolatedLogger(cfg.App.EventLogFilePath)

	c := &Container{Logger: sysLogger}
	c.onClose(func() { _ = llmLogger.Sync() })
	c.onClose(func() { _ = eventLogger.Sync() })

	checks := map[string]controller.HealthCheck{}
	fail := func(err error) (*Container, error) {
		c.Close()
		return nil, err
	}

	// 2. Message log backend
	uowFactory, err := newRepositoryFactory(ctx, db, cfg, c, checks)
	if err != nil {
		return fail(err)
	}

	// 3. Chunk store
	var chunks contract.ChunkRepository
	switch cfg.Rag.ChunkStore {
	case "pgvector":
		if db == nil {
			return fail(fmt.Errorf("chunk store pgvector requires DB_CONNECTION_STRING"))
		}
		chunks = implementation.NewChunkRepository(db)
	case "memory":
		chunks = memory.NewChunkRepository()
	default:
		return fail(fmt.Errorf("unsupported chunk store: %s", cfg.Rag.ChunkStore))
	}
	log.Printf("[INFO] Using Chunk Store: %s", cfg.Rag.ChunkStore)

	// 4. Embedding + LLM providers
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	embedder = embedding.NewCachedEmbedder(embedder, memory.NewEmbeddingCache(cfg.Rag.EmbeddingCacheTTL))
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, embedder.Model())

	llmProvider, err := factory.NewLLMProvider(ctx, llmProviderConfig(cfg))
	if err != nil {
		return fail(fmt.Errorf("failed to initialize LLM provider: %w", err))
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 5. Session lock
	locker, err := newLocker(ctx, cfg, c, checks)
	if err != nil {
		return fail(err)
	}

	// 6. Event bus
	emitter, consumer, err := newEventBus(cfg, sysLogger, eventLogger, c)
	if err != nil {
		return fail(err)
	}
	c.ConsumerService = consumer

	// 7. Worker pool for turn completion
	pool, err := ants.NewPool(cfg.Rag.WorkerPoolSize)
	if err != nil {
		return fail(fmt.Errorf("failed to create worker pool: %w", err))
	}
	c.onClose(pool.Release)

	// 8. Chat domain
	messageLog := history.NewMessageLog(uowFactory, cfg.Rag.SessionTitleMaxRune, sysLogger)
	retriever := search.NewRetriever(embedder, chunks, search.Config{
		TopK:           cfg.Rag.TopK,
		MinSimilarity:  cfg.Rag.MinSimilarity,
		MaxRetries:     cfg.Rag.RetrievalRetries,
		InitialBackoff: cfg.Rag.RetrievalBackoff,
	}, sysLogger)
	contextAssembler := assembler.NewAssembler(messageLog, retriever, cfg.Rag.HistoryLimit, sysLogger)
	responder := response.NewResponder(llmProvider, prompt.NewBuilder(""), response.Config{
		Timeout:     cfg.Rag.GenerationTimeout,
		MaxRetries:  cfg.Rag.GenerationRetries,
		Backoff:     response.DefaultConfig().Backoff,
		Temperature: cfg.Ai.Temperature,
	}, llmLogger)

	pipeline := executor.NewChatPipeline(
		contextAssembler,
		responder,
		messageLog,
		locker,
		pool,
		emitter,
		cfg.Rag.ErrorReplySentinel,
		sysLogger,
	)
	manager := session.NewOwnershipManager(uowFactory, messageLog, locker, session.Config{
		Policy:      session.ParsePolicy(cfg.Rag.AnonymousPolicy),
		Parallelism: cfg.Rag.MigrationParallel,
	}, emitter, sysLogger)

	// 9. Services + controllers
	c.ChatService = service.NewChatService(pipeline, messageLog)
	c.SessionService = service.NewSessionService(manager)

	c.ChatController = controller.NewChatController(c.ChatService, sysLogger)
	c.SessionController = controller.NewSessionController(c.SessionService)
	c.IdentityController = controller.NewIdentityController(c.SessionService, cfg.Auth.JwtSecret)
	c.HealthController = controller.NewHealthController(checks)

	return c, nil
}

func newRepositoryFactory(ctx context.Context, db *gorm.DB, cfg *config.Config, c *Container, checks map[string]controller.HealthCheck) (unitofwork.RepositoryFactory, error) {
	log.Printf("[INFO] Using Message Log Store: %s", cfg.Database.MessageLogStore)

	switch cfg.Database.MessageLogStore {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("message log postgres requires DB_CONNECTION_STRING")
		}
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		return unitofwork.NewRepositoryFactory(db), nil
	case "mongo":
		mdb, err := mongostore.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, err
		}
		c.onClose(func() { _ = mdb.Client().Disconnect(context.Background()) })
		if err := mongostore.EnsureIndexes(ctx, mdb); err != nil {
			return nil, err
		}
		checks["mongo"] = func(ctx context.Context) error { return mdb.Client().Ping(ctx, nil) }
		return mongostore.NewRepositoryFactory(mdb), nil
	case "memory":
		return memory.NewRepositoryFactory(memory.NewStore()), nil
	}
	return nil, fmt.Errorf("unsupported message log store: %s", cfg.Database.MessageLogStore)
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		baseURL := cfg.Ai.EmbeddingBaseURL
		if baseURL == "" {
			baseURL = cfg.Ai.OllamaBaseURL
		}
		return embedding.NewOllamaProvider(baseURL, cfg.Ai.EmbeddingModel), nil
	case "gemini":
		return embedding.NewGeminiProvider(ctx, cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingModel)
	case "openai":
		return embedding.NewOpenAIProvider(cfg.Ai.EmbeddingBaseURL, cfg.Keys.OpenAI, cfg.Ai.EmbeddingModel)
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
}

func llmProviderConfig(cfg *config.Config) factory.ProviderConfig {
	pc := factory.ProviderConfig{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     cfg.Ai.LLMBaseURL,
		Temperature: cfg.Ai.Temperature,
	}
	switch cfg.Ai.LLMProvider {
	case "ollama":
		if pc.BaseURL == "" {
			pc.BaseURL = cfg.Ai.OllamaBaseURL
		}
	case "huggingface":
		pc.APIKey = cfg.Keys.HuggingFace
	case "gemini":
		pc.APIKey = cfg.Keys.GoogleGemini
	case "ark":
		pc.APIKey = cfg.Keys.Ark
	case "openai":
		pc.APIKey = cfg.Keys.OpenAI
	}
	return pc
}

// validateConfig rejects settings that would silently weaken auth or
// per-session serialisation.
func validateConfig(cfg *config.Config) error {
	if cfg.Auth.JwtSecret == "" {
		return fmt.Errorf("JWT_SECRET is required: identity linking cannot verify tokens without it")
	}

	if cfg.Rag.LockBackend == "redis" {
		retries := max(cfg.Rag.GenerationRetries, 0)
		worstTurn := cfg.Rag.GenerationTimeout*time.Duration(retries+1) +
			response.DefaultConfig().Backoff*time.Duration(retries)
		if cfg.Rag.LockTTL <= worstTurn {
			return fmt.Errorf("SESSION_LOCK_TTL %s must exceed the worst-case generation time %s", cfg.Rag.LockTTL, worstTurn)
		}
	}
	return nil
}

func newLocker(ctx context.Context, cfg *config.Config, c *Container, checks map[string]controller.HealthCheck) (lock.Locker, error) {
	if cfg.Rag.LockBackend != "redis" {
		log.Printf("[INFO] Using Session Lock: local")
		return lock.NewLocalLocker(), nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	c.onClose(func() { _ = rdb.Close() })

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	log.Printf("[INFO] Using Session Lock: redis (ttl %s)", cfg.Rag.LockTTL)
	return lock.NewRedisLocker(rdb, cfg.Rag.LockTTL), nil
}

// newEventBus publishes to JetStream when NATS is enabled and to an
// in-process gochannel otherwise. The audit consumer reads the same transport.
func newEventBus(cfg *config.Config, sysLogger, eventLogger logger.ILogger, c *Container) (*events.Emitter, service.IConsumerService, error) {
	if cfg.App.NatsEnabled {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS publisher: %w", err)
		}
		c.onClose(natsPub.Close)

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS subscriber: %w", err)
		}
		c.onClose(natsSub.Close)

		log.Printf("[INFO] Using Event Bus: NATS (%s)", cfg.App.NatsURL)
		return events.NewEmitter(sysLogger, natsPub), service.NewNatsConsumerService(natsSub, eventLogger), nil
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.onClose(func() { _ = pubSub.Close() })

	log.Printf("[INFO] Using Event Bus: in-process")
	emitter := events.NewEmitter(sysLogger, events.NewWatermillPublisher(pubSub, events.DefaultTopic))
	return emitter, service.NewConsumerService(pubSub, events.DefaultTopic, eventLogger, sysLogger), nil
}
