package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Rag      RagConfig
	Auth     AuthConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	EventLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	NatsEnabled        bool
	RedisURL           string
}

type DatabaseConfig struct {
	Connection      string
	MessageLogStore string // "postgres", "mongo" or "memory"
	MongoURI        string
	MongoDatabase   string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
	HuggingFace  string
	Ark          string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama", "gemini" or "openai"
	EmbeddingModel    string
	EmbeddingBaseURL  string
	OllamaBaseURL     string
	LLMProvider       string // "ollama", "huggingface", "gemini", "ark" or "openai"
	LLMModel          string
	LLMBaseURL        string
	Temperature       float64
}

type RagConfig struct {
	HistoryLimit        int
	TopK                int
	MinSimilarity       float64
	RetrievalRetries    int
	RetrievalBackoff    time.Duration
	EmbeddingCacheTTL   time.Duration
	GenerationTimeout   time.Duration
	GenerationRetries   int
	WorkerPoolSize      int
	ChunkStore          string // "pgvector" or "memory"
	LockBackend         string // "local" or "redis"
	LockTTL             time.Duration
	AnonymousPolicy     string // "multi" or "single"
	MigrationParallel   int
	ErrorReplySentinel  string
	SessionTitleMaxRune int
}

type AuthConfig struct {
	JwtSecret string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the OTLP HTTP collector
	SampleRatio float64
	Environment string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm_rag.log"),
			EventLogFilePath:   getEnv("EVENT_LOG_FILE_PATH", "logs/chat_events.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			NatsEnabled:        getEnvAsBool("NATS_ENABLED", false),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MessageLogStore: getEnv("MESSAGE_LOG_BACKEND", "postgres"),
			MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:   getEnv("MONGO_DATABASE", "rag_chatbot"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			Ark:          getEnv("ARK_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingBaseURL:  getEnv("EMBEDDING_BASE_URL", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.7),
		},
		Rag: RagConfig{
			HistoryLimit:        getEnvAsInt("RAG_HISTORY_LIMIT", 20),
			TopK:                getEnvAsInt("RAG_TOP_K", 4),
			MinSimilarity:       getEnvAsFloat("RAG_MIN_SIMILARITY", 0),
			RetrievalRetries:    getEnvAsInt("RAG_RETRIEVAL_RETRIES", 2),
			RetrievalBackoff:    getEnvAsDuration("RAG_RETRIEVAL_BACKOFF", 200*time.Millisecond),
			EmbeddingCacheTTL:   getEnvAsDuration("RAG_EMBEDDING_CACHE_TTL", 10*time.Minute),
			GenerationTimeout:   getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			GenerationRetries:   getEnvAsInt("LLM_MAX_RETRIES", 2),
			WorkerPoolSize:      getEnvAsInt("RAG_WORKER_POOL_SIZE", 64),
			ChunkStore:          getEnv("CHUNK_STORE", "pgvector"),
			LockBackend:         getEnv("SESSION_LOCK_BACKEND", "local"),
			LockTTL:             getEnvAsDuration("SESSION_LOCK_TTL", 5*time.Minute),
			AnonymousPolicy:     getEnv("ANONYMOUS_SESSION_POLICY", "multi"),
			MigrationParallel:   getEnvAsInt("OWNERSHIP_MIGRATION_PARALLELISM", 4),
			ErrorReplySentinel:  getEnv("ERROR_REPLY_SENTINEL", "[generation failed]"),
			SessionTitleMaxRune: getEnvAsInt("SESSION_TITLE_MAX_LENGTH", 48),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1),
			Environment: getEnv("GO_ENV", "development"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("750ms", "2m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
