package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port               string
	Env                string
	CORSAllowOrigin    []string
	APIKeys            []string
	OIDCIssuer         string
	OIDCClientID       string
	RateLimitPerMinute int

	ObjectStoreType       string
	LocalStoreDir         string
	AWSRegion             string
	S3Bucket              string
	S3Prefix              string
	SSEKMSKeyID           string
	AzureConnectionString string
	AzureContainer        string

	DatabaseURL string
	AutoMigrate bool

	LLMProvider      string
	LLMModelSimple   string
	LLMModelStandard string
	LLMModelComplex  string
	EmbeddingModel   string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	GoogleAPIKey     string
	Retriever        string

	ChunkSize    int
	ChunkOverlap int
	ReportDir    string

	WorkerConcurrency int
	TaskTTL           time.Duration
	DocumentTTL       time.Duration
	SweepInterval     time.Duration
	SQSQueueURL       string

	TracingEnabled bool
	LogLevel       string
}

// Load reads configuration from .env, an optional documind.yaml and the
// environment, in increasing precedence.
func Load() Config {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration using v, which may already carry bound CLI flags.
func LoadFrom(v *viper.Viper) Config {
	setDefaults(v)
	readFiles(v)
	v.AutomaticEnv()

	env := normalizeEnv(v.GetString("env"))
	dbURL := v.GetString("database_url")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               v.GetString("port"),
		Env:                env,
		CORSAllowOrigin:    splitAndTrim(v.GetString("cors_allow_origins")),
		APIKeys:            splitAndTrim(v.GetString("api_keys")),
		OIDCIssuer:         v.GetString("oidc_issuer"),
		OIDCClientID:       v.GetString("oidc_client_id"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),

		ObjectStoreType:       normalizeStoreType(v.GetString("object_store")),
		LocalStoreDir:         v.GetString("local_store_dir"),
		AWSRegion:             v.GetString("aws_region"),
		S3Bucket:              v.GetString("s3_bucket"),
		S3Prefix:              v.GetString("s3_prefix"),
		SSEKMSKeyID:           v.GetString("sse_kms_key_id"),
		AzureConnectionString: v.GetString("azure_storage_connection_string"),
		AzureContainer:        v.GetString("azure_storage_container"),

		DatabaseURL: dbURL,
		AutoMigrate: v.GetBool("auto_migrate"),

		LLMProvider:      strings.ToLower(strings.TrimSpace(v.GetString("llm_provider"))),
		LLMModelSimple:   v.GetString("llm_model_simple"),
		LLMModelStandard: v.GetString("llm_model_standard"),
		LLMModelComplex:  v.GetString("llm_model_complex"),
		EmbeddingModel:   v.GetString("embedding_model"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		AnthropicAPIKey:  v.GetString("anthropic_api_key"),
		GoogleAPIKey:     v.GetString("google_api_key"),
		Retriever:        strings.ToLower(v.GetString("retriever")),

		ChunkSize:    v.GetInt("chunk_size"),
		ChunkOverlap: v.GetInt("chunk_overlap"),
		ReportDir:    v.GetString("report_dir"),

		WorkerConcurrency: v.GetInt("worker_concurrency"),
		TaskTTL:           v.GetDuration("task_ttl"),
		DocumentTTL:       v.GetDuration("document_ttl"),
		SweepInterval:     v.GetDuration("sweep_interval"),
		SQSQueueURL:       v.GetString("sqs_queue_url"),

		TracingEnabled: v.GetBool("tracing_enabled"),
		LogLevel:       v.GetString("log_level"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "dev")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("auto_migrate", true)
	v.SetDefault("object_store", "local")
	v.SetDefault("local_store_dir", "./data")
	v.SetDefault("azure_storage_container", "documents")
	v.SetDefault("llm_provider", "openai")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("retriever", "keyword")
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("report_dir", "/tmp/documind/reports")
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("task_ttl", "24h")
	v.SetDefault("document_ttl", "0s")
	v.SetDefault("sweep_interval", "10m")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("log_level", "info")
}

// readFiles merges .env and documind.yaml when present. Missing files are ignored.
func readFiles(v *viper.Viper) {
	for _, path := range []string{".env", filepath.Join("cmd", ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			log.Printf("config: skipping %s: %v", path, err)
		}
	}

	v.SetConfigFile("")
	v.SetConfigName("documind")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "documind"))
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("config: %v", fmt.Errorf("reading documind.yaml: %w", err))
		}
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "azblob", "azure":
		return "azblob"
	default:
		return "local"
	}
}
