package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/research-assistant/backend/internal/provider/azure"
)

// 支持的大模型提供方。
const (
	ProviderAzure = "azure"
	ProviderArk   = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Research ResearchConfig
	Document DocumentConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。缺失必需的模型配置时返回错误，调用方应终止启动。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}
	if err := ai.Validate(); err != nil {
		return nil, err
	}

	document, err := loadDocumentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Research: loadResearchConfig(),
		Document: document,
		Log:      loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// Azure OpenAI
	APIKey              string
	Deployment          string
	APIVersion          string
	Endpoint            string
	EmbeddingDeployment string

	// Volcengine Ark
	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string

	SummaryMaxTokens int
	HistoryLimit     int
	Timeout          time.Duration
}

// Validate 检查所选提供方的必需配置是否齐全。
func (c AIConfig) Validate() error {
	switch c.Provider {
	case ProviderAzure:
		var missing []string
		if c.APIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
		if c.Deployment == "" {
			missing = append(missing, "AZURE_DEPLOYMENT")
		}
		if c.APIVersion == "" {
			missing = append(missing, "AZURE_API_VERSION")
		}
		if c.Endpoint == "" {
			missing = append(missing, "AZURE_ENDPOINT")
		}
		if len(missing) > 0 {
			return fmt.Errorf("azure openai configuration is incomplete, missing %s", strings.Join(missing, ", "))
		}
	case ProviderArk:
		if c.ArkModel == "" || (c.ArkAPIKey == "" && (c.ArkAccessKey == "" || c.ArkSecretKey == "")) {
			return fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

// ModelName 返回用于日志与指标的模型标识。
func (c AIConfig) ModelName() string {
	if c.Provider == ProviderArk {
		return c.ArkModel
	}
	return c.Deployment
}

// EmbeddingEnabled 表示当前提供方是否具备向量化能力。
func (c AIConfig) EmbeddingEnabled() bool {
	return c.Provider == ProviderAzure && c.EmbeddingDeployment != ""
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.Provider == ProviderArk {
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:   c.ArkBaseURL,
			Region:    c.ArkRegion,
			APIKey:    c.ArkAPIKey,
			AccessKey: c.ArkAccessKey,
			SecretKey: c.ArkSecretKey,
			Model:     c.ArkModel,
			Timeout:   &c.Timeout,
		})
	}

	return azure.NewChatModel(azure.Config{
		APIKey:     c.APIKey,
		Endpoint:   c.Endpoint,
		APIVersion: c.APIVersion,
		Deployment: c.Deployment,
		Timeout:    c.Timeout,
	})
}

// NewEmbedder 创建文档向量化组件；提供方不支持时返回 nil。
func (c AIConfig) NewEmbedder() (embedding.Embedder, error) {
	if !c.EmbeddingEnabled() {
		return nil, nil
	}

	return azure.NewEmbedder(azure.Config{
		APIKey:     c.APIKey,
		Endpoint:   c.Endpoint,
		APIVersion: c.APIVersion,
		Deployment: c.EmbeddingDeployment,
		Timeout:    c.Timeout,
	})
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderAzure))

	timeout, err := parseDurationEnv("UPSTREAM_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	summaryTokens := 500
	if override, err := parseOptionalIntEnv("SUMMARY_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		summaryTokens = *override
	}

	historyLimit := 0
	if override, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("AZURE_OPENAI_API_KEY"))
	}

	return AIConfig{
		Provider:            provider,
		APIKey:              apiKey,
		Deployment:          strings.TrimSpace(os.Getenv("AZURE_DEPLOYMENT")),
		APIVersion:          strings.TrimSpace(os.Getenv("AZURE_API_VERSION")),
		Endpoint:            strings.TrimSpace(os.Getenv("AZURE_ENDPOINT")),
		EmbeddingDeployment: getEnvOrDefault("AZURE_EMBEDDING_DEPLOYMENT", "text-embedding-ada-002"),
		ArkAPIKey:           strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:        strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:        strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkModel:            strings.TrimSpace(os.Getenv("Model")),
		ArkBaseURL:          getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:           getEnvOrDefault("ARK_REGION", "cn-beijing"),
		SummaryMaxTokens:    summaryTokens,
		HistoryLimit:        historyLimit,
		Timeout:             timeout,
	}, nil
}

// ResearchConfig 描述联网搜索配置。密钥缺失时搜索功能在启动时即被关闭。
type ResearchConfig struct {
	APIKey  string
	Engine  string
	BaseURL string
	Enabled bool
}

func loadResearchConfig() ResearchConfig {
	key := strings.TrimSpace(os.Getenv("SERP_API_KEY"))
	return ResearchConfig{
		APIKey:  key,
		Engine:  getEnvOrDefault("SERP_ENGINE", "bing"),
		BaseURL: getEnvOrDefault("SERP_BASE_URL", "https://serpapi.com/search.json"),
		Enabled: key != "",
	}
}

// DocumentConfig 描述文档解析与切分配置。
type DocumentConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MaxUploadBytes int64
	AntiwordPath   string
}

func loadDocumentConfig() (DocumentConfig, error) {
	cfg := DocumentConfig{
		ChunkSize:      1000,
		ChunkOverlap:   100,
		MaxUploadBytes: 20 << 20,
		AntiwordPath:   getEnvOrDefault("ANTIWORD_PATH", "antiword"),
	}

	if size, err := parseOptionalIntEnv("CHUNK_SIZE"); err != nil {
		return DocumentConfig{}, err
	} else if size != nil {
		cfg.ChunkSize = *size
	}

	if overlap, err := parseOptionalIntEnv("CHUNK_OVERLAP"); err != nil {
		return DocumentConfig{}, err
	} else if overlap != nil {
		cfg.ChunkOverlap = *overlap
	}

	if mb, err := parseOptionalIntEnv("MAX_UPLOAD_MB"); err != nil {
		return DocumentConfig{}, err
	} else if mb != nil && *mb > 0 {
		cfg.MaxUploadBytes = int64(*mb) << 20
	}

	if cfg.ChunkSize <= 0 {
		return DocumentConfig{}, fmt.Errorf("CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return DocumentConfig{}, fmt.Errorf("CHUNK_OVERLAP must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return cfg, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒处理。
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
