package config

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Roundtable 的完整配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	JWT       JWTConfig       `yaml:"jwt" env:"JWT"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Meeting   MeetingConfig   `yaml:"meeting" env:"MEETING"`
	Search    SearchConfig    `yaml:"search" env:"SEARCH"`
	Memory    MemoryConfig    `yaml:"memory" env:"MEMORY"`
	Events    EventsConfig    `yaml:"events" env:"EVENTS"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	HTTPPort    int `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需覆盖一个完整回合（思考 + 发言）
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个工作区发起回合的速率（每秒）与突发量
	TurnRateLimitRPS   float64 `yaml:"turn_rate_limit_rps" env:"TURN_RATE_LIMIT_RPS"`
	TurnRateLimitBurst int     `yaml:"turn_rate_limit_burst" env:"TURN_RATE_LIMIT_BURST"`
	// CORS 允许的来源，为空时不设置 CORS 头
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// JWTConfig 工作区鉴权。Secret 为空时关闭鉴权，只适合本地开发。
type JWTConfig struct {
	Secret   string `yaml:"secret" env:"SECRET"`
	Issuer   string `yaml:"issuer" env:"ISSUER"`
	Audience string `yaml:"audience" env:"AUDIENCE"`
	// 令牌中携带工作区 ID 的 claim 名
	WorkspaceClaim string `yaml:"workspace_claim" env:"WORKSPACE_CLAIM"`
}

// Enabled 是否启用鉴权
func (j JWTConfig) Enabled() bool { return j.Secret != "" }

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名；sqlite 时为文件路径
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时执行迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// RedisConfig Redis 配置，用于召回缓存与分布式账本锁
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// LLMConfig 模型配置。顶层字段描述默认 Provider，Providers 追加命名 Provider。
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	APIKey          string        `yaml:"api_key" env:"API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	Model           string        `yaml:"model" env:"MODEL"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 只能通过 YAML 配置
	Providers []ProviderConfig `yaml:"providers" env:"-"`
}

// ProviderConfig 一个 OpenAI 兼容的命名 Provider
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	BaseURL string            `yaml:"base_url"`
	APIKey  string            `yaml:"api_key"`
	Model   string            `yaml:"model"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// MeetingConfig 回合选择、生成与记忆参数
type MeetingConfig struct {
	FacilitatorInterval  int `yaml:"facilitator_interval" env:"FACILITATOR_INTERVAL"`
	ReporterInterval     int `yaml:"reporter_interval" env:"REPORTER_INTERVAL"`
	LoopWindow           int `yaml:"loop_window" env:"LOOP_WINDOW"`
	LoopMinWordLength    int `yaml:"loop_min_word_length" env:"LOOP_MIN_WORD_LENGTH"`
	LoopMinFrequency     int `yaml:"loop_min_frequency" env:"LOOP_MIN_FREQUENCY"`
	LoopMinRepeatedWords int `yaml:"loop_min_repeated_words" env:"LOOP_MIN_REPEATED_WORDS"`

	HistoryLimit         int `yaml:"history_limit" env:"HISTORY_LIMIT"`
	UtteranceMaxChars    int `yaml:"utterance_max_chars" env:"UTTERANCE_MAX_CHARS"`
	SystemPromptMaxChars int `yaml:"system_prompt_max_chars" env:"SYSTEM_PROMPT_MAX_CHARS"`
	KnowledgeLimit       int `yaml:"knowledge_limit" env:"KNOWLEDGE_LIMIT"`
	KnowledgeMaxChars    int `yaml:"knowledge_max_chars" env:"KNOWLEDGE_MAX_CHARS"`
	MemoryRecallLimit    int `yaml:"memory_recall_limit" env:"MEMORY_RECALL_LIMIT"`
	MaxPromptTokens      int `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
	// 按 tiktoken 编码计数；为空时使用估算器
	TokenizerModel string `yaml:"tokenizer_model" env:"TOKENIZER_MODEL"`

	ThinkTimeout         time.Duration `yaml:"think_timeout" env:"THINK_TIMEOUT"`
	SpeakTimeout         time.Duration `yaml:"speak_timeout" env:"SPEAK_TIMEOUT"`
	SearchTimeout        time.Duration `yaml:"search_timeout" env:"SEARCH_TIMEOUT"`
	SearchResultMaxChars int           `yaml:"search_result_max_chars" env:"SEARCH_RESULT_MAX_CHARS"`
	Temperature          float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens            int           `yaml:"max_tokens" env:"MAX_TOKENS"`

	EpisodicImportanceBase float64       `yaml:"episodic_importance_base" env:"EPISODIC_IMPORTANCE_BASE"`
	EpisodicImportanceStep float64       `yaml:"episodic_importance_step" env:"EPISODIC_IMPORTANCE_STEP"`
	EpisodicImportanceMax  float64       `yaml:"episodic_importance_max" env:"EPISODIC_IMPORTANCE_MAX"`
	EpisodicTTL            time.Duration `yaml:"episodic_ttl" env:"EPISODIC_TTL"`
	ResearchImportance     float64       `yaml:"research_importance" env:"RESEARCH_IMPORTANCE"`
	ResearchTTL            time.Duration `yaml:"research_ttl" env:"RESEARCH_TTL"`
	MemoryWriteTimeout     time.Duration `yaml:"memory_write_timeout" env:"MEMORY_WRITE_TIMEOUT"`

	// 账本锁: local 或 redis
	LedgerLocker  string        `yaml:"ledger_locker" env:"LEDGER_LOCKER"`
	LedgerLockTTL time.Duration `yaml:"ledger_lock_ttl" env:"LEDGER_LOCK_TTL"`
}

// SearchConfig 外部检索 API。APIKey 为空时关闭检索。
type SearchConfig struct {
	Endpoint   string        `yaml:"endpoint" env:"ENDPOINT"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	MaxResults int           `yaml:"max_results" env:"MAX_RESULTS"`
	MaxChars   int           `yaml:"max_chars" env:"MAX_CHARS"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// MemoryConfig 记忆存储
type MemoryConfig struct {
	// 后端: database 或 memory
	Backend string `yaml:"backend" env:"BACKEND"`
	// 召回缓存 TTL，需启用 Redis
	RecallCacheTTL time.Duration `yaml:"recall_cache_ttl" env:"RECALL_CACHE_TTL"`
	// 后台写入池
	Workers   int `yaml:"workers" env:"WORKERS"`
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
}

// EventsConfig 实时事件推送
type EventsConfig struct {
	BufferSize       int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"SUBSCRIBER_BUFFER"`
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// WebSocket 允许的 Origin 模式
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// ✅ 校验
// =============================================================================

// Validate 拒绝无法运行的配置
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		add("invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		add("invalid metrics port")
	}
	if c.Server.TurnRateLimitRPS < 0 || c.Server.TurnRateLimitBurst < 0 {
		add("turn rate limit must not be negative")
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		add("unsupported database driver %q", c.Database.Driver)
	}

	m := c.Meeting
	positive := map[string]int{
		"meeting.facilitator_interval":    m.FacilitatorInterval,
		"meeting.reporter_interval":       m.ReporterInterval,
		"meeting.loop_window":             m.LoopWindow,
		"meeting.loop_min_frequency":      m.LoopMinFrequency,
		"meeting.history_limit":           m.HistoryLimit,
		"meeting.utterance_max_chars":     m.UtteranceMaxChars,
		"meeting.max_prompt_tokens":       m.MaxPromptTokens,
		"meeting.search_result_max_chars": m.SearchResultMaxChars,
	}
	for name, v := range positive {
		if v <= 0 {
			add("%s must be positive", name)
		}
	}
	if m.LoopMinWordLength < 0 || m.LoopMinRepeatedWords < 0 {
		add("meeting loop thresholds must not be negative")
	}
	timeouts := map[string]time.Duration{
		"meeting.think_timeout":        m.ThinkTimeout,
		"meeting.speak_timeout":        m.SpeakTimeout,
		"meeting.search_timeout":       m.SearchTimeout,
		"meeting.memory_write_timeout": m.MemoryWriteTimeout,
		"meeting.episodic_ttl":         m.EpisodicTTL,
		"meeting.research_ttl":         m.ResearchTTL,
	}
	for name, d := range timeouts {
		if d <= 0 {
			add("%s must be positive", name)
		}
	}
	for name, v := range map[string]float64{
		"meeting.episodic_importance_base": m.EpisodicImportanceBase,
		"meeting.episodic_importance_max":  m.EpisodicImportanceMax,
		"meeting.research_importance":      m.ResearchImportance,
	} {
		if v < 0 || v > 1 {
			add("%s must be within [0, 1]", name)
		}
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		add("meeting.temperature must be between 0 and 2")
	}

	switch m.LedgerLocker {
	case "local":
	case "redis":
		if !c.Redis.Enabled {
			add("meeting.ledger_locker=redis requires redis.enabled")
		}
	default:
		add("unsupported ledger locker %q", m.LedgerLocker)
	}

	switch c.Memory.Backend {
	case "database", "memory":
	default:
		add("unsupported memory backend %q", c.Memory.Backend)
	}

	if c.Events.BufferSize <= 0 {
		add("events.buffer_size must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("unsupported log level %q", c.Log.Level)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
