// =============================================================================
// 📦 Roundtable 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		JWT:       DefaultJWTConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		LLM:       DefaultLLMConfig(),
		Meeting:   DefaultMeetingConfig(),
		Search:    DefaultSearchConfig(),
		Memory:    DefaultMemoryConfig(),
		Events:    DefaultEventsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       3 * time.Minute,
		ShutdownTimeout:    15 * time.Second,
		TurnRateLimitRPS:   1,
		TurnRateLimitBurst: 5,
	}
}

// DefaultJWTConfig 返回默认鉴权配置
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		Issuer:         "roundtable",
		WorkspaceClaim: "workspace_id",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "roundtable",
		Name:            "roundtable",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "roundtable:",
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "openai",
		BaseURL:         "https://api.openai.com",
		Model:           "gpt-4o-mini",
		Timeout:         2 * time.Minute,
	}
}

// DefaultMeetingConfig 返回默认回合参数
func DefaultMeetingConfig() MeetingConfig {
	return MeetingConfig{
		FacilitatorInterval:  4,
		ReporterInterval:     8,
		LoopWindow:           6,
		LoopMinWordLength:    5,
		LoopMinFrequency:     4,
		LoopMinRepeatedWords: 3,

		HistoryLimit:         20,
		UtteranceMaxChars:    500,
		SystemPromptMaxChars: 800,
		KnowledgeLimit:       5,
		KnowledgeMaxChars:    300,
		MemoryRecallLimit:    5,
		MaxPromptTokens:      6000,

		ThinkTimeout:         60 * time.Second,
		SpeakTimeout:         90 * time.Second,
		SearchTimeout:        15 * time.Second,
		SearchResultMaxChars: 2000,
		Temperature:          0.7,
		MaxTokens:            800,

		EpisodicImportanceBase: 0.5,
		EpisodicImportanceStep: 0.02,
		EpisodicImportanceMax:  0.9,
		EpisodicTTL:            30 * 24 * time.Hour,
		ResearchImportance:     0.8,
		ResearchTTL:            90 * 24 * time.Hour,
		MemoryWriteTimeout:     10 * time.Second,

		LedgerLocker:  "local",
		LedgerLockTTL: 10 * time.Second,
	}
}

// DefaultSearchConfig 返回默认检索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxResults: 5,
		MaxChars:   1500,
		Timeout:    15 * time.Second,
	}
}

// DefaultMemoryConfig 返回默认记忆配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Backend:        "database",
		RecallCacheTTL: 5 * time.Minute,
		Workers:        8,
		QueueSize:      256,
	}
}

// DefaultEventsConfig 返回默认事件配置
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		BufferSize:       256,
		SubscriberBuffer: 64,
		WriteTimeout:     5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "roundtable",
		SampleRate:   0.1,
	}
}
