package pipeline

import "time"

// Config 生成管线参数
type Config struct {
	// 历史窗口：最近 N 条发言，每条截断到 UtteranceMaxChars 个字符
	HistoryLimit      int `yaml:"history_limit" json:"history_limit"`
	UtteranceMaxChars int `yaml:"utterance_max_chars" json:"utterance_max_chars"`
	// 人设提示截断长度
	SystemPromptMaxChars int `yaml:"system_prompt_max_chars" json:"system_prompt_max_chars"`
	// 知识片段条数与截断长度
	KnowledgeLimit    int `yaml:"knowledge_limit" json:"knowledge_limit"`
	KnowledgeMaxChars int `yaml:"knowledge_max_chars" json:"knowledge_max_chars"`
	// 召回的记忆条数
	MemoryRecallLimit int `yaml:"memory_recall_limit" json:"memory_recall_limit"`
	// 思考阶段提示的 token 上限，超出时从最旧的历史开始丢弃
	MaxPromptTokens int `yaml:"max_prompt_tokens" json:"max_prompt_tokens"`

	ThinkTimeout  time.Duration `yaml:"think_timeout" json:"think_timeout"`
	SpeakTimeout  time.Duration `yaml:"speak_timeout" json:"speak_timeout"`
	SearchTimeout time.Duration `yaml:"search_timeout" json:"search_timeout"`

	SearchResultMaxChars int `yaml:"search_result_max_chars" json:"search_result_max_chars"`
	// 检索结果写入记忆时的重要度与有效期
	ResearchImportance float64       `yaml:"research_importance" json:"research_importance"`
	ResearchTTL        time.Duration `yaml:"research_ttl" json:"research_ttl"`

	// 模型调用参数，Model 为空时使用 Provider 默认模型
	Model       string  `yaml:"model" json:"model"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
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
		ResearchImportance:   0.8,
		ResearchTTL:          90 * 24 * time.Hour,
		Temperature:          0.7,
		MaxTokens:            800,
	}
}

// withDefaults 非正数参数使用默认值
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.UtteranceMaxChars <= 0 {
		c.UtteranceMaxChars = d.UtteranceMaxChars
	}
	if c.SystemPromptMaxChars <= 0 {
		c.SystemPromptMaxChars = d.SystemPromptMaxChars
	}
	if c.KnowledgeLimit < 0 {
		c.KnowledgeLimit = 0
	}
	if c.KnowledgeMaxChars <= 0 {
		c.KnowledgeMaxChars = d.KnowledgeMaxChars
	}
	if c.MemoryRecallLimit < 0 {
		c.MemoryRecallLimit = 0
	}
	if c.MaxPromptTokens <= 0 {
		c.MaxPromptTokens = d.MaxPromptTokens
	}
	if c.ThinkTimeout <= 0 {
		c.ThinkTimeout = d.ThinkTimeout
	}
	if c.SpeakTimeout <= 0 {
		c.SpeakTimeout = d.SpeakTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = d.SearchTimeout
	}
	if c.SearchResultMaxChars <= 0 {
		c.SearchResultMaxChars = d.SearchResultMaxChars
	}
	if c.ResearchImportance <= 0 {
		c.ResearchImportance = d.ResearchImportance
	}
	if c.ResearchTTL <= 0 {
		c.ResearchTTL = d.ResearchTTL
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	return c
}
