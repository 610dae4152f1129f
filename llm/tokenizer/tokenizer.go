package tokenizer

import (
	"fmt"
	"strings"
)

// Tokenizer 统一的 Token 计数接口
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// Message 是一个轻量级消息结构, 由 tokenizer 包使用
// 以避免与 llm 包的循环依赖。
type Message struct {
	Role    string
	Content string
}

// 分词器类型
const (
	KindEstimator = "estimator"
	KindTiktoken  = "tiktoken"
)

// New 按类型创建分词器。tiktoken 首次使用时需要加载编码数据。
func New(kind, model string) (Tokenizer, error) {
	switch strings.ToLower(kind) {
	case "", KindEstimator:
		return NewEstimatorTokenizer(), nil
	case KindTiktoken:
		return NewTiktokenTokenizer(model), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer kind: %s", kind)
	}
}

// Fallback 包装主分词器，主分词器出错时使用估算器
type Fallback struct {
	Primary  Tokenizer
	estimate *EstimatorTokenizer
}

// NewFallback 创建带估算兜底的分词器
func NewFallback(primary Tokenizer) *Fallback {
	return &Fallback{Primary: primary, estimate: NewEstimatorTokenizer()}
}

func (f *Fallback) CountTokens(text string) (int, error) {
	if n, err := f.Primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.estimate.CountTokens(text)
}

func (f *Fallback) CountMessages(messages []Message) (int, error) {
	if n, err := f.Primary.CountMessages(messages); err == nil {
		return n, nil
	}
	return f.estimate.CountMessages(messages)
}

func (f *Fallback) Name() string {
	return f.Primary.Name() + "+estimator"
}
