// Package pipeline 实现一次发言的两阶段生成：先思考（可选检索），再发言。
//
// 两次模型调用各有独立的超时上限，超时即整回合失败，不返回部分输出。
// 空白输出视为失败，不在管线内部重试。检索与记忆写入是尽力而为的，
// 失败只记日志。返回给调用方的错误都是脱敏后的 types.Error。
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/roundtable/internal/metrics"
	"github.com/BaSui01/roundtable/llm"
	"github.com/BaSui01/roundtable/llm/tokenizer"
	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/meeting/events"
	"github.com/BaSui01/roundtable/meeting/memory"
	"github.com/BaSui01/roundtable/meeting/search"
)

const instrumentationName = "github.com/BaSui01/roundtable/meeting/pipeline"

// 模型调用阶段
const (
	PhaseThink = "think"
	PhaseSpeak = "speak"
)

// KnowledgeSource 读取 Agent 的知识片段
type KnowledgeSource interface {
	ListKnowledge(ctx context.Context, agentID string, limit int) ([]meeting.KnowledgeSnippet, error)
}

// Request 一次生成的输入
type Request struct {
	Meeting  meeting.Meeting
	Speaker  meeting.Participant
	History  []meeting.Utterance
	Provider llm.Provider
	TraceID  string
}

// Result 一次生成的输出
type Result struct {
	Content     string
	Reasoning   string
	SearchQuery string
	Research    string
}

// Pipeline 生成管线
type Pipeline struct {
	cfg       Config
	prompts   promptBuilder
	memory    memory.Store
	search    search.Client
	knowledge KnowledgeSource
	tokenizer tokenizer.Tokenizer
	sink      events.Sink
	metrics   *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Option 可选依赖
type Option func(*Pipeline)

// WithKnowledge 设置知识来源
func WithKnowledge(k KnowledgeSource) Option { return func(p *Pipeline) { p.knowledge = k } }

// WithTokenizer 设置 token 计数器
func WithTokenizer(t tokenizer.Tokenizer) Option { return func(p *Pipeline) { p.tokenizer = t } }

// WithEventSink 设置进度事件出口
func WithEventSink(s events.Sink) Option { return func(p *Pipeline) { p.sink = s } }

// WithMetrics 设置指标收集器
func WithMetrics(c *metrics.Collector) Option { return func(p *Pipeline) { p.metrics = c } }

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New 创建生成管线。mem 与 searcher 为 nil 时分别视为无记忆、无检索。
func New(cfg Config, mem memory.Store, searcher search.Client, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:       cfg,
		prompts:   promptBuilder{cfg: cfg},
		memory:    mem,
		search:    searcher,
		tokenizer: tokenizer.NewEstimatorTokenizer(),
		sink:      events.NopSink{},
		tracer:    otel.Tracer(instrumentationName),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.search == nil {
		p.search = search.Noop{}
	}
	p.logger = p.logger.With(zap.String("component", "pipeline"))
	return p
}

// Config 返回生效的配置
func (p *Pipeline) Config() Config { return p.cfg }

// Run 执行思考 →（检索）→ 发言
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("meeting.id", req.Meeting.ID),
		attribute.String("speaker.id", req.Speaker.AgentID),
		attribute.String("llm.provider", req.Provider.Name()),
	))
	defer span.End()

	tc := p.loadContext(ctx, req)
	history := p.prompts.fitHistory(tc, p.tokenizer)
	log := p.logger.With(
		zap.String("meeting_id", req.Meeting.ID),
		zap.String("speaker_id", req.Speaker.AgentID),
		zap.String("trace_id", req.TraceID))

	// 思考
	p.sink.Publish(events.Progress(events.TypeAgentThinking, req.Meeting.ID, req.Speaker))
	reasoning, err := p.invoke(ctx, req, PhaseThink, p.cfg.ThinkTimeout, p.prompts.thinkMessages(tc, history), log)
	if err != nil {
		span.SetStatus(codes.Error, "think failed")
		return nil, err
	}

	result := &Result{Reasoning: reasoning}

	// 检索
	if query, ok := ParseSearchDirective(reasoning); ok {
		result.SearchQuery = query
		p.sink.Publish(events.Progress(events.TypeAgentResearching, req.Meeting.ID, req.Speaker))
		result.Research = p.research(ctx, req, query, log)
	}

	// 发言
	content, err := p.invoke(ctx, req, PhaseSpeak, p.cfg.SpeakTimeout,
		p.prompts.speakMessages(tc, history, reasoning, result.Research), log)
	if err != nil {
		span.SetStatus(codes.Error, "speak failed")
		return nil, err
	}
	result.Content = content
	span.SetAttributes(attribute.Bool("pipeline.researched", result.Research != ""))
	return result, nil
}

// loadContext 并行读取知识与记忆，任一失败只记日志
func (p *Pipeline) loadContext(ctx context.Context, req Request) turnContext {
	tc := turnContext{
		meeting: req.Meeting,
		speaker: req.Speaker,
		history: req.History,
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.knowledge != nil && p.cfg.KnowledgeLimit > 0 {
		g.Go(func() error {
			k, err := p.knowledge.ListKnowledge(gctx, req.Speaker.AgentID, p.cfg.KnowledgeLimit)
			if err != nil {
				p.logger.Warn("knowledge load failed", zap.String("agent_id", req.Speaker.AgentID), zap.Error(err))
				return nil
			}
			tc.knowledge = k
			return nil
		})
	}
	if p.memory != nil && p.cfg.MemoryRecallLimit > 0 {
		g.Go(func() error {
			m, err := p.memory.Recall(gctx, req.Speaker.AgentID, p.cfg.MemoryRecallLimit)
			if err != nil {
				p.logger.Warn("memory recall failed", zap.String("agent_id", req.Speaker.AgentID), zap.Error(err))
				return nil
			}
			tc.memories = m
			return nil
		})
	}
	_ = g.Wait()
	return tc
}

// invoke 单阶段模型调用，带独立超时。超时由 llm.Complete 强制执行，不依赖 Provider 响应取消。
func (p *Pipeline) invoke(ctx context.Context, req Request, phase string, timeout time.Duration, msgs []llm.Message, log *zap.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "pipeline."+phase)
	defer span.End()

	provider := req.Provider.Name()
	start := time.Now()
	resp, err := llm.Complete(ctx, req.Provider, &llm.ChatRequest{
		TraceID:     req.TraceID,
		Model:       p.cfg.Model,
		Messages:    msgs,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Metadata: map[string]string{
			"meeting_id": req.Meeting.ID,
			"phase":      phase,
		},
	})
	elapsed := time.Since(start)

	if err != nil {
		out := sanitize(err)
		p.metrics.RecordModelRequest(provider, phase, string(out.Code), elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(out.Code))
		log.Warn("model call failed",
			zap.String("phase", phase),
			zap.String("provider", provider),
			zap.Duration("elapsed", elapsed),
			zap.String("code", string(out.Code)),
			zap.Error(err))
		return "", out
	}

	var (
		text  string
		usage llm.ChatUsage
	)
	if resp != nil {
		usage = resp.Usage
	}
	if choice, cerr := llm.FirstChoice(resp); cerr == nil {
		text = strings.TrimSpace(choice.Message.Content)
	}
	p.metrics.RecordModelRequest(provider, phase, statusFor(text), elapsed, usage.PromptTokens, usage.CompletionTokens)

	if text == "" {
		span.SetStatus(codes.Error, "empty response")
		log.Warn("model produced no content", zap.String("phase", phase), zap.String("provider", provider))
		return "", emptyResponse()
	}
	log.Debug("model call done",
		zap.String("phase", phase),
		zap.Duration("elapsed", elapsed),
		zap.Int("completion_tokens", usage.CompletionTokens))
	return text, nil
}

// research 执行检索并把结果记为高重要度语义记忆，所有失败都被吞掉
func (p *Pipeline) research(ctx context.Context, req Request, query string, log *zap.Logger) string {
	ctx, span := p.tracer.Start(ctx, "pipeline.search", trace.WithAttributes(attribute.String("search.query", query)))
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	text, err := p.search.Search(sctx, query)
	cancel()
	if err != nil {
		p.metrics.RecordSearch("error")
		span.RecordError(err)
		log.Warn("research failed", zap.String("query", query), zap.Error(err))
		return ""
	}
	text = clip(strings.TrimSpace(text), p.cfg.SearchResultMaxChars, ellipsis)
	if text == "" {
		p.metrics.RecordSearch("empty")
		return ""
	}
	p.metrics.RecordSearch("hit")

	if p.memory != nil {
		err := p.memory.Remember(ctx, req.Speaker.AgentID, "Research on \""+query+"\": "+text, memory.RememberOptions{
			Importance: p.cfg.ResearchImportance,
			MeetingID:  req.Meeting.ID,
			Type:       meeting.MemorySemantic,
			TTL:        p.cfg.ResearchTTL,
		})
		if err != nil {
			p.metrics.RecordMemoryWrite(string(meeting.MemorySemantic), "error")
			log.Warn("research memory write failed", zap.Error(err))
		} else {
			p.metrics.RecordMemoryWrite(string(meeting.MemorySemantic), "success")
		}
	}
	return text
}

func statusFor(text string) string {
	if text == "" {
		return "empty"
	}
	return "success"
}
