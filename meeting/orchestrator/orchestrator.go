// Package orchestrator 驱动一次完整的会议回合。
//
// 回合流程：校验 → 并行加载会议、参会者、近期记录与已发言次数 → 选择发言者
// → 生成 → 原子追加到账本 → 广播 → 异步写入情景记忆。
//
// 前置条件错误在任何模型调用之前返回且没有副作用。生成失败不提交任何记录，
// 调用方可以安全地重新发起回合。只有账本追加在会议级锁内串行执行，
// 模型与检索调用都在锁外。记忆写入失败只记日志，不影响已提交的回合。
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/roundtable/internal/metrics"
	"github.com/BaSui01/roundtable/internal/pool"
	"github.com/BaSui01/roundtable/llm"
	"github.com/BaSui01/roundtable/meeting"
	"github.com/BaSui01/roundtable/meeting/events"
	"github.com/BaSui01/roundtable/meeting/memory"
	"github.com/BaSui01/roundtable/meeting/pipeline"
	"github.com/BaSui01/roundtable/meeting/selector"
	"github.com/BaSui01/roundtable/meeting/store"
	"github.com/BaSui01/roundtable/types"
)

const instrumentationName = "github.com/BaSui01/roundtable/meeting/orchestrator"

// =============================================================================
// 依赖
// =============================================================================

// MeetingStore 会议与参会者读取
type MeetingStore interface {
	GetMeeting(ctx context.Context, workspaceID, meetingID string) (*meeting.Meeting, error)
	ListParticipants(ctx context.Context, meetingID string) ([]meeting.Participant, error)
}

// Transcript 会议记录账本
type Transcript interface {
	Append(ctx context.Context, meetingID string, speaker meeting.Speaker, content string) (meeting.Utterance, error)
	Recent(ctx context.Context, meetingID string, n int) ([]meeting.Utterance, error)
	CountBySpeakerType(ctx context.Context, meetingID string, speakerType meeting.SpeakerType) (int64, error)
}

// Generator 发言生成
type Generator interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// ProviderResolver 按调用方选择解析模型 Provider
type ProviderResolver interface {
	Resolve(name string) (llm.Provider, error)
}

// Deps 编排器依赖。Memory、Sink、Pool、Metrics 可以为空。
type Deps struct {
	Meetings  MeetingStore
	Ledger    Transcript
	Pipeline  Generator
	Providers ProviderResolver
	Memory    memory.Store
	Sink      events.Sink
	Pool      *pool.GoroutinePool
	Metrics   *metrics.Collector
}

// =============================================================================
// 配置
// =============================================================================

// Config 编排参数
type Config struct {
	Selector selector.Config `yaml:"selector" json:"selector"`
	// 选择与生成使用的近期记录条数
	HistoryLimit int `yaml:"history_limit" json:"history_limit"`

	// 情景记忆重要度 = min(Base + Step*turn, Max)
	EpisodicImportanceBase float64       `yaml:"episodic_importance_base" json:"episodic_importance_base"`
	EpisodicImportanceStep float64       `yaml:"episodic_importance_step" json:"episodic_importance_step"`
	EpisodicImportanceMax  float64       `yaml:"episodic_importance_max" json:"episodic_importance_max"`
	EpisodicTTL            time.Duration `yaml:"episodic_ttl" json:"episodic_ttl"`
	MemoryWriteTimeout     time.Duration `yaml:"memory_write_timeout" json:"memory_write_timeout"`
	// 记忆摘要里保留的发言字符数
	MemorySummaryChars int `yaml:"memory_summary_chars" json:"memory_summary_chars"`
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		Selector:               selector.DefaultConfig(),
		HistoryLimit:           20,
		EpisodicImportanceBase: 0.5,
		EpisodicImportanceStep: 0.02,
		EpisodicImportanceMax:  0.9,
		EpisodicTTL:            30 * 24 * time.Hour,
		MemoryWriteTimeout:     10 * time.Second,
		MemorySummaryChars:     500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.EpisodicImportanceBase <= 0 {
		c.EpisodicImportanceBase = d.EpisodicImportanceBase
	}
	if c.EpisodicImportanceStep < 0 {
		c.EpisodicImportanceStep = 0
	}
	if c.EpisodicImportanceMax <= 0 {
		c.EpisodicImportanceMax = d.EpisodicImportanceMax
	}
	if c.EpisodicTTL <= 0 {
		c.EpisodicTTL = d.EpisodicTTL
	}
	if c.MemoryWriteTimeout <= 0 {
		c.MemoryWriteTimeout = d.MemoryWriteTimeout
	}
	if c.MemorySummaryChars <= 0 {
		c.MemorySummaryChars = d.MemorySummaryChars
	}
	return c
}

// EpisodicImportance 第 turn 回合情景记忆的重要度
func (c Config) EpisodicImportance(turn int64) float64 {
	return math.Min(c.EpisodicImportanceBase+c.EpisodicImportanceStep*float64(turn), c.EpisodicImportanceMax)
}

// =============================================================================
// 编排器
// =============================================================================

// Orchestrator 回合编排器
type Orchestrator struct {
	cfg      Config
	deps     Deps
	selector *selector.Selector
	ownsPool bool
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New 创建编排器。未提供 Pool 时创建并持有一个默认池，由 Close 关闭。
func New(cfg Config, deps Deps, logger *zap.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "orchestrator"))

	o := &Orchestrator{
		cfg:      cfg,
		selector: selector.New(cfg.Selector),
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger,
	}
	if deps.Sink == nil {
		deps.Sink = events.NopSink{}
	}
	if deps.Memory != nil && deps.Pool == nil {
		pc := pool.DefaultGoroutinePoolConfig()
		pc.PanicHandler = func(r any) {
			logger.Error("background task panicked", zap.Any("panic", r))
		}
		deps.Pool = pool.NewGoroutinePool(pc)
		o.ownsPool = true
	}
	o.deps = deps
	return o
}

// Close 等待排队中的记忆写入完成
func (o *Orchestrator) Close() {
	if o.ownsPool && o.deps.Pool != nil {
		o.deps.Pool.Close()
	}
}

// RunTurn 执行一个回合并返回已提交的发言
func (o *Orchestrator) RunTurn(ctx context.Context, meetingID, workspaceID, providerChoice string) (*meeting.TurnResult, error) {
	start := time.Now()
	traceID, ok := types.TraceID(ctx)
	if !ok || traceID == "" {
		traceID = uuid.NewString()
		ctx = types.WithTraceID(ctx, traceID)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.run_turn", trace.WithAttributes(
		attribute.String("meeting.id", meetingID),
		attribute.String("workspace.id", workspaceID),
		attribute.String("llm.provider_choice", providerChoice),
		attribute.String("trace.id", traceID),
	))
	defer span.End()

	log := o.logger.With(
		zap.String("meeting_id", meetingID),
		zap.String("workspace_id", workspaceID),
		zap.String("trace_id", traceID))

	res, err := o.runTurn(ctx, meetingID, workspaceID, providerChoice, traceID, log)

	status := "success"
	if err != nil {
		status = string(types.GetErrorCode(err))
		if status == "" {
			status = string(types.ErrInternalError)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		log.Info("turn failed", zap.String("code", status), zap.Duration("elapsed", time.Since(start)))
	} else {
		span.SetAttributes(attribute.Int64("utterance.sequence", res.SequenceNumber))
		log.Info("turn committed",
			zap.Int64("sequence", res.SequenceNumber),
			zap.String("speaker", res.SpeakerName),
			zap.Duration("elapsed", time.Since(start)))
	}
	o.deps.Metrics.RecordTurn(status, time.Since(start))
	return res, err
}

// turnState 并行加载的回合输入
type turnState struct {
	meeting      *meeting.Meeting
	participants []meeting.Participant
	history      []meeting.Utterance
	agentTurns   int64
}

func (o *Orchestrator) runTurn(ctx context.Context, meetingID, workspaceID, providerChoice, traceID string, log *zap.Logger) (*meeting.TurnResult, error) {
	if err := store.ValidateID("meeting", meetingID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(workspaceID) == "" {
		return nil, types.NewError(types.ErrInvalidID, "invalid workspace id").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrInvalidID))
	}

	st, err := o.load(ctx, meetingID, workspaceID, log)
	if err != nil {
		return nil, err
	}
	if st.meeting.Status != meeting.StatusInProgress {
		return nil, types.NewError(types.ErrMeetingNotActive,
			fmt.Sprintf("meeting is %s, turns require an in-progress meeting", st.meeting.Status)).
			WithHTTPStatus(types.HTTPStatusFor(types.ErrMeetingNotActive))
	}
	if len(st.participants) == 0 {
		return nil, types.NewError(types.ErrNoParticipants, "meeting has no participants").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrNoParticipants))
	}

	provider, err := o.deps.Providers.Resolve(providerChoice)
	if err != nil {
		log.Warn("provider resolution failed", zap.String("provider", providerChoice), zap.Error(err))
		return nil, types.NewError(types.ErrModelUnavailable, "the requested model provider is not available").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrModelUnavailable))
	}

	// 回合号只计 Agent 发言；并发回合可能读到同一个值，只影响节奏，不影响序号
	turn := st.agentTurns + 1
	decision, err := o.selector.Select(st.participants, st.history, int(turn))
	if err != nil {
		return nil, err
	}
	o.deps.Metrics.RecordSelection(string(decision.Reason), decision.Reason == selector.ReasonLoopOverride)
	speaker := decision.Speaker
	log.Debug("speaker selected",
		zap.Int64("turn", turn),
		zap.String("speaker", speaker.Name),
		zap.String("reason", string(decision.Reason)),
		zap.Bool("loop_detected", decision.LoopDetected))

	result, err := o.deps.Pipeline.Run(ctx, pipeline.Request{
		Meeting:  *st.meeting,
		Speaker:  speaker,
		History:  st.history,
		Provider: provider,
		TraceID:  traceID,
	})
	if err != nil {
		return nil, err
	}

	appendStart := time.Now()
	u, err := o.deps.Ledger.Append(ctx, meetingID, meeting.Speaker{
		Type:        meeting.SpeakerAgent,
		ID:          speaker.AgentID,
		Name:        speaker.Name,
		ContentType: meeting.ContentSpeech,
	}, result.Content)
	o.deps.Metrics.RecordLedgerAppend(time.Since(appendStart))
	if err != nil {
		return nil, err
	}

	o.deps.Sink.Publish(events.Transcript(u))
	o.rememberTurn(*st.meeting, speaker, u, turn, log)

	return &meeting.TurnResult{
		SequenceNumber: u.SequenceNumber,
		SpeakerName:    u.SpeakerName,
		SpeakerID:      u.SpeakerID,
		Content:        u.Content,
	}, nil
}

// load 并行读取回合输入。存储错误不向调用方暴露细节。
func (o *Orchestrator) load(ctx context.Context, meetingID, workspaceID string, log *zap.Logger) (*turnState, error) {
	st := &turnState{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := o.deps.Meetings.GetMeeting(gctx, workspaceID, meetingID)
		st.meeting = m
		return err
	})
	g.Go(func() error {
		ps, err := o.deps.Meetings.ListParticipants(gctx, meetingID)
		st.participants = ps
		return err
	})
	g.Go(func() error {
		h, err := o.deps.Ledger.Recent(gctx, meetingID, o.cfg.HistoryLimit)
		st.history = h
		return err
	})
	g.Go(func() error {
		n, err := o.deps.Ledger.CountBySpeakerType(gctx, meetingID, meeting.SpeakerAgent)
		st.agentTurns = n
		return err
	})

	if err := g.Wait(); err != nil {
		if types.GetErrorCode(err) != "" {
			return nil, err
		}
		log.Error("failed to load turn state", zap.Error(err))
		return nil, types.NewError(types.ErrInternalError, "failed to load meeting state").
			WithHTTPStatus(types.HTTPStatusFor(types.ErrInternalError))
	}
	return st, nil
}

// rememberTurn 异步写入发言者的情景记忆，失败只记日志
func (o *Orchestrator) rememberTurn(m meeting.Meeting, speaker meeting.Participant, u meeting.Utterance, turn int64, log *zap.Logger) {
	if o.deps.Memory == nil {
		return
	}
	content := fmt.Sprintf("In the meeting %q (turn %d) I said: %s",
		m.Title, turn, clipRunes(u.Content, o.cfg.MemorySummaryChars))
	opts := memory.RememberOptions{
		Importance: o.cfg.EpisodicImportance(turn),
		MeetingID:  m.ID,
		Type:       meeting.MemoryEpisodic,
		TTL:        o.cfg.EpisodicTTL,
	}

	task := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.cfg.MemoryWriteTimeout)
		defer cancel()
		if err := o.deps.Memory.Remember(ctx, speaker.AgentID, content, opts); err != nil {
			o.deps.Metrics.RecordMemoryWrite(string(meeting.MemoryEpisodic), "error")
			log.Warn("episodic memory write failed", zap.String("agent_id", speaker.AgentID), zap.Error(err))
			return nil
		}
		o.deps.Metrics.RecordMemoryWrite(string(meeting.MemoryEpisodic), "success")
		return nil
	}

	// 记忆写入不应随请求 ctx 一起取消
	if err := o.deps.Pool.Submit(context.Background(), task); err != nil {
		o.deps.Metrics.RecordMemoryWrite(string(meeting.MemoryEpisodic), "dropped")
		log.Warn("episodic memory write not scheduled", zap.String("agent_id", speaker.AgentID), zap.Error(err))
	}
}

func clipRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
