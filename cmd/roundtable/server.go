package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/roundtable/api/handlers"
	"github.com/BaSui01/roundtable/config"
	"github.com/BaSui01/roundtable/internal/cache"
	"github.com/BaSui01/roundtable/internal/database"
	"github.com/BaSui01/roundtable/internal/metrics"
	"github.com/BaSui01/roundtable/internal/pool"
	"github.com/BaSui01/roundtable/internal/server"
	"github.com/BaSui01/roundtable/llm"
	"github.com/BaSui01/roundtable/llm/providers/openaicompat"
	"github.com/BaSui01/roundtable/llm/tokenizer"
	"github.com/BaSui01/roundtable/meeting/events"
	"github.com/BaSui01/roundtable/meeting/ledger"
	"github.com/BaSui01/roundtable/meeting/memory"
	"github.com/BaSui01/roundtable/meeting/orchestrator"
	"github.com/BaSui01/roundtable/meeting/pipeline"
	"github.com/BaSui01/roundtable/meeting/search"
	"github.com/BaSui01/roundtable/meeting/selector"
	"github.com/BaSui01/roundtable/meeting/store"
)

// =============================================================================
// 🖥️ App：组装所有组件
// =============================================================================

// App 持有进程内的全部组件
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.Collector

	db     *gorm.DB
	dbPool *database.PoolManager
	cache  *cache.Manager

	memory      memory.Store
	memoryPool  *pool.GoroutinePool
	broadcaster *events.Broadcaster
	providers   *llm.ProviderRegistry
	orch        *orchestrator.Orchestrator

	health   *handlers.HealthHandler
	meetings *handlers.MeetingHandler
}

// NewApp 按配置创建组件。任一步失败时释放已创建的资源。
func NewApp(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (app *App, err error) {
	a := &App{cfg: cfg, logger: logger, collector: collector}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initCache(); err != nil {
		return nil, err
	}
	if err := a.initProviders(); err != nil {
		return nil, err
	}
	if err := a.initMeeting(); err != nil {
		return nil, err
	}
	a.initHealth()
	return a, nil
}

func (a *App) initStorage() error {
	db, err := database.Open(a.cfg.Database.Driver, a.cfg.Database.DSN(), a.logger)
	if err != nil {
		return err
	}
	a.db = db

	pc := database.DefaultPoolConfig()
	if a.cfg.Database.MaxOpenConns > 0 {
		pc.MaxOpenConns = a.cfg.Database.MaxOpenConns
	}
	if a.cfg.Database.MaxIdleConns > 0 {
		pc.MaxIdleConns = min(a.cfg.Database.MaxIdleConns, pc.MaxOpenConns)
	}
	if a.cfg.Database.ConnMaxLifetime > 0 {
		pc.ConnMaxLifetime = a.cfg.Database.ConnMaxLifetime
	}
	a.dbPool, err = database.NewPoolManager(db, a.cfg.Database.Driver, pc, a.collector, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		a.logger.Info("database schema migrated")
	}
	return nil
}

func (a *App) initCache() error {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	cc := cache.DefaultConfig()
	cc.Addr = a.cfg.Redis.Addr
	cc.Password = a.cfg.Redis.Password
	cc.DB = a.cfg.Redis.DB
	if a.cfg.Redis.PoolSize > 0 {
		cc.PoolSize = a.cfg.Redis.PoolSize
	}
	cc.MinIdleConns = a.cfg.Redis.MinIdleConns
	if a.cfg.Redis.KeyPrefix != "" {
		cc.KeyPrefix = a.cfg.Redis.KeyPrefix
	}
	m, err := cache.NewManager(cc, a.logger)
	if err != nil {
		return err
	}
	a.cache = m
	return nil
}

// providerSpecs 顶层 LLM 字段描述默认 Provider（需要 API Key），providers 列表追加命名 Provider
func providerSpecs(cfg config.LLMConfig) []openaicompat.Spec {
	var specs []openaicompat.Spec
	if cfg.APIKey != "" {
		specs = append(specs, openaicompat.Spec{
			Name:    cfg.DefaultProvider,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	}
	for _, p := range cfg.Providers {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = cfg.Timeout
		}
		specs = append(specs, openaicompat.Spec{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Model:   p.Model,
			Timeout: timeout,
			Headers: p.Headers,
		})
	}
	return specs
}

func (a *App) initProviders() error {
	specs := providerSpecs(a.cfg.LLM)
	defaultName := ""
	for _, s := range specs {
		if s.Name == a.cfg.LLM.DefaultProvider {
			defaultName = s.Name
			break
		}
	}
	reg, err := openaicompat.NewRegistry(specs, defaultName, a.logger)
	if err != nil {
		return fmt.Errorf("llm providers: %w", err)
	}
	if reg.Len() == 0 {
		a.logger.Warn("no llm provider configured, turns will fail with MODEL_UNAVAILABLE")
	} else if defaultName == "" {
		a.logger.Warn("default llm provider not configured, using first registered",
			zap.String("default_provider", a.cfg.LLM.DefaultProvider),
			zap.Strings("providers", reg.List()))
	}
	a.providers = reg
	return nil
}

func (a *App) initMeeting() error {
	mc := a.cfg.Meeting
	repo := store.NewRepository(a.db, a.logger)

	// 账本锁
	var locker ledger.Locker
	switch mc.LedgerLocker {
	case "redis":
		if a.cache == nil {
			return errors.New("ledger_locker redis requires redis.enabled")
		}
		locker = ledger.NewRedisLocker(a.cache, ledger.RedisLockerConfig{TTL: mc.LedgerLockTTL}, a.logger)
	default:
		locker = ledger.NewLocalLocker()
	}
	book := ledger.New(a.db, locker, a.logger)

	// 记忆
	switch a.cfg.Memory.Backend {
	case "memory":
		a.memory = memory.NewInMemoryStore()
	default:
		a.memory = memory.NewGormStore(a.db, a.logger)
	}
	if a.cache != nil && a.cfg.Memory.RecallCacheTTL > 0 {
		a.memory = memory.NewCachedStore(a.memory, a.cache, a.cfg.Memory.RecallCacheTTL, a.logger)
	}

	pc := pool.DefaultGoroutinePoolConfig()
	if a.cfg.Memory.Workers > 0 {
		pc.MaxWorkers = a.cfg.Memory.Workers
	}
	if a.cfg.Memory.QueueSize > 0 {
		pc.QueueSize = a.cfg.Memory.QueueSize
	}
	pc.PanicHandler = func(r any) {
		a.logger.Error("memory write panicked", zap.Any("panic", r))
	}
	pc.ErrorHandler = func(err error) {
		a.logger.Warn("memory write failed", zap.Error(err))
	}
	a.memoryPool = pool.NewGoroutinePool(pc)

	// 检索
	var searcher search.Client = search.Noop{}
	if a.cfg.Search.APIKey != "" && a.cfg.Search.Endpoint != "" {
		searcher = search.NewHTTPClient(search.Config{
			Endpoint:   a.cfg.Search.Endpoint,
			APIKey:     a.cfg.Search.APIKey,
			MaxResults: a.cfg.Search.MaxResults,
			MaxChars:   a.cfg.Search.MaxChars,
			Timeout:    a.cfg.Search.Timeout,
		}, a.logger)
	}

	// 分词
	var tok tokenizer.Tokenizer = tokenizer.NewEstimatorTokenizer()
	if mc.TokenizerModel != "" {
		tok = tokenizer.NewFallback(tokenizer.NewTiktokenTokenizer(mc.TokenizerModel))
	}

	a.broadcaster = events.NewBroadcaster(a.cfg.Events.BufferSize, a.collector, a.logger)
	hub := events.NewHub(a.broadcaster, events.HubConfig{
		OriginPatterns:   a.cfg.Events.AllowedOrigins,
		WriteTimeout:     a.cfg.Events.WriteTimeout,
		SubscriberBuffer: a.cfg.Events.SubscriberBuffer,
	}, a.logger)

	gen := pipeline.New(pipelineConfig(mc), a.memory, searcher,
		pipeline.WithKnowledge(repo),
		pipeline.WithTokenizer(tok),
		pipeline.WithEventSink(a.broadcaster),
		pipeline.WithMetrics(a.collector),
		pipeline.WithLogger(a.logger),
	)

	a.orch = orchestrator.New(orchestratorConfig(mc), orchestrator.Deps{
		Meetings:  repo,
		Ledger:    book,
		Pipeline:  gen,
		Providers: a.providers,
		Memory:    a.memory,
		Sink:      a.broadcaster,
		Pool:      a.memoryPool,
		Metrics:   a.collector,
	}, a.logger)

	a.meetings = handlers.NewMeetingHandler(a.orch, repo, book, hub, a.broadcaster, a.logger)
	return nil
}

func pipelineConfig(mc config.MeetingConfig) pipeline.Config {
	return pipeline.Config{
		HistoryLimit:         mc.HistoryLimit,
		UtteranceMaxChars:    mc.UtteranceMaxChars,
		SystemPromptMaxChars: mc.SystemPromptMaxChars,
		KnowledgeLimit:       mc.KnowledgeLimit,
		KnowledgeMaxChars:    mc.KnowledgeMaxChars,
		MemoryRecallLimit:    mc.MemoryRecallLimit,
		MaxPromptTokens:      mc.MaxPromptTokens,
		ThinkTimeout:         mc.ThinkTimeout,
		SpeakTimeout:         mc.SpeakTimeout,
		SearchTimeout:        mc.SearchTimeout,
		SearchResultMaxChars: mc.SearchResultMaxChars,
		ResearchImportance:   mc.ResearchImportance,
		ResearchTTL:          mc.ResearchTTL,
		Temperature:          float32(mc.Temperature),
		MaxTokens:            mc.MaxTokens,
	}
}

func orchestratorConfig(mc config.MeetingConfig) orchestrator.Config {
	return orchestrator.Config{
		Selector: selector.Config{
			FacilitatorInterval:  mc.FacilitatorInterval,
			ReporterInterval:     mc.ReporterInterval,
			LoopWindow:           mc.LoopWindow,
			LoopMinWordLength:    mc.LoopMinWordLength,
			LoopMinFrequency:     mc.LoopMinFrequency,
			LoopMinRepeatedWords: mc.LoopMinRepeatedWords,
		},
		HistoryLimit:           mc.HistoryLimit,
		EpisodicImportanceBase: mc.EpisodicImportanceBase,
		EpisodicImportanceStep: mc.EpisodicImportanceStep,
		EpisodicImportanceMax:  mc.EpisodicImportanceMax,
		EpisodicTTL:            mc.EpisodicTTL,
		MemoryWriteTimeout:     mc.MemoryWriteTimeout,
	}
}

func (a *App) initHealth() {
	a.health = handlers.NewHealthHandler(Version, a.logger)
	a.health.RegisterCheck(handlers.NewPingCheck("database", a.dbPool.Ping))
	if a.cache != nil {
		a.health.RegisterCheck(handlers.NewPingCheck("redis", a.cache.Ping))
	}
}

// =============================================================================
// 🌐 路由
// =============================================================================

// Handler 返回带完整中间件链的 API 处理器。ctx 结束时停止限流器的清理协程。
func (a *App) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.health.HandleHealth)
	mux.HandleFunc("GET /healthz", a.health.HandleHealth)
	mux.HandleFunc("GET /ready", a.health.HandleReady)
	mux.HandleFunc("GET /readyz", a.health.HandleReady)
	mux.HandleFunc("GET /version", a.health.HandleVersion(BuildTime, GitCommit))
	a.meetings.Register(mux)

	chain := []Middleware{
		Recovery(a.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(a.logger),
		MetricsMiddleware(a.collector),
		CORS(a.cfg.Server.CORSAllowedOrigins),
	}
	if a.cfg.JWT.Enabled() {
		skip := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
		chain = append(chain, JWTAuth(a.cfg.JWT, skip, a.logger))
	} else {
		a.logger.Warn("JWT secret not configured, API is unauthenticated")
	}
	chain = append(chain, TurnRateLimiter(ctx, a.cfg.Server.TurnRateLimitRPS, a.cfg.Server.TurnRateLimitBurst, a.logger))
	return Chain(mux, chain...)
}

// MetricsHandler Prometheus 抓取端点
func (a *App) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// =============================================================================
// ⏱️ 后台任务
// =============================================================================

// purgeInterval 过期记忆的清理间隔
const purgeInterval = time.Hour

// RunBackground 运行后台任务直到 ctx 结束
func (a *App) RunBackground(ctx context.Context) {
	purger, ok := a.memory.(interface {
		PurgeExpired(ctx context.Context) (int64, error)
	})
	if !ok {
		return
	}
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("purge expired memories failed", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Info("expired memories purged", zap.Int64("count", n))
			}
		}
	}
}

// Close 按依赖的逆序释放资源：先等后台记忆写入，再关事件和连接
func (a *App) Close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.memoryPool != nil {
		a.memoryPool.Close()
	}
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("cache close failed", zap.Error(err))
		}
	}
	if a.dbPool != nil {
		if err := a.dbPool.Close(); err != nil {
			a.logger.Warn("database close failed", zap.Error(err))
		}
	}
}

// =============================================================================
// 🚀 服务
// =============================================================================

// newServerManager 创建 API 与指标两个 HTTP 服务
func newServerManager(ctx context.Context, cfg *config.Config, app *App, logger *zap.Logger) *server.Manager {
	mgr := server.NewManager(cfg.Server.ShutdownTimeout, logger)
	mgr.Add("api", app.Handler(ctx), server.Config{
		Addr:           fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    2 * cfg.Server.ReadTimeout,
		MaxHeaderBytes: 1 << 20,
	})
	if cfg.Server.MetricsPort > 0 {
		mgr.Add("metrics", app.MetricsHandler(), server.Config{
			Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.ReadTimeout,
		})
	}
	return mgr
}
