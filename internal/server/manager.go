package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🌐 HTTP 服务器管理器
// =============================================================================

// Config 单个 HTTP 服务的配置
type Config struct {
	Addr           string        `yaml:"addr" json:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" json:"max_header_bytes"`
}

// DefaultConfig 返回默认服务器配置
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   3 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

type managedServer struct {
	name     string
	server   *http.Server
	listener net.Listener
}

// Manager 管理一组 HTTP 服务（业务 API、指标）的启动与优雅关闭
type Manager struct {
	mu        sync.Mutex
	servers   []*managedServer
	hooks     []func()
	started   bool
	closed    bool
	errCh     chan error
	drainWait time.Duration
	logger    *zap.Logger
}

// NewManager 创建服务器管理器。shutdownTimeout 是排空请求的最长等待。
func NewManager(shutdownTimeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &Manager{
		errCh:     make(chan error, 4),
		drainWait: shutdownTimeout,
		logger:    logger.With(zap.String("component", "http_server")),
	}
}

// Add 注册一个服务，必须在 Start 之前调用
func (m *Manager) Add(name string, handler http.Handler, config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, &managedServer{
		name: name,
		server: &http.Server{
			Addr:           config.Addr,
			Handler:        handler,
			ReadTimeout:    config.ReadTimeout,
			WriteTimeout:   config.WriteTimeout,
			IdleTimeout:    config.IdleTimeout,
			MaxHeaderBytes: config.MaxHeaderBytes,
		},
	})
}

// OnShutdown 注册在所有服务停止后执行的清理函数，按注册的逆序执行
func (m *Manager) OnShutdown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Start 监听所有服务（非阻塞）。任一监听失败时关闭已打开的监听。
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("server is closed")
	}
	if m.started {
		return fmt.Errorf("server already started")
	}

	for i, s := range m.servers {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			for _, prev := range m.servers[:i] {
				_ = prev.listener.Close()
				prev.listener = nil
			}
			return fmt.Errorf("failed to listen on %s for %s: %w", s.server.Addr, s.name, err)
		}
		s.listener = ln
	}
	m.started = true

	for _, s := range m.servers {
		m.logger.Info("starting HTTP server", zap.String("name", s.name), zap.String("addr", s.listener.Addr().String()))
		go m.serve(s)
	}
	return nil
}

func (m *Manager) serve(s *managedServer) {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("HTTP server failed", zap.String("name", s.name), zap.Error(err))
		select {
		case m.errCh <- fmt.Errorf("%s: %w", s.name, err):
		default:
		}
	}
}

// Run 启动并阻塞，直到 ctx 结束或某个服务异常退出，然后优雅关闭
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		m.logger.Info("shutdown requested")
	case serveErr = <-m.errCh:
		m.logger.Error("server exited unexpectedly", zap.Error(serveErr))
	}

	if err := m.Shutdown(context.Background()); err != nil {
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// Shutdown 在超时内排空所有服务的请求，然后执行清理函数
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	servers := m.servers
	hooks := m.hooks
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.drainWait)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range servers {
		if s.listener == nil {
			continue
		}
		wg.Add(1)
		go func(s *managedServer) {
			defer wg.Done()
			if err := s.server.Shutdown(ctx); err != nil {
				m.logger.Error("HTTP server shutdown failed", zap.String("name", s.name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}

	m.logger.Info("HTTP servers stopped")
	return errors.Join(errs...)
}

// Addr 返回指定服务的实际监听地址；未启动时返回空串
func (m *Manager) Addr(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.servers {
		if s.name == name && s.listener != nil {
			return s.listener.Addr().String()
		}
	}
	return ""
}

// Errors 返回服务异常退出的错误
func (m *Manager) Errors() <-chan error { return m.errCh }
