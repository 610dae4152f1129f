// 配置文件轮询重载。
//
// 文件修改后重新执行完整加载（默认值 → YAML → 环境变量）并校验，
// 失败时保留上一份有效配置。只有订阅方自行决定哪些字段可以在运行时生效。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadCallback 配置重载回调
type ReloadCallback func(oldConfig, newConfig *Config)

// Reloader 轮询配置文件并在变更后重新加载
type Reloader struct {
	loader   *Loader
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	current   *Config
	modTime   time.Time
	callbacks []ReloadCallback
}

// ReloaderOption 配置 Reloader
type ReloaderOption func(*Reloader)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReloaderLogger 设置日志
func WithReloaderLogger(logger *zap.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReloader 创建重载器。loader 必须设置了配置文件路径。
func NewReloader(loader *Loader, initial *Config, opts ...ReloaderOption) (*Reloader, error) {
	if loader == nil || loader.ConfigPath() == "" {
		return nil, fmt.Errorf("reloader requires a config file path")
	}
	r := &Reloader{
		loader:   loader,
		interval: 2 * time.Second,
		logger:   zap.NewNop(),
		current:  initial,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "config_reloader"))

	if info, err := os.Stat(loader.ConfigPath()); err == nil {
		r.modTime = info.ModTime()
	}
	return r, nil
}

// OnReload 注册重载回调
func (r *Reloader) OnReload(cb ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Current 返回当前生效的配置
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Run 轮询直到 ctx 结束
func (r *Reloader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("config reloader started",
		zap.String("path", r.loader.ConfigPath()),
		zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Check(); err != nil {
				r.logger.Warn("config reload rejected, keeping previous config", zap.Error(err))
			}
		}
	}
}

// Check 文件有变更时重新加载，返回是否已应用新配置
func (r *Reloader) Check() (bool, error) {
	info, err := os.Stat(r.loader.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat config file: %w", err)
	}

	r.mu.Lock()
	if !info.ModTime().After(r.modTime) {
		r.mu.Unlock()
		return false, nil
	}
	// 无论加载是否成功都记下修改时间，避免对同一份坏文件反复报错
	r.modTime = info.ModTime()
	r.mu.Unlock()

	next, err := r.loader.Load()
	if err != nil {
		return false, err
	}
	if err := next.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	callbacks := make([]ReloadCallback, len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.mu.Unlock()

	r.logger.Info("config reloaded", zap.String("path", r.loader.ConfigPath()))
	for _, cb := range callbacks {
		cb(prev, next)
	}
	return true, nil
}
