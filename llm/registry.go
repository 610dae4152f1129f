package llm

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// ProviderRegistry 线程安全的 Provider 注册表，按名称解析调用方的 provider 选择。
type ProviderRegistry struct {
	providers       map[string]Provider
	defaultProvider string
	mu              sync.RWMutex
}

// NewProviderRegistry creates an empty ProviderRegistry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

// Register 注册 Provider，同名覆盖。第一个注册的成为默认。
func (r *ProviderRegistry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = normalizeName(name)
	r.providers[name] = p
	if r.defaultProvider == "" {
		r.defaultProvider = name
	}
}

// SetDefault designates an existing registered provider as the default.
func (r *ProviderRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = normalizeName(name)
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.defaultProvider = name
	return nil
}

// Resolve 按名称解析 Provider，空名称使用默认。
// 未知名称返回 ErrProviderUnavailable，调用方应在任何外部调用前拒绝。
func (r *ProviderRegistry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = normalizeName(name)
	if name == "" {
		name = r.defaultProvider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, &Error{
			Code:       ErrProviderUnavailable,
			Message:    fmt.Sprintf("provider %q is not configured", name),
			HTTPStatus: http.StatusServiceUnavailable,
			Provider:   name,
		}
	}
	return p, nil
}

// List returns the sorted names of all registered providers.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
