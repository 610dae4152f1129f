package openaicompat

import (
	"fmt"
	"time"

	"github.com/BaSui01/roundtable/llm"
	"github.com/BaSui01/roundtable/llm/providers"
	"go.uber.org/zap"
)

// Spec describes one named provider as it appears in configuration.
// Fields left empty are filled from the vendor preset matching Name.
type Spec struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Headers map[string]string
}

// FromSpec builds a provider, applying the vendor preset for s.Name.
// A name with no preset requires an explicit BaseURL.
func FromSpec(s Spec, logger *zap.Logger) (*Provider, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	preset, known := providers.LookupPreset(s.Name)
	baseURL := s.BaseURL
	if baseURL == "" {
		if !known {
			return nil, fmt.Errorf("provider %q: base_url is required for unknown vendors", s.Name)
		}
		baseURL = preset.BaseURL
	}
	return New(Config{
		ProviderName:   s.Name,
		APIKey:         s.APIKey,
		BaseURL:        baseURL,
		DefaultModel:   s.Model,
		FallbackModel:  preset.FallbackModel,
		Timeout:        s.Timeout,
		EndpointPath:   preset.EndpointPath,
		ModelsEndpoint: preset.ModelsEndpoint,
		Headers:        s.Headers,
	}, logger), nil
}

// NewRegistry registers every spec and marks defaultName as the default.
// An empty defaultName keeps the first registered provider as default.
func NewRegistry(specs []Spec, defaultName string, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := llm.NewProviderRegistry()
	for _, s := range specs {
		p, err := FromSpec(s, logger)
		if err != nil {
			return nil, err
		}
		reg.Register(s.Name, p)
		logger.Info("llm provider registered",
			zap.String("provider", s.Name),
			zap.String("base_url", p.Cfg.BaseURL),
			zap.String("model", p.Cfg.DefaultModel))
	}
	if defaultName != "" && reg.Len() > 0 {
		if err := reg.SetDefault(defaultName); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
