// Package openaicompat implements an llm.Provider for any backend that speaks
// the OpenAI Chat Completions protocol (OpenAI, DeepSeek, Qwen, local
// gateways). Providers differ only in name, base URL, default model and
// optional headers.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.deepseek.com",
//	    DefaultModel: "deepseek-chat",
//	}, logger)
//
// NewRegistry builds an llm.ProviderRegistry from a list of Specs, filling
// base URL, endpoint path and fallback model from the vendor presets in the
// providers package.
package openaicompat
