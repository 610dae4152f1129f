package providers

import (
	"sort"
	"strings"
)

// Preset 一个 OpenAI 兼容服务商的默认接入参数。
// 配置里只写名字和 API Key 时，其余字段从这里补齐。
type Preset struct {
	BaseURL        string
	EndpointPath   string
	ModelsEndpoint string
	FallbackModel  string
}

var presets = map[string]Preset{
	"openai": {
		BaseURL:       "https://api.openai.com",
		FallbackModel: "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL:        "https://api.deepseek.com",
		EndpointPath:   "/chat/completions",
		ModelsEndpoint: "/models",
		FallbackModel:  "deepseek-chat",
	},
	"qwen": {
		BaseURL:        "https://dashscope.aliyuncs.com",
		EndpointPath:   "/compatible-mode/v1/chat/completions",
		ModelsEndpoint: "/compatible-mode/v1/models",
		FallbackModel:  "qwen-plus",
	},
	"glm": {
		BaseURL:        "https://open.bigmodel.cn",
		EndpointPath:   "/api/paas/v4/chat/completions",
		ModelsEndpoint: "/api/paas/v4/models",
		FallbackModel:  "glm-4-flash",
	},
	"kimi": {
		BaseURL:       "https://api.moonshot.cn",
		FallbackModel: "moonshot-v1-8k",
	},
	"grok": {
		BaseURL:       "https://api.x.ai",
		FallbackModel: "grok-beta",
	},
	"mistral": {
		BaseURL:       "https://api.mistral.ai",
		FallbackModel: "mistral-small-latest",
	},
	"minimax": {
		BaseURL:       "https://api.minimax.io",
		EndpointPath:  "/v1/text/chatcompletion_v2",
		FallbackModel: "abab6.5s-chat",
	},
	"hunyuan": {
		BaseURL:       "https://api.hunyuan.cloud.tencent.com",
		FallbackModel: "hunyuan-pro",
	},
	"doubao": {
		BaseURL:        "https://ark.cn-beijing.volces.com",
		EndpointPath:   "/api/v3/chat/completions",
		ModelsEndpoint: "/api/v3/models",
		FallbackModel:  "Doubao-1.5-pro-32k",
	},
}

// LookupPreset 按服务商名查找预置参数，名字不区分大小写
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// PresetNames 返回所有预置服务商名（已排序）
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
