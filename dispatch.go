package mediago

import (
	"strings"

	"github.com/coffee-tm/mediago/adapters"
	"github.com/coffee-tm/mediago/adapters/modelscope"
	"github.com/coffee-tm/mediago/adapters/openaicompat"
	"github.com/coffee-tm/mediago/adapters/zhipu"
)

// zhipuKeywords route to the Zhipu BigModel adapter. Checked first.
var zhipuKeywords = []string{"cogview", "cogvideox", "glm", "zhipu"}

// modelScopeKeywords route to the ModelScope adapter; a "/" in the model
// identifier (org/name paths) routes there too.
var modelScopeKeywords = []string{"modelscope"}

// ClassifyModel selects a provider family from a model identifier using
// ordered substring predicates. First match wins; anything unmatched falls
// through to the OpenAI-compatible default.
func ClassifyModel(modelID string) ProviderKind {
	lower := strings.ToLower(modelID)

	for _, kw := range zhipuKeywords {
		if strings.Contains(lower, kw) {
			return ProviderZhipu
		}
	}

	if strings.Contains(modelID, "/") {
		return ProviderModelScope
	}
	for _, kw := range modelScopeKeywords {
		if strings.Contains(lower, kw) {
			return ProviderModelScope
		}
	}

	return ProviderOpenAICompatible
}

// createProvider creates a provider instance for the classified kind
func createProvider(kind ProviderKind, config *ProviderConfig) (Provider, error) {
	adapterConfig := &adapters.ProviderConfig{
		ModelID:      config.ModelID,
		APIKey:       config.APIKey,
		BaseURL:      config.BaseURL,
		Timeout:      config.Timeout,
		PollInterval: config.PollInterval,
		PollTimeout:  config.PollTimeout,
		Extra:        config.Extra,
	}

	var (
		adapterProvider adapters.Provider
		err             error
	)
	switch kind {
	case ProviderZhipu:
		adapterProvider, err = zhipu.New(adapterConfig)
	case ProviderModelScope:
		adapterProvider, err = modelscope.New(adapterConfig)
	case ProviderOpenAICompatible:
		adapterProvider, err = openaicompat.New(adapterConfig)
	default:
		return nil, &ConfigError{Field: "model_id", Message: "no provider for model " + config.ModelID}
	}
	if err != nil {
		return nil, err
	}
	return &adapterWrapper{provider: adapterProvider}, nil
}
