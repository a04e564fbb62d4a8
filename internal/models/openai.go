package models

import (
	"context"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/claybowl/taygency/internal/config"
)

const defaultOpenAIModel = "gpt-4o"

// NewOpenAI creates an OpenAI ChatModel.
func NewOpenAI(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	return newOpenAICompatible(ctx, cfg, auth, defaultOpenAIModel, "")
}

// newOpenAICompatible configures the Eino OpenAI component for any
// OpenAI-compatible endpoint.
func newOpenAICompatible(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth, defaultModel, defaultBaseURL string) (model.ToolCallingChatModel, error) {
	modelConfig := &einoopenai.ChatModelConfig{
		APIKey:  auth.Value,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: DefaultCallTimeout,
	}
	if modelConfig.Model == "" {
		modelConfig.Model = defaultModel
	}
	if modelConfig.BaseURL == "" {
		modelConfig.BaseURL = defaultBaseURL
	}
	if cfg.Timeout.Duration() > 0 {
		modelConfig.Timeout = cfg.Timeout.Duration()
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxCompletionTokens = &maxTokens
	}
	if temp, ok := floatOption(cfg.Options, "temperature"); ok {
		t := float32(temp)
		modelConfig.Temperature = &t
	}
	if topP, ok := floatOption(cfg.Options, "top_p"); ok {
		p := float32(topP)
		modelConfig.TopP = &p
	}

	m, err := einoopenai.NewChatModel(ctx, modelConfig)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// floatOption reads a numeric provider option.
func floatOption(opts map[string]any, key string) (float64, bool) {
	v, ok := opts[key].(float64)
	return v, ok
}
