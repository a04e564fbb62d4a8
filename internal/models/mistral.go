package models

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"github.com/claybowl/taygency/internal/config"
)

const (
	defaultMistralBaseURL = "https://api.mistral.ai/v1"
	defaultMistralModel   = "mistral-small-latest"
)

// NewMistral creates a Mistral AI ChatModel via the OpenAI-compatible API.
func NewMistral(ctx context.Context, cfg config.ProviderConfig, auth ResolvedAuth) (model.ToolCallingChatModel, error) {
	return newOpenAICompatible(ctx, cfg, auth, defaultMistralModel, defaultMistralBaseURL)
}
