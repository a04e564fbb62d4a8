package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/claybowl/taygency/internal/config"
)

// CreateModel creates a model.ToolCallingChatModel from a provider config.
func CreateModel(ctx context.Context, cfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "ollama" {
		return NewOllama(ctx, cfg)
	}

	auth, err := ResolveAuth(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve auth: %w", err)
	}
	switch driver {
	case "anthropic":
		return NewAnthropic(ctx, cfg, auth)
	case "openai":
		return NewOpenAI(ctx, cfg, auth)
	case "mistral":
		return NewMistral(ctx, cfg, auth)
	}
	return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
}
