// Package models builds the chat models the orchestrator talks to: the
// Anthropic SDK directly, OpenAI and Mistral through the Eino OpenAI
// component, and Ollama through the Eino Ollama component.
package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/claybowl/taygency/internal/config"
)

// DefaultCallTimeout bounds a single model call when the provider sets none.
const DefaultCallTimeout = 2 * time.Minute

// Factory builds a model from its provider config.
type Factory func(ctx context.Context, cfg config.ProviderConfig) (model.ToolCallingChatModel, error)

// ProviderEntry holds a lazily-initialized model instance.
type ProviderEntry struct {
	Config config.ProviderConfig
	model  model.ToolCallingChatModel
	once   sync.Once
	err    error
}

// Registry manages named model providers with lazy initialization.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]*ProviderEntry
	defaultName string
	factory     Factory
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig) *Registry {
	r := &Registry{
		providers:   make(map[string]*ProviderEntry, len(cfg.Providers)),
		defaultName: cfg.Default,
		factory:     CreateModel,
	}
	for name, provCfg := range cfg.Providers {
		r.providers[name] = &ProviderEntry{Config: provCfg}
	}
	return r
}

// WithFactory replaces the model constructor. Must be called before the
// first Get.
func (r *Registry) WithFactory(f Factory) *Registry {
	r.factory = f
	return r
}

// Get returns the named model, initializing it lazily. A failed
// initialization is remembered.
func (r *Registry) Get(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	r.mu.RLock()
	entry, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model provider %q not found", name)
	}

	entry.once.Do(func() {
		entry.model, entry.err = r.factory(ctx, entry.Config)
		if entry.err != nil {
			entry.err = fmt.Errorf("model provider %q: %w", name, entry.err)
		}
	})

	return entry.model, entry.err
}

// Default returns the default model. With a single provider configured and
// no explicit default, that provider is used.
func (r *Registry) Default(ctx context.Context) (model.ToolCallingChatModel, error) {
	name := r.DefaultName()
	if name == "" {
		return nil, fmt.Errorf("no default model configured")
	}
	return r.Get(ctx, name)
}

// DefaultName returns the name of the default provider.
func (r *Registry) DefaultName() string {
	if r.defaultName != "" {
		return r.defaultName
	}
	if names := r.Names(); len(names) == 1 {
		return names[0]
	}
	return ""
}

// Names returns the configured provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTimeout returns the per-call deadline of the named provider.
func (r *Registry) CallTimeout(name string) time.Duration {
	r.mu.RLock()
	entry, ok := r.providers[name]
	r.mu.RUnlock()
	if ok && entry.Config.Timeout.Duration() > 0 {
		return entry.Config.Timeout.Duration()
	}
	return DefaultCallTimeout
}
