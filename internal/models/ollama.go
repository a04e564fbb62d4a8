package models

import (
	"context"
	"io"
	"net/http"
	"strings"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"

	"github.com/claybowl/taygency/internal/config"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1"
)

// NewOllama creates an Ollama ChatModel. No credentials are needed.
func NewOllama(ctx context.Context, cfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	modelConfig := &einoollama.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: DefaultCallTimeout,
	}
	if modelConfig.BaseURL == "" {
		modelConfig.BaseURL = defaultOllamaBaseURL
	}
	if modelConfig.Model == "" {
		modelConfig.Model = defaultOllamaModel
	}
	if cfg.Timeout.Duration() > 0 {
		modelConfig.Timeout = cfg.Timeout.Duration()
	}

	opts := &einoollama.Options{NumPredict: cfg.MaxTokens}
	if temp, ok := floatOption(cfg.Options, "temperature"); ok {
		opts.Temperature = float32(temp)
	}
	if numCtx, ok := floatOption(cfg.Options, "num_ctx"); ok {
		opts.NumCtx = int(numCtx)
	}
	if topP, ok := floatOption(cfg.Options, "top_p"); ok {
		opts.TopP = float32(topP)
	}
	modelConfig.Options = opts

	modelConfig.HTTPClient = &http.Client{
		Timeout:   modelConfig.Timeout,
		Transport: &ollamaTransport{inner: http.DefaultTransport, provider: "ollama"},
	}

	return einoollama.NewChatModel(ctx, modelConfig)
}

// ollamaTransport turns transport failures, HTTP errors and non-JSON bodies
// (a reverse proxy answering "no available server") into ErrModelUnavailable.
type ollamaTransport struct {
	inner    http.RoundTripper
	provider string
}

func (t *ollamaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, &ErrModelUnavailable{Provider: t.provider, Cause: err}
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || (ct != "" && !strings.Contains(ct, "json")) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ErrModelUnavailable{
			Provider: t.provider,
			Body:     strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}
