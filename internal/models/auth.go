package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/claybowl/taygency/internal/config"
)

// AuthKind distinguishes between API key and Bearer token auth.
type AuthKind int

const (
	AuthAPIKey AuthKind = iota
	AuthBearerToken
)

// ResolvedAuth holds the resolved credentials and their kind.
type ResolvedAuth struct {
	Kind  AuthKind
	Value string
}

// defaultKeyEnv is the environment fallback per driver.
var defaultKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
}

// ResolveAuth resolves the credentials for a provider.
// Resolution order: token, api_key, then the driver's default env var.
// Values may reference the environment as ${VAR}.
func ResolveAuth(cfg config.ProviderConfig) (ResolvedAuth, error) {
	if token, err := resolveValue(cfg.Auth.Token); err != nil {
		return ResolvedAuth{}, fmt.Errorf("auth.token: %w", err)
	} else if token != "" {
		return ResolvedAuth{Kind: AuthBearerToken, Value: token}, nil
	}

	if key, err := resolveValue(cfg.Auth.APIKey); err != nil {
		return ResolvedAuth{}, fmt.Errorf("auth.api_key: %w", err)
	} else if key != "" {
		return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
	}

	driver := strings.ToLower(cfg.Driver)
	env, ok := defaultKeyEnv[driver]
	if !ok {
		return ResolvedAuth{}, fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
	key, err := resolveValue(os.Getenv(env))
	if err != nil {
		return ResolvedAuth{}, fmt.Errorf("%s: %w", env, err)
	}
	if key == "" {
		return ResolvedAuth{}, fmt.Errorf("%s not set", env)
	}
	return ResolvedAuth{Kind: AuthAPIKey, Value: key}, nil
}

func resolveValue(v string) (string, error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		v = strings.TrimSpace(os.Getenv(v[2 : len(v)-1]))
	}
	if strings.HasPrefix(v, "ENC[") {
		return "", fmt.Errorf("credential is still encrypted; check the age key")
	}
	return v, nil
}
