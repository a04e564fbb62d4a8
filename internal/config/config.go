package config

import "time"

// Config is the root configuration for Taygency.
type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	Models  ModelsConfig  `json:"models"`
	Storage StorageConfig `json:"storage"`
	Agent   AgentConfig   `json:"agent"`
	Trace   TraceConfig   `json:"trace"`
	Events  EventsConfig  `json:"events"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "mistral", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key, ${VAR}, ${{ .Env.VAR }} or ENC[age:...]
	Token  string `json:"token,omitempty"`   // OAuth/Bearer token
}

// StorageConfig selects and configures the workspace file backend.
type StorageConfig struct {
	Backend  string       `json:"backend"` // "github", "dir", "sqlite"
	CacheTTL Duration     `json:"cache_ttl,omitempty"`
	Timeout  Duration     `json:"timeout,omitempty"`
	GitHub   GitHubConfig `json:"github"`
	Dir      DirConfig    `json:"dir"`
	SQLite   SQLiteConfig `json:"sqlite"`
}

// GitHubConfig points the github backend at a repository.
type GitHubConfig struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Branch  string `json:"branch,omitempty"`
	Token   string `json:"token,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// DirConfig configures the local directory backend.
type DirConfig struct {
	Root string `json:"root"`
}

// SQLiteConfig configures the embedded SQLite backend.
type SQLiteConfig struct {
	Path string `json:"path"`
}

// AgentConfig holds orchestrator settings.
type AgentConfig struct {
	MaxIterations      *int   `json:"max_iterations,omitempty"` // 0 = unbounded
	RecentTasks        int    `json:"recent_tasks,omitempty"`
	DefaultTimezone    string `json:"default_timezone,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
}

// IterationLimit returns max_iterations, DefaultMaxIterations when unset.
func (c AgentConfig) IterationLimit() int {
	if c.MaxIterations == nil {
		return DefaultMaxIterations
	}
	return max(*c.MaxIterations, 0)
}

// TraceConfig controls trace persistence.
type TraceConfig struct {
	Persist *bool  `json:"persist,omitempty"`
	Dir     string `json:"dir,omitempty"`
}

// PersistEnabled reports whether traces are written after each run (default true).
func (c TraceConfig) PersistEnabled() bool {
	return c.Persist == nil || *c.Persist
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
