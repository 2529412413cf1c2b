package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Completer produces a completion for a system/user prompt pair. It may
// fail for network, auth, or quota reasons; callers must catch the error
// and fall back rather than propagate it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ToolCompleter forces the model to answer through a single declared
// function call and returns the raw call arguments.
type ToolCompleter interface {
	CompleteTool(ctx context.Context, system, user string, tool ToolSchema) (json.RawMessage, error)
}

// ToolSchema describes one callable function exposed to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Config holds client settings for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}
