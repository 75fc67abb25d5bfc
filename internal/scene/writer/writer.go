// Package writer defines the script generation service and its backends.
//
// A Writer takes a fixed system instruction plus the templated plot twist and
// returns the raw screenplay text. Backends never substitute fallback text;
// deciding what to show on failure is the studio's job.
package writer

import (
	"context"
	"fmt"
	"strings"
)

// Request is one generation call. APIKey is read from the credential
// provider immediately before the call.
type Request struct {
	APIKey            string
	SystemInstruction string
	UserContent       string
	Temperature       float32
}

type Result struct {
	Text string
}

// Writer is the script generation service.
type Writer interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

type Config struct {
	Backend string
	Model   string
	BaseURL string // OpenAI-compatible endpoints only
}

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

// New selects a backend by name.
func New(cfg Config) (Writer, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendGemini, "":
		return NewGemini(cfg.Model), nil
	case BackendOpenAI:
		return NewOpenAI(cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported writer backend: %s", cfg.Backend)
	}
}
