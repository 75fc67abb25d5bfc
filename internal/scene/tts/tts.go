// Package tts turns a finished script into narration audio.
package tts

import (
	"context"

	"directorscut/internal/scene/audio"
)

type Config struct {
	Type      string
	Voice     string
	Language  string
	Speed     float64
	Volume    float64
	CachePath string
}

// Request is one synthesis call. APIKey is read from the credential provider
// right before the call; backends that need no key ignore it.
type Request struct {
	APIKey string
	Text   string
	Voice  string
}

// Speech is the synthesized payload as delivered on the wire.
type Speech struct {
	AudioPayload string // base64
	Encoding     audio.Encoding
}

// Synthesizer is the speech synthesis service consumed by the narration slot.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Speech, error)
	Voices(ctx context.Context, apiKey string) ([]string, error)
	Close() error
}
