package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
	"directorscut/internal/scene/classify"
)

var openAIVoices = []string{
	string(openai.VoiceAlloy),
	string(openai.VoiceEcho),
	string(openai.VoiceFable),
	string(openai.VoiceOnyx),
	string(openai.VoiceNova),
	string(openai.VoiceShimmer),
}

type OpenAISynthesizer struct {
	voice string
	speed float64
}

func newOpenAISynthesizer(config Config) *OpenAISynthesizer {
	voice := config.Voice
	if voice == "" || voice == "default" {
		voice = string(openai.VoiceOnyx)
	}
	return &OpenAISynthesizer{voice: voice, speed: config.Speed}
}

func (o *OpenAISynthesizer) Name() string { return EngineTypeOpenAI.String() }

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if req.APIKey == "" {
		return nil, scene.NewError(scene.ErrMissingCredential, "openai tts", fmt.Errorf("no API key"))
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, scene.NewError(scene.ErrEmptyAudio, "openai tts", fmt.Errorf("empty text"))
	}

	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	client := openai.NewClient(req.APIKey)
	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          o.speed,
	})
	if err != nil {
		return nil, classify.OpenAI("openai tts", err)
	}
	defer resp.Close()

	payload, err := io.ReadAll(resp)
	if err != nil {
		return nil, scene.NewError(scene.ErrNetworkFailure, "openai tts", fmt.Errorf("failed to read speech: %w", err))
	}

	return &Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(payload),
		Encoding:     audio.EncodingMP3,
	}, nil
}

func (o *OpenAISynthesizer) Voices(context.Context, string) ([]string, error) {
	return append([]string(nil), openAIVoices...), nil
}

func (o *OpenAISynthesizer) Close() error { return nil }
