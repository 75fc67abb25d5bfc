package tts

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
	"directorscut/internal/scene/classify"
)

const (
	googleDefaultVoice = "en-US-Chirp3-HD-Kore"
	googleChunkLimit   = 4800 // a little under the 5000 byte request limit
)

type GoogleClassicSynthesizer struct {
	voice    string
	language string
	speed    float64
	volume   float64
	cacheDir string

	mu      sync.Mutex
	clients map[string]*texttospeech.Client // by API key; "" is application default credentials
}

func newGoogleClassicSynthesizer(config Config) (*GoogleClassicSynthesizer, error) {
	if config.CachePath != "" {
		if err := os.MkdirAll(config.CachePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	voice := config.Voice
	if voice == "" || voice == "default" {
		voice = googleDefaultVoice
	}
	language := config.Language
	if language == "" {
		language = "en-US"
	}

	return &GoogleClassicSynthesizer{
		voice:    voice,
		language: language,
		speed:    config.Speed,
		volume:   config.Volume,
		cacheDir: config.CachePath,
		clients:  make(map[string]*texttospeech.Client),
	}, nil
}

func (g *GoogleClassicSynthesizer) Name() string { return EngineTypeGoogleClassic.String() }

func (g *GoogleClassicSynthesizer) client(apiKey string) (*texttospeech.Client, error) {
	if apiKey == "" && !hasGoogleCredentials() {
		return nil, scene.NewError(scene.ErrMissingCredential, "google tts", fmt.Errorf("no API key and no application default credentials"))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}

	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	// the client outlives any single request
	c, err := texttospeech.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}
	g.clients[apiKey] = c
	return c, nil
}

func (g *GoogleClassicSynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, scene.NewError(scene.ErrEmptyAudio, "google tts", fmt.Errorf("empty text"))
	}

	voice := req.Voice
	if voice == "" {
		voice = g.voice
	}

	contentHash := md5Sum(req.Text + voice)[:12]
	if payload, ok := g.readCache(contentHash); ok {
		logrus.WithField("hash", contentHash).Debug("Using cached narration audio")
		return &Speech{
			AudioPayload: base64.StdEncoding.EncodeToString(payload),
			Encoding:     audio.EncodingMP3,
		}, nil
	}

	client, err := g.client(req.APIKey)
	if err != nil {
		return nil, err
	}

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	// Chirp voices don't support speakingRate/volume tuning
	if !strings.Contains(strings.ToLower(voice), "chirp") {
		audioCfg.SpeakingRate = g.speed
		audioCfg.VolumeGainDb = g.volume
	}

	// MP3 is a plain frame stream, so chunk outputs concatenate cleanly.
	var payload bytes.Buffer
	chunks := splitIntoChunks(req.Text, googleChunkLimit)
	for chunkIndex, chunk := range chunks {
		resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: g.language,
				Name:         voice,
			},
			AudioConfig: audioCfg,
		})
		if err != nil {
			return nil, classify.Google("google tts", fmt.Errorf("failed to synthesize chunk %d: %w", chunkIndex, err))
		}
		payload.Write(resp.AudioContent)
	}

	g.writeCache(contentHash, payload.Bytes())

	return &Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(payload.Bytes()),
		Encoding:     audio.EncodingMP3,
	}, nil
}

func (g *GoogleClassicSynthesizer) Voices(ctx context.Context, apiKey string) ([]string, error) {
	client, err := g.client(apiKey)
	if err != nil {
		return nil, err
	}
	resp, err := client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.language})
	if err != nil {
		return nil, classify.Google("google tts voices", err)
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

func (g *GoogleClassicSynthesizer) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for key, c := range g.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.clients, key)
	}
	return firstErr
}

func (g *GoogleClassicSynthesizer) cacheFile(hash string) string {
	return filepath.Join(g.cacheDir, "google_classic", hash+".mp3")
}

func (g *GoogleClassicSynthesizer) readCache(hash string) ([]byte, bool) {
	if g.cacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(g.cacheFile(hash))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (g *GoogleClassicSynthesizer) writeCache(hash string, data []byte) {
	if g.cacheDir == "" || len(data) == 0 {
		return
	}
	path := g.cacheFile(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create narration cache directory")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logrus.WithError(err).WithField("file", path).Warn("Failed to cache narration audio")
		return
	}
	logrus.WithField("file", path).Debug("Cached narration audio")
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
